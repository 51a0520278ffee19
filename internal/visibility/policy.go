// Package visibility decides which settings a caller may match and which fields it may see.
// Every read path derives its store constraints from a Policy.
package visibility

import (
	"strconv"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/query"
)

// Policy describes the caller of a read.
type Policy struct {
	// Privileged is true for callers asserting admin status.
	Privileged bool

	// AdminOnly narrows a privileged read to adminOnly == *AdminOnly. Ignored otherwise.
	AdminOnly *bool

	// CurrentEnv is the deployment environment of a non-privileged caller.
	CurrentEnv string

	// Environment narrows a privileged read to one exact environment value.
	Environment string
}

// Public is the policy of an anonymous caller in the given environment.
func Public(currentEnv string) Policy {
	return Policy{CurrentEnv: currentEnv}
}

// Admin is the policy of a privileged caller restricted to admin-only settings.
func Admin() Policy {
	return Policy{Privileged: true, AdminOnly: models.Bool(true)}
}

// FromQuery builds a policy from request parameters. Anything but isAdmin=true is non-privileged.
func FromQuery(isAdmin, adminOnly, currentEnv, environment string) Policy {
	p := Policy{
		Privileged: isAdmin == "true",
		CurrentEnv: currentEnv,
	}

	if !p.Privileged {
		return p
	}

	if b, err := strconv.ParseBool(adminOnly); err == nil && adminOnly != "" {
		p.AdminOnly = &b
	}

	p.Environment = environment

	return p
}

// adminOnlyHidden matches adminOnly == false as well as a missing flag.
func adminOnlyHidden() query.Expr {
	return query.Ne(models.KeyAdminOnly, true)
}

// Constraints returns the match constraints for the caller.
func (p Policy) Constraints() query.Expr {
	if !p.Privileged {
		out := query.And{adminOnlyHidden()}

		if p.CurrentEnv != "" {
			out = append(out, query.Or{
				query.Eq(models.KeyEnvironment, p.CurrentEnv),
				query.Eq(models.KeyEnvironment, string(models.EnvBoth)),
				query.Exists(models.KeyEnvironment, false),
			})
		}

		return query.Conj(out...)
	}

	out := query.And{}

	if p.AdminOnly != nil {
		if *p.AdminOnly {
			out = append(out, query.Eq(models.KeyAdminOnly, true))
		} else {
			out = append(out, adminOnlyHidden())
		}
	}

	if p.Environment != "" {
		out = append(out, query.Eq(models.KeyEnvironment, p.Environment))
	}

	return query.Conj(out...)
}

// AdminOnlyConstraint is the environment agnostic part of the policy used for statistics.
func (p Policy) AdminOnlyConstraint() query.Expr {
	if p.Privileged {
		return query.All()
	}

	return adminOnlyHidden()
}

// Apply ANDs the policy constraints onto filter.
func (p Policy) Apply(filter query.Expr) query.Expr {
	return query.Conj(p.Constraints(), filter)
}

// Allows reports whether a single document is visible under the policy.
func (p Policy) Allows(s *models.Setting) bool {
	return query.Match(p.Constraints(), s.ToMap())
}

// StripsEnvironment reports whether returned documents lose their environment field.
func (p Policy) StripsEnvironment() bool {
	return !p.Privileged
}

// Strip removes the fields the caller may not see.
func (p Policy) Strip(s *models.Setting) {
	if p.StripsEnvironment() {
		s.Environment = ""

		delete(s.Extra, models.KeyEnvironment)
	}
}

// StripAll applies Strip to every setting.
func (p Policy) StripAll(settings []models.Setting) {
	for i := range settings {
		p.Strip(&settings[i])
	}
}
