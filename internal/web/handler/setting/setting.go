// Package setting provides the REST handlers of the settings collection.
package setting

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mdr-platform/settings-service/internal/apperror"
	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
	"github.com/mdr-platform/settings-service/internal/service"
	"github.com/mdr-platform/settings-service/internal/visibility"
	"github.com/mdr-platform/settings-service/internal/web/handler"
	"github.com/mdr-platform/settings-service/internal/web/response"
)

const (
	// Path is the base path of the settings routes.
	Path = handler.RootPath + "settings"

	// HeaderUserID carries the caller's guid when the body does not.
	HeaderUserID = "X-User-Id"

	paramIsAdmin     = "isAdmin"
	paramAdminOnly   = "adminOnly"
	paramCurrentEnv  = "currentEnv"
	paramEnvironment = "environment"
)

// Service serves the settings routes.
type Service struct {
	settings *service.Settings
}

var _ handler.Service[*service.Settings] = (*Service)(nil)

// Init registers routes. Static segments are registered before /:id.
func (s *Service) Init(app *fiber.App, settings *service.Settings) error {
	if app == nil || settings == nil {
		return handler.ErrNilDependency
	}

	s.settings = settings

	app.Get(Path, s.Find)
	app.Get(Path+"/aggregate", s.Aggregate)
	app.Get(Path+"/stats", s.Stats)
	app.Get(Path+"/public", s.Public)
	app.Get(Path+"/admin", s.Admin)
	app.Get(Path+"/name/:name", s.FindByName)
	app.Get(Path+"/:id", s.FindByID)

	app.Post(Path, s.Create)

	app.Put(Path+"/bulk/admin-only", s.BulkAdminOnly)
	app.Put(Path+"/bulk/environment", s.BulkEnvironment)
	app.Put(Path+"/:id", s.Update)

	app.Delete(Path+"/:id", s.Delete)

	return nil
}

func policy(c *fiber.Ctx) visibility.Policy {
	return visibility.FromQuery(
		c.Query(paramIsAdmin),
		c.Query(paramAdminOnly),
		c.Query(paramCurrentEnv),
		c.Query(paramEnvironment),
	)
}

func nonNil(in []models.Setting) []models.Setting {
	if in == nil {
		return []models.Setting{}
	}

	return in
}

// Find lists settings matching the filter mini-language of the query string.
// A paged request answers {records, totalCount}, an unpaged one the bare array.
func (s *Service) Find(c *fiber.Ctx) error {
	q := query.Translate(nil, string(c.Request().URI().QueryString()), paramIsAdmin, paramCurrentEnv)

	p := visibility.FromQuery(c.Query(paramIsAdmin), "", c.Query(paramCurrentEnv), "")

	out, total, err := s.settings.Find(c.UserContext(), q, p)
	if err != nil {
		return err
	}

	if q.Paging != nil {
		return response.OK(c, response.Paged{Records: nonNil(out), TotalCount: total})
	}

	return response.OK(c, nonNil(out))
}

// Aggregate runs the listing pipeline.
func (s *Service) Aggregate(c *fiber.Ctx) error {
	sortField := c.Query("sortField", pipeline.DefaultSortField)
	if _, err := query.Field(sortField); err != nil {
		sortField = pipeline.DefaultSortField
	}

	spec := pipeline.ListSpec{
		Policy:    policy(c),
		Category:  c.Query("category"),
		Type:      c.Query("type"),
		Search:    c.Query("search"),
		Page:      int64(c.QueryInt("page", pipeline.DefaultPage)),
		PageSize:  int64(c.QueryInt("pageSize", pipeline.DefaultPageSize)),
		SortField: sortField,
		SortDesc:  descending(c.Query("sortOrder")),
	}

	out, err := s.settings.List(c.UserContext(), spec)
	if err != nil {
		return err
	}

	out.Settings = nonNil(out.Settings)

	return response.OK(c, out)
}

func descending(order string) bool {
	switch strings.ToLower(order) {
	case "desc", "descending", "-1":
		return true
	default:
		return false
	}
}

// Stats runs the statistics pipeline.
func (s *Service) Stats(c *fiber.Ctx) error {
	spec := pipeline.StatsSpec{Policy: visibility.FromQuery(c.Query(paramIsAdmin), "", "", "")}

	out, err := s.settings.Stats(c.UserContext(), spec)
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// Public lists the settings an anonymous caller may see.
func (s *Service) Public(c *fiber.Ctx) error {
	out, err := s.settings.Public(c.UserContext(), c.Query(paramCurrentEnv))
	if err != nil {
		return err
	}

	return response.OK(c, nonNil(out))
}

// Admin lists the admin-only settings.
func (s *Service) Admin(c *fiber.Ctx) error {
	out, err := s.settings.Admin(c.UserContext())
	if err != nil {
		return err
	}

	return response.OK(c, nonNil(out))
}

// FindByID returns one setting.
func (s *Service) FindByID(c *fiber.Ctx) error {
	out, err := s.settings.FindByID(c.UserContext(), c.Params("id"), policy(c))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// FindByName returns the setting with a unique name.
func (s *Service) FindByName(c *fiber.Ctx) error {
	out, err := s.settings.FindByName(c.UserContext(), c.Params("name"), policy(c))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// Create inserts a setting. The actor is read from user.authenticatedInfo.guid.
func (s *Service) Create(c *fiber.Ctx) error {
	body, err := decodeObject(c)
	if err != nil {
		return err
	}

	out, err := s.settings.Create(c.UserContext(), body, caller(c, body, "user", "authenticatedInfo"))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// Update merges the body into a setting. The actor is read from currentUser.info.guid.
func (s *Service) Update(c *fiber.Ctx) error {
	body, err := decodeObject(c)
	if err != nil {
		return err
	}

	out, err := s.settings.Update(c.UserContext(), c.Params("id"), body, caller(c, body, "currentUser", "info"))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// BulkAdminOnly sets adminOnly on several settings.
func (s *Service) BulkAdminOnly(c *fiber.Ctx) error {
	var in service.BulkAdminOnlyRequest
	if err := decode(c, &in); err != nil {
		return err
	}

	out, err := s.settings.BulkUpdateAdminOnly(c.UserContext(), in, caller(c, nil, "", ""))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// BulkEnvironment sets environment on several settings.
func (s *Service) BulkEnvironment(c *fiber.Ctx) error {
	var in service.BulkEnvironmentRequest
	if err := decode(c, &in); err != nil {
		return err
	}

	out, err := s.settings.BulkUpdateEnvironment(c.UserContext(), in, caller(c, nil, "", ""))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// Delete removes a setting.
func (s *Service) Delete(c *fiber.Ctx) error {
	out, err := s.settings.Delete(c.UserContext(), c.Params("id"), caller(c, nil, "", ""))
	if err != nil {
		return err
	}

	return response.OK(c, out)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(c *fiber.Ctx, dst any) error {
	raw := c.Body()
	if len(raw) == 0 {
		return nil
	}

	if err := c.App().Config().JSONDecoder(raw, dst); err != nil {
		return apperror.Wrap(err, apperror.CodeValidation, "request body is not valid JSON", fiber.StatusBadRequest)
	}

	return nil
}

// decodeObject reads a JSON object body. An empty body yields nil.
func decodeObject(c *fiber.Ctx) (map[string]any, error) {
	var body map[string]any
	if err := decode(c, &body); err != nil {
		return nil, err
	}

	return body, nil
}

// caller resolves who is calling. The guid is taken from body[carrier][info]["guid"],
// then from the X-User-Id header. The carrier key is removed from body.
func caller(c *fiber.Ctx, body map[string]any, carrier, info string) service.Caller {
	out := service.Caller{
		ID:         c.Get(HeaderUserID),
		Privileged: c.Query(paramIsAdmin) == "true",
	}

	if body == nil || carrier == "" {
		return out
	}

	holder, ok := body[carrier].(map[string]any)
	if !ok {
		return out
	}

	details, ok := holder[info].(map[string]any)
	if !ok {
		return out
	}

	delete(body, carrier)

	if guid, _ := details["guid"].(string); guid != "" {
		out.ID = guid
	}

	return out
}
