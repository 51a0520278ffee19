// Package query turns request parameters into a store independent filter
// expression tree, plus projection, sort and paging options.
package query

// Op is a comparison operator of a filter condition.
type Op string

// Supported operators.
const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpNin      Op = "nin"
	OpExists   Op = "exists"
	OpRegex    Op = "regex"
	OpContains Op = "contains" // case-insensitive substring
)

// IDField is the primary identifier field of a stored setting.
const IDField = "_id"

// Expr is a node of the filter tree.
type Expr interface {
	expr()
}

// Cond compares a single field with a value.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// And matches when every child matches. An empty And matches everything.
type And []Expr

// Or matches when at least one child matches. An empty Or matches nothing.
type Or []Expr

// None matches nothing.
type None struct{}

// Regex is the value of an OpRegex condition.
type Regex struct {
	Pattern string
	Options string
}

func (Cond) expr() {}
func (And) expr()  {}
func (Or) expr()   {}
func (None) expr() {}

// All returns the match-everything filter.
func All() Expr {
	return And{}
}

// Eq builds an equality condition.
func Eq(field string, v any) Cond {
	return Cond{Field: field, Op: OpEq, Value: v}
}

// Ne builds an inequality condition. Documents lacking the field match.
func Ne(field string, v any) Cond {
	return Cond{Field: field, Op: OpNe, Value: v}
}

// Exists matches documents that have (or lack) the field.
func Exists(field string, present bool) Cond {
	return Cond{Field: field, Op: OpExists, Value: present}
}

// Contains matches a case-insensitive substring.
func Contains(field, term string) Cond {
	return Cond{Field: field, Op: OpContains, Value: term}
}

// Conj combines expressions with a top level AND. Nested Ands are flattened,
// and any None collapses the whole conjunction to None.
func Conj(exprs ...Expr) Expr {
	out := And{}

	for _, e := range exprs {
		switch t := e.(type) {
		case nil:
			continue
		case None:
			return None{}
		case And:
			for _, child := range t {
				if IsNone(child) {
					return None{}
				}

				out = append(out, child)
			}
		default:
			out = append(out, e)
		}
	}

	if len(out) == 1 {
		return out[0]
	}

	return out
}

// IsNone reports whether e can never match.
func IsNone(e Expr) bool {
	_, ok := e.(None)
	return ok
}

// IsAll reports whether e is the empty conjunction.
func IsAll(e Expr) bool {
	a, ok := e.(And)
	return ok && len(a) == 0
}
