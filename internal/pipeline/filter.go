// Package pipeline builds the document-store aggregation pipelines for listing
// and statistics, and lowers filter trees to the store's query syntax.
package pipeline

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mdr-platform/settings-service/internal/query"
)

// noMatch is a filter no document satisfies.
func noMatch() bson.D {
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{}}}}}
}

// Filter lowers a filter tree to a bson filter document.
func Filter(e query.Expr) bson.D {
	switch t := e.(type) {
	case nil:
		return bson.D{}
	case query.None:
		return noMatch()
	case query.And:
		if len(t) == 0 {
			return bson.D{}
		}

		if len(t) == 1 {
			return Filter(t[0])
		}

		parts := make(bson.A, 0, len(t))
		for _, child := range t {
			parts = append(parts, Filter(child))
		}

		return bson.D{{Key: "$and", Value: parts}}
	case query.Or:
		if len(t) == 0 {
			return noMatch()
		}

		parts := make(bson.A, 0, len(t))
		for _, child := range t {
			parts = append(parts, Filter(child))
		}

		return bson.D{{Key: "$or", Value: parts}}
	case query.Cond:
		return condition(t)
	default:
		return noMatch()
	}
}

func condition(c query.Cond) bson.D {
	v, ok := value(c.Field, c.Value)
	if !ok {
		if c.Op == query.OpNe || c.Op == query.OpNin {
			// an identifier that cannot exist is never equal to a stored one
			return bson.D{}
		}

		return noMatch()
	}

	switch c.Op {
	case query.OpEq:
		return bson.D{{Key: c.Field, Value: v}}
	case query.OpNe:
		return op(c.Field, "$ne", v)
	case query.OpGt:
		return op(c.Field, "$gt", v)
	case query.OpGte:
		return op(c.Field, "$gte", v)
	case query.OpLt:
		return op(c.Field, "$lt", v)
	case query.OpLte:
		return op(c.Field, "$lte", v)
	case query.OpIn:
		return op(c.Field, "$in", v)
	case query.OpNin:
		return op(c.Field, "$nin", v)
	case query.OpExists:
		return op(c.Field, "$exists", v)
	case query.OpRegex:
		r, ok := c.Value.(query.Regex)
		if !ok {
			return noMatch()
		}

		return bson.D{{Key: c.Field, Value: primitive.Regex{Pattern: r.Pattern, Options: r.Options}}}
	case query.OpContains:
		term, _ := c.Value.(string)

		return bson.D{{Key: c.Field, Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(term)},
			{Key: "$options", Value: "i"},
		}}}
	default:
		return noMatch()
	}
}

func op(field, operator string, v any) bson.D {
	return bson.D{{Key: field, Value: bson.D{{Key: operator, Value: v}}}}
}

// value converts identifier strings to ObjectIDs; ok is false for an
// identifier that is not a valid ObjectID.
func value(field string, v any) (any, bool) {
	if field != query.IDField {
		if list, isList := v.([]any); isList {
			return bson.A(list), true
		}

		return v, true
	}

	switch t := v.(type) {
	case string:
		oid, err := primitive.ObjectIDFromHex(t)
		if err != nil {
			return nil, false
		}

		return oid, true
	case []any:
		out := make(bson.A, 0, len(t))

		for _, item := range t {
			s, isString := item.(string)
			if !isString {
				continue
			}

			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				out = append(out, oid)
			}
		}

		return out, true
	default:
		return v, true
	}
}

// Projection lowers a projection to bson.
func Projection(p query.Projection) bson.D {
	if len(p) == 0 {
		return nil
	}

	out := make(bson.D, 0, len(p))
	for f, flag := range p {
		out = append(out, bson.E{Key: f, Value: flag})
	}

	return out
}

// Sort lowers sort fields to bson.
func Sort(fields []query.SortField) bson.D {
	out := make(bson.D, 0, len(fields))

	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}

		out = append(out, bson.E{Key: f.Field, Value: dir})
	}

	return out
}
