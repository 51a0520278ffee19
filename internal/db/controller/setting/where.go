package setting

import (
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/query"
)

const (
	valueColumn = "value"
	extraColumn = "extra"
	likeEscape  = "!"
)

func sqlExpr(sql string, vars ...any) clause.Expression {
	return clause.Expr{SQL: sql, Vars: vars}
}

func matchAll() clause.Expression {
	return sqlExpr("1 = 1")
}

func matchNone() clause.Expression {
	return sqlExpr("1 = 0")
}

// where lowers a filter tree to a SQL condition. Conditions SQL cannot express
// (regular expressions, ordering on JSON paths) match nothing.
func where(e query.Expr) clause.Expression {
	switch t := e.(type) {
	case nil:
		return matchAll()
	case query.None:
		return matchNone()
	case query.And:
		switch len(t) {
		case 0:
			return matchAll()
		case 1:
			return where(t[0])
		}

		return clause.And(lowerAll(t)...)
	case query.Or:
		switch len(t) {
		case 0:
			return matchNone()
		case 1:
			return where(t[0])
		}

		return clause.Or(lowerAll(t)...)
	case query.Cond:
		if column, ok := models.Columns[t.Field]; ok {
			return columnCond(clause.Column{Name: column}, t)
		}

		return jsonCond(t)
	default:
		return matchNone()
	}
}

func lowerAll(exprs []query.Expr) []clause.Expression {
	out := make([]clause.Expression, len(exprs))
	for i, e := range exprs {
		out[i] = where(e)
	}

	return out
}

func columnCond(col clause.Column, c query.Cond) clause.Expression {
	switch c.Op {
	case query.OpEq:
		if c.Value == nil {
			return sqlExpr("? IS NULL", col)
		}

		return sqlExpr("? = ?", col, c.Value)
	case query.OpNe:
		if c.Value == nil {
			return sqlExpr("? IS NOT NULL", col)
		}

		return clause.Or(sqlExpr("? IS NULL", col), sqlExpr("? <> ?", col, c.Value))
	case query.OpGt:
		return sqlExpr("? > ?", col, c.Value)
	case query.OpGte:
		return sqlExpr("? >= ?", col, c.Value)
	case query.OpLt:
		return sqlExpr("? < ?", col, c.Value)
	case query.OpLte:
		return sqlExpr("? <= ?", col, c.Value)
	case query.OpIn:
		return columnIn(col, c.Value)
	case query.OpNin:
		return columnNotIn(col, c.Value)
	case query.OpExists:
		if present, _ := c.Value.(bool); present {
			return sqlExpr("? IS NOT NULL", col)
		}

		return sqlExpr("? IS NULL", col)
	case query.OpContains:
		term, _ := c.Value.(string)

		return sqlExpr("LOWER(?) LIKE ? ESCAPE '"+likeEscape+"'", col, "%"+escapeLike(strings.ToLower(term))+"%")
	default:
		return matchNone()
	}
}

func splitNulls(v any) (values []any, hasNull bool) {
	list, _ := v.([]any)
	for _, item := range list {
		if item == nil {
			hasNull = true
		} else {
			values = append(values, item)
		}
	}

	return values, hasNull
}

// columnIn treats a null element as "column is null".
func columnIn(col clause.Column, v any) clause.Expression {
	values, hasNull := splitNulls(v)

	switch {
	case len(values) == 0 && hasNull:
		return sqlExpr("? IS NULL", col)
	case len(values) == 0:
		return matchNone()
	case hasNull:
		return clause.Or(sqlExpr("? IS NULL", col), sqlExpr("? IN ?", col, values))
	default:
		return sqlExpr("? IN ?", col, values)
	}
}

// columnNotIn keeps rows lacking the column unless null is listed.
func columnNotIn(col clause.Column, v any) clause.Expression {
	values, hasNull := splitNulls(v)

	switch {
	case len(values) == 0 && hasNull:
		return sqlExpr("? IS NOT NULL", col)
	case len(values) == 0:
		return matchAll()
	case hasNull:
		return clause.And(sqlExpr("? IS NOT NULL", col), sqlExpr("? NOT IN ?", col, values))
	default:
		return clause.Or(sqlExpr("? IS NULL", col), sqlExpr("? NOT IN ?", col, values))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

// jsonCond handles paths below the value column and ad-hoc fields kept in the extra column.
func jsonCond(c query.Cond) clause.Expression {
	parts := strings.Split(c.Field, ".")

	column, keys := extraColumn, parts
	if parts[0] == models.KeyValue {
		column, keys = valueColumn, parts[1:]
	}

	if len(keys) == 0 {
		return wholeValueCond(c)
	}

	hasKey := datatypes.JSONQuery(column).HasKey(keys...)
	equals := func(v any) clause.Expression {
		return datatypes.JSONQuery(column).Equals(v, keys...)
	}

	switch c.Op {
	case query.OpExists:
		if present, _ := c.Value.(bool); present {
			return hasKey
		}

		return clause.Not(hasKey)
	case query.OpEq:
		if c.Value == nil {
			return clause.Not(hasKey)
		}

		if !scalar(c.Value) {
			return matchNone()
		}

		return equals(c.Value)
	case query.OpNe:
		if c.Value == nil {
			return hasKey
		}

		if !scalar(c.Value) {
			return matchNone()
		}

		return clause.Or(clause.Not(hasKey), clause.Not(equals(c.Value)))
	case query.OpIn, query.OpNin:
		list, _ := c.Value.([]any)

		var ors []clause.Expression

		for _, v := range list {
			if scalar(v) {
				ors = append(ors, equals(v))
			}
		}

		in := matchNone()
		if len(ors) > 0 {
			in = clause.Or(ors...)
		}

		if c.Op == query.OpIn {
			return in
		}

		return clause.Or(clause.Not(hasKey), clause.Not(in))
	default:
		return matchNone()
	}
}

func wholeValueCond(c query.Cond) clause.Expression {
	col := clause.Column{Name: valueColumn}

	switch {
	case c.Op == query.OpExists:
		if present, _ := c.Value.(bool); present {
			return sqlExpr("? IS NOT NULL", col)
		}

		return sqlExpr("? IS NULL", col)
	case c.Op == query.OpEq && c.Value == nil:
		return sqlExpr("? IS NULL", col)
	default:
		return matchNone()
	}
}

func scalar(v any) bool {
	switch v.(type) {
	case string, bool, int64, float64:
		return true
	default:
		return false
	}
}

// order lowers sort fields to SQL. Fields without a column are skipped and
// the identifier always breaks ties.
func order(fields []query.SortField) clause.OrderBy {
	out := clause.OrderBy{}
	hasID := false

	for _, f := range fields {
		column, ok := models.Columns[f.Field]
		if !ok {
			continue
		}

		hasID = hasID || column == "id"
		out.Columns = append(out.Columns, clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: f.Desc})
	}

	if !hasID {
		out.Columns = append(out.Columns, clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}

	return out
}
