package setting

import (
	"context"
	"encoding/json"
	"math"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
)

// List runs the listing spec. Count and page are read in one repeatable read
// transaction so they describe the same rows.
func (s *Store) List(ctx context.Context, spec pipeline.ListSpec) (pipeline.ListResult, error) {
	spec = spec.WithDefaults()
	filter := query.Conj(spec.Match(), spec.SearchExpr())

	sortField := spec.SortField
	if _, ok := models.Columns[sortField]; !ok {
		sortField = pipeline.DefaultSortField
	}

	var (
		rows  []models.SettingRow
		total int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.filtered(tx, filter).Count(&total).Error; err != nil {
			return err
		}

		return s.filtered(tx, filter).
			Clauses(order([]query.SortField{{Field: sortField, Desc: spec.SortDesc}})).
			Offset(int(spec.Skip())).
			Limit(int(spec.PageSize)).
			Find(&rows).Error
	}, snapshot)
	if err != nil {
		return pipeline.ListResult{}, err //nolint:wrapcheck
	}

	out := make([]models.Setting, 0, len(rows))

	for i := range rows {
		st, err := rows[i].Setting()
		if err != nil {
			return pipeline.ListResult{}, err
		}

		if st.Extra == nil {
			st.Extra = map[string]any{}
		}

		st.Extra[pipeline.FieldValueType] = valueType(rows[i].Value)
		st.Extra[pipeline.FieldHasDescription] = st.Description != ""

		spec.Policy.Strip(&st)
		out = append(out, st)
	}

	return pipeline.NewListResult(out, total, spec), nil
}

// valueType names the JSON value the way the document store's $type does.
func valueType(raw datatypes.JSON) string {
	if len(raw) == 0 {
		return "missing"
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "missing"
	}

	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt32 && t <= math.MaxInt32 {
			return "int"
		}

		return "double"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "missing"
	}
}

type groupRow struct {
	GroupName *string `gorm:"column:group_name"`
	Total     int64   `gorm:"column:total"`
}

// Stats computes the statistics record from one repeatable read transaction.
func (s *Store) Stats(ctx context.Context, spec pipeline.StatsSpec) (pipeline.Stats, error) {
	base := spec.Policy.AdminOnlyConstraint()

	var out pipeline.Stats

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts := []struct {
			filter query.Expr
			dst    *int64
		}{
			{base, &out.TotalCount},
			{query.Conj(base, query.Eq(models.KeyAdminOnly, true)), &out.AdminOnlyCount},
			{query.Conj(base, query.Ne(models.KeyAdminOnly, true)), &out.RegularCount},
		}

		for _, c := range counts {
			if err := s.filtered(tx, c.filter).Count(c.dst).Error; err != nil {
				return err
			}
		}

		var err error

		if out.ByCategory, err = s.groupBy(tx, base, models.KeyCategory); err != nil {
			return err
		}

		if out.ByType, err = s.groupBy(tx, base, models.KeyType); err != nil {
			return err
		}

		if spec.Policy.Privileged {
			if out.ByEnvironment, err = s.groupBy(tx, base, models.KeyEnvironment); err != nil {
				return err
			}
		}

		return nil
	}, snapshot)
	if err != nil {
		return pipeline.Stats{}, err //nolint:wrapcheck
	}

	return out, nil
}

func (s *Store) groupBy(tx *gorm.DB, filter query.Expr, key string) ([]pipeline.Group, error) {
	column := models.Columns[key]

	var rows []groupRow

	err := s.filtered(tx, filter).
		Select(column + " AS group_name, COUNT(*) AS total").
		Group(column).
		Order("total DESC, group_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	out := make([]pipeline.Group, 0, len(rows))

	for _, r := range rows {
		g := pipeline.Group{Count: r.Total}
		if r.GroupName != nil {
			g.Name = *r.GroupName
		}

		out = append(out, g)
	}

	return out, nil
}
