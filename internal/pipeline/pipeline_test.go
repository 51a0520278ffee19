package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/query"
	"github.com/mdr-platform/settings-service/internal/visibility"
)

func TestFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	testCases := []struct {
		name string
		expr query.Expr
		want bson.D
	}{
		{
			name: "match all",
			expr: query.All(),
			want: bson.D{},
		},
		{
			name: "none",
			expr: query.None{},
			want: noMatch(),
		},
		{
			name: "ne keeps missing fields",
			expr: query.Ne("adminOnly", true),
			want: bson.D{{Key: "adminOnly", Value: bson.D{{Key: "$ne", Value: true}}}},
		},
		{
			name: "identifier converted",
			expr: query.Eq(query.IDField, oid.Hex()),
			want: bson.D{{Key: "_id", Value: oid}},
		},
		{
			name: "invalid identifier matches nothing",
			expr: query.Eq(query.IDField, "not-an-id"),
			want: noMatch(),
		},
		{
			name: "identifier list drops invalid ids",
			expr: query.Cond{Field: query.IDField, Op: query.OpIn, Value: []any{oid.Hex(), "bad"}},
			want: bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid}}}}},
		},
		{
			name: "and of or",
			expr: query.And{
				query.Ne("adminOnly", true),
				query.Or{query.Eq("environment", "prod"), query.Exists("environment", false)},
			},
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "adminOnly", Value: bson.D{{Key: "$ne", Value: true}}}},
				bson.D{{Key: "$or", Value: bson.A{
					bson.D{{Key: "environment", Value: "prod"}},
					bson.D{{Key: "environment", Value: bson.D{{Key: "$exists", Value: false}}}},
				}}},
			}}},
		},
		{
			name: "contains quotes the term",
			expr: query.Contains("name", "a.b"),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: `a\.b`}, {Key: "$options", Value: "i"}}}},
		},
		{
			name: "regex",
			expr: query.Cond{Field: "name", Op: query.OpRegex, Value: query.Regex{Pattern: "^JOB", Options: "i"}},
			want: bson.D{{Key: "name", Value: primitive.Regex{Pattern: "^JOB", Options: "i"}}},
		},
		{
			name: "in list",
			expr: query.Cond{Field: "type", Op: query.OpIn, Value: []any{"Site", "User"}},
			want: bson.D{{Key: "type", Value: bson.D{{Key: "$in", Value: bson.A{"Site", "User"}}}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Filter(tc.expr))
		})
	}
}

func stage(t *testing.T, d bson.D) (string, any) {
	t.Helper()
	require.Len(t, d, 1)

	return d[0].Key, d[0].Value
}

func TestBuildListStages(t *testing.T) {
	p := BuildList(ListSpec{
		Policy:   visibility.Public("prod"),
		Category: "Jobs",
		Search:   "sync",
		Page:     2,
		PageSize: 10,
		SortDesc: true,
	})
	require.Len(t, p, 4)

	names := make([]string, 0, len(p))
	for _, s := range p {
		name, _ := stage(t, s)
		names = append(names, name)
	}

	assert.Equal(t, []string{"$match", "$match", "$addFields", "$facet"}, names)

	_, match := stage(t, p[0])
	assert.Equal(t, Filter(query.And{
		query.Ne("adminOnly", true),
		query.Or{
			query.Eq("environment", "prod"),
			query.Eq("environment", "both"),
			query.Exists("environment", false),
		},
		query.Eq("category", "Jobs"),
	}), match)

	_, search := stage(t, p[1])
	or, ok := search.(bson.D)
	require.True(t, ok)
	assert.Equal(t, "$or", or[0].Key)
	assert.Len(t, or[0].Value, 3)

	_, facet := stage(t, p[3])
	facetDoc, ok := facet.(bson.D)
	require.True(t, ok)
	require.Len(t, facetDoc, 2)
	assert.Equal(t, "data", facetDoc[0].Key)
	assert.Equal(t, "total", facetDoc[1].Key)

	data, ok := facetDoc[0].Value.(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.A{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "name", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$skip", Value: int64(10)}},
		bson.D{{Key: "$limit", Value: int64(10)}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "environment", Value: 0}}}},
	}, data)
}

func TestBuildListPrivilegedWithoutSearch(t *testing.T) {
	p := BuildList(ListSpec{Policy: visibility.Policy{Privileged: true}, SortField: "updatedAt"})
	require.Len(t, p, 3)

	_, match := stage(t, p[0])
	assert.Equal(t, bson.D{}, match)

	_, facet := stage(t, p[2])
	data := facet.(bson.D)[0].Value.(bson.A) //nolint:forcetypeassert
	assert.Len(t, data, 3, "privileged callers keep the environment field")
	assert.Equal(t, bson.D{{Key: "$skip", Value: int64(0)}}, data[1])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(DefaultPageSize)}}, data[2])
}

func TestBuildStats(t *testing.T) {
	public := BuildStats(StatsSpec{Policy: visibility.Public("prod")})
	require.Len(t, public, 2)

	_, match := stage(t, public[0])
	assert.Equal(t, bson.D{{Key: "adminOnly", Value: bson.D{{Key: "$ne", Value: true}}}}, match,
		"statistics ignore the environment")

	_, facet := stage(t, public[1])
	keys := facetKeys(facet.(bson.D)) //nolint:forcetypeassert
	assert.Equal(t, []string{"total", "adminOnly", "regular", "byCategory", "byType"}, keys)

	admin := BuildStats(StatsSpec{Policy: visibility.Policy{Privileged: true}})
	_, match = stage(t, admin[0])
	assert.Equal(t, bson.D{}, match)

	_, facet = stage(t, admin[1])
	keys = facetKeys(facet.(bson.D)) //nolint:forcetypeassert
	assert.Contains(t, keys, "byEnvironment")
}

func facetKeys(d bson.D) []string {
	keys := make([]string, 0, len(d))
	for _, e := range d {
		keys = append(keys, e.Key)
	}

	return keys
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), TotalPages(0, 10))
	assert.Equal(t, int64(1), TotalPages(10, 10))
	assert.Equal(t, int64(2), TotalPages(3, 2))
	assert.Equal(t, int64(0), TotalPages(3, 0))
	assert.Equal(t, int64(1), TotalPages(3, math.MaxInt64))

	far := ListSpec{Page: math.MaxInt64, PageSize: 2}
	assert.Equal(t, int64(math.MaxInt64), far.Skip())

	r := NewListResult(nil, 3, ListSpec{Page: 1, PageSize: 2})
	assert.Equal(t, []models.Setting{}, r.Settings)
	assert.Equal(t, int64(2), r.TotalPages)
}
