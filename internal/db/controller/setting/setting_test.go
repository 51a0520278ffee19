package setting

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
	"github.com/mdr-platform/settings-service/internal/visibility"
)

// setupTestStore creates a store over an in-memory SQLite database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(), "failed to migrate test database")

	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

// seedSettings inserts test data into the store.
func seedSettings(t *testing.T, s *Store, settings []models.Setting) []models.Setting {
	t.Helper()

	out := make([]models.Setting, 0, len(settings))

	for _, st := range settings {
		st := st
		if st.CreatedAt.IsZero() {
			st.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			st.UpdatedAt = st.CreatedAt
		}

		require.NoError(t, s.Create(context.Background(), &st), "failed to seed test data")

		out = append(out, st)
	}

	return out
}

func names(settings []models.Setting) []string {
	out := make([]string, 0, len(settings))
	for _, st := range settings {
		out = append(out, st.Name)
	}

	return out
}

func fixtures() []models.Setting {
	return []models.Setting{
		{Name: "A", Value: "x", Category: "UI", Type: "Site", AdminOnly: models.Bool(false), Environment: models.EnvProd},
		{Name: "B", Value: 42, Category: "UI", Type: "Site", AdminOnly: models.Bool(true), Environment: models.EnvBoth},
		{Name: "C", Value: map[string]any{"enabled": true}, Category: "Jobs", Type: "Site", Environment: models.EnvLocal},
		{Name: "D", Value: true, Description: "no env", Category: "Jobs",
			Extra: map[string]any{"jobName": "androidSync", "lockLifetime": 300000}},
	}
}

func TestNewNilDatabase(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, store.ErrStoreNil)
}

func TestCreate(t *testing.T) {
	testCases := []struct {
		name          string
		seedData      []models.Setting
		setting       models.Setting
		expectedError bool
	}{
		{
			name:    "assigns an identifier",
			setting: models.Setting{Name: "site_name", Value: "My Site"},
		},
		{
			name:          "duplicate name",
			seedData:      []models.Setting{{Name: "site_name", Value: "My Site"}},
			setting:       models.Setting{Name: "site_name", Value: "Other"},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := setupTestStore(t)
			seedSettings(t, s, tc.seedData)

			st := tc.setting
			err := s.Create(context.Background(), &st)

			if tc.expectedError {
				var dup *store.DuplicateKeyError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, models.KeyName, dup.Field)
				assert.Equal(t, tc.setting.Name, dup.Value)

				return
			}

			require.NoError(t, err)
			assert.True(t, models.ValidID(st.ID))

			got, err := s.FindOne(context.Background(), query.Eq(query.IDField, st.ID))
			require.NoError(t, err)
			assert.Equal(t, tc.setting.Name, got.Name)
			assert.Equal(t, tc.setting.Value, got.Value)
		})
	}
}

func TestFind(t *testing.T) {
	s := setupTestStore(t)
	seedSettings(t, s, fixtures())

	testCases := []struct {
		name          string
		query         query.Query
		expectedNames []string
		expectedTotal int64
	}{
		{
			name:          "everything",
			query:         query.Query{Filter: query.All()},
			expectedNames: []string{"A", "B", "C", "D"},
			expectedTotal: 4,
		},
		{
			name:          "category equality",
			query:         query.Query{Filter: query.Eq(models.KeyCategory, "Jobs")},
			expectedNames: []string{"C", "D"},
			expectedTotal: 2,
		},
		{
			name:          "missing field matches not equal",
			query:         query.Query{Filter: query.Ne(models.KeyEnvironment, "prod")},
			expectedNames: []string{"B", "C", "D"},
			expectedTotal: 3,
		},
		{
			name:          "extra field",
			query:         query.Query{Filter: query.Eq("jobName", "androidSync")},
			expectedNames: []string{"D"},
			expectedTotal: 1,
		},
		{
			name:          "value path",
			query:         query.Query{Filter: query.Eq("value.enabled", true)},
			expectedNames: []string{"C"},
			expectedTotal: 1,
		},
		{
			name:          "in list",
			query:         query.Query{Filter: query.Cond{Field: models.KeyName, Op: query.OpIn, Value: []any{"A", "D"}}},
			expectedNames: []string{"A", "D"},
			expectedTotal: 2,
		},
		{
			name:          "fail closed",
			query:         query.Query{Filter: query.None{}},
			expectedNames: []string{},
			expectedTotal: 0,
		},
		{
			name:          "regex is not supported",
			query:         query.Query{Filter: query.Cond{Field: models.KeyName, Op: query.OpRegex, Value: "^A"}},
			expectedNames: []string{},
			expectedTotal: 0,
		},
		{
			name: "sorted and paged",
			query: query.Query{
				Filter: query.All(),
				Sort:   []query.SortField{{Field: models.KeyName, Desc: true}},
				Paging: &query.Paging{Page: 2, PageSize: 3, Limit: 3, Skip: 3},
			},
			expectedNames: []string{"A"},
			expectedTotal: 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := s.Find(context.Background(), tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedNames, names(got))
			assert.Equal(t, tc.expectedTotal, total)
		})
	}
}

func TestScalarValuesReadBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seedSettings(t, s, []models.Setting{
		{Name: "POLL_INTERVAL", Value: 42, Extra: map[string]any{"lockLifetime": 300000}},
		{Name: "RATIO", Value: 1.5},
		{Name: "NUMERIC_STRING", Value: "7"},
		{Name: "FLAG", Value: false},
	})

	got, total, err := s.Find(ctx, query.Query{
		Filter: query.All(),
		Sort:   []query.SortField{{Field: models.KeyName}},
		Paging: &query.Paging{Page: 1, PageSize: 10, Limit: 10},
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)

	values := map[string]any{}
	for _, st := range got {
		values[st.Name] = st.Value
	}

	assert.Equal(t, map[string]any{
		"FLAG":           false,
		"NUMERIC_STRING": "7",
		"POLL_INTERVAL":  float64(42),
		"RATIO":          1.5,
	}, values)

	one, err := s.FindOne(ctx, query.Eq(models.KeyName, "POLL_INTERVAL"))
	require.NoError(t, err)
	assert.EqualValues(t, 300000, one.Extra["lockLifetime"])

	listed, err := s.List(ctx, pipeline.ListSpec{Policy: visibility.Policy{Privileged: true}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), listed.Total)

	n, err := s.UpdateMany(ctx, []string{one.ID}, map[string]any{models.KeyAdminOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFindProjection(t *testing.T) {
	s := setupTestStore(t)
	seedSettings(t, s, fixtures())

	got, _, err := s.Find(context.Background(), query.Query{
		Filter:     query.Eq(models.KeyName, "D"),
		Projection: query.Projection{models.KeyName: 1, models.KeyValue: 1},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "D", got[0].Name)
	assert.Equal(t, true, got[0].Value)
	assert.Empty(t, got[0].Category)
	assert.Empty(t, got[0].Extra)
}

func TestFindOneNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindOne(context.Background(), query.Eq(models.KeyName, "nonexistent"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	s := setupTestStore(t)
	seeded := seedSettings(t, s, fixtures())
	ctx := context.Background()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		got, err := s.Update(ctx, seeded[3].ID, map[string]any{
			models.KeyValue: false,
			"lockLifetime":  1000,
		})
		require.NoError(t, err)

		assert.Equal(t, false, got.Value)
		assert.Equal(t, "no env", got.Description)
		assert.Equal(t, "Jobs", got.Category)
		assert.Equal(t, "androidSync", got.Extra["jobName"])

		again, err := s.FindOne(ctx, query.Eq(query.IDField, seeded[3].ID))
		require.NoError(t, err)
		assert.Equal(t, got.Value, again.Value)
		assert.EqualValues(t, 1000, again.Extra["lockLifetime"])
	})

	t.Run("dotted path", func(t *testing.T) {
		got, err := s.Update(ctx, seeded[2].ID, map[string]any{"value.interval": "1 minute"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"enabled": true, "interval": "1 minute"}, got.Value)
	})

	t.Run("rename to an existing name", func(t *testing.T) {
		_, err := s.Update(ctx, seeded[0].ID, map[string]any{models.KeyName: "B"})

		var dup *store.DuplicateKeyError
		require.ErrorAs(t, err, &dup)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Update(ctx, models.NewID(), map[string]any{models.KeyValue: 1})
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUpdateMany(t *testing.T) {
	s := setupTestStore(t)
	seeded := seedSettings(t, s, fixtures())
	ctx := context.Background()

	n, err := s.UpdateMany(ctx, []string{seeded[0].ID, seeded[2].ID}, map[string]any{
		models.KeyAdminOnly: true,
		models.KeyUpdatedBy: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, _, err := s.Find(ctx, query.Query{Filter: query.Eq(models.KeyAdminOnly, true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(got))

	_, err = s.UpdateMany(ctx, []string{seeded[0].ID}, map[string]any{models.KeyValue: 1})
	require.ErrorIs(t, err, ErrUnsupportedUpdate)
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	seeded := seedSettings(t, s, fixtures())
	ctx := context.Background()

	n, err := s.Delete(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestList(t *testing.T) {
	s := setupTestStore(t)
	seedSettings(t, s, fixtures())

	testCases := []struct {
		name          string
		spec          pipeline.ListSpec
		expectedNames []string
		expectedTotal int64
		expectedPages int64
		expectEnv     bool
	}{
		{
			name:          "public caller in prod",
			spec:          pipeline.ListSpec{Policy: visibility.Public("prod")},
			expectedNames: []string{"A", "D"},
			expectedTotal: 2,
			expectedPages: 1,
		},
		{
			name:          "admin sees everything",
			spec:          pipeline.ListSpec{Policy: visibility.Policy{Privileged: true}},
			expectedNames: []string{"A", "B", "C", "D"},
			expectedTotal: 4,
			expectedPages: 1,
			expectEnv:     true,
		},
		{
			name:          "admin paged descending",
			spec:          pipeline.ListSpec{Policy: visibility.Policy{Privileged: true}, PageSize: 3, Page: 1, SortDesc: true},
			expectedNames: []string{"D", "C", "B"},
			expectedTotal: 4,
			expectedPages: 2,
			expectEnv:     true,
		},
		{
			name:          "search is case insensitive",
			spec:          pipeline.ListSpec{Policy: visibility.Policy{Privileged: true}, Search: "JOB"},
			expectedNames: []string{"C", "D"},
			expectedTotal: 2,
			expectedPages: 1,
			expectEnv:     true,
		},
		{
			name:          "category filter",
			spec:          pipeline.ListSpec{Policy: visibility.Public("local"), Category: "Jobs"},
			expectedNames: []string{"C", "D"},
			expectedTotal: 2,
			expectedPages: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.List(context.Background(), tc.spec)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedNames, names(got.Settings))
			assert.Equal(t, tc.expectedTotal, got.Total)
			assert.Equal(t, tc.expectedPages, got.TotalPages)

			for _, st := range got.Settings {
				assert.Contains(t, st.Extra, pipeline.FieldValueType)
				assert.Contains(t, st.Extra, pipeline.FieldHasDescription)

				if !tc.expectEnv {
					assert.Empty(t, st.Environment)
				}
			}
		})
	}
}

func TestListPagesPartitionTheResult(t *testing.T) {
	s := setupTestStore(t)
	seedSettings(t, s, fixtures())

	seen := []string{}

	for page := int64(1); page <= 4; page++ {
		got, err := s.List(context.Background(), pipeline.ListSpec{
			Policy:   visibility.Policy{Privileged: true},
			Page:     page,
			PageSize: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.Total)
		require.Len(t, got.Settings, 1)

		seen = append(seen, got.Settings[0].Name)
	}

	assert.Equal(t, []string{"A", "B", "C", "D"}, seen)
}

func TestValueType(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{raw: ``, expected: "missing"},
		{raw: `null`, expected: "null"},
		{raw: `"x"`, expected: "string"},
		{raw: `true`, expected: "bool"},
		{raw: `42`, expected: "int"},
		{raw: `1.5`, expected: "double"},
		{raw: `{"a":1}`, expected: "object"},
		{raw: `[1]`, expected: "array"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, valueType([]byte(tc.raw)))
		})
	}
}

func TestStats(t *testing.T) {
	s := setupTestStore(t)
	seedSettings(t, s, fixtures())

	t.Run("privileged", func(t *testing.T) {
		got, err := s.Stats(context.Background(), pipeline.StatsSpec{Policy: visibility.Policy{Privileged: true}})
		require.NoError(t, err)

		assert.Equal(t, int64(4), got.TotalCount)
		assert.Equal(t, int64(1), got.AdminOnlyCount)
		assert.Equal(t, int64(3), got.RegularCount)
		assert.Equal(t, []pipeline.Group{{Name: "Jobs", Count: 2}, {Name: "UI", Count: 2}}, got.ByCategory)
		assert.Equal(t, []pipeline.Group{{Name: "Site", Count: 3}, {Name: nil, Count: 1}}, got.ByType)
		assert.Len(t, got.ByEnvironment, 4)
	})

	t.Run("public", func(t *testing.T) {
		got, err := s.Stats(context.Background(), pipeline.StatsSpec{Policy: visibility.Public("prod")})
		require.NoError(t, err)

		assert.Equal(t, int64(3), got.TotalCount)
		assert.Equal(t, int64(0), got.AdminOnlyCount)
		assert.Equal(t, int64(3), got.RegularCount)
		assert.Nil(t, got.ByEnvironment)
	})
}

// txRecorder records the options of every transaction begun on the pool.
type txRecorder struct {
	*sql.DB

	mu   sync.Mutex
	opts []sql.TxOptions
}

func (r *txRecorder) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	r.mu.Lock()
	if opts == nil {
		r.opts = append(r.opts, sql.TxOptions{})
	} else {
		r.opts = append(r.opts, *opts)
	}
	r.mu.Unlock()

	return r.DB.BeginTx(ctx, opts) //nolint:wrapcheck
}

func (r *txRecorder) GetDBConn() (*sql.DB, error) {
	return r.DB, nil
}

func (r *txRecorder) take() []sql.TxOptions {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.opts
	r.opts = nil

	return out
}

func TestCountedReadsUseOneSnapshot(t *testing.T) {
	sqlDB, err := sql.Open(sqlite.DriverName, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	rec := &txRecorder{DB: sqlDB}

	db, err := gorm.Open(sqlite.Dialector{Conn: rec}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	s, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	t.Cleanup(func() { _ = s.Close(context.Background()) })

	seedSettings(t, s, fixtures())
	rec.take()

	ctx := context.Background()
	want := sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	testCases := []struct {
		name string
		run  func() error
	}{
		{
			name: "paged find",
			run: func() error {
				_, _, err := s.Find(ctx, query.Query{
					Filter: query.All(),
					Paging: &query.Paging{Page: 1, PageSize: 2, Limit: 2},
				})

				return err
			},
		},
		{
			name: "list",
			run: func() error {
				_, err := s.List(ctx, pipeline.ListSpec{Policy: visibility.Public("prod")})
				return err
			},
		},
		{
			name: "stats",
			run: func() error {
				_, err := s.Stats(ctx, pipeline.StatsSpec{Policy: visibility.Policy{Privileged: true}})
				return err
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.run())
			assert.Equal(t, []sql.TxOptions{want}, rec.take())
		})
	}
}
