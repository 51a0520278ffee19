package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromMap(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		doc       map[string]any
		wantErr   string
		wantCheck func(t *testing.T, s Setting)
	}{
		{
			name: "envelope and extras",
			doc: map[string]any{
				"_id":          oid,
				"name":         "JOB_ANDROID_SYNC",
				"value":        primitive.D{{Key: "enabled", Value: true}},
				"category":     "Jobs",
				"adminOnly":    true,
				"environment":  "both",
				"createdAt":    primitive.NewDateTimeFromTime(created),
				"jobName":      "androidSync",
				"lockLifetime": int32(300000),
			},
			wantCheck: func(t *testing.T, s Setting) {
				t.Helper()
				assert.Equal(t, oid.Hex(), s.ID)
				assert.Equal(t, "JOB_ANDROID_SYNC", s.Name)
				assert.Equal(t, map[string]any{"enabled": true}, s.Value)
				assert.True(t, s.IsAdminOnly())
				assert.Equal(t, EnvBoth, s.Environment)
				assert.Equal(t, created, s.CreatedAt)
				assert.Equal(t, "androidSync", s.Extra["jobName"])
				assert.Equal(t, int32(300000), s.Extra["lockLifetime"])
			},
		},
		{
			name: "missing flags stay absent",
			doc:  map[string]any{"name": "LEGACY"},
			wantCheck: func(t *testing.T, s Setting) {
				t.Helper()
				assert.Nil(t, s.AdminOnly)
				assert.False(t, s.IsAdminOnly())
				assert.Empty(t, s.Environment)
			},
		},
		{
			name:    "invalid environment",
			doc:     map[string]any{"name": "X", "environment": "staging"},
			wantErr: "environment",
		},
		{
			name:    "name of wrong kind",
			doc:     map[string]any{"name": 42},
			wantErr: "name",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := FromMap(tc.doc)
			if tc.wantErr != "" {
				var fieldErr *FieldError
				require.ErrorAs(t, err, &fieldErr)
				assert.Equal(t, tc.wantErr, fieldErr.Field)

				return
			}

			require.NoError(t, err)
			tc.wantCheck(t, s)
		})
	}
}

func TestSettingJSONKeepsExtras(t *testing.T) {
	in := `{"_id":"65f1c0ffee0000000000abcd","name":"SIDEBAR","value":{"a":1},"menu":["x","y"],"adminOnly":false}`

	var s Setting
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	assert.Equal(t, []any{"x", "y"}, s.Extra["menu"])

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestExtrasNeverShadowEnvelope(t *testing.T) {
	s := Setting{Name: "REAL", Extra: map[string]any{"name": "FAKE", "other": 1}}

	m := s.ToMap()
	assert.Equal(t, "REAL", m["name"])
	assert.Equal(t, 1, m["other"])
}

func TestSettingRowRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	s := Setting{
		ID:          NewID(),
		Name:        "ROW",
		Value:       map[string]any{"interval": "1 minute"},
		Category:    "Jobs",
		AdminOnly:   Bool(false),
		Environment: EnvLocal,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   "SYSTEM",
		UpdatedBy:   "SYSTEM",
		Extra:       map[string]any{"jobName": "row"},
	}

	row, err := NewSettingRow(&s)
	require.NoError(t, err)
	assert.Nil(t, row.Description)
	require.NotNil(t, row.Environment)
	assert.Equal(t, "local", *row.Environment)

	back, err := row.Setting()
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestEnvironmentValid(t *testing.T) {
	assert.True(t, EnvProd.Valid())
	assert.True(t, Environment("both").Valid())
	assert.False(t, Environment("").Valid())
	assert.False(t, Environment("PROD").Valid())
}
