package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SettingRow is the relational representation of a Setting.
// Nullable columns keep "absent" distinct from a zero value. JSON columns are
// stored as text: a JSON declared column has numeric affinity in sqlite, which
// turns scalar documents like 42 into integers that no longer scan as JSON.
type SettingRow struct {
	ID          string         `gorm:"primaryKey;size:24"`
	Name        string         `gorm:"size:255;not null;uniqueIndex:idx_settings_name"`
	Value       datatypes.JSON `gorm:"column:value;type:text"`
	Description *string        `gorm:"column:description"`
	Type        *string        `gorm:"column:type;size:255;index:idx_settings_type_admin_only,priority:1"`
	Category    *string        `gorm:"column:category;size:255;index:idx_settings_admin_only_category,priority:2;index:idx_settings_environment_category,priority:2"` //nolint:lll
	AdminOnly   *bool          `gorm:"column:admin_only;index:idx_settings_admin_only;index:idx_settings_admin_only_category,priority:1;index:idx_settings_type_admin_only,priority:2;index:idx_settings_environment_admin_only,priority:2"` //nolint:lll
	Environment *string        `gorm:"column:environment;size:16;index:idx_settings_environment;index:idx_settings_environment_admin_only,priority:1;index:idx_settings_environment_category,priority:1"` //nolint:lll
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
	CreatedBy   string         `gorm:"column:created_by;size:255"`
	UpdatedBy   string         `gorm:"column:updated_by;size:255"`
	Extra       datatypes.JSON `gorm:"column:extra;type:text"`
}

// TableName keeps the collection name used by the document store.
func (SettingRow) TableName() string {
	return "settings"
}

// Columns maps envelope keys to their SQL columns.
var Columns = map[string]string{ //nolint:gochecknoglobals
	KeyID:          "id",
	KeyName:        "name",
	KeyDescription: "description",
	KeyType:        "type",
	KeyCategory:    "category",
	KeyAdminOnly:   "admin_only",
	KeyEnvironment: "environment",
	KeyCreatedAt:   "created_at",
	KeyUpdatedAt:   "updated_at",
	KeyCreatedBy:   "created_by",
	KeyUpdatedBy:   "updated_by",
}

// NewSettingRow converts a setting into its row form.
func NewSettingRow(s *Setting) (SettingRow, error) {
	row := SettingRow{
		ID:          s.ID,
		Name:        s.Name,
		Description: optString(s.Description),
		Type:        optString(s.Type),
		Category:    optString(s.Category),
		AdminOnly:   s.AdminOnly,
		Environment: optString(string(s.Environment)),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		CreatedBy:   s.CreatedBy,
		UpdatedBy:   s.UpdatedBy,
	}

	if s.Value != nil {
		raw, err := json.Marshal(s.Value)
		if err != nil {
			return SettingRow{}, err //nolint:wrapcheck
		}

		row.Value = raw
	}

	if len(s.Extra) > 0 {
		raw, err := json.Marshal(s.Extra)
		if err != nil {
			return SettingRow{}, err //nolint:wrapcheck
		}

		row.Extra = raw
	}

	return row, nil
}

// Setting converts the row back into the envelope form.
func (r *SettingRow) Setting() (Setting, error) {
	s := Setting{
		ID:          r.ID,
		Name:        r.Name,
		Description: derefString(r.Description),
		Type:        derefString(r.Type),
		Category:    derefString(r.Category),
		AdminOnly:   r.AdminOnly,
		Environment: Environment(derefString(r.Environment)),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		CreatedBy:   r.CreatedBy,
		UpdatedBy:   r.UpdatedBy,
	}

	if len(r.Value) > 0 {
		if err := json.Unmarshal(r.Value, &s.Value); err != nil {
			return Setting{}, err //nolint:wrapcheck
		}
	}

	if len(r.Extra) > 0 {
		if err := json.Unmarshal(r.Extra, &s.Extra); err != nil {
			return Setting{}, err //nolint:wrapcheck
		}
	}

	return s, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
