// Package setting implements the settings store on a relational database through gorm.
package setting

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/query"
)

var (
	// ErrUnsupportedUpdate is returned by UpdateMany for fields without a column.
	ErrUnsupportedUpdate = errors.New("bulk update supports envelope columns only")
)

// snapshot is used by every read that counts and pages in one go. The default
// level of postgres takes a fresh snapshot per statement.
var snapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true} //nolint:gochecknoglobals

// Store is the gorm backed settings store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open gorm connection.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, store.ErrStoreNil
	}

	return &Store{db: db}, nil
}

// Migrate creates or updates the settings table and its indexes.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.SettingRow{}) //nolint:wrapcheck
}

func (s *Store) filtered(tx *gorm.DB, filter query.Expr) *gorm.DB {
	return tx.Model(&models.SettingRow{}).Clauses(clause.Where{Exprs: []clause.Expression{where(filter)}})
}

func toSettings(rows []models.SettingRow) ([]models.Setting, error) {
	out := make([]models.Setting, 0, len(rows))

	for i := range rows {
		st, err := rows[i].Setting()
		if err != nil {
			return nil, err
		}

		out = append(out, st)
	}

	return out, nil
}

// Find returns the settings matching q. The total is counted without the
// paging window, inside the same repeatable read transaction as the page read.
func (s *Store) Find(ctx context.Context, q query.Query) ([]models.Setting, int64, error) {
	var (
		rows  []models.SettingRow
		total int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		read := s.filtered(tx, q.Filter).Clauses(order(q.Sort))

		if q.Paging != nil {
			if err := s.filtered(tx, q.Filter).Count(&total).Error; err != nil {
				return err
			}

			read = read.Limit(int(q.Paging.Limit)).Offset(int(q.Paging.Skip))
		}

		return read.Find(&rows).Error
	}, snapshot)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck
	}

	out, err := toSettings(rows)
	if err != nil {
		return nil, 0, err
	}

	if q.Paging == nil {
		total = int64(len(out))
	}

	if len(q.Projection) > 0 {
		for i := range out {
			if out[i], err = models.FromMap(q.Projection.Apply(out[i].ToMap())); err != nil {
				return nil, 0, err //nolint:wrapcheck
			}
		}
	}

	return out, total, nil
}

// FindOne returns the first setting matching filter.
func (s *Store) FindOne(ctx context.Context, filter query.Expr) (*models.Setting, error) {
	var row models.SettingRow

	result := s.filtered(s.db.WithContext(ctx), filter).Clauses(order(nil)).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	out, err := row.Setting()
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Create inserts s, assigning an identifier when it has none.
func (s *Store) Create(ctx context.Context, st *models.Setting) error {
	if st.ID == "" {
		st.ID = models.NewID()
	}

	row, err := models.NewSettingRow(st)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Check if setting already exists
		var count int64
		if err := tx.Model(&models.SettingRow{}).Where("name = ?", row.Name).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return &store.DuplicateKeyError{Field: models.KeyName, Value: row.Name}
		}

		if err := tx.Create(&row).Error; err != nil {
			return translate(err, row.Name)
		}

		return nil
	})
}

// Update applies fields to the setting with the given id as a partial $set and
// returns the updated setting.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (*models.Setting, error) {
	var out models.Setting

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SettingRow

		result := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", id).Limit(1).Find(&row)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return store.ErrNotFound
		}

		current, err := row.Setting()
		if err != nil {
			return err
		}

		doc := current.ToMap()
		for path, v := range fields {
			setPath(doc, path, v)
		}

		if out, err = models.FromMap(doc); err != nil {
			return err
		}

		out.ID = row.ID

		next, err := models.NewSettingRow(&out)
		if err != nil {
			return err
		}

		if err := tx.Select("*").Save(&next).Error; err != nil {
			return translate(err, next.Name)
		}

		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &out, nil
}

// UpdateMany sets the same envelope columns on every listed id in one statement.
func (s *Store) UpdateMany(ctx context.Context, ids []string, fields map[string]any) (int64, error) {
	columns := make(map[string]any, len(fields))

	for key, v := range fields {
		column, ok := models.Columns[key]
		if !ok || column == "id" {
			return 0, errors.Wrap(ErrUnsupportedUpdate, key)
		}

		if env, isEnv := v.(models.Environment); isEnv {
			v = string(env)
		}

		columns[column] = v
	}

	result := s.db.WithContext(ctx).Model(&models.SettingRow{}).Where("id IN ?", ids).Updates(columns)

	return result.RowsAffected, result.Error
}

// Delete removes the setting with the given id.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SettingRow{})

	return result.RowsAffected, result.Error
}

// Close releases the underlying connection pool.
func (s *Store) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err //nolint:wrapcheck
	}

	return sqlDB.Close() //nolint:wrapcheck
}

// translate maps unique index violations of every supported dialect to a DuplicateKeyError.
func translate(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &store.DuplicateKeyError{Field: models.KeyName, Value: name}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") {
		return &store.DuplicateKeyError{Field: models.KeyName, Value: name}
	}

	return err
}

func setPath(doc map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}

		cur = next
	}

	cur[parts[len(parts)-1]] = v
}
