// Package store defines the contract every setting store backend implements.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
)

var (
	// ErrNotFound is returned when no setting matched.
	ErrNotFound = errors.New("setting not found")

	// ErrStoreNil is returned when a backend handle is missing.
	ErrStoreNil = errors.New("store connection is nil")

	// ErrUnsupportedEngine is returned for an unknown store engine name.
	ErrUnsupportedEngine = errors.New("unsupported store engine")
)

// DuplicateKeyError reports a uniqueness violation without exposing store codes.
type DuplicateKeyError struct {
	Field string
	Value any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate value %v for unique field %s", e.Value, e.Field)
}

// Store executes queries, pipelines and mutations against the settings collection.
//
// Update applies fields as a partial $set; keys may be dotted paths.
// UpdateMany applies the same fields to every listed id in one operation and
// returns the number of documents modified.
type Store interface {
	Find(ctx context.Context, q query.Query) ([]models.Setting, int64, error)
	FindOne(ctx context.Context, filter query.Expr) (*models.Setting, error)
	List(ctx context.Context, spec pipeline.ListSpec) (pipeline.ListResult, error)
	Stats(ctx context.Context, spec pipeline.StatsSpec) (pipeline.Stats, error)
	Create(ctx context.Context, s *models.Setting) error
	Update(ctx context.Context, id string, fields map[string]any) (*models.Setting, error)
	UpdateMany(ctx context.Context, ids []string, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	Close(ctx context.Context) error
}
