// Package service implements the operations the REST layer exposes on top of a store:
// a generic CRUD engine driven by per entity hooks and the settings service built on it.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdr-platform/settings-service/internal/apperror"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/query"
)

// Repository is the persistence contract the Engine drives.
type Repository[T any] interface {
	Find(ctx context.Context, q query.Query) ([]T, int64, error)
	FindOne(ctx context.Context, filter query.Expr) (*T, error)
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, id string, fields map[string]any) (*T, error)
	UpdateMany(ctx context.Context, ids []string, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Hooks customise the Engine for one entity. Nil hooks are skipped.
type Hooks[T any] struct {
	// BeforeCreate prepares a record for insertion.
	BeforeCreate func(ctx context.Context, record *T, actor string) error

	// BeforeUpdate prepares the fields of a single or bulk update.
	BeforeUpdate func(ctx context.Context, fields map[string]any, actor string) error

	// AfterWrite runs after every successful mutation.
	AfterWrite func(ctx context.Context)
}

// Engine runs the CRUD operations of one entity through its hooks and maps
// store failures to application errors.
type Engine[T any] struct {
	entity string
	repo   Repository[T]
	hooks  Hooks[T]
}

// NewEngine returns an engine for the entity named entity.
func NewEngine[T any](entity string, repo Repository[T], hooks Hooks[T]) *Engine[T] {
	return &Engine[T]{entity: entity, repo: repo, hooks: hooks}
}

func (e *Engine[T]) notFound(key string) error {
	return apperror.NotFound(fmt.Sprintf("%s '%s' not found", e.entity, key))
}

// Find returns the records matching q.
func (e *Engine[T]) Find(ctx context.Context, q query.Query) ([]T, int64, error) {
	out, total, err := e.repo.Find(ctx, q)
	if err != nil {
		return nil, 0, translate(err)
	}

	return out, total, nil
}

// FindOne returns the first record matching filter. key names the record in a not found message.
func (e *Engine[T]) FindOne(ctx context.Context, filter query.Expr, key string) (*T, error) {
	out, err := e.repo.FindOne(ctx, filter)

	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, e.notFound(key)
	case err != nil:
		return nil, translate(err)
	}

	return out, nil
}

// Create runs BeforeCreate and inserts record.
func (e *Engine[T]) Create(ctx context.Context, record *T, actor string) error {
	if record == nil {
		return apperror.Validation(msgNoPayload)
	}

	if e.hooks.BeforeCreate != nil {
		if err := e.hooks.BeforeCreate(ctx, record, actor); err != nil {
			return translate(err)
		}
	}

	if err := e.repo.Create(ctx, record); err != nil {
		return translate(err)
	}

	e.afterWrite(ctx)

	return nil
}

// Update runs BeforeUpdate and applies fields to the record with the given id.
func (e *Engine[T]) Update(ctx context.Context, id string, fields map[string]any, actor string) (*T, error) {
	if id == "" || fields == nil {
		return nil, apperror.Validation(msgInvalidUpdate)
	}

	if e.hooks.BeforeUpdate != nil {
		if err := e.hooks.BeforeUpdate(ctx, fields, actor); err != nil {
			return nil, translate(err)
		}
	}

	out, err := e.repo.Update(ctx, id, fields)

	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperror.NotFound(fmt.Sprintf(msgNothingToUpdate, id))
	case err != nil:
		return nil, translate(err)
	}

	e.afterWrite(ctx)

	return out, nil
}

// UpdateMany applies the same fields to every listed id in one store call
// and returns the number of modified records.
func (e *Engine[T]) UpdateMany(ctx context.Context, ids []string, fields map[string]any, actor string) (int64, error) {
	if len(ids) == 0 || fields == nil {
		return 0, apperror.Validation(msgInvalidUpdate)
	}

	if e.hooks.BeforeUpdate != nil {
		if err := e.hooks.BeforeUpdate(ctx, fields, actor); err != nil {
			return 0, translate(err)
		}
	}

	n, err := e.repo.UpdateMany(ctx, ids, fields)
	if err != nil {
		return 0, translate(err)
	}

	e.afterWrite(ctx)

	return n, nil
}

// Delete removes the record with the given id. Deleting nothing is a not found failure.
func (e *Engine[T]) Delete(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, apperror.Validation(msgInvalidDelete)
	}

	n, err := e.repo.Delete(ctx, id)
	if err != nil {
		return 0, translate(err)
	}

	if n == 0 {
		return 0, e.notFound(id)
	}

	e.afterWrite(ctx)

	return n, nil
}

func (e *Engine[T]) afterWrite(ctx context.Context) {
	if e.hooks.AfterWrite != nil {
		e.hooks.AfterWrite(ctx)
	}
}
