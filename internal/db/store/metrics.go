package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
)

var (
	operationDuration = promauto.NewHistogramVec( //nolint:gochecknoglobals
		prometheus.HistogramOpts{
			Name:    "settings_store_operation_duration_seconds",
			Help:    "Duration of settings store operations, by backend, operation and outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation", "outcome"},
	)
)

// Instrumented records the duration and outcome of every call of the wrapped store.
type Instrumented struct {
	next    Store
	backend string
}

// Instrument wraps s so each operation is observed under the given backend label.
func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{next: s, backend: backend}
}

func (i *Instrumented) observe(operation string, start time.Time, err error) {
	outcome := "ok"

	var dup *DuplicateKeyError

	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.As(err, &dup):
		outcome = "duplicate"
	default:
		outcome = "error"
	}

	operationDuration.WithLabelValues(i.backend, operation, outcome).Observe(time.Since(start).Seconds())
}

// Find implements Store.
func (i *Instrumented) Find(ctx context.Context, q query.Query) (out []models.Setting, total int64, err error) {
	defer func(start time.Time) { i.observe("find", start, err) }(time.Now())

	return i.next.Find(ctx, q)
}

// FindOne implements Store.
func (i *Instrumented) FindOne(ctx context.Context, filter query.Expr) (out *models.Setting, err error) {
	defer func(start time.Time) { i.observe("find_one", start, err) }(time.Now())

	return i.next.FindOne(ctx, filter)
}

// List implements Store.
func (i *Instrumented) List(ctx context.Context, spec pipeline.ListSpec) (out pipeline.ListResult, err error) {
	defer func(start time.Time) { i.observe("list", start, err) }(time.Now())

	return i.next.List(ctx, spec)
}

// Stats implements Store.
func (i *Instrumented) Stats(ctx context.Context, spec pipeline.StatsSpec) (out pipeline.Stats, err error) {
	defer func(start time.Time) { i.observe("stats", start, err) }(time.Now())

	return i.next.Stats(ctx, spec)
}

// Create implements Store.
func (i *Instrumented) Create(ctx context.Context, s *models.Setting) (err error) {
	defer func(start time.Time) { i.observe("create", start, err) }(time.Now())

	return i.next.Create(ctx, s)
}

// Update implements Store.
func (i *Instrumented) Update(ctx context.Context, id string, fields map[string]any) (out *models.Setting, err error) {
	defer func(start time.Time) { i.observe("update", start, err) }(time.Now())

	return i.next.Update(ctx, id, fields)
}

// UpdateMany implements Store.
func (i *Instrumented) UpdateMany(ctx context.Context, ids []string, fields map[string]any) (n int64, err error) {
	defer func(start time.Time) { i.observe("update_many", start, err) }(time.Now())

	return i.next.UpdateMany(ctx, ids, fields)
}

// Delete implements Store.
func (i *Instrumented) Delete(ctx context.Context, id string) (n int64, err error) {
	defer func(start time.Time) { i.observe("delete", start, err) }(time.Now())

	return i.next.Delete(ctx, id)
}

// Close implements Store.
func (i *Instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
