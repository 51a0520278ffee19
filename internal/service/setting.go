package service

import (
	"context"
	"maps"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mdr-platform/settings-service/internal/apperror"
	"github.com/mdr-platform/settings-service/internal/cache"
	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/logger"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
	"github.com/mdr-platform/settings-service/internal/visibility"
)

const (
	// SystemActor stamps mutations without a resolvable user.
	SystemActor = "SYSTEM"

	// Entity is the name used in not found messages.
	Entity = "Setting"

	component = "SettingService"
)

// Caller identifies who triggers an operation.
type Caller struct {
	// ID is the user guid stamped into createdBy/updatedBy.
	ID string

	// Privileged is true for callers asserting admin status.
	Privileged bool
}

func (c Caller) actor() string {
	if c.ID == "" {
		return SystemActor
	}

	return c.ID
}

// BulkAdminOnlyRequest sets adminOnly on several settings.
type BulkAdminOnlyRequest struct {
	SettingIDs []string `json:"settingIds" validate:"required,min=1,dive,required"`
	AdminOnly  *bool    `json:"adminOnly"  validate:"required"`
}

// BulkEnvironmentRequest sets environment on several settings.
type BulkEnvironmentRequest struct {
	SettingIDs  []string `json:"settingIds"  validate:"required,min=1,dive,required"`
	Environment string   `json:"environment" validate:"required,oneof=prod local both"`
}

// BulkResult reports how many settings a bulk update changed.
type BulkResult struct {
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult reports how many settings a delete removed.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Option configures Settings.
type Option func(*Settings)

// WithCache serves name lookups from c.
func WithCache(c cache.Cache) Option {
	return func(s *Settings) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock replaces time.Now for audit stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdminEnforcement rejects mutations of non-privileged callers.
func WithAdminEnforcement(enforce bool) Option {
	return func(s *Settings) {
		s.enforceAdmin = enforce
	}
}

// Settings is the settings service. Every read derives its constraints from a
// visibility.Policy, every mutation runs through the audit hooks.
type Settings struct {
	store        store.Store
	engine       *Engine[models.Setting]
	cache        cache.Cache
	now          func() time.Time
	enforceAdmin bool
	validate     *validator.Validate
}

// NewSettings returns the service on top of st.
func NewSettings(st store.Store, opts ...Option) (*Settings, error) {
	if st == nil {
		return nil, store.ErrStoreNil
	}

	s := &Settings{
		store:    st,
		cache:    cache.Nop{},
		now:      time.Now,
		validate: newValidator(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine = NewEngine[models.Setting](Entity, st, Hooks[models.Setting]{
		BeforeCreate: s.beforeCreate,
		BeforeUpdate: s.beforeUpdate,
		AfterWrite:   s.cache.Invalidate,
	})

	return s, nil
}

// stamp returns the audit time, stored with millisecond precision.
func (s *Settings) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Settings) beforeCreate(_ context.Context, rec *models.Setting, actor string) error {
	if rec.Name == "" {
		return apperror.Validation(msgValidation, requiredField(models.KeyName))
	}

	if rec.ID != "" && !models.ValidID(rec.ID) {
		return apperror.Validation(msgValidation, apperror.FieldError{
			Field:     models.KeyID,
			ErrorType: apperror.KindCast,
			Message:   "cast to ObjectId failed for value " + rec.ID + " at path `_id`",
		})
	}

	if rec.AdminOnly == nil {
		rec.AdminOnly = models.Bool(false)
	}

	if rec.Environment == "" {
		rec.Environment = models.EnvBoth
	}

	now := s.stamp()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CreatedBy, rec.UpdatedBy = actor, actor

	return nil
}

// immutableKeys never change after create.
var immutableKeys = []string{ //nolint:gochecknoglobals
	models.KeyID, models.KeyAltID, models.KeyCreatedAt, models.KeyCreatedBy,
}

func (s *Settings) beforeUpdate(_ context.Context, fields map[string]any, actor string) error {
	for _, k := range immutableKeys {
		delete(fields, k)
	}

	if v, ok := fields[models.KeyName]; ok {
		if name, _ := v.(string); name == "" {
			return apperror.Validation(msgValidation, requiredField(models.KeyName))
		}
	}

	// type check the envelope keys the same way a create does
	core := make(map[string]any, len(fields))

	for k, v := range fields {
		if models.IsCoreKey(k) {
			core[k] = v
		}
	}

	if _, err := models.FromMap(core); err != nil {
		return err //nolint:wrapcheck
	}

	fields[models.KeyUpdatedAt] = s.stamp()
	fields[models.KeyUpdatedBy] = actor

	return nil
}

func (s *Settings) authorize(c Caller) error {
	if s.enforceAdmin && !c.Privileged {
		return apperror.Unauthorized(msgAdminOnly)
	}

	return nil
}

// Find runs q under the caller's policy. The total is only computed for paged queries.
func (s *Settings) Find(ctx context.Context, q query.Query, p visibility.Policy) ([]models.Setting, int64, error) {
	if q.Err != nil {
		logger.FromContext(ctx, component).Debug().Err(q.Err).Msg("malformed filter matches nothing")
	}

	q.Filter = p.Apply(q.Filter)

	out, total, err := s.engine.Find(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	p.StripAll(out)

	return out, total, nil
}

// FindByID returns the setting with the given id when the policy allows it.
func (s *Settings) FindByID(ctx context.Context, id string, p visibility.Policy) (*models.Setting, error) {
	out, err := s.engine.FindOne(ctx, p.Apply(query.Eq(query.IDField, id)), id)
	if err != nil {
		return nil, err
	}

	p.Strip(out)

	return out, nil
}

// FindByName returns the setting with the given name when the policy allows it.
// Lookups go through the cache, which holds unstripped documents. A miss is
// filled in the generation observed before the store read.
func (s *Settings) FindByName(ctx context.Context, name string, p visibility.Policy) (*models.Setting, error) {
	out, gen, hit := s.cache.Get(ctx, name)
	if !hit {
		var err error
		if out, err = s.engine.FindOne(ctx, query.Eq(models.KeyName, name), name); err != nil {
			return nil, err
		}

		s.cache.Set(ctx, gen, out)
	}

	if !p.Allows(out) {
		return nil, s.engine.notFound(name)
	}

	p.Strip(out)

	return out, nil
}

// List runs the listing pipeline.
func (s *Settings) List(ctx context.Context, spec pipeline.ListSpec) (pipeline.ListResult, error) {
	out, err := s.store.List(ctx, spec)
	if err != nil {
		return pipeline.ListResult{}, translate(err)
	}

	return out, nil
}

// Stats runs the statistics pipeline.
func (s *Settings) Stats(ctx context.Context, spec pipeline.StatsSpec) (pipeline.Stats, error) {
	out, err := s.store.Stats(ctx, spec)
	if err != nil {
		return pipeline.Stats{}, translate(err)
	}

	return out, nil
}

var byName = []query.SortField{{Field: models.KeyName}} //nolint:gochecknoglobals

// Public returns the settings an anonymous caller in currentEnv may see.
func (s *Settings) Public(ctx context.Context, currentEnv string) ([]models.Setting, error) {
	out, _, err := s.Find(ctx, query.Query{Filter: query.All(), Sort: byName}, visibility.Public(currentEnv))

	return out, err
}

// Admin returns the admin-only settings.
func (s *Settings) Admin(ctx context.Context) ([]models.Setting, error) {
	out, _, err := s.Find(ctx, query.Query{Filter: query.All(), Sort: byName}, visibility.Admin())

	return out, err
}

// Create inserts the setting described by payload.
func (s *Settings) Create(ctx context.Context, payload map[string]any, c Caller) (*models.Setting, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}

	if len(payload) == 0 {
		return nil, apperror.Validation(msgNoPayload)
	}

	rec, err := models.FromMap(payload)
	if err != nil {
		return nil, translate(err)
	}

	if err := s.engine.Create(ctx, &rec, c.actor()); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, component).Info().
		Str("id", rec.ID).Str("name", rec.Name).Str("actor", c.actor()).
		Msg("setting created")

	return &rec, nil
}

// Update merges payload into the setting with the given id and returns the new version.
func (s *Settings) Update(ctx context.Context, id string, payload map[string]any, c Caller) (*models.Setting, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}

	if payload == nil {
		return nil, apperror.Validation(msgInvalidUpdate)
	}

	out, err := s.engine.Update(ctx, id, maps.Clone(payload), c.actor())
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, component).Info().
		Str("id", id).Str("actor", c.actor()).
		Msg("setting updated")

	return out, nil
}

// BulkUpdateAdminOnly sets adminOnly on every listed setting in one store operation.
func (s *Settings) BulkUpdateAdminOnly(ctx context.Context, in BulkAdminOnlyRequest, c Caller) (BulkResult, error) {
	if err := s.authorize(c); err != nil {
		return BulkResult{}, err
	}

	if err := s.validate.Struct(in); err != nil {
		return BulkResult{}, validationFailure(err)
	}

	return s.bulkUpdate(ctx, in.SettingIDs, map[string]any{models.KeyAdminOnly: *in.AdminOnly}, c)
}

// BulkUpdateEnvironment sets environment on every listed setting in one store operation.
func (s *Settings) BulkUpdateEnvironment(ctx context.Context, in BulkEnvironmentRequest, c Caller) (BulkResult, error) {
	if err := s.authorize(c); err != nil {
		return BulkResult{}, err
	}

	if err := s.validate.Struct(in); err != nil {
		return BulkResult{}, validationFailure(err)
	}

	return s.bulkUpdate(ctx, in.SettingIDs, map[string]any{models.KeyEnvironment: in.Environment}, c)
}

func (s *Settings) bulkUpdate(ctx context.Context, ids []string, fields map[string]any, c Caller) (BulkResult, error) {
	n, err := s.engine.UpdateMany(ctx, ids, fields, c.actor())
	if err != nil {
		return BulkResult{}, err
	}

	logger.FromContext(ctx, component).Info().
		Strs("ids", ids).Int64("modified", n).Str("actor", c.actor()).
		Msg("settings bulk updated")

	return BulkResult{ModifiedCount: n}, nil
}

// Delete removes the setting with the given id.
func (s *Settings) Delete(ctx context.Context, id string, c Caller) (DeleteResult, error) {
	if err := s.authorize(c); err != nil {
		return DeleteResult{}, err
	}

	n, err := s.engine.Delete(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	logger.FromContext(ctx, component).Info().
		Str("id", id).Str("actor", c.actor()).
		Msg("setting deleted")

	return DeleteResult{DeletedCount: n}, nil
}

// Close releases the store and the cache.
func (s *Settings) Close(ctx context.Context) error {
	cacheErr := s.cache.Close()

	if err := s.store.Close(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	return cacheErr //nolint:wrapcheck
}
