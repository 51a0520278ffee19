// Package cache keeps name lookups of settings in redis.
// Entries are keyed by a generation number. Any mutation bumps the generation,
// so stale entries are never read and expire on their own. A miss reports the
// generation it was looked up in and the fill is written under that generation,
// so a document read before a concurrent write can never land in a newer one.
package cache

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/logger"
)

const component = "SettingsCache"

// NoGeneration is reported when the current generation could not be read.
// Set ignores it.
const NoGeneration int64 = -1

// Cache stores settings by name.
//
// Get returns the generation it looked the name up in, hit or miss. Callers
// filling a miss pass that generation back to Set.
type Cache interface {
	Get(ctx context.Context, name string) (s *models.Setting, generation int64, hit bool)
	Set(ctx context.Context, generation int64, s *models.Setting)
	Invalidate(ctx context.Context)
	Close() error
}

// Nop never hits.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, string) (*models.Setting, int64, bool) { return nil, NoGeneration, false }

// Set implements Cache.
func (Nop) Set(context.Context, int64, *models.Setting) {}

// Invalidate implements Cache.
func (Nop) Invalidate(context.Context) {}

// Close implements Cache.
func (Nop) Close() error { return nil }

// Redis is the redis backed Cache.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configures NewRedis.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, errors.Wrap(err, "ping redis")
	}

	return New(client, opts.Prefix, opts.TTL), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "settings"
	}

	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) generationKey() string {
	return r.prefix + ":generation"
}

func (r *Redis) entryKey(generation int64, name string) string {
	return r.prefix + ":" + strconv.FormatInt(generation, 10) + ":name:" + name
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return gen, err //nolint:wrapcheck
}

// Get returns the cached setting. Any redis or decoding failure is a miss.
func (r *Redis) Get(ctx context.Context, name string) (*models.Setting, int64, bool) {
	l := logger.FromContext(ctx, component)

	gen, err := r.generation(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("read cache generation")
		return nil, NoGeneration, false
	}

	raw, err := r.client.Get(ctx, r.entryKey(gen, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}

	if err != nil {
		l.Warn().Err(err).Str("name", name).Msg("read cache entry")
		return nil, gen, false
	}

	s, err := decode(raw)
	if err != nil {
		l.Warn().Err(err).Str("name", name).Msg("decode cache entry")
		return nil, gen, false
	}

	return &s, gen, true
}

// Set stores s under its name in generation gen.
func (r *Redis) Set(ctx context.Context, gen int64, s *models.Setting) {
	if gen < 0 {
		return
	}

	l := logger.FromContext(ctx, component)

	raw, err := msgpack.Marshal(s.ToMap())
	if err != nil {
		l.Warn().Err(err).Str("name", s.Name).Msg("encode cache entry")
		return
	}

	if err := r.client.Set(ctx, r.entryKey(gen, s.Name), raw, r.ttl).Err(); err != nil {
		l.Warn().Err(err).Str("name", s.Name).Msg("write cache entry")
	}
}

// Invalidate starts a new generation.
func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Incr(ctx, r.generationKey()).Err(); err != nil {
		logger.FromContext(ctx, component).Error().Err(err).Msg("bump cache generation")
	}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close() //nolint:wrapcheck
}

func decode(raw []byte) (models.Setting, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return models.Setting{}, errors.Wrap(err, "decode cached setting")
	}

	return models.FromMap(doc) //nolint:wrapcheck
}
