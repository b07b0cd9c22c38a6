package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/metrics"
)

var ErrMiss = errors.New("cache miss")

// KV is the slice of a key-value store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// CachedDirectory is a read-through cache in front of another Directory.
// Cache failures degrade to direct lookups; not-found results are never cached.
type CachedDirectory struct {
	next   Directory
	kv     KV
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedDirectory(next Directory, kv KV, ttl time.Duration, logger zerolog.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, kv: kv, ttl: ttl, logger: logger}
}

func (c *CachedDirectory) Patient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return cached(ctx, c, "patient", id, c.next.Patient)
}

func (c *CachedDirectory) Device(ctx context.Context, id uuid.UUID) (*Device, error) {
	return cached(ctx, c, "device", id, c.next.Device)
}

func (c *CachedDirectory) Technician(ctx context.Context, id uuid.UUID) (*Technician, error) {
	return cached(ctx, c, "technician", id, c.next.Technician)
}

func cacheKey(kind string, id uuid.UUID) string {
	return "oxycare:directory:" + kind + ":" + id.String()
}

func cached[T any](ctx context.Context, c *CachedDirectory, kind string, id uuid.UUID, load func(context.Context, uuid.UUID) (*T, error)) (*T, error) {
	key := cacheKey(kind, id)

	raw, err := c.kv.Get(ctx, key)
	if err == nil {
		var v T
		if jerr := json.Unmarshal([]byte(raw), &v); jerr == nil {
			metrics.DirectoryCacheTotal.WithLabelValues(kind, "hit").Inc()
			return &v, nil
		}
	} else if !errors.Is(err, ErrMiss) {
		c.logger.Warn().Err(err).Str("key", key).Msg("directory cache read failed")
	}
	metrics.DirectoryCacheTotal.WithLabelValues(kind, "miss").Inc()

	v, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(v); jerr == nil {
		if serr := c.kv.Set(ctx, key, string(b), c.ttl); serr != nil {
			c.logger.Warn().Err(serr).Str("key", key).Msg("directory cache write failed")
		}
	}
	return v, nil
}
