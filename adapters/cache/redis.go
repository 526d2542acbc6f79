package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artpar/cmskit/core/capability"
)

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Cache holds common cache configuration
	Cache Config
}

// Redis stores entries in a Redis server. Expiry is enforced both by the
// server TTL and by the envelope.
type Redis struct {
	client *redis.Client
	cfg    Config
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, rc RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}
	return NewRedisWithClient(client, rc.Cache), nil
}

// NewRedisWithClient creates a Redis cache with an existing client.
func NewRedisWithClient(client *redis.Client, cfg Config) *Redis {
	return &Redis{client: client, cfg: cfg.withDefaults()}
}

func (r *Redis) Name() string { return VariantRedis }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.cfg.Prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	env, at, err := decode(data)
	if err != nil || r.cfg.expired(at) {
		return nil, false
	}
	return env.Value, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	at := r.cfg.expiry(ttl)
	data, err := encode(key, value, at)
	if err != nil {
		return err
	}
	var exp time.Duration
	if !at.IsZero() {
		exp = at.Sub(r.cfg.Clock.Now())
	}
	return r.client.Set(ctx, r.cfg.Prefix+key, data, exp).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.cfg.Prefix+key).Err()
}

// DeletePattern scans for matching keys and deletes them in batches.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) error {
	match := escapeRedisGlob(r.cfg.Prefix) + escapeRedisGlob(pattern)
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Clear removes every key under the configured prefix.
func (r *Redis) Clear(ctx context.Context) error {
	return r.DeletePattern(ctx, "*")
}

func (r *Redis) IsEnabled() bool { return true }

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// escapeRedisGlob escapes the Redis glob metacharacters that our patterns
// treat as literals. * and ? keep their meaning.
func escapeRedisGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `^`, `\^`).Replace(s)
}

var _ capability.CacheProvider = (*Redis)(nil)
