// Package cache provides the cache variants behind capability.CacheProvider:
// disabled, in-process memory, local filesystem, redis and S3-compatible
// object storage.
//
// The variants that persist outside the process share one wire format per
// entry:
//
//	{"key": "item:c1:i1", "value": <json>, "expires_at": <unix-ms or 0>}
//
// Values must be JSON documents. A read that fails for any reason is a miss.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/artpar/cmskit/ports"
)

// Variant names, as configured with CMSKIT_CACHE_PROVIDER.
const (
	VariantDisabled   = "disabled"
	VariantMemory     = "memory"
	VariantFilesystem = "filesystem"
	VariantRedis      = "redis"
	VariantS3         = "s3"
)

// Variants returns every known variant name.
func Variants() []string {
	return []string{VariantDisabled, VariantMemory, VariantFilesystem, VariantRedis, VariantS3}
}

// ErrInvalidValue is returned by Set when the value is not a JSON document.
var ErrInvalidValue = errors.New("cache value must be valid JSON")

// DefaultTTL applies when Config.DefaultTTL is zero.
const DefaultTTL = time.Hour

// Config holds settings shared by every variant.
type Config struct {
	// DefaultTTL is used for Set calls with a zero ttl. Negative means
	// entries never expire.
	DefaultTTL time.Duration

	// Prefix namespaces keys in shared backends (redis, s3).
	Prefix string

	// Clock is used for expiry. Defaults to wall time.
	Clock ports.Clock
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (c Config) withDefaults() Config {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.Clock == nil {
		c.Clock = wallClock{}
	}
	return c
}

// expiry returns when an entry written now with ttl expires; the zero time
// means never.
func (c Config) expiry(ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = c.DefaultTTL
	}
	if ttl < 0 {
		return time.Time{}
	}
	return c.Clock.Now().Add(ttl)
}

func (c Config) expired(at time.Time) bool {
	return !at.IsZero() && !c.Clock.Now().Before(at)
}

// envelope is the persisted form of one entry.
type envelope struct {
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
}

func encode(key string, value []byte, expiresAt time.Time) ([]byte, error) {
	if !json.Valid(value) {
		return nil, ErrInvalidValue
	}
	env := envelope{Key: key, Value: value}
	if !expiresAt.IsZero() {
		env.ExpiresAt = expiresAt.UnixMilli()
	}
	return json.Marshal(env)
}

func decode(data []byte) (envelope, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, time.Time{}, fmt.Errorf("decode cache entry: %w", err)
	}
	var at time.Time
	if env.ExpiresAt > 0 {
		at = time.UnixMilli(env.ExpiresAt)
	}
	return env, at, nil
}

// Glob compiles a key pattern where * matches any run of characters and ?
// matches exactly one. Every other character is literal.
func Glob(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// literalPrefix returns the part of a glob before its first wildcard.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
