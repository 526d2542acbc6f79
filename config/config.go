// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Deployment modes.
const (
	ModeSelfHosted = "self_hosted"
	ModeHosted     = "hosted"
)

// Config is the root configuration structure.
type Config struct {
	Mode      string          `yaml:"mode" validate:"oneof=self_hosted hosted"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Media     MediaConfig     `yaml:"media"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Video     VideoConfig     `yaml:"video"`
	Remote    RemoteConfig    `yaml:"remote"`
	Billing   BillingConfig   `yaml:"billing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	OpenAPI   OpenAPIConfig   `yaml:"openapi"`

	// Warnings lists values that were replaced by a default while loading.
	Warnings []string `yaml:"-"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the row store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// CacheConfig configures the cache provider.
type CacheConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=disabled memory filesystem redis s3"`
	Dir           string        `yaml:"dir"`
	TTL           time.Duration `yaml:"ttl" validate:"min=0"`
	Prefix        string        `yaml:"prefix"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"min=0"`
}

// RedisConfig configures the redis cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db" validate:"min=0"`
}

// S3Config configures S3-compatible object storage.
type S3Config struct {
	Bucket      string `yaml:"bucket"`
	CacheBucket string `yaml:"cache_bucket"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint" validate:"omitempty,url"`
	PublicURL   string `yaml:"public_url" validate:"omitempty,url"`
}

// MediaConfig configures media storage.
type MediaConfig struct {
	Provider       string `yaml:"provider" validate:"oneof=local s3"`
	Dir            string `yaml:"dir"`
	BaseURL        string `yaml:"base_url"`
	QuotaBytes     int64  `yaml:"quota_bytes"` // -1 = unlimited
	MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"min=0"`
}

// AnalyticsConfig configures analytics.
type AnalyticsConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=noop sqlite remote"`
	BatchSize     int           `yaml:"batch_size" validate:"min=0"`
	FlushInterval time.Duration `yaml:"flush_interval" validate:"min=0"`
}

// VideoConfig configures video hosting.
type VideoConfig struct {
	Provider string `yaml:"provider" validate:"oneof=none remote"`
}

// RemoteConfig configures the hosted control plane used by hosted
// billing, analytics and video.
type RemoteConfig struct {
	URL     string            `yaml:"url" validate:"omitempty,url"`
	APIKey  string            `yaml:"api_key,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// BillingConfig configures hosted billing.
type BillingConfig struct {
	WebhookSecret string        `yaml:"webhook_secret,omitempty"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// OpenAPIConfig controls the API description and Swagger UI.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CMSKIT_MODE              - self_hosted or hosted (default: self_hosted)
//	CMSKIT_SERVER_HOST       - Server host (default: 0.0.0.0)
//	CMSKIT_SERVER_PORT       - Server port (default: 8080)
//	CMSKIT_DATABASE_DRIVER   - sqlite or postgres (default by mode)
//	CMSKIT_DATABASE_DSN      - SQLite path or Postgres URL
//	CMSKIT_CACHE_PROVIDER    - disabled, memory, filesystem, redis or s3 (default: disabled)
//	CMSKIT_CACHE_DIR         - Directory of the filesystem cache
//	CMSKIT_CACHE_TTL         - Default entry lifetime (default: 5m)
//	CMSKIT_MEDIA_PROVIDER    - local or s3 (default by mode)
//	CMSKIT_ANALYTICS_PROVIDER - noop, sqlite or remote (default by mode)
//	CMSKIT_VIDEO_PROVIDER    - none or remote (default: none)
//	CMSKIT_REMOTE_URL        - Hosted control plane URL
//	CMSKIT_LOG_LEVEL         - debug, info, warn, error (default: info)
//	CMSKIT_LOG_FORMAT        - json or console (default: json)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	return finish(&cfg)
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// LoadDotEnv loads variables from .env files into the process environment.
// Variables that are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	cfg.Warnings = normalize(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies CMSKIT_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	num64 := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	str("CMSKIT_MODE", &cfg.Mode)

	str("CMSKIT_SERVER_HOST", &cfg.Server.Host)
	num("CMSKIT_SERVER_PORT", &cfg.Server.Port)
	dur("CMSKIT_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur("CMSKIT_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	dur("CMSKIT_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	str("CMSKIT_DATABASE_DRIVER", &cfg.Database.Driver)
	str("CMSKIT_DATABASE_DSN", &cfg.Database.DSN)

	str("CMSKIT_CACHE_PROVIDER", &cfg.Cache.Provider)
	str("CMSKIT_CACHE_DIR", &cfg.Cache.Dir)
	dur("CMSKIT_CACHE_TTL", &cfg.Cache.TTL)
	str("CMSKIT_CACHE_PREFIX", &cfg.Cache.Prefix)

	str("CMSKIT_REDIS_ADDR", &cfg.Redis.Addr)
	str("CMSKIT_REDIS_PASSWORD", &cfg.Redis.Password)
	num("CMSKIT_REDIS_DB", &cfg.Redis.DB)

	str("CMSKIT_S3_BUCKET", &cfg.S3.Bucket)
	str("CMSKIT_S3_CACHE_BUCKET", &cfg.S3.CacheBucket)
	str("CMSKIT_S3_REGION", &cfg.S3.Region)
	str("CMSKIT_S3_ENDPOINT", &cfg.S3.Endpoint)
	str("CMSKIT_S3_PUBLIC_URL", &cfg.S3.PublicURL)

	str("CMSKIT_MEDIA_PROVIDER", &cfg.Media.Provider)
	str("CMSKIT_MEDIA_DIR", &cfg.Media.Dir)
	str("CMSKIT_MEDIA_BASE_URL", &cfg.Media.BaseURL)
	num64("CMSKIT_MEDIA_QUOTA_BYTES", &cfg.Media.QuotaBytes)
	num64("CMSKIT_MEDIA_MAX_UPLOAD_BYTES", &cfg.Media.MaxUploadBytes)

	str("CMSKIT_ANALYTICS_PROVIDER", &cfg.Analytics.Provider)
	num("CMSKIT_ANALYTICS_BATCH_SIZE", &cfg.Analytics.BatchSize)
	dur("CMSKIT_ANALYTICS_FLUSH_INTERVAL", &cfg.Analytics.FlushInterval)

	str("CMSKIT_VIDEO_PROVIDER", &cfg.Video.Provider)

	str("CMSKIT_REMOTE_URL", &cfg.Remote.URL)
	str("CMSKIT_REMOTE_API_KEY", &cfg.Remote.APIKey)
	dur("CMSKIT_REMOTE_TIMEOUT", &cfg.Remote.Timeout)

	str("CMSKIT_BILLING_WEBHOOK_SECRET", &cfg.Billing.WebhookSecret)
	dur("CMSKIT_BILLING_CACHE_TTL", &cfg.Billing.CacheTTL)

	str("CMSKIT_LOG_LEVEL", &cfg.Logging.Level)
	str("CMSKIT_LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("CMSKIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CMSKIT_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// normalize replaces values outside their closed set with the safest
// default and returns one warning per replacement. Empty values are left
// for setDefaults.
func normalize(cfg *Config) []string {
	var warnings []string
	closed := func(name string, dst *string, def string, allowed ...string) {
		v := strings.ToLower(strings.TrimSpace(*dst))
		if v == "" {
			*dst = ""
			return
		}
		for _, a := range allowed {
			if v == a {
				*dst = v
				return
			}
		}
		warnings = append(warnings, fmt.Sprintf("%s: unknown value %q, using %q", name, *dst, def))
		*dst = def
	}

	closed("mode", &cfg.Mode, ModeSelfHosted, ModeSelfHosted, ModeHosted)
	closed("database.driver", &cfg.Database.Driver, "sqlite", "sqlite", "postgres")
	closed("cache.provider", &cfg.Cache.Provider, "disabled", "disabled", "memory", "filesystem", "redis", "s3")
	closed("media.provider", &cfg.Media.Provider, "local", "local", "s3")
	closed("analytics.provider", &cfg.Analytics.Provider, "noop", "noop", "sqlite", "remote")
	closed("video.provider", &cfg.Video.Provider, "none", "none", "remote")
	closed("logging.level", &cfg.Logging.Level, "info", "debug", "info", "warn", "error")
	closed("logging.format", &cfg.Logging.Format, "json", "json", "console")
	return warnings
}

func setDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeSelfHosted
	}
	hosted := cfg.Mode == ModeHosted

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
		if hosted {
			cfg.Database.Driver = "postgres"
		}
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "cmskit.db"
	}

	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = "disabled"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".cache/cmskit"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "cmskit:"
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = time.Minute
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.S3.CacheBucket == "" {
		cfg.S3.CacheBucket = cfg.S3.Bucket
	}

	if cfg.Media.Provider == "" {
		cfg.Media.Provider = "local"
		if hosted {
			cfg.Media.Provider = "s3"
		}
	}
	if cfg.Media.Dir == "" {
		cfg.Media.Dir = "uploads"
	}
	if cfg.Media.BaseURL == "" {
		cfg.Media.BaseURL = "/media"
	}
	if cfg.Media.QuotaBytes == 0 {
		cfg.Media.QuotaBytes = -1
		if hosted {
			cfg.Media.QuotaBytes = 1 << 30
		}
	}
	if cfg.Media.MaxUploadBytes == 0 {
		cfg.Media.MaxUploadBytes = 64 << 20
	}

	if cfg.Analytics.Provider == "" {
		cfg.Analytics.Provider = "sqlite"
		if hosted {
			cfg.Analytics.Provider = "remote"
		}
	}
	if cfg.Analytics.BatchSize == 0 {
		cfg.Analytics.BatchSize = 100
	}
	if cfg.Analytics.FlushInterval == 0 {
		cfg.Analytics.FlushInterval = 5 * time.Second
	}

	if cfg.Video.Provider == "" {
		cfg.Video.Provider = "none"
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Billing.CacheTTL == 0 {
		cfg.Billing.CacheTTL = time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if cfg.Database.Driver == "postgres" && !strings.HasPrefix(cfg.Database.DSN, "postgres") {
		return fmt.Errorf("database.dsn must be a postgres:// URL when database.driver is 'postgres'")
	}
	return nil
}

// Hosted reports whether the deployment runs in hosted mode.
func (c *Config) Hosted() bool { return c.Mode == ModeHosted }
