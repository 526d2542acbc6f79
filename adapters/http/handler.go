// Package http serves the cmskit API.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/artpar/cmskit/adapters/metrics"
	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
	Mode    string `json:"mode,omitempty"`
}

// HealthChecker reports whether a backing service can take traffic.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a health handler. Readiness runs every named
// check.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks if the service is ready to handle traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"check":  name,
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	API *Handler

	// BuildAPI, used when API is nil, builds the API handler on the first
	// /api request. Its result, an error included, is kept for the life of
	// the router.
	BuildAPI func(ctx context.Context) (*Handler, error)

	Health  *HealthHandler
	Metrics *metrics.Collector
	Logger  zerolog.Logger

	// Version and Mode are reported by /version.
	Version string
	Mode    string

	// RequestTimeout bounds every request. Zero means 60s.
	RequestTimeout time.Duration

	// EnableOpenAPI serves the API description and Swagger UI.
	EnableOpenAPI bool

	// MediaDir, when set, is served read-only under MediaPath.
	MediaDir  string
	MediaPath string
}

// NewRouter creates the main HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	version := VersionResponse{Version: cfg.Version, Service: "cmskit", Mode: cfg.Mode}
	if version.Version == "" {
		version.Version = "dev"
	}
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version)
	})

	if cfg.EnableOpenAPI {
		mountOpenAPI(r)
	}

	switch {
	case cfg.API != nil:
		r.Route("/api", cfg.API.Routes)
	case cfg.BuildAPI != nil:
		r.Mount("/api", &deferredAPI{build: cfg.BuildAPI, logger: cfg.Logger})
	}

	if prefix := strings.TrimRight(cfg.MediaPath, "/"); cfg.MediaDir != "" && strings.HasPrefix(prefix, "/") {
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.MediaDir))))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteErrors(w, jsonapi.ErrNotFound("No route matches "+r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteErrors(w, jsonapi.ErrMethodNotAllowed(r.Method))
}

// deferredAPI builds the API routes on the first request it serves.
type deferredAPI struct {
	once   sync.Once
	build  func(context.Context) (*Handler, error)
	logger zerolog.Logger

	routes chi.Router
	err    error
}

func (d *deferredAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.once.Do(func() {
		h, err := d.build(context.WithoutCancel(r.Context()))
		if err != nil {
			d.err = err
			d.logger.Error().Err(err).Msg("api initialization failed")
			return
		}
		sub := chi.NewRouter()
		sub.NotFound(notFound)
		sub.MethodNotAllowed(methodNotAllowed)
		h.Routes(sub)
		d.routes = sub
	})
	if d.err != nil {
		jsonapi.WriteErrors(w, errorsFor(capability.ErrProviderUnavailable)...)
		return
	}
	d.routes.ServeHTTP(w, r)
}

// NewMetricsMiddleware creates middleware that records request metrics
// labelled by route pattern.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(ww.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched chi pattern so that IDs do not become
// label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
