// Package metrics provides Prometheus metrics collection for cmskit.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/cmskit/core/capability"
)

const namespace = "cmskit"

// Collector holds all Prometheus metrics for cmskit.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Cache metrics
	CacheLookups     *prometheus.CounterVec
	CacheWriteErrors *prometheus.CounterVec

	// Validation metrics
	ValidationFailures *prometheus.CounterVec

	// Provider metrics
	ProviderFallbacks *prometheus.CounterVec
	ProvidersActive   *prometheus.GaugeVec

	// Upload metrics
	Uploads     *prometheus.CounterVec
	UploadBytes prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by provider and result",
			},
			[]string{"provider", "result"},
		),
		CacheWriteErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_errors_total",
				Help:      "Failed cache writes and invalidations",
			},
			[]string{"provider", "op"},
		),

		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Rejected configurations and items by issue code",
			},
			[]string{"target", "code"},
		),

		ProviderFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fallbacks_total",
				Help:      "Providers that fell back to another variant at startup",
			},
			[]string{"capability", "from", "to"},
		),
		ProvidersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_active",
				Help:      "Selected provider variant per capability",
			},
			[]string{"capability", "variant"},
		),

		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Media uploads by outcome",
			},
			[]string{"provider", "outcome"},
		),
		UploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_bytes_total",
				Help:      "Bytes stored by successful uploads",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),

		gatherer: gatherer,
	}
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ProviderFallback counts a startup fallback. It makes the collector a
// capability.Observer.
func (c *Collector) ProviderFallback(cap capability.Type, from, to string) {
	c.ProviderFallbacks.WithLabelValues(cap.String(), from, to).Inc()
}

// RecordProviders marks the selected variant of every capability.
func (c *Collector) RecordProviders(infos []capability.ProviderInfo) {
	for _, info := range infos {
		if info.IsDefault {
			c.ProvidersActive.WithLabelValues(info.Capability.String(), info.Variant).Set(1)
		}
	}
}

// ValidationFailed counts the issues of a rejected configuration or item.
func (c *Collector) ValidationFailed(target string, codes ...string) {
	for _, code := range codes {
		c.ValidationFailures.WithLabelValues(target, code).Inc()
	}
}

// Upload outcomes.
const (
	UploadStored   = "stored"
	UploadQuota    = "quota_exceeded"
	UploadFailed   = "failed"
	UploadCanceled = "canceled"
)

// UploadFinished counts an upload. Bytes are added for stored uploads only.
func (c *Collector) UploadFinished(provider, outcome string, bytes int64) {
	c.Uploads.WithLabelValues(provider, outcome).Inc()
	if outcome == UploadStored && bytes > 0 {
		c.UploadBytes.Add(float64(bytes))
	}
}

var _ capability.Observer = (*Collector)(nil)

// ConfigReloaded records the outcome of a configuration reload.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}
