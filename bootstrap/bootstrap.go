// Package bootstrap wires all dependencies and starts the application.
// Providers are selected once, on the first API request, from the deployment
// mode and configuration; only the log level follows config reloads.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/cmskit/adapters/clock"
	apihttp "github.com/artpar/cmskit/adapters/http"
	"github.com/artpar/cmskit/adapters/idgen"
	"github.com/artpar/cmskit/adapters/metrics"
	"github.com/artpar/cmskit/adapters/remote"
	"github.com/artpar/cmskit/app"
	"github.com/artpar/cmskit/config"
	"github.com/artpar/cmskit/core/capability"
)

// tempIDLength is the length of placeholder upload IDs.
const tempIDLength = 12

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Stores     *Stores
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	holder    *config.Holder
	providers *capability.Lazy
}

// Options customizes New. The zero value serves a production process.
type Options struct {
	// Version is reported by /version.
	Version string

	// Holder, when set, feeds log level changes into the running process.
	Holder *config.Holder

	// Registerer receives the metrics. Nil uses the default registry.
	Registerer prometheus.Registerer

	// LogOutput receives log lines. Nil uses stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("mode", cfg.Mode).Msg("initializing cmskit")
	for _, w := range cfg.Warnings {
		logger.Warn().Str("detail", w).Msg("config value replaced by default")
	}

	a := &App{Logger: logger, Config: cfg, holder: opts.Holder}

	stores, err := OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Stores = stores

	if cfg.Metrics.Enabled {
		if opts.Registerer != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registerer)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Msg("prometheus metrics enabled")
	}

	client := remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Remote.URL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
		Headers: cfg.Remote.Headers,
	})

	a.initProviders(client)
	a.initHTTPServer(client, opts.Version)

	if a.holder != nil {
		a.watchConfig()
	}
	return a, nil
}

func (a *App) initProviders(client *remote.Client) {
	deps := providerDeps{
		cfg:     a.Config,
		stores:  a.Stores,
		remote:  client,
		clock:   clock.Real{},
		ids:     idgen.UUID{},
		metrics: a.Metrics,
		logger:  a.Logger,
	}
	plan := buildPlan(deps)

	var observer capability.Observer
	if a.Metrics != nil {
		observer = a.Metrics
	}
	a.providers = capability.NewLazy(func(ctx context.Context) (*capability.Providers, error) {
		p, err := capability.Select(ctx, plan, a.Logger, observer)
		if err != nil {
			return nil, fmt.Errorf("select providers: %w", err)
		}
		for _, d := range p.Degraded() {
			a.Logger.Warn().
				Str("capability", d.Capability.String()).
				Str("from", d.From).
				Str("to", d.To).
				Str("reason", d.Reason).
				Msg("running with fallback provider")
		}
		if a.Metrics != nil {
			a.Metrics.RecordProviders(p.Container().ListProviders())
		}
		return p, nil
	})
}

// Providers returns the selected providers. The first call selects them;
// later calls return the same instances.
func (a *App) Providers(ctx context.Context) (*capability.Providers, error) {
	return a.providers.Get(ctx)
}

// buildAPI resolves every capability from the selected providers and
// assembles the API handler.
func (a *App) buildAPI(ctx context.Context) (*apihttp.Handler, error) {
	p, err := a.Providers(ctx)
	if err != nil {
		return nil, err
	}
	ctr := p.Container()
	owner, err := ctr.Context()
	if err != nil {
		return nil, err
	}
	bill, err := ctr.Billing()
	if err != nil {
		return nil, err
	}
	events, err := ctr.Analytics()
	if err != nil {
		return nil, err
	}
	media, err := ctr.Media()
	if err != nil {
		return nil, err
	}
	cached, err := ctr.Cache()
	if err != nil {
		return nil, err
	}
	vid, err := ctr.Video()
	if err != nil {
		return nil, err
	}

	c := clock.Real{}
	ids := idgen.UUID{}
	var m app.Metrics = app.NopMetrics{}
	if a.Metrics != nil {
		m = a.Metrics
	}
	st := a.Stores
	services := apihttp.Services{
		Collections: app.NewCollectionService(st.Collections, st.Configs, owner, cached, events, ids, c, m, a.Logger),
		Items:       app.NewItemService(st.Collections, st.Configs, st.Items, owner, cached, events, ids, c, m, a.Config.Cache.TTL, a.Logger),
		Publisher:   app.NewPublishService(st.Collections, st.Items, owner, cached, events, c, a.Logger),
		Media:       app.NewMediaService(owner, bill, media, vid, events, idgen.NewShort("tmp_", tempIDLength), c, m, a.Logger),
		Billing:     app.NewBillingService(owner, bill, events, m, a.Logger),
	}
	return apihttp.NewHandler(services, a.Config.Media.MaxUploadBytes, a.Logger), nil
}

func (a *App) initHTTPServer(client *remote.Client, version string) {
	cfg := a.Config

	checks := map[string]apihttp.HealthChecker{
		"database": apihttp.HealthCheckFunc(a.Stores.Ping),
	}
	if cfg.Hosted() && cfg.Remote.URL != "" {
		checks["control_plane"] = apihttp.HealthCheckFunc(client.Ping)
	}

	routerCfg := apihttp.RouterConfig{
		BuildAPI:       a.buildAPI,
		Health:         apihttp.NewHealthHandler(checks),
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		Version:        version,
		Mode:           cfg.Mode,
		RequestTimeout: cfg.Server.WriteTimeout,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
	}
	// Local objects, including those written after an S3 fallback, carry
	// a path-only URL under the media base.
	if strings.HasPrefix(cfg.Media.BaseURL, "/") && cfg.Media.Dir != "" {
		routerCfg.MediaDir = cfg.Media.Dir
		routerCfg.MediaPath = cfg.Media.BaseURL
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      apihttp.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// watchConfig applies reloaded log levels to the running process.
func (a *App) watchConfig() {
	if a.Metrics != nil {
		a.holder.SetObserver(a.Metrics)
	}
	a.holder.OnChange(func(c *config.Config) {
		zerolog.SetGlobalLevel(parseLevel(c.Logging.Level))
	})
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. Pending analytics events are
// flushed before the database closes.
func (a *App) Shutdown() error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			errs = append(errs, err)
		}
	}

	if a.providers != nil {
		if err := a.providers.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("provider close error")
			errs = append(errs, err)
		}
	}

	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			errs = append(errs, err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// NewLogger builds the process logger. The level is applied globally so a
// reload can change it later.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "cmskit").Logger()
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}
