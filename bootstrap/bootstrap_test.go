package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/cmskit/bootstrap"
	"github.com/artpar/cmskit/config"
	"github.com/artpar/cmskit/core/capability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	dir := t.TempDir()
	cfg.Database.DSN = filepath.Join(dir, "cms.db")
	cfg.Media.Dir = filepath.Join(dir, "uploads")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Logging.Level = "error"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *bootstrap.App {
	t.Helper()
	a, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Version:    "test",
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	return a
}

func providers(t *testing.T, a *bootstrap.App) *capability.Providers {
	t.Helper()
	p, err := a.Providers(context.Background())
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	return p
}

func controlPlane(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_SelfHostedDefaults(t *testing.T) {
	a := newApp(t, testConfig(t))

	p := providers(t, a)
	want := map[string]string{
		"context":   p.Context.Name(),
		"billing":   p.Billing.Name(),
		"analytics": p.Analytics.Name(),
		"media":     p.Media.Name(),
		"cache":     p.Cache.Name(),
		"video":     p.Video.Name(),
	}
	expected := map[string]string{
		"context":   "row_level",
		"billing":   "self_hosted",
		"analytics": "sqlite",
		"media":     "local",
		"cache":     "disabled",
		"video":     "none",
	}
	for k, v := range expected {
		if want[k] != v {
			t.Errorf("%s provider = %s, want %s", k, want[k], v)
		}
	}
	if d := p.Degraded(); len(d) != 0 {
		t.Errorf("Degraded() = %+v, want none", d)
	}
	if a.Metrics == nil {
		t.Error("metrics should be enabled by default")
	}
	if a.HTTPServer.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %s", a.HTTPServer.Addr)
	}
}

func TestNew_ServesAPI(t *testing.T) {
	a := newApp(t, testConfig(t))
	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/collections", strings.NewReader(`{"name":"Posts"}`))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("create collection status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var v struct {
		Version string `json:"version"`
		Mode    string `json:"mode"`
	}
	json.NewDecoder(resp.Body).Decode(&v)
	if v.Version != "test" || v.Mode != "self_hosted" {
		t.Errorf("version = %+v", v)
	}
}

func TestNew_ServesLocalMedia(t *testing.T) {
	a := newApp(t, testConfig(t))
	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "hello.txt")
	part.Write([]byte("hello world"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var doc struct {
		Data struct {
			Placeholder struct {
				URL string `json:"url"`
			} `json:"placeholder"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(doc.Data.Placeholder.URL, "/media/user-1/") {
		t.Fatalf("url = %q", doc.Data.Placeholder.URL)
	}

	got, err := http.Get(srv.URL + doc.Data.Placeholder.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Body.Close()
	content, _ := io.ReadAll(got.Body)
	if got.StatusCode != http.StatusOK || string(content) != "hello world" {
		t.Errorf("GET media = %d %q", got.StatusCode, content)
	}
}

func TestNew_HostedBillingUnreachableFallsBack(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	cfg := testConfig(t)
	cfg.Mode = config.ModeHosted
	cfg.Remote.URL = dead.URL
	cfg.Analytics.Provider = "remote"
	cfg.Video.Provider = "remote"
	a := newApp(t, cfg)

	p := providers(t, a)
	if p.Billing.Name() != "self_hosted" {
		t.Errorf("billing = %s, want self_hosted", p.Billing.Name())
	}
	active, err := p.Billing.HasActiveSubscription(context.Background(), "anyone")
	if err != nil || !active {
		t.Errorf("HasActiveSubscription = %v, %v; want true", active, err)
	}
	if p.Analytics.Name() != "noop" || p.Video.Name() != "none" {
		t.Errorf("analytics = %s, video = %s", p.Analytics.Name(), p.Video.Name())
	}
	if p.Context.Name() != "membership" {
		t.Errorf("context = %s, want membership", p.Context.Name())
	}

	degraded := map[capability.Type]capability.Degradation{}
	for _, d := range p.Degraded() {
		degraded[d.Capability] = d
	}
	if d, ok := degraded[capability.Billing]; !ok || d.From != "hosted" || d.To != "self_hosted" {
		t.Errorf("billing degradation = %+v", d)
	}
	if len(degraded) != 3 {
		t.Errorf("Degraded() = %+v, want billing, analytics and video", p.Degraded())
	}
}

func TestNew_HostedWithControlPlane(t *testing.T) {
	cp := controlPlane(t)

	cfg := testConfig(t)
	cfg.Mode = config.ModeHosted
	cfg.Remote.URL = cp.URL
	cfg.Video.Provider = "remote"
	a := newApp(t, cfg)

	p := providers(t, a)
	if p.Billing.Name() != "hosted" || p.Video.Name() != "remote" {
		t.Errorf("billing = %s, video = %s", p.Billing.Name(), p.Video.Name())
	}
	if len(p.Degraded()) != 0 {
		t.Errorf("Degraded() = %+v", p.Degraded())
	}

	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", resp.StatusCode)
	}

	cp.Close()
	resp, err = http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status with control plane down = %d", resp.StatusCode)
	}
}

func TestNew_SelectsProvidersOnFirstAPIRequest(t *testing.T) {
	var hits atomic.Int64
	cp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(cp.Close)

	cfg := testConfig(t)
	cfg.Mode = config.ModeHosted
	cfg.Remote.URL = cp.URL
	a := newApp(t, cfg)
	if n := hits.Load(); n != 0 {
		t.Fatalf("control plane called %d times before the first request", n)
	}

	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()
	get := func() {
		t.Helper()
		resp, err := http.Get(srv.URL + "/api/field-types")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("field-types status = %d", resp.StatusCode)
		}
	}

	get()
	selected := hits.Load()
	if selected == 0 {
		t.Fatal("providers were not selected on the first API request")
	}
	get()
	if n := hits.Load(); n != selected {
		t.Errorf("providers selected again: %d control plane calls, want %d", n, selected)
	}
	if providers(t, a) != providers(t, a) {
		t.Error("Providers returned different instances")
	}
	if providers(t, a).Billing.Name() != "hosted" {
		t.Errorf("billing = %s, want hosted", providers(t, a).Billing.Name())
	}
}

func TestNew_CacheProviders(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		provider string
		addr     string
		want     string
		degraded bool
	}{
		{"memory", "memory", "", "memory", false},
		{"filesystem", "filesystem", "", "filesystem", false},
		{"redis", "redis", mr.Addr(), "redis", false},
		{"redis down", "redis", "127.0.0.1:1", "disabled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cache.Provider = tt.provider
			cfg.Redis.Addr = tt.addr
			a := newApp(t, cfg)

			p := providers(t, a)
			if got := p.Cache.Name(); got != tt.want {
				t.Errorf("cache = %s, want %s", got, tt.want)
			}
			if got := len(p.Degraded()) > 0; got != tt.degraded {
				t.Errorf("degraded = %v, want %v", got, tt.degraded)
			}
		})
	}
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a := newApp(t, cfg)
	if a.Metrics != nil {
		t.Error("metrics should be nil when disabled")
	}
}

func TestNew_DatabaseError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.DSN = filepath.Join(t.TempDir(), "missing", "dir", "cms.db")

	_, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	if err == nil {
		t.Fatal("expected error for unusable database path")
	}
}

func TestShutdown_ClosesDatabase(t *testing.T) {
	a, err := bootstrap.New(context.Background(), testConfig(t), bootstrap.Options{
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	if err := a.Stores.Ping(context.Background()); err == nil {
		t.Error("expected error pinging closed database")
	}
}

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"service":"cmskit"`) || !strings.Contains(out, "shown") {
		t.Errorf("log output = %s", out)
	}

	buf.Reset()
	logger = bootstrap.NewLogger(config.LoggingConfig{Level: "info", Format: "console"}, &buf)
	logger.Info().Msg("console line")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "console line") {
		t.Errorf("console output = %s", buf.String())
	}
}

func TestHolderReloadChangesLogLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	path := filepath.Join(t.TempDir(), "cmskit.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}
	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.Logging = holder.Get().Logging
	a, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Holder:     holder,
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", zerolog.GlobalLevel())
	}
	if err := os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(); err != nil {
		t.Fatal(err)
	}
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("level = %s, want error", zerolog.GlobalLevel())
	}
}
