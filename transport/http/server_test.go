package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/dockerhost"
	"github.com/kart-io/clawprobe/pkg/health"
	"github.com/kart-io/clawprobe/pkg/observability"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
)

type stubProber struct {
	result feishu.ProbeResult
	calls  atomic.Int32
}

func (s *stubProber) Probe(ctx context.Context, creds *feishu.Credentials) feishu.ProbeResult {
	s.calls.Add(1)
	return s.result
}

func okProber() *stubProber {
	return &stubProber{result: feishu.ProbeResult{OK: true, AppID: "cli_a", BotName: "Claw", BotOpenID: "ou_1"}}
}

func newTestServer(t *testing.T, prober *stubProber, keys ...string) *HTTPServer {
	t.Helper()

	creds := &feishu.Credentials{AppID: "cli_a", AppSecret: "secret"}
	resolver := dockerhost.NewResolver(dockerhost.WithPlatform(dockerhost.PlatformLinux), dockerhost.WithLookup(nil))

	checker := health.NewHealthChecker(nil)
	checker.RegisterCheck("feishu", health.FeishuCheck(prober, creds))
	checker.RegisterCheck("docker_host", health.DockerHostCheck(resolver, ""))

	return NewHTTPServer(Config{APIKeys: keys}, Dependencies{
		Checker:     checker,
		Prober:      prober,
		Credentials: creds,
		Resolver:    resolver,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
	})
}

func serve(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	prober := okProber()
	s := newTestServer(t, prober)

	rec := serve(t, s.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body health.SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusHealthy, body.Status)
	assert.Equal(t, 2, body.Summary.TotalComponents)
	assert.Contains(t, body.Components, "feishu")
	assert.Contains(t, body.Components, "docker_host")
	assert.EqualValues(t, 1, prober.calls.Load())

	// Cached results are served until ?fresh=true is asked for.
	serve(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.EqualValues(t, 1, prober.calls.Load())

	serve(t, s.Handler(), http.MethodGet, "/healthz?fresh=true", nil)
	assert.EqualValues(t, 2, prober.calls.Load())
}

func TestServer_HealthzUnhealthy(t *testing.T) {
	prober := &stubProber{result: feishu.ProbeResult{OK: false, AppID: "cli_a", Error: "API error: app not found"}}
	s := newTestServer(t, prober)

	rec := serve(t, s.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body health.SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusUnhealthy, body.Status)
	assert.Equal(t, "API error: app not found", body.Components["feishu"].CheckResults[0].Message)
}

func TestServer_Probe(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := newTestServer(t, okProber())

		rec := serve(t, s.Handler(), http.MethodGet, "/probe", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true,"appId":"cli_a","botName":"Claw","botOpenId":"ou_1"}`, rec.Body.String())
	})

	t.Run("failure is 503", func(t *testing.T) {
		prober := &stubProber{result: feishu.ProbeResult{OK: false, Error: "missing credentials (appId, appSecret)"}}
		s := newTestServer(t, prober)

		rec := serve(t, s.Handler(), http.MethodGet, "/probe", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"missing credentials (appId, appSecret)"}`, rec.Body.String())
	})

	t.Run("method not allowed", func(t *testing.T) {
		s := newTestServer(t, okProber())

		rec := serve(t, s.Handler(), http.MethodPost, "/probe", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_ProbeAuth(t *testing.T) {
	prober := okProber()
	s := newTestServer(t, prober, "k1", "k2")

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"api key header", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"bearer token", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK},
		{"basic scheme", map[string]string{"Authorization": "Basic k2"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s.Handler(), http.MethodGet, "/probe", tt.header)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.EqualValues(t, 2, prober.calls.Load())

	// Only /probe is guarded.
	rec := serve(t, s.Handler(), http.MethodGet, "/docker-host", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_DockerHost(t *testing.T) {
	s := newTestServer(t, okProber())

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"platform default", "/docker-host", `{"address":"172.17.0.1","source":"platform","platform":"linux"}`},
		{"query override", "/docker-host?value=10.0.0.5", `{"address":"10.0.0.5","source":"config","platform":"linux"}`},
		{"blank override", "/docker-host?value=%20%20", `{"address":"172.17.0.1","source":"platform","platform":"linux"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s.Handler(), http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, okProber())

	serve(t, s.Handler(), http.MethodGet, "/healthz", nil)
	serve(t, s.Handler(), http.MethodGet, "/docker-host", nil)
	serve(t, s.Handler(), http.MethodGet, "/nowhere", nil)

	rec := serve(t, s.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `clawprobe_http_requests_total{code="200",path="GET /healthz"} 1`)
	assert.Contains(t, text, `clawprobe_http_requests_total{code="200",path="GET /docker-host"} 1`)
	assert.Contains(t, text, `clawprobe_http_requests_total{code="404",path="unmatched"} 1`)
	assert.Contains(t, text, `clawprobe_component_up{component="feishu"} 1`)
	assert.Contains(t, text, `clawprobe_health_checks_total{component="docker_host",status="healthy"} 1`)
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := NewHTTPServer(Config{}, Dependencies{})

	assert.Equal(t, http.StatusNotFound, serve(t, s.Handler(), http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s.Handler(), http.MethodGet, "/probe", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, s.Handler(), http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, ":8080", s.config.Addr)
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewHTTPServer(Config{Addr: "127.0.0.1:0"}, Dependencies{})
	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Start(), http.ErrServerClosed)
}

func TestServer_MetricsIncludeProbeTelemetry(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	cfg := config.Default().Telemetry
	cfg.Enabled = true
	cfg.MetricsEnabled = true
	telemetry, err := observability.NewTelemetryProvider(&cfg, observability.WithPrometheusRegisterer(metrics.Registry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	// Without credentials the prober answers locally, which is enough to record a probe.
	prober := feishu.NewProber(feishu.WithProberTelemetry(telemetry))
	s := NewHTTPServer(Config{}, Dependencies{
		Prober:      prober,
		Credentials: &feishu.Credentials{},
		Metrics:     metrics,
	})

	rec := serve(t, s.Handler(), http.MethodGet, "/probe", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, s.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()

	assert.Contains(t, text, "clawprobe_probes_total")
	assert.Contains(t, text, `path="invalid"`)
	assert.Contains(t, text, `status="error"`)
	assert.Contains(t, text, "clawprobe_probe_duration_seconds")
}
