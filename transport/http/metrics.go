package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/clawprobe/pkg/health"
)

// Metrics holds the Prometheus collectors exposed on /metrics
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	componentUp     *prometheus.GaugeVec
	checksTotal     *prometheus.CounterVec
}

// NewMetrics registers the server collectors on reg. A nil reg gets a fresh
// registry with the Go and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg.MustRegister(collectors.NewGoCollector())
	}

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawprobe_http_requests_total",
			Help: "HTTP requests served, by path and status code.",
		}, []string{"path", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clawprobe_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		componentUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clawprobe_component_up",
			Help: "1 when the last health check of the component was healthy, 0 otherwise.",
		}, []string{"component"}),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clawprobe_health_checks_total",
			Help: "Health checks run, by component and resulting status.",
		}, []string{"component", "status"}),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.componentUp, m.checksTotal)
	return m
}

// Registry returns the registry served on /metrics, so other components can
// register their collectors on it
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served request. The route pattern set by the
// mux is used as label so unknown paths cannot grow the series count.
func (m *Metrics) ObserveRequest(r *http.Request, status int, duration time.Duration) {
	path := r.Pattern
	if path == "" {
		path = "unmatched"
	}
	m.requestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// ObserveCheck records a completed health check
func (m *Metrics) ObserveCheck(result health.CheckResult) {
	up := 0.0
	if result.Status == health.StatusHealthy {
		up = 1
	}
	m.componentUp.WithLabelValues(result.Name).Set(up)
	m.checksTotal.WithLabelValues(result.Name, result.Status.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
