// Package observability provides tracing and metrics for probes
package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kart-io/clawprobe/pkg/config"
)

const instrumentationName = "github.com/kart-io/clawprobe"

// Probe paths recorded on probe metrics
const (
	PathInvalid = "invalid"
	PathCached  = "cached"
	PathFull    = "full"
)

// TelemetryProvider provides observability features
type TelemetryProvider struct {
	config        *config.TelemetryConfig
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	sdkMeter      *sdkmetric.MeterProvider

	// injected providers take precedence over the OTLP pipeline
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// registerer receives probe metrics through the Prometheus exporter
	registerer prometheus.Registerer

	// Metrics
	probesTotal   metric.Int64Counter
	probeDuration metric.Float64Histogram
	apiCalls      metric.Int64Counter
}

// Option configures a TelemetryProvider
type Option func(*TelemetryProvider)

// WithTracerProvider uses tp instead of building an OTLP exporter
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *TelemetryProvider) { t.tracerProvider = tp }
}

// WithMeterProvider uses mp instead of the global meter provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *TelemetryProvider) { t.meterProvider = mp }
}

// WithPrometheusRegisterer exports metrics to reg, typically the registry
// served on /metrics. An injected meter provider takes precedence.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(t *TelemetryProvider) { t.registerer = reg }
}

// NewTelemetryProvider creates a new telemetry provider. A nil or disabled
// config yields a provider backed by the global (no-op by default) tracer and meter.
func NewTelemetryProvider(cfg *config.TelemetryConfig, opts ...Option) (*TelemetryProvider, error) {
	if cfg == nil {
		cfg = &config.Default().Telemetry
	}

	tp := &TelemetryProvider{
		config: cfg,
	}
	for _, opt := range opts {
		opt(tp)
	}

	if !cfg.Enabled {
		tp.tracer = otel.Tracer(instrumentationName)
		tp.meter = otel.Meter(instrumentationName)
		return tp, nil
	}

	if cfg.TracingEnabled {
		if err := tp.initTracing(); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	} else {
		tp.tracer = otel.Tracer(instrumentationName)
	}

	if cfg.MetricsEnabled {
		if err := tp.initMetrics(); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	} else {
		tp.meter = otel.Meter(instrumentationName)
	}

	return tp, nil
}

// initTracing initializes OpenTelemetry tracing
func (tp *TelemetryProvider) initTracing() error {
	if tp.tracerProvider != nil {
		tp.tracer = tp.tracerProvider.Tracer(instrumentationName)
		return nil
	}

	res, err := tp.resource()
	if err != nil {
		return err
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(tp.exporterOptions()...))
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tp.config.Sampling()))),
	)

	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp.tracer = tp.traceProvider.Tracer(instrumentationName,
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	return nil
}

func (tp *TelemetryProvider) resource() (*resource.Resource, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tp.config.ServiceName),
			semconv.ServiceVersion(tp.config.ServiceVersion),
			semconv.DeploymentEnvironment(tp.config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

// exporterOptions accepts both "host:port" and full URL endpoints
func (tp *TelemetryProvider) exporterOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option

	endpoint := tp.config.OTLPEndpoint
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		if tp.config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}

	if len(tp.config.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(tp.config.OTLPHeaders))
	}

	return opts
}

// initMetrics initializes OpenTelemetry metrics
func (tp *TelemetryProvider) initMetrics() error {
	switch {
	case tp.meterProvider != nil:
		tp.meter = tp.meterProvider.Meter(instrumentationName)
	case tp.registerer != nil:
		res, err := tp.resource()
		if err != nil {
			return err
		}

		exporter, err := otelprom.New(otelprom.WithRegisterer(tp.registerer))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}

		tp.sdkMeter = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		tp.meter = tp.sdkMeter.Meter(instrumentationName,
			metric.WithSchemaURL(semconv.SchemaURL),
		)
	default:
		tp.meter = otel.Meter(instrumentationName,
			metric.WithSchemaURL(semconv.SchemaURL),
		)
	}

	var err error

	tp.probesTotal, err = tp.meter.Int64Counter(
		"clawprobe_probes_total",
		metric.WithDescription("Total number of Feishu bot probes"),
	)
	if err != nil {
		return fmt.Errorf("create probes_total counter: %w", err)
	}

	tp.probeDuration, err = tp.meter.Float64Histogram(
		"clawprobe_probe_duration_seconds",
		metric.WithDescription("Duration of Feishu bot probes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create probe_duration histogram: %w", err)
	}

	tp.apiCalls, err = tp.meter.Int64Counter(
		"clawprobe_feishu_api_calls_total",
		metric.WithDescription("Total number of Feishu open API requests"),
	)
	if err != nil {
		return fmt.Errorf("create api_calls counter: %w", err)
	}

	return nil
}

// TraceOperation creates a new span for an operation
func (tp *TelemetryProvider) TraceOperation(ctx context.Context, operationName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp == nil || tp.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tp.tracer.Start(ctx, operationName,
		trace.WithAttributes(attributes...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceProbe creates a span for a bot probe
func (tp *TelemetryProvider) TraceProbe(ctx context.Context, appID string) (context.Context, trace.Span) {
	return tp.TraceOperation(ctx, "clawprobe.probe",
		attribute.String("feishu.app_id", appID),
	)
}

// TraceAPICall creates a client span for a Feishu open API request
func (tp *TelemetryProvider) TraceAPICall(ctx context.Context, method, path string) (context.Context, trace.Span) {
	if tp == nil || tp.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tp.tracer.Start(ctx, "feishu "+method+" "+path,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("feishu.api.path", path),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// RecordProbe records the outcome of one probe
func (tp *TelemetryProvider) RecordProbe(ctx context.Context, appID string, ok bool, path string, duration time.Duration) {
	if tp == nil {
		return
	}

	status := "success"
	if !ok {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("path", path),
	)

	if tp.probesTotal != nil {
		tp.probesTotal.Add(ctx, 1, attrs)
	}

	if tp.probeDuration != nil {
		tp.probeDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordAPICall records one Feishu API request and its HTTP status (0 for transport failures)
func (tp *TelemetryProvider) RecordAPICall(ctx context.Context, path string, statusCode int) {
	if tp == nil || tp.apiCalls == nil {
		return
	}

	tp.apiCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	))
}

// SetSpanError sets an error on the current span
func (tp *TelemetryProvider) SetSpanError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span as successful
func (tp *TelemetryProvider) SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown flushes and stops the pipelines this provider started
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp == nil {
		return nil
	}

	var errs []error
	if tp.traceProvider != nil {
		errs = append(errs, tp.traceProvider.Shutdown(ctx))
	}
	if tp.sdkMeter != nil {
		errs = append(errs, tp.sdkMeter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Enabled reports whether telemetry export was requested
func (tp *TelemetryProvider) Enabled() bool {
	return tp != nil && tp.config.Enabled
}

// GetTracer returns the tracer instance
func (tp *TelemetryProvider) GetTracer() trace.Tracer {
	return tp.tracer
}

// GetMeter returns the meter instance
func (tp *TelemetryProvider) GetMeter() metric.Meter {
	return tp.meter
}
