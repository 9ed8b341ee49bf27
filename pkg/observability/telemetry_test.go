package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kart-io/clawprobe/pkg/config"
)

func newTestProvider(t *testing.T) (*TelemetryProvider, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	cfg := config.Default().Telemetry
	cfg.Enabled = true
	cfg.TracingEnabled = true
	cfg.MetricsEnabled = true

	tp, err := NewTelemetryProvider(&cfg,
		WithTracerProvider(tracerProvider),
		WithMeterProvider(meterProvider),
	)
	require.NoError(t, err)
	return tp, exporter, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestNewTelemetryProvider_Disabled(t *testing.T) {
	tp, err := NewTelemetryProvider(nil)
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NotNil(t, tp.GetTracer())
	assert.NotNil(t, tp.GetMeter())

	ctx, span := tp.TraceProbe(context.Background(), "cli_a")
	assert.NotNil(t, ctx)
	span.End()

	tp.RecordProbe(ctx, "cli_a", true, PathFull, time.Millisecond)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNilProviderIsSafe(t *testing.T) {
	var tp *TelemetryProvider

	ctx, span := tp.TraceOperation(context.Background(), "op")
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	tp.RecordProbe(ctx, "cli_a", false, PathInvalid, 0)
	tp.RecordAPICall(ctx, "/open-apis/bot/v3/info", 200)
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestTraceProbe_RecordsSpan(t *testing.T) {
	tp, exporter, _ := newTestProvider(t)

	_, span := tp.TraceProbe(context.Background(), "cli_a")
	tp.SetSpanError(span, errors.New("API error: app not found"))
	span.End()

	_, span = tp.TraceAPICall(context.Background(), "GET", "/open-apis/bot/v3/info")
	tp.SetSpanSuccess(span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "clawprobe.probe", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("feishu.app_id", "cli_a"))
	require.Len(t, spans[0].Events, 1)

	assert.Equal(t, "feishu GET /open-apis/bot/v3/info", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
}

func TestRecordProbe_Metrics(t *testing.T) {
	tp, _, reader := newTestProvider(t)
	ctx := context.Background()

	tp.RecordProbe(ctx, "cli_a", true, PathFull, 20*time.Millisecond)
	tp.RecordProbe(ctx, "cli_a", true, PathCached, 5*time.Millisecond)
	tp.RecordProbe(ctx, "cli_a", true, PathCached, 5*time.Millisecond)
	tp.RecordProbe(ctx, "", false, PathInvalid, 0)

	sum, ok := collect(t, reader, "clawprobe_probes_total").(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value("status")
		path, _ := dp.Attributes.Value("path")
		counts[status.AsString()+"/"+path.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"success/full":   1,
		"success/cached": 2,
		"error/invalid":  1,
	}, counts)

	hist, ok := collect(t, reader, "clawprobe_probe_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(4), total)
}

func TestRecordAPICall_Metrics(t *testing.T) {
	tp, _, reader := newTestProvider(t)

	tp.RecordAPICall(context.Background(), "/open-apis/bot/v3/info", 200)
	tp.RecordAPICall(context.Background(), "/open-apis/bot/v3/info", 200)

	sum, ok := collect(t, reader, "clawprobe_feishu_api_calls_total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestExporterOptions(t *testing.T) {
	tp := &TelemetryProvider{config: &config.TelemetryConfig{OTLPEndpoint: "collector:4318", Insecure: true}}
	assert.Len(t, tp.exporterOptions(), 2)

	tp.config = &config.TelemetryConfig{
		OTLPEndpoint: "https://collector.example.com/v1/traces",
		OTLPHeaders:  map[string]string{"x-api-key": "k"},
	}
	assert.Len(t, tp.exporterOptions(), 2)
}

func TestPrometheusRegisterer_ExportsProbeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	cfg := config.Default().Telemetry
	cfg.Enabled = true
	cfg.MetricsEnabled = true

	tp, err := NewTelemetryProvider(&cfg, WithPrometheusRegisterer(reg))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, tp.Shutdown(context.Background())) })

	ctx := context.Background()
	tp.RecordProbe(ctx, "cli_a", true, PathFull, 20*time.Millisecond)
	tp.RecordProbe(ctx, "cli_a", false, PathCached, time.Millisecond)
	tp.RecordAPICall(ctx, "/open-apis/bot/v3/info", 200)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assertHasPrefix := func(prefix string) {
		t.Helper()
		for _, n := range names {
			if strings.HasPrefix(n, prefix) {
				return
			}
		}
		t.Errorf("no metric family with prefix %q in %v", prefix, names)
	}
	assertHasPrefix("clawprobe_probes_total")
	assertHasPrefix("clawprobe_probe_duration_seconds")
	assertHasPrefix("clawprobe_feishu_api_calls_total")
}
