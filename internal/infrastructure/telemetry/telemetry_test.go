package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "fulfillment-test",
	}

	providers, err := telemetry.Setup(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, providers.Enabled())
	assert.Equal(t, "fulfillment-test", providers.ServiceName())
	assert.NotNil(t, providers.Tracer("test"))
	assert.NotNil(t, providers.Meter("test"))
	assert.False(t, providers.ZapCore(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, providers.ForceFlush(ctx))
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "integrity", "run",
		telemetry.WithAttribute("fix", true),
		telemetry.WithAttribute("checkers", []string{"unit_sold"}),
	)
	assert.True(t, trace.SpanContextFromContext(ctx).HasTraceID())
	telemetry.SetAttributes(span, "mismatches", 3, 42, "skipped", "odd")
	telemetry.AddEvent(span, "fixed", "units", int64(2))
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "integrity.run", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 2) // fixed + exception
	assert.Equal(t, "fixed", spans[0].Events()[0].Name)

	keys := make(map[string]bool)
	for _, attr := range spans[0].Attributes() {
		keys[string(attr.Key)] = true
	}
	assert.True(t, keys["fix"])
	assert.True(t, keys["checkers"])
	assert.True(t, keys["mismatches"])
	assert.False(t, keys["skipped"])
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}

func TestIntegrityMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	im, err := telemetry.NewIntegrityMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	im.RecordCheck(ctx, "unit_sold", telemetry.OutcomeMismatch, 3, 20*time.Millisecond)
	im.RecordCheck(ctx, "unit_sold", telemetry.OutcomeOK, 0, 10*time.Millisecond)
	im.RecordFix(ctx, "unit_sold", map[string]int{"UNIT_SOLD": 3}, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := make(map[string]int64)
	histograms := make(map[string]uint64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histograms[m.Name] += dp.Count
				}
			}
		}
	}
	assert.Equal(t, int64(3), sums["fulfillment_integrity_mismatches_total"])
	assert.Equal(t, int64(3), sums["fulfillment_integrity_actions_total"])
	assert.Equal(t, int64(2), sums["fulfillment_integrity_units_reconciled_total"])
	assert.Equal(t, uint64(2), histograms["fulfillment_integrity_check_duration_seconds"])
}

func TestNewIntegrityMetrics_NilMeter(t *testing.T) {
	im, err := telemetry.NewIntegrityMetrics(nil)
	require.Error(t, err)
	assert.Nil(t, im)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestNewBridgedLogger_WithoutTelemetry(t *testing.T) {
	providers, err := telemetry.Setup(context.Background(), telemetry.Config{}, zap.NewNop())
	require.NoError(t, err)

	base, logs := observer.New(zapcore.InfoLevel)
	logger := telemetry.NewBridgedLogger(base, providers.ZapCore(zapcore.InfoLevel))
	logger.Info("bridged")
	logger.Debug("filtered")
	assert.Equal(t, 1, logs.Len())
}

func TestStartSpan_Kind(t *testing.T) {
	sr := setupTestTracer(t)

	_, internal := telemetry.StartSpan(context.Background(), "integrity.check")
	internal.End()
	_, client := telemetry.StartSpan(context.Background(), "relay.send", telemetry.WithSpanKind(trace.SpanKindProducer))
	telemetry.SetOK(client)
	client.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, trace.SpanKindProducer, spans[1].SpanKind())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
