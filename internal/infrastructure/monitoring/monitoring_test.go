package monitoring

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

func TestZapLogger_EnrichesAndMasks(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(&config.LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	ctx = logger.ContextWithRequestID(ctx, "req-42")

	l.WithComponent("TokenEndpoint").Info(ctx, "issued",
		logger.String("client_id", "svc-1"),
		logger.String("client_secret", "s3cr3t-value-long"))
	span.End()

	line := buf.Bytes()
	assert.Equal(t, "issued", gjson.GetBytes(line, "msg").String())
	assert.Equal(t, "TokenEndpoint", gjson.GetBytes(line, "component").String())
	assert.Equal(t, "req-42", gjson.GetBytes(line, "request_id").String())
	assert.Equal(t, span.SpanContext().TraceID().String(), gjson.GetBytes(line, "trace_id").String())
	assert.Equal(t, "svc-1", gjson.GetBytes(line, "client_id").String())
	assert.NotContains(t, string(line), "s3cr3t-value-long")
}

func TestZapLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(&config.LogConfig{Level: "warn"}, zapcore.AddSync(&buf))
	assert.Equal(t, constants.LogLevelWarn, l.GetLevel())

	l.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	l.SetLevel(constants.LogLevelDebug)
	l.Debug(context.Background(), "kept")
	assert.True(t, strings.Contains(buf.String(), "kept"))
	assert.Equal(t, constants.LogLevelDebug, l.GetLevel())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordTokenRequest("client_credentials", "success", 20*time.Millisecond)
	m.RecordTokenRequest("client_credentials", "invalid_client", time.Millisecond)
	m.RecordIntrospection(true)
	m.RecordIntrospection(false)
	m.RecordIntrospection(false)
	m.RecordCleanup(3, 1)
	m.ObserveClientCache("hit")
	m.RecordRateLimitHit("/oauth2/token")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRequests.WithLabelValues("client_credentials", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Introspections.WithLabelValues("false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CleanupDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientCacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TokenRequestDuration))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordRevocation("success") })
}

func TestTracingManager_EndSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tm := NewTracingManagerWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), logger.NewNoopLogger())

	_, ok := tm.StartSpan(context.Background(), "authz.Token")
	EndSpan(ok, nil)
	_, failed := tm.StartSpan(context.Background(), "authz.Revoke")
	EndSpan(failed, errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "authz.Token", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTracingManager_Disabled(t *testing.T) {
	tm, err := NewTracingManager(&config.TracingConfig{}, logger.NewNoopLogger())
	require.NoError(t, err)
	_, span := tm.StartSpan(context.Background(), "noop")
	EndSpan(span, nil)
	assert.NoError(t, tm.Shutdown(context.Background()))
}

func TestKafkaHeaderCarrier_PropagatesTrace(t *testing.T) {
	_, err := NewTracingManager(&config.TracingConfig{}, logger.NewNoopLogger())
	require.NoError(t, err)
	tm := NewTracingManagerWithProvider(sdktrace.NewTracerProvider(), logger.NewNoopLogger())

	ctx, span := tm.StartSpan(context.Background(), "authz.Revoke")
	defer span.End()

	headers := []kafka.Header{{Key: "event_type", Value: []byte("token_revoked")}, {Key: "traceparent", Value: []byte("stale")}}
	carrier := KafkaHeaderCarrier{Headers: &headers}
	InjectTraceContext(ctx, carrier)

	assert.ElementsMatch(t, []string{"event_type", "traceparent"}, carrier.Keys())
	assert.NotEqual(t, "stale", carrier.Get("traceparent"))

	remote := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), carrier))
	assert.True(t, remote.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), remote.TraceID())
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(50 * time.Millisecond)
	h.Register("database", func(context.Context) error { return nil })
	h.Register("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := h.Check(context.Background())
	assert.False(t, report.Healthy)
	assert.Equal(t, "unhealthy", report.Status)
	assert.Equal(t, "ok", report.Checks["database"])
	assert.Contains(t, report.Checks["redis"], "deadline exceeded")
	assert.Equal(t, []string{"database", "redis"}, h.Names())

	h.Register("redis", func(context.Context) error { return nil })
	assert.True(t, h.Check(context.Background()).Healthy)
}
