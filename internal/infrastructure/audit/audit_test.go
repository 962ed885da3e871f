package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service/mocks"
	"github.com/turtacn/authz/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func tokenIssued() models.AuditEvent {
	e := models.NewAuditEvent(constants.EventTypeTokenIssued, "svc-1", true)
	e.JTI = "jti-1"
	e.GrantType = string(constants.GrantTypeClientCredentials)
	return e.WithMeta("audience", "https://svc")
}

func TestKafkaProducer_SignsAndKeysMessages(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaProducerWithWriter(w, "hmac-key", logger.NewNoopLogger())

	require.NoError(t, p.LogEvent(context.Background(), tokenIssued()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "svc-1", string(msg.Key))
	assert.Equal(t, "token_issued", gjson.GetBytes(msg.Value, "event_type").String())
	assert.Equal(t, "jti-1", gjson.GetBytes(msg.Value, "jti").String())
	assert.Equal(t, "https://svc", gjson.GetBytes(msg.Value, "metadata.audience").String())

	var sig string
	for _, h := range msg.Headers {
		if h.Key == SignatureHeader {
			sig = string(h.Value)
		}
	}
	require.NotEmpty(t, sig)
	assert.True(t, VerifySignature(msg.Value, sig, "hmac-key"))
	assert.False(t, VerifySignature(msg.Value, sig, "other-key"))
}

func TestKafkaProducer_CarriesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, span := sdktrace.NewTracerProvider().Tracer("test").Start(context.Background(), "authz.Token")
	defer span.End()

	w := &recordingWriter{}
	require.NoError(t, NewKafkaProducerWithWriter(w, "", logger.NewNoopLogger()).LogEvent(ctx, tokenIssued()))
	require.Len(t, w.msgs, 1)

	var traceparent string
	for _, h := range w.msgs[0].Headers {
		if h.Key == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestKafkaProducer_WriteFailure(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := NewKafkaProducerWithWriter(&recordingWriter{err: boom}, "", logger.NewNoopLogger())
	assert.ErrorIs(t, p.LogEvent(context.Background(), tokenIssued()), boom)
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	ctx := context.Background()
	event := tokenIssued()
	boom := errors.New("sink down")

	failing := new(mocks.MockAuditService)
	failing.On("LogEvent", ctx, event).Return(boom)
	healthy := new(mocks.MockAuditService)
	healthy.On("LogEvent", ctx, event).Return(nil)

	err := Fanout{failing, healthy}.LogEvent(ctx, event)
	assert.ErrorIs(t, err, boom)
	healthy.AssertExpectations(t)

	assert.NoError(t, Noop{}.LogEvent(ctx, event))
}

func TestGormAuditService(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNoopLogger()
	conn, err := postgres.NewDBConnection(ctx, &config.DatabaseConfig{Driver: postgres.DriverSQLite, DSN: ":memory:"}, log)
	require.NoError(t, err)
	defer conn.Close()
	_, err = postgres.Migrate(ctx, conn, log)
	require.NoError(t, err)

	svc := NewGormAuditService(conn.Gorm())
	issued := tokenIssued()
	revoked := models.NewAuditEvent(constants.EventTypeTokenRevoked, "svc-1", true)
	revoked.JTI = "jti-1"
	revoked.Timestamp = issued.Timestamp.Add(time.Minute)

	require.NoError(t, svc.LogEvent(ctx, revoked))
	require.NoError(t, svc.LogEvent(ctx, issued))

	trail, err := svc.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, constants.EventTypeTokenIssued, trail[0].EventType)
	assert.Equal(t, "https://svc", trail[0].Metadata["audience"])
	assert.Equal(t, constants.EventTypeTokenRevoked, trail[1].EventType)
}
