package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes audit events as JSON, keyed by client so one client's
// events stay ordered within a partition.
type KafkaProducer struct {
	writer     MessageWriter
	signingKey string
	logger     logger.Logger
}

// NewKafkaProducer creates a producer writing to cfg.AuditTopic.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaProducerWithWriter(writer, cfg.AuditSigningKey, log)
}

// NewKafkaProducerWithWriter wraps an existing writer.
func NewKafkaProducerWithWriter(w MessageWriter, signingKey string, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{writer: w, signingKey: signingKey, logger: log.WithComponent("KafkaProducer")}
}

var _ service.AuditService = (*KafkaProducer)(nil)

// LogEvent sends an audit event to the Kafka topic.
func (p *KafkaProducer) LogEvent(ctx context.Context, event models.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ClientID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if p.signingKey != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: SignatureHeader, Value: []byte(Sign(value, p.signingKey))})
	}
	monitoring.InjectTraceContext(ctx, monitoring.KafkaHeaderCarrier{Headers: &msg.Headers})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, "failed to write audit event to Kafka", err,
			logger.String("event_id", event.EventID),
			logger.String("event_type", string(event.EventType)))
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
