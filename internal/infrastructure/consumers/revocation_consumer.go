// Package consumers contains the Kafka plumbing that propagates token revocations
// between authz instances.
package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// RevocationEvent announces that a token was revoked on instance Origin.
type RevocationEvent struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	Origin    string    `json:"origin"`
	RevokedAt time.Time `json:"revoked_at"`
}

// TokenRevoker is the tracker operation the consumer applies.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string) (bool, error)
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RevocationConsumer applies revocations published by other instances to the local
// tracker. Every instance reads with its own consumer group so each sees every event.
type RevocationConsumer struct {
	reader     MessageReader
	tracker    TokenRevoker
	instanceID string
	now        func() time.Time
	newBackOff func() backoff.BackOff
	logger     logger.Logger
}

// NewRevocationConsumer creates a consumer for cfg.RevocationTopic.
func NewRevocationConsumer(cfg config.KafkaConfig, tracker TokenRevoker, log logger.Logger) *RevocationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.RevocationTopic,
		GroupID:        cfg.ConsumerGroup + "-" + cfg.InstanceID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return NewRevocationConsumerWithReader(reader, tracker, cfg.InstanceID, log)
}

// NewRevocationConsumerWithReader wraps an existing reader.
func NewRevocationConsumerWithReader(r MessageReader, tracker TokenRevoker, instanceID string, log logger.Logger) *RevocationConsumer {
	return &RevocationConsumer{
		reader:     r,
		tracker:    tracker,
		instanceID: instanceID,
		now:        time.Now,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     log.WithComponent("RevocationConsumer"),
	}
}

// Run consumes until ctx is cancelled. Offsets are committed in order, so a message
// that fails is retried until it is applied before the next one is fetched.
func (c *RevocationConsumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "starting revocation consumer", logger.String("instance_id", c.instanceID))
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error(context.Background(), "failed to close kafka reader", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info(context.Background(), "revocation consumer stopped")
				return nil
			}
			c.logger.Error(ctx, "failed to fetch message from kafka", err)
			continue
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.logger.Info(context.Background(), "revocation consumer stopped", logger.Int64("pending_offset", msg.Offset))
				return nil
			}
			c.logger.Error(ctx, "failed to handle revocation event", err, logger.Int64("offset", msg.Offset))
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn(ctx, "failed to commit revocation event", logger.Err(err))
		}
	}
}

func (c *RevocationConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.Handle(ctx, msg)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn(ctx, "retrying revocation event", logger.Err(err),
				logger.Int64("offset", msg.Offset), logger.Duration("retry_in", next))
		}),
	)
	return err
}

// Handle applies one message. Poison messages, events from this instance, expired
// tokens, untracked tokens and already revoked tokens all succeed without effect.
// Log entries carry the trace of the request that revoked the token upstream.
func (c *RevocationConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	ctx = monitoring.ExtractTraceContext(ctx, monitoring.KafkaHeaderCarrier{Headers: &msg.Headers})

	var event RevocationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.JTI == "" {
		c.logger.Warn(ctx, "discarding malformed revocation event", logger.String("kafka_message", string(msg.Value)))
		return nil
	}
	if event.Origin == c.instanceID {
		return nil
	}
	if !event.ExpiresAt.IsZero() && event.ExpiresAt.Before(c.now()) {
		c.logger.Debug(ctx, "received expired revocation event, skipping", logger.String("jti", event.JTI))
		return nil
	}

	revoked, err := c.tracker.RevokeToken(ctx, event.JTI)
	if err != nil {
		if apperrors.HasReason(err, apperrors.ReasonInvalidStateTransition) {
			return nil
		}
		return fmt.Errorf("apply revocation of %s: %w", event.JTI, err)
	}
	if revoked {
		c.logger.Info(ctx, "applied remote revocation",
			logger.String("jti", event.JTI), logger.String("origin", event.Origin))
	}
	return nil
}

// RevocationPublisher announces local revocations on the revocation topic.
type RevocationPublisher struct {
	writer     messageWriter
	instanceID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewRevocationPublisher creates a publisher for cfg.RevocationTopic.
func NewRevocationPublisher(cfg config.KafkaConfig) *RevocationPublisher {
	return NewRevocationPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.RevocationTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}, cfg.InstanceID)
}

// NewRevocationPublisherWithWriter wraps an existing writer.
func NewRevocationPublisherWithWriter(w messageWriter, instanceID string) *RevocationPublisher {
	return &RevocationPublisher{writer: w, instanceID: instanceID}
}

// PublishRevocation sends the event stamped with this instance as origin.
func (p *RevocationPublisher) PublishRevocation(ctx context.Context, jti string, expiresAt, revokedAt time.Time) error {
	if jti == "" {
		return errors.New("revocation event needs a jti")
	}
	value, err := json.Marshal(RevocationEvent{JTI: jti, ExpiresAt: expiresAt, Origin: p.instanceID, RevokedAt: revokedAt})
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(jti), Value: value}
	monitoring.InjectTraceContext(ctx, monitoring.KafkaHeaderCarrier{Headers: &msg.Headers})
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish revocation of %s: %w", jti, err)
	}
	return nil
}

// Close closes the writer.
func (p *RevocationPublisher) Close() error {
	return p.writer.Close()
}
