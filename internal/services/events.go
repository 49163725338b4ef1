package services

//go:generate mockgen -source=events.go -destination=events_mock.go -package=services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"github.com/sbilibin2017/gw-shop-auth/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// EventPublisher publishes auth events to Kafka.
// Publishing is best effort: failures are logged and never fail the caller.
// A nil publisher or a publisher without a writer is a valid no-op.
type EventPublisher struct {
	writer KafkaWriter
	now    func() time.Time
}

// NewEventPublisher creates a publisher. writer may be nil.
func NewEventPublisher(writer KafkaWriter) *EventPublisher {
	return &EventPublisher{writer: writer, now: time.Now}
}

// Publish sends an event of the given type for userID.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, userID uuid.UUID) {
	if p == nil || p.writer == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "type", eventType)
		return
	}

	event := models.AuthEvent{
		EventID:    uuid.New(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal auth event", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(userID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish auth event", "event_id", event.EventID, "type", eventType, "error", err)
		return
	}
	logger.Log.Infow("Auth event published", "event_id", event.EventID, "type", eventType)
}

// Close closes the underlying writer.
func (p *EventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
