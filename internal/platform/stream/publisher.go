// Package stream publishes platform events to Kafka for downstream
// consumers (reporting warehouse, practice integrations). Publishing is
// best-effort: chat and booking paths never fail because the broker is down.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types published by the platform.
const (
	EventLeadCaptured          = "lead.captured"
	EventConversationCompleted = "conversation.completed"
	EventCrisisAlert           = "crisis.alert"
	EventAppointmentBooked     = "appointment.booked"
	EventConsentRecorded       = "consent.recorded"
)

const writeTimeout = 10 * time.Second

// Envelope is the wire shape of every published event.
type Envelope struct {
	Type       string          `json:"type"`
	PracticeID string          `json:"practice_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Publisher sends platform events to the configured stream.
type Publisher interface {
	Publish(ctx context.Context, eventType, practiceID string, payload interface{}) error
	Close() error
}

// kafkaWriter is the slice of kafka.Writer the publisher uses, abstracted for
// tests.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes envelopes to a single Kafka topic, partitioned by
// practice id.
type KafkaPublisher struct {
	writer kafkaWriter
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given
// brokers.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "stream").Logger(),
	}
}

// Publish marshals the payload into an envelope and writes it with the
// practice id as the message key.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, practiceID string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		raw = data
	}

	env := Envelope{
		Type:       eventType,
		PracticeID: practiceID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(practiceID),
		Value: value,
	}); err != nil {
		p.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

func (NopPublisher) Close() error { return nil }

// NewPublisher returns a Kafka publisher when brokers are configured and a
// NopPublisher otherwise.
func NewPublisher(brokers []string, topic string, logger zerolog.Logger) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic, logger)
}
