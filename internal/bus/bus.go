// Package bus announces decision-loop state changes to downstream consumers.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// #region event
// Event types published by the navigator.
const (
	TypeSelectionMade    = "selection.made"
	TypeWeightsUpdated   = "weights.updated"
	TypeCrisisDetected   = "crisis.detected"
	TypeCrisisEscalation = "crisis.escalation"
)

// Event is one announcement. Payload must marshal to JSON.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType, userID string, payload interface{}) Event {
	return Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		UserID:  userID,
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

// #endregion event

// #region publisher
// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }

// #endregion publisher

// #region config
// Config selects the bus backend.
type Config struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DefaultConfig leaves the bus disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		Topic:        "navigator.events",
		WriteTimeout: 5 * time.Second,
	}
}

// New returns a KafkaPublisher when enabled, otherwise Nop.
func New(cfg Config) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("bus enabled with no brokers")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("bus enabled with no topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // partition by user id
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewKafkaPublisher(w), nil
}

// #endregion config

// #region kafka
// messageWriter is the slice of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by user id.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher wraps a kafka writer.
func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish sends events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.UserID),
			Value: value,
			Time:  ev.At,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d events: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// #endregion kafka
