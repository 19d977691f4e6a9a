// Package kafka implements the eventstream Publisher on a Kafka topic.
// Events are keyed by owner id so per-owner ordering is preserved within a
// partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/eventstream"
)

// DefaultTopic is the topic cascade events are published to.
const DefaultTopic = "psyche.cascades"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic if empty.
	Topic string
}

// Publisher publishes cascade events to Kafka.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewPublisher creates a new Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}

	logger.Info("kafka eventstream publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishCascade publishes a cascade event, keyed by owner id.
func (p *Publisher) PublishCascade(ctx context.Context, event *eventstream.CascadeEvent) error {
	if event == nil {
		return eventstream.ErrNilCascadeEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling cascade event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.OwnerID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing cascade event: %w", err)
	}

	p.logger.Debug("published cascade event",
		zap.String("event_type", event.EventType),
		zap.String("owner_id", event.OwnerID),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
