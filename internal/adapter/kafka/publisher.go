package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/config"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces run availability events to a Kafka topic.
// It implements watch.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishRun serializes and publishes one run availability event.
func (p *Publisher) PublishRun(ctx context.Context, event hrrr.RunEvent) error {
	msg, err := serializeRunEvent(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s: %w", event.ID, err)
	}
	p.logger.Debug("published run event", "run", event.ID, "kind", event.Kind)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRunEvent marshals a RunEvent into a Kafka message keyed by
// the run ID so replays of one run land in the same partition.
func serializeRunEvent(event hrrr.RunEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "discovered_at", Value: []byte(event.DiscoveredAt.Format(time.RFC3339))},
		},
	}, nil
}
