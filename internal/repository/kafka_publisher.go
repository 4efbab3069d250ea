package repository

import (
	"context"
	"fmt"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	pkgkafka "EmaScreen/pkg/kafka"
)

// KafkaPublisher emits recomputed EMA entries to a Kafka topic, keyed by
// symbol so downstream consumers see per-instrument ordering.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates the publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.UpdatePublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishEntry(ctx context.Context, entry *models.EmaEntry) error {
	payload := map[string]interface{}{
		"symbol":        entry.Symbol,
		"last_close":    entry.LastClose,
		"ema_value":     entry.EmaValue,
		"distance_pct":  entry.DistancePct(),
		"position":      entry.PositionToEma(),
		"last_bar_date": entry.LastBarDate,
		"updated_at":    entry.UpdatedAt,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(entry.Symbol), payload); err != nil {
		return fmt.Errorf("publish %s: %w", entry.Symbol, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEntry(context.Context, *models.EmaEntry) error { return nil }
func (NoopPublisher) Close() error                                         { return nil }
