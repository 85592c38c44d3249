package repository

import (
	"context"
	"fmt"

	"StockSage/internal/domain/models"
	drepo "StockSage/internal/domain/repository"
	"StockSage/pkg/kafka"
)

// KafkaResultPublisher pushes frozen analysis results to a Kafka topic,
// keyed by symbol so per-symbol ordering is preserved.
type KafkaResultPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *kafka.Producer, topic string) drepo.Publisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(r.Symbol), r); err != nil {
		return fmt.Errorf("publish result %s: %w", r.Symbol, err)
	}
	return nil
}

func (p *KafkaResultPublisher) Close() error {
	return p.producer.Close()
}
