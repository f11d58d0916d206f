package repository

import (
	"context"

	"CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
	pkgkafka "CarbonPulse/pkg/kafka"
)

// KafkaEventPublisher publishes climate events to the events topic, keyed
// by entity so per-entity ordering survives partitioning.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a Kafka event publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e *models.Event) error {
	key := e.Entity
	if key == "" {
		key = string(e.Type)
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), e)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
