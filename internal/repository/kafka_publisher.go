package repository

import (
	"context"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
	pkgkafka "FinFit/pkg/kafka"
)

// batchProducer is the part of *pkgkafka.Producer the publisher needs.
type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaForecastPublisher implements ForecastPublisher for Kafka. Messages
// are keyed by symbol so every forecast of a company lands on one partition.
type KafkaForecastPublisher struct {
	producer batchProducer
	topic    string
}

var _ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)

// NewKafkaForecastPublisher creates a publisher writing to topic.
func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return newKafkaForecastPublisher(producer, topic)
}

func newKafkaForecastPublisher(producer batchProducer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, f *models.Forecast) error {
	return p.PublishBatch(ctx, []*models.Forecast{f})
}

func (p *KafkaForecastPublisher) PublishBatch(ctx context.Context, forecasts []*models.Forecast) error {
	msgs := make([]pkgkafka.Message, 0, len(forecasts))
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(f.Symbol), Value: f})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
