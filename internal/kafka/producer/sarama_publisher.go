package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/kafka"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/IBM/sarama"
)

// SaramaPublisher - адаптер синхронизации поверх sarama.SyncProducer.
// Контракт совпадает с kafka.Publisher.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewSaramaPublisher создает адаптер поверх готового продюсера
func NewSaramaPublisher(producer sarama.SyncProducer, log *logger.Logger) *SaramaPublisher {
	return &SaramaPublisher{
		producer: producer,
		log:      log,
	}
}

// NewSaramaPublisherFromConfig подключается к брокерам и создает адаптер
func NewSaramaPublisherFromConfig(cfg *kafka.Config, log *logger.Logger) (*SaramaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, domain.NewConfigurationError("KAFKA_BROKERS", "kafka brokers are not configured")
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, kafka.NewSaramaConfig(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama producer: %w", err)
	}
	return NewSaramaPublisher(p, log), nil
}

func (p *SaramaPublisher) OnCustomerCreated(ctx context.Context, c domain.Customer) error {
	return p.publishEvent(ctx, kafka.NewCustomerEvent(c))
}

func (p *SaramaPublisher) OnSubscriptionUpdated(ctx context.Context, s domain.Subscription) error {
	return p.publishEvent(ctx, kafka.NewSubscriptionEvent(kafka.TopicSubscriptionUpdated, s))
}

func (p *SaramaPublisher) OnSubscriptionCanceled(ctx context.Context, s domain.Subscription) error {
	return p.publishEvent(ctx, kafka.NewSubscriptionEvent(kafka.TopicSubscriptionCanceled, s))
}

// publishEvent публикует событие синхронизации в Kafka
func (p *SaramaPublisher) publishEvent(ctx context.Context, event kafka.SyncEvent) error {
	// SyncProducer не принимает контекст: проверяем отмену до отправки
	if err := ctx.Err(); err != nil {
		return err
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: event.Topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_id"),
				Value: []byte(event.ID),
			},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.log.Errorw("Failed to publish sync event", "topic", event.Topic, "key", event.Key(), "error", err)
		return fmt.Errorf("failed to publish sync event: %w", err)
	}

	p.log.Info("Published sync event to topic %s: partition=%d offset=%d", event.Topic, partition, offset)
	return nil
}

// Close закрывает продюсер
func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
