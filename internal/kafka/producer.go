package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// messageWriter - часть kafka.Writer, которую использует Publisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher - адаптер синхронизации: публикует снимки сущностей в Kafka (segmentio/kafka-go).
// Реализует OnCustomerCreated, OnSubscriptionUpdated и OnSubscriptionCanceled.
type Publisher struct {
	writer messageWriter
	log    *logger.Logger
}

// NewPublisher создает и настраивает продюсер Kafka.
func NewPublisher(brokers []string, log *logger.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, domain.NewConfigurationError("KAFKA_BROKERS", "kafka brokers are not configured")
	}

	// Топик задается в каждом сообщении
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		ReadTimeout:  writeTimeout,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return newPublisher(writer, log), nil
}

func newPublisher(w messageWriter, log *logger.Logger) *Publisher {
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) OnCustomerCreated(ctx context.Context, c domain.Customer) error {
	return p.publish(ctx, NewCustomerEvent(c))
}

func (p *Publisher) OnSubscriptionUpdated(ctx context.Context, s domain.Subscription) error {
	return p.publish(ctx, NewSubscriptionEvent(TopicSubscriptionUpdated, s))
}

func (p *Publisher) OnSubscriptionCanceled(ctx context.Context, s domain.Subscription) error {
	return p.publish(ctx, NewSubscriptionEvent(TopicSubscriptionCanceled, s))
}

// publish сериализует событие и отправляет его; ключ - ID сущности,
// поэтому события одной сущности попадают в одну партицию
func (p *Publisher) publish(ctx context.Context, event SyncEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: event.Topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.OccurredAt,
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", event.Topic, "key", event.Key())
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		p.log.Errorw("Failed to write message to Kafka", "error", err, "topic", event.Topic, "key", event.Key())
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	p.log.Infow("Published sync event to Kafka", "topic", event.Topic, "key", event.Key(), "eventID", event.ID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (p *Publisher) Close() error {
	p.log.Infow("Closing Kafka producer writer...")
	if err := p.writer.Close(); err != nil {
		p.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}
