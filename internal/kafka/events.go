package kafka

import (
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/google/uuid"
)

// Топики событий синхронизации
const (
	TopicCustomerCreated      = "customer_created"
	TopicSubscriptionUpdated  = "subscription_updated"
	TopicSubscriptionCanceled = "subscription_canceled"
)

// SyncEvent - сообщение, публикуемое в Kafka после обновления кэша
type SyncEvent struct {
	ID           string               `json:"id"`
	Topic        string               `json:"topic"`
	OccurredAt   time.Time            `json:"occurredAt"`
	Customer     *domain.Customer     `json:"customer,omitempty"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
}

// Key возвращает ключ партиционирования: ID сущности
func (e SyncEvent) Key() string {
	if e.Subscription != nil {
		return e.Subscription.ID
	}
	if e.Customer != nil {
		return e.Customer.ID
	}
	return e.ID
}

func NewCustomerEvent(c domain.Customer) SyncEvent {
	return SyncEvent{ID: uuid.NewString(), Topic: TopicCustomerCreated, OccurredAt: time.Now().UTC(), Customer: &c}
}

func NewSubscriptionEvent(topic string, s domain.Subscription) SyncEvent {
	return SyncEvent{ID: uuid.NewString(), Topic: topic, OccurredAt: time.Now().UTC(), Subscription: &s}
}
