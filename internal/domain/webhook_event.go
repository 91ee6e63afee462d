package domain

import "time"

// EventKind нормализованный тип события вебхука
type EventKind string

const (
	EventCheckoutCompleted    EventKind = "CheckoutCompleted"
	EventSubscriptionCreated  EventKind = "SubscriptionCreated"
	EventSubscriptionUpdated  EventKind = "SubscriptionUpdated"
	EventSubscriptionCanceled EventKind = "SubscriptionCanceled"
	EventUnhandled            EventKind = "Unhandled"
)

// Сырые типы событий Stripe, которые обрабатывает пайплайн
const (
	StripeEventCheckoutSessionCompleted = "checkout.session.completed"
	StripeEventSubscriptionCreated      = "customer.subscription.created"
	StripeEventSubscriptionUpdated      = "customer.subscription.updated"
	StripeEventSubscriptionDeleted      = "customer.subscription.deleted"
	StripeEventSubscriptionCanceled     = "customer.subscription.canceled"
)

// NormalizeEventType сопоставляет сырой тип события Stripe с EventKind.
// Неизвестные типы дают EventUnhandled.
func NormalizeEventType(raw string) EventKind {
	switch raw {
	case StripeEventCheckoutSessionCompleted:
		return EventCheckoutCompleted
	case StripeEventSubscriptionCreated:
		return EventSubscriptionCreated
	case StripeEventSubscriptionUpdated:
		return EventSubscriptionUpdated
	case StripeEventSubscriptionDeleted, StripeEventSubscriptionCanceled:
		return EventSubscriptionCanceled
	default:
		return EventUnhandled
	}
}

// WebhookEvent - проверенное событие вебхука.
// Object используется только для получения ID сущности, состояние всегда перезапрашивается.
type WebhookEvent struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Object  map[string]any `json:"object,omitempty"`
	Created time.Time      `json:"created"`
}

// Kind возвращает нормализованный тип события
func (e *WebhookEvent) Kind() EventKind {
	return NormalizeEventType(e.Type)
}

// ObjectID возвращает ID вложенного объекта или пустую строку
func (e *WebhookEvent) ObjectID() string {
	if e.Object == nil {
		return ""
	}
	id, _ := e.Object["id"].(string)
	return id
}
