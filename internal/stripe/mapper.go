package stripe

import (
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"

	"github.com/stripe/stripe-go/v78"
)

func mapCheckoutSession(s *stripe.CheckoutSession) *domain.CheckoutSession {
	out := &domain.CheckoutSession{
		ID:        s.ID,
		URL:       s.URL,
		Status:    domain.CheckoutSessionStatus(s.Status),
		Metadata:  s.Metadata,
		CreatedAt: optionalTime(s.Created),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func mapSubscription(s *stripe.Subscription) (*domain.Subscription, error) {
	out := &domain.Subscription{
		ID:                 s.ID,
		Status:             domain.SubscriptionStatus(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		Items:              []domain.SubscriptionItem{},
		Metadata:           s.Metadata,
		CreatedAt:          optionalTime(s.Created),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item == nil {
				continue
			}
			mapped := domain.SubscriptionItem{ID: item.ID, Quantity: item.Quantity}
			if item.Price != nil {
				mapped.PriceID = item.Price.ID
			}
			out.Items = append(out.Items, mapped)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func mapCustomer(c *stripe.Customer) *domain.Customer {
	return &domain.Customer{
		ID:        c.ID,
		Email:     c.Email,
		Name:      c.Name,
		Metadata:  c.Metadata,
		CreatedAt: optionalTime(c.Created),
	}
}

func mapEvent(e stripe.Event) *domain.WebhookEvent {
	out := &domain.WebhookEvent{
		ID:      e.ID,
		Type:    string(e.Type),
		Created: unixTime(e.Created),
	}
	if e.Data != nil {
		out.Object = e.Data.Object
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func optionalTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
