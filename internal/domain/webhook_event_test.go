package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEventType(t *testing.T) {
	tests := []struct {
		raw  string
		want EventKind
	}{
		{"checkout.session.completed", EventCheckoutCompleted},
		{"customer.subscription.created", EventSubscriptionCreated},
		{"customer.subscription.updated", EventSubscriptionUpdated},
		{"customer.subscription.deleted", EventSubscriptionCanceled},
		{"customer.subscription.canceled", EventSubscriptionCanceled},
		{"invoice.paid", EventUnhandled},
		{"", EventUnhandled},
		{"CHECKOUT.SESSION.COMPLETED", EventUnhandled},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEventType(tt.raw))
		})
	}
}

func TestWebhookEvent_ObjectID(t *testing.T) {
	e := &WebhookEvent{ID: "evt_1", Type: "customer.subscription.updated", Object: map[string]any{"id": "sub_1", "status": "active"}}
	assert.Equal(t, "sub_1", e.ObjectID())
	assert.Equal(t, EventSubscriptionUpdated, e.Kind())

	assert.Empty(t, (&WebhookEvent{}).ObjectID())
	assert.Empty(t, (&WebhookEvent{Object: map[string]any{"id": 42}}).ObjectID())
}

func TestSubscription_Validate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ok := &Subscription{ID: "sub_1", Status: SubscriptionStatusActive, CurrentPeriodStart: start, CurrentPeriodEnd: start.AddDate(0, 1, 0)}
	assert.NoError(t, ok.Validate())

	same := &Subscription{ID: "sub_1", Status: SubscriptionStatusTrialing, CurrentPeriodStart: start, CurrentPeriodEnd: start}
	assert.NoError(t, same.Validate())

	bad := &Subscription{ID: "sub_1", Status: "bogus", CurrentPeriodStart: start, CurrentPeriodEnd: start.Add(-time.Hour)}
	err := bad.Validate()
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{"status", "currentPeriodEnd"}, verrs.Fields())
}
