package domain

import "time"

// CheckoutSessionStatus статус checkout-сессии
type CheckoutSessionStatus string

const (
	CheckoutSessionStatusOpen     CheckoutSessionStatus = "open"
	CheckoutSessionStatusComplete CheckoutSessionStatus = "complete"
	CheckoutSessionStatusExpired  CheckoutSessionStatus = "expired"
)

// CheckoutMode режим checkout-сессии
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
	CheckoutModeSetup        CheckoutMode = "setup"
)

// CheckoutSession - снимок checkout-сессии Stripe
type CheckoutSession struct {
	ID         string                `json:"id"`
	URL        string                `json:"url"`
	Status     CheckoutSessionStatus `json:"status"`
	CustomerID string                `json:"customerId,omitempty"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
	CreatedAt  *time.Time            `json:"createdAt,omitempty"`
}

// CheckoutRequest запрос на создание checkout-сессии
type CheckoutRequest struct {
	UserID          string            `json:"userId" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	PriceID         string            `json:"priceId,omitempty"`
	Quantity        int64             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Mode            CheckoutMode      `json:"mode,omitempty" validate:"omitempty,oneof=payment subscription setup"`
	SuccessURL      string            `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL       string            `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	TrialPeriodDays int64             `json:"trialPeriodDays,omitempty" validate:"omitempty,gte=0"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CheckoutSessionParams параметры создания checkout-сессии в Stripe.
// Клиент передается только по ID.
type CheckoutSessionParams struct {
	CustomerID           string
	PriceID              string
	Quantity             int64
	Mode                 CheckoutMode
	SuccessURL           string
	CancelURL            string
	TrialPeriodDays      int64
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
}

// PortalSession - сессия биллинг-портала. Не кэшируется.
type PortalSession struct {
	URL string `json:"url"`
}

// PortalRequest запрос на создание сессии портала
type PortalRequest struct {
	UserID    string `json:"userId" validate:"required"`
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}
