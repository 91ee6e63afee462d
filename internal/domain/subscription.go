package domain

import (
	"fmt"
	"time"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// IsValid проверяет, что статус входит в известный набор
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled,
		SubscriptionStatusIncomplete, SubscriptionStatusIncompleteExpired, SubscriptionStatusTrialing,
		SubscriptionStatusUnpaid, SubscriptionStatusPaused:
		return true
	}
	return false
}

// SubscriptionItem позиция подписки (цена и количество)
type SubscriptionItem struct {
	ID       string `json:"id"`
	PriceID  string `json:"priceId"`
	Quantity int64  `json:"quantity"`
}

// Subscription - снимок подписки, полученный из Stripe. В кэше заменяется целиком.
type Subscription struct {
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customerId"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	Items              []SubscriptionItem `json:"items"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
	CreatedAt          *time.Time         `json:"createdAt,omitempty"`
}

// Validate проверяет инварианты снимка подписки
func (s *Subscription) Validate() error {
	var errs ValidationErrors
	if s.ID == "" {
		errs.Add("id", "is required")
	}
	if !s.Status.IsValid() {
		errs.Add("status", fmt.Sprintf("unknown status %q", s.Status))
	}
	if s.CurrentPeriodEnd.Before(s.CurrentPeriodStart) {
		errs.Add("currentPeriodEnd", "must not be before currentPeriodStart")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// IsCanceled сообщает, отменена ли подписка
func (s *Subscription) IsCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// SubscriptionRequest запрос на создание подписки (customer-first)
type SubscriptionRequest struct {
	UserID          string            `json:"userId" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	PriceID         string            `json:"priceId" validate:"required"`
	Quantity        int64             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	TrialPeriodDays int64             `json:"trialPeriodDays,omitempty" validate:"omitempty,gte=0"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SubscriptionParams параметры создания подписки в Stripe
type SubscriptionParams struct {
	CustomerID      string
	PriceID         string
	Quantity        int64
	TrialPeriodDays int64
	Metadata        map[string]string
}
