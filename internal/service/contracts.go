package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/stripe-sync/internal/domain"
)

// Необязательные колбэки адаптера синхронизации. Адаптер реализует только нужные ему интерфейсы;
// пайплайн вызывает колбэк, если адаптер его поддерживает.

// CustomerSyncer получает клиента после завершения checkout.
type CustomerSyncer interface {
	OnCustomerCreated(ctx context.Context, customer domain.Customer) error
}

// SubscriptionSyncer получает созданную или измененную подписку.
type SubscriptionSyncer interface {
	OnSubscriptionUpdated(ctx context.Context, sub domain.Subscription) error
}

// CancellationSyncer получает отмененную подписку.
type CancellationSyncer interface {
	OnSubscriptionCanceled(ctx context.Context, sub domain.Subscription) error
}

// Handlers - пользовательские обработчики событий. Любое поле может быть nil.
// Ошибки и паники обработчиков логируются и не влияют на ответ Stripe.
type Handlers struct {
	OnCheckoutComplete     func(ctx context.Context, session domain.CheckoutSession) error
	OnSubscriptionCreated  func(ctx context.Context, sub domain.Subscription) error
	OnSubscriptionUpdated  func(ctx context.Context, sub domain.Subscription) error
	OnSubscriptionCanceled func(ctx context.Context, sub domain.Subscription) error
}

// MultiSync рассылает каждый колбэк всем адаптерам, которые его реализуют.
// Ошибка одного адаптера не мешает вызову остальных.
type MultiSync struct {
	adapters []any
}

// NewMultiSync объединяет адаптеры синхронизации; nil-адаптеры пропускаются
func NewMultiSync(adapters ...any) *MultiSync {
	m := &MultiSync{}
	for _, a := range adapters {
		if a != nil {
			m.adapters = append(m.adapters, a)
		}
	}
	return m
}

// Len возвращает число подключенных адаптеров
func (m *MultiSync) Len() int {
	return len(m.adapters)
}

func (m *MultiSync) OnCustomerCreated(ctx context.Context, customer domain.Customer) error {
	var errs []error
	for _, a := range m.adapters {
		if s, ok := a.(CustomerSyncer); ok {
			errs = append(errs, safeCall(func() error { return s.OnCustomerCreated(ctx, customer) }))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSync) OnSubscriptionUpdated(ctx context.Context, sub domain.Subscription) error {
	var errs []error
	for _, a := range m.adapters {
		if s, ok := a.(SubscriptionSyncer); ok {
			errs = append(errs, safeCall(func() error { return s.OnSubscriptionUpdated(ctx, sub) }))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSync) OnSubscriptionCanceled(ctx context.Context, sub domain.Subscription) error {
	var errs []error
	for _, a := range m.adapters {
		if s, ok := a.(CancellationSyncer); ok {
			errs = append(errs, safeCall(func() error { return s.OnSubscriptionCanceled(ctx, sub) }))
		}
	}
	return errors.Join(errs...)
}

// safeCall превращает панику в ошибку
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
