package service

import (
	"context"

	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
)

// QueryService читает снимки из кэша. Ошибки хранилища возвращаются вызывающему.
type QueryService struct {
	stripe stripe.Client
	cache  cache.Store
	log    *logger.Logger
}

func NewQueryService(client stripe.Client, store cache.Store, log *logger.Logger) (*QueryService, error) {
	if client == nil {
		return nil, domain.NewConfigurationError("stripe", "client is required")
	}
	if store == nil {
		return nil, domain.NewConfigurationError("cache", "store is required")
	}
	return &QueryService{stripe: client, cache: store, log: log}, nil
}

func (s *QueryService) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, found, err := cache.GetAs[domain.Subscription](ctx, s.cache, cache.SubscriptionKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("subscription", id)
	}
	return &sub, nil
}

// GetSubscriptionByCustomer ищет подписку через вторичный индекс subscription:customer:<id>
func (s *QueryService) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*domain.Subscription, error) {
	subID, found, err := cache.GetAs[string](ctx, s.cache, cache.SubscriptionByCustomerKey(customerID))
	if err != nil {
		return nil, err
	}
	if !found || subID == "" {
		return nil, domain.NewNotFoundError("subscription for customer", customerID)
	}
	return s.GetSubscription(ctx, subID)
}

func (s *QueryService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, found, err := cache.GetAs[domain.Customer](ctx, s.cache, cache.CustomerKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("customer", id)
	}
	return &c, nil
}

// GetCustomerByUserID находит клиента пользователя.
// Если связь известна, а снимок клиента истек, клиент перезапрашивается у Stripe и кэшируется.
func (s *QueryService) GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	customerID, found, err := cache.GetAs[string](ctx, s.cache, cache.CustomerByUserIDKey(userID))
	if err != nil {
		return nil, err
	}
	if !found || customerID == "" {
		return nil, domain.NewNotFoundError("customer", userID)
	}

	c, err := s.GetCustomer(ctx, customerID)
	if err == nil {
		return c, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	c, err = s.stripe.RetrieveCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.cache.Set(context.WithoutCancel(ctx), cache.CustomerKey(c.ID), c, cache.CustomerTTL); err != nil {
		s.log.Warnw("Failed to cache customer", "stripeCustomerID", c.ID, "error", err)
	}
	return c, nil
}

func (s *QueryService) GetCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	session, found, err := cache.GetAs[domain.CheckoutSession](ctx, s.cache, cache.CheckoutKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("checkout session", id)
	}
	return &session, nil
}

// RefreshSubscription перезапрашивает подписку у Stripe и обновляет кэш.
// Если контекст отменен до начала записи, кэш не изменяется; начатая запись завершается.
func (s *QueryService) RefreshSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.stripe.RetrieveSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.log.Debugw("Subscription refresh canceled before cache write", "subscriptionID", id)
		return nil, err
	}

	ttl := cache.SubscriptionTTL
	if sub.IsCanceled() {
		ttl = cache.CanceledSubscriptionTTL
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := s.cache.Set(writeCtx, cache.SubscriptionKey(sub.ID), sub, ttl); err != nil {
		return nil, err
	}
	if sub.CustomerID != "" && !sub.IsCanceled() {
		if err := s.cache.Set(writeCtx, cache.SubscriptionByCustomerKey(sub.CustomerID), sub.ID, cache.SubscriptionTTL); err != nil {
			return nil, err
		}
	}
	return sub, nil
}
