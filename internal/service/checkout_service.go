package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/metrics"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/Dhoini/stripe-sync/pkg/req"
	"golang.org/x/sync/singleflight"
)

// resolveTimeout ограничивает общее для параллельных вызовов создание клиента
const resolveTimeout = 30 * time.Second

// CheckoutService создает checkout-сессии, подписки и сессии портала.
// Клиент Stripe всегда определяется по внешнему ID пользователя (customer-first):
// один пользователь - один клиент Stripe.
type CheckoutService struct {
	stripe  stripe.Client
	cache   cache.Store
	metrics metrics.CheckoutMetrics
	log     *logger.Logger

	resolving singleflight.Group
}

// NewCheckoutService создает сервис. m может быть nil.
func NewCheckoutService(client stripe.Client, store cache.Store, log *logger.Logger, m metrics.CheckoutMetrics) (*CheckoutService, error) {
	if client == nil {
		return nil, domain.NewConfigurationError("stripe", "client is required")
	}
	if store == nil {
		return nil, domain.NewConfigurationError("cache", "store is required")
	}
	if m == nil {
		m = metrics.NewNopCheckoutMetrics()
	}
	return &CheckoutService{stripe: client, cache: store, metrics: m, log: log}, nil
}

// CreateCheckoutSession находит или создает клиента по userID и создает для него checkout-сессию.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, in domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if err := req.IsValid(in); err != nil {
		return nil, err
	}

	customerID, err := s.ResolveCustomer(ctx, in.UserID, in.Email)
	if err != nil {
		return nil, err
	}

	mode := in.Mode
	if mode == "" {
		mode = domain.CheckoutModeSubscription
	}

	params := domain.CheckoutSessionParams{
		CustomerID:      customerID,
		PriceID:         in.PriceID,
		Quantity:        in.Quantity,
		Mode:            mode,
		SuccessURL:      in.SuccessURL,
		CancelURL:       in.CancelURL,
		TrialPeriodDays: in.TrialPeriodDays,
		Metadata:        withUserID(in.Metadata, in.UserID),
	}
	if mode == domain.CheckoutModeSubscription {
		params.SubscriptionMetadata = withUserID(nil, in.UserID)
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}
	s.metrics.IncCheckoutSessionCreated(string(mode))

	if err := s.cache.Set(ctx, cache.CheckoutKey(session.ID), session, cache.CheckoutTTL); err != nil {
		s.log.Errorw("Failed to cache checkout session", "sessionID", session.ID, "stripeCustomerID", customerID, "error", err)
		return nil, err
	}

	s.log.Infow("Checkout session created", "sessionID", session.ID, "userID", in.UserID, "stripeCustomerID", customerID)
	return session, nil
}

// CreateSubscription создает подписку напрямую (без checkout) для клиента пользователя.
func (s *CheckoutService) CreateSubscription(ctx context.Context, in domain.SubscriptionRequest) (*domain.Subscription, error) {
	if err := req.IsValid(in); err != nil {
		return nil, err
	}

	customerID, err := s.ResolveCustomer(ctx, in.UserID, in.Email)
	if err != nil {
		return nil, err
	}

	sub, err := s.stripe.CreateSubscription(ctx, domain.SubscriptionParams{
		CustomerID:      customerID,
		PriceID:         in.PriceID,
		Quantity:        in.Quantity,
		TrialPeriodDays: in.TrialPeriodDays,
		Metadata:        withUserID(in.Metadata, in.UserID),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncSubscriptionCreated()

	if err := s.cache.Set(ctx, cache.SubscriptionKey(sub.ID), sub, cache.SubscriptionTTL); err != nil {
		s.log.Errorw("Failed to cache subscription", "subscriptionID", sub.ID, "error", err)
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.SubscriptionByCustomerKey(customerID), sub.ID, cache.SubscriptionTTL); err != nil {
		s.log.Errorw("Failed to cache subscription index", "subscriptionID", sub.ID, "stripeCustomerID", customerID, "error", err)
		return nil, err
	}

	s.log.Infow("Subscription created", "subscriptionID", sub.ID, "userID", in.UserID, "status", string(sub.Status))
	return sub, nil
}

// CreatePortalSession создает сессию биллинг-портала для уже известного клиента пользователя.
func (s *CheckoutService) CreatePortalSession(ctx context.Context, in domain.PortalRequest) (*domain.PortalSession, error) {
	if err := req.IsValid(in); err != nil {
		return nil, err
	}

	customerID, found, err := cache.GetAs[string](ctx, s.cache, cache.CustomerByUserIDKey(in.UserID))
	if err != nil {
		return nil, err
	}
	if !found || customerID == "" {
		return nil, domain.NewNotFoundError("customer", in.UserID)
	}

	return s.stripe.CreatePortalSession(ctx, customerID, in.ReturnURL)
}

// ResolveCustomer возвращает ID клиента Stripe для пользователя, создавая клиента при первом обращении.
// Параллельные вызовы для одного userID разделяют одно создание.
// Отмена ctx прерывает ожидание только этого вызова: общее создание завершается
// и сохраняет связь пользователя с клиентом.
func (s *CheckoutService) ResolveCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" || email == "" {
		var errs domain.ValidationErrors
		if userID == "" {
			errs.Add("userId", "is required")
		}
		if email == "" {
			errs.Add("email", "is required")
		}
		return "", errs
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := s.resolving.DoChan(userID, func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return s.resolveCustomer(workCtx, userID, email)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *CheckoutService) resolveCustomer(ctx context.Context, userID, email string) (string, error) {
	customerID, found, err := cache.GetAs[string](ctx, s.cache, cache.CustomerByUserIDKey(userID))
	if err != nil {
		return "", fmt.Errorf("failed to look up customer for user: %w", err)
	}
	if found && customerID != "" {
		s.metrics.IncCustomerResolved("cache")
		s.log.Debugw("Stripe customer resolved from cache", "userID", userID, "stripeCustomerID", customerID)
		return customerID, nil
	}

	customer, err := s.stripe.CreateCustomer(ctx, domain.CustomerParams{
		Email:    email,
		Metadata: map[string]string{domain.MetadataUserIDKey: userID},
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncCustomerResolved("created")

	// без сохраненной связи следующий вызов создаст второго клиента, поэтому ошибка возвращается;
	// ID созданного клиента попадает в лог для ручного восстановления связи
	if err := s.cache.Set(ctx, cache.CustomerByUserIDKey(userID), customer.ID, cache.NoExpiry); err != nil {
		s.log.Errorw("Failed to cache user to customer mapping", "userID", userID, "stripeCustomerID", customer.ID, "error", err)
		return "", err
	}
	if err := s.cache.Set(ctx, cache.CustomerByEmailKey(email), customer.ID, cache.NoExpiry); err != nil {
		s.log.Errorw("Failed to cache email to customer mapping", "userID", userID, "stripeCustomerID", customer.ID, "error", err)
		return "", err
	}

	return customer.ID, nil
}

func withUserID(metadata map[string]string, userID string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[domain.MetadataUserIDKey] = userID
	return out
}
