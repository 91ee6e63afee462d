package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/metrics"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// PipelineStage стадия обработки вебхука
type PipelineStage string

const (
	StageReceived          PipelineStage = "received"
	StageSignatureVerified PipelineStage = "signature_verified"
	StageClassified        PipelineStage = "classified"
	StageRefetched         PipelineStage = "refetched"
	StageCacheUpdated      PipelineStage = "cache_updated"
	StageSynced            PipelineStage = "synced"
	StageHandlersCalled    PipelineStage = "handlers_called"
	StageAcknowledged      PipelineStage = "acknowledged"
	StageRejected          PipelineStage = "rejected"

	// стадии, на которых может произойти сбой после проверки подписи
	stageRefetch    = "refetch"
	stageCacheWrite = "cache_write"
)

// Отправитель ждет ответ ограниченное время; вся обработка до ответа укладывается в processTimeout,
// включая два последовательных перезапроса для checkout.session.completed.
const (
	defaultRefetchMaxElapsed = 3 * time.Second
	defaultProcessTimeout    = 8 * time.Second
)

// WebhookConfig настройки пайплайна вебхуков
type WebhookConfig struct {
	Secret            string        // whsec_...
	RefetchMaxElapsed time.Duration // общий лимит повторов при перезапросе сущности
	ProcessTimeout    time.Duration // лимит на обработку одного события
}

// WebhookResult - итог обработки одного запроса
type WebhookResult struct {
	EventID     string
	EventType   string
	Kind        domain.EventKind
	Stage       PipelineStage
	FailedStage string // refetch или cache_write, если обработка прервалась
	Err         error
}

// stageError помечает ошибку стадией, на которой она произошла
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// WebhookService - пайплайн обработки вебхуков Stripe:
// проверка подписи, классификация, перезапрос сущности, запись в кэш, синхронизация, обработчики.
// Содержимое события не используется: из него берется только ID сущности.
type WebhookService struct {
	stripe   stripe.Client
	cache    cache.Store
	secret   string
	sync     any
	handlers Handlers
	metrics  metrics.WebhookMetrics
	log      *logger.Logger

	processTimeout time.Duration
	newBackOff     func() backoff.BackOff
}

// WebhookOption настраивает WebhookService
type WebhookOption func(*WebhookService)

// WithSyncAdapter подключает адаптер синхронизации (CustomerSyncer, SubscriptionSyncer, CancellationSyncer)
func WithSyncAdapter(adapter any) WebhookOption {
	return func(s *WebhookService) {
		s.sync = adapter
	}
}

// WithHandlers подключает пользовательские обработчики
func WithHandlers(h Handlers) WebhookOption {
	return func(s *WebhookService) {
		s.handlers = h
	}
}

func WithWebhookMetrics(m metrics.WebhookMetrics) WebhookOption {
	return func(s *WebhookService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRetryBackOff подменяет политику повторов перезапроса
func WithRetryBackOff(newBackOff func() backoff.BackOff) WebhookOption {
	return func(s *WebhookService) {
		s.newBackOff = newBackOff
	}
}

// NewWebhookService создает пайплайн. Секрет проверяется сразу.
func NewWebhookService(cfg WebhookConfig, client stripe.Client, store cache.Store, log *logger.Logger, opts ...WebhookOption) (*WebhookService, error) {
	if err := stripe.ValidateWebhookSecret(cfg.Secret); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.NewConfigurationError("stripe", "client is required")
	}
	if store == nil {
		return nil, domain.NewConfigurationError("cache", "store is required")
	}

	maxElapsed := cfg.RefetchMaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaultRefetchMaxElapsed
	}
	processTimeout := cfg.ProcessTimeout
	if processTimeout <= 0 {
		processTimeout = defaultProcessTimeout
	}

	s := &WebhookService{
		stripe:         client,
		cache:          store,
		secret:         cfg.Secret,
		metrics:        metrics.NewNopWebhookMetrics(),
		log:            log,
		processTimeout: processTimeout,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			bo.MaxElapsedTime = maxElapsed
			return bo
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process обрабатывает один запрос вебхука.
// Ошибка возвращается только при отсутствующей или неверной подписи (*domain.SignatureError);
// все сбои после проверки подписи логируются, а событие подтверждается.
func (s *WebhookService) Process(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	result := &WebhookResult{Stage: StageReceived}

	if signatureHeader == "" {
		return s.reject(result, domain.NewSignatureError(domain.CodeSignatureMissing, "Stripe-Signature header is missing", nil))
	}

	event, err := s.stripe.VerifyWebhookSignature(payload, signatureHeader, s.secret)
	if err != nil {
		var sigErr *domain.SignatureError
		if !errors.As(err, &sigErr) {
			sigErr = domain.NewSignatureError(domain.CodeSignatureInvalid, "webhook signature verification failed", err)
		}
		return s.reject(result, sigErr)
	}
	result.Stage = StageSignatureVerified
	result.EventID = event.ID
	result.EventType = event.Type

	result.Kind = event.Kind()
	result.Stage = StageClassified

	log := s.log.With("eventID", event.ID, "eventType", event.Type)
	log.Infow("Received verified Stripe event", "kind", string(result.Kind))
	s.metrics.IncEventReceived(string(result.Kind))

	if result.Kind == domain.EventUnhandled {
		log.Infow("Unhandled Stripe event type, acknowledging")
		result.Stage = StageAcknowledged
		return result, nil
	}

	// обработка не зависит от разрыва соединения с отправителем
	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.processTimeout)
	defer cancel()

	start := time.Now()
	switch result.Kind {
	case domain.EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(procCtx, event, result, log)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		err = s.handleSubscriptionChanged(procCtx, event, result, log)
	case domain.EventSubscriptionCanceled:
		err = s.handleSubscriptionCanceled(procCtx, event, result, log)
	}
	s.metrics.ObserveProcessingDuration(string(result.Kind), time.Since(start))

	if err != nil {
		var se *stageError
		if errors.As(err, &se) {
			result.FailedStage = se.stage
		}
		result.Err = err
		s.metrics.IncStageFailure(result.FailedStage)
		log.Errorw("Webhook event processing failed, acknowledging anyway",
			"stage", result.FailedStage,
			"lastStage", string(result.Stage),
			"error", err,
		)
	}

	result.Stage = StageAcknowledged
	return result, nil
}

func (s *WebhookService) reject(result *WebhookResult, sigErr *domain.SignatureError) (*WebhookResult, error) {
	result.Stage = StageRejected
	result.Err = sigErr
	s.metrics.IncEventRejected(sigErr.Code)
	s.log.Warnw("Webhook rejected", "code", sigErr.Code, "error", sigErr)
	return result, sigErr
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *domain.WebhookEvent, result *WebhookResult, log *logger.Logger) error {
	sessionID := event.ObjectID()
	if sessionID == "" {
		return &stageError{stage: stageRefetch, err: errors.New("event carries no checkout session id")}
	}

	var session *domain.CheckoutSession
	err := s.withRetry(ctx, "RetrieveCheckoutSession", func() error {
		var err error
		session, err = s.stripe.RetrieveCheckoutSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return &stageError{stage: stageRefetch, err: err}
	}
	result.Stage = StageRefetched

	if err := s.cache.Set(ctx, cache.CheckoutKey(session.ID), session, cache.CheckoutTTL); err != nil {
		return &stageError{stage: stageCacheWrite, err: err}
	}

	var customer *domain.Customer
	if session.CustomerID != "" {
		err = s.withRetry(ctx, "RetrieveCustomer", func() error {
			var err error
			customer, err = s.stripe.RetrieveCustomer(ctx, session.CustomerID)
			return err
		})
		if err != nil {
			return &stageError{stage: stageRefetch, err: err}
		}
		if err := s.cacheCustomer(ctx, customer); err != nil {
			return &stageError{stage: stageCacheWrite, err: err}
		}
	}
	result.Stage = StageCacheUpdated
	log.Debugw("Checkout session cached", "sessionID", session.ID, "stripeCustomerID", session.CustomerID)

	if customer != nil {
		if syncer, ok := s.sync.(CustomerSyncer); ok {
			c := *customer
			s.invoke(ctx, log, "OnCustomerCreated", func(ctx context.Context) error { return syncer.OnCustomerCreated(ctx, c) })
		}
	}
	result.Stage = StageSynced

	if h := s.handlers.OnCheckoutComplete; h != nil {
		sess := *session
		s.invoke(ctx, log, "OnCheckoutComplete", func(ctx context.Context) error { return h(ctx, sess) })
	}
	result.Stage = StageHandlersCalled
	return nil
}

func (s *WebhookService) handleSubscriptionChanged(ctx context.Context, event *domain.WebhookEvent, result *WebhookResult, log *logger.Logger) error {
	sub, err := s.refetchSubscription(ctx, event)
	if err != nil {
		return err
	}
	result.Stage = StageRefetched

	if err := s.cache.Set(ctx, cache.SubscriptionKey(sub.ID), sub, cache.SubscriptionTTL); err != nil {
		return &stageError{stage: stageCacheWrite, err: err}
	}
	if sub.CustomerID != "" {
		if err := s.cache.Set(ctx, cache.SubscriptionByCustomerKey(sub.CustomerID), sub.ID, cache.SubscriptionTTL); err != nil {
			return &stageError{stage: stageCacheWrite, err: err}
		}
	}
	result.Stage = StageCacheUpdated
	log.Debugw("Subscription cached", "subscriptionID", sub.ID, "status", string(sub.Status))

	snapshot := *sub
	if syncer, ok := s.sync.(SubscriptionSyncer); ok {
		s.invoke(ctx, log, "OnSubscriptionUpdated", func(ctx context.Context) error { return syncer.OnSubscriptionUpdated(ctx, snapshot) })
	}
	result.Stage = StageSynced

	handlerName, handler := "OnSubscriptionUpdated", s.handlers.OnSubscriptionUpdated
	if result.Kind == domain.EventSubscriptionCreated {
		handlerName, handler = "OnSubscriptionCreated", s.handlers.OnSubscriptionCreated
	}
	if handler != nil {
		s.invoke(ctx, log, handlerName, func(ctx context.Context) error { return handler(ctx, snapshot) })
	}
	result.Stage = StageHandlersCalled
	return nil
}

func (s *WebhookService) handleSubscriptionCanceled(ctx context.Context, event *domain.WebhookEvent, result *WebhookResult, log *logger.Logger) error {
	sub, err := s.refetchSubscription(ctx, event)
	if err != nil {
		return err
	}
	result.Stage = StageRefetched

	if err := s.cache.Set(ctx, cache.SubscriptionKey(sub.ID), sub, cache.CanceledSubscriptionTTL); err != nil {
		return &stageError{stage: stageCacheWrite, err: err}
	}
	result.Stage = StageCacheUpdated
	log.Infow("Canceled subscription cached", "subscriptionID", sub.ID, "status", string(sub.Status))

	snapshot := *sub
	if syncer, ok := s.sync.(CancellationSyncer); ok {
		s.invoke(ctx, log, "OnSubscriptionCanceled", func(ctx context.Context) error { return syncer.OnSubscriptionCanceled(ctx, snapshot) })
	}
	result.Stage = StageSynced

	if h := s.handlers.OnSubscriptionCanceled; h != nil {
		s.invoke(ctx, log, "OnSubscriptionCanceled", func(ctx context.Context) error { return h(ctx, snapshot) })
	}
	result.Stage = StageHandlersCalled
	return nil
}

func (s *WebhookService) refetchSubscription(ctx context.Context, event *domain.WebhookEvent) (*domain.Subscription, error) {
	subscriptionID := event.ObjectID()
	if subscriptionID == "" {
		return nil, &stageError{stage: stageRefetch, err: errors.New("event carries no subscription id")}
	}

	var sub *domain.Subscription
	err := s.withRetry(ctx, "RetrieveSubscription", func() error {
		var err error
		sub, err = s.stripe.RetrieveSubscription(ctx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, &stageError{stage: stageRefetch, err: err}
	}
	return sub, nil
}

func (s *WebhookService) cacheCustomer(ctx context.Context, customer *domain.Customer) error {
	if err := s.cache.Set(ctx, cache.CustomerKey(customer.ID), customer, cache.CustomerTTL); err != nil {
		return err
	}
	if customer.Email != "" {
		if err := s.cache.Set(ctx, cache.CustomerByEmailKey(customer.Email), customer.ID, cache.CustomerTTL); err != nil {
			return err
		}
	}
	if userID := customer.UserID(); userID != "" {
		if err := s.cache.Set(ctx, cache.CustomerByUserIDKey(userID), customer.ID, cache.CustomerTTL); err != nil {
			return err
		}
	}
	return nil
}

// withRetry повторяет операцию Stripe, пока ошибка временная, в пределах политики и контекста
func (s *WebhookService) withRetry(ctx context.Context, operation string, fn func() error) error {
	bo := backoff.WithContext(s.newBackOff(), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if stripe.IsRetryable(err) {
			s.log.Warnw("Retryable Stripe error occurred, retrying", "operation", operation, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// invoke вызывает колбэк синхронизации или пользовательский обработчик; ошибки и паники не выходят наружу
func (s *WebhookService) invoke(ctx context.Context, log *logger.Logger, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncCallbackFailure(name)
			log.Errorw("Webhook callback panicked", "callback", name, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		s.metrics.IncCallbackFailure(name)
		log.Errorw("Webhook callback failed", "callback", name, "error", err)
	}
}
