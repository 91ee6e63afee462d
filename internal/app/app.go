package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Dhoini/stripe-sync/config"
	"github.com/Dhoini/stripe-sync/internal/api/rest"
	"github.com/Dhoini/stripe-sync/internal/api/rest/handlers"
	"github.com/Dhoini/stripe-sync/internal/api/rest/middleware"
	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/kafka"
	"github.com/Dhoini/stripe-sync/internal/kafka/producer"
	"github.com/Dhoini/stripe-sync/internal/metrics"
	"github.com/Dhoini/stripe-sync/internal/repository"
	"github.com/Dhoini/stripe-sync/internal/service"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config   *config.Config
	Server   *rest.Server
	Webhooks *service.WebhookService
	Checkout *service.CheckoutService
	Queries  *service.QueryService
	Registry *prometheus.Registry

	systemMetrics metrics.SystemMetrics
	closers       []io.Closer
	log           *logger.Logger
}

// Option настраивает App до сборки (пользовательские обработчики, stripe-mock и т.п.)
type Option func(*options)

type options struct {
	handlers      service.Handlers
	stripeOptions []stripe.Option
	extraSync     []any
}

// WithHandlers подключает пользовательские обработчики событий
func WithHandlers(h service.Handlers) Option {
	return func(o *options) { o.handlers = h }
}

// WithStripeOptions передает опции клиенту Stripe
func WithStripeOptions(opts ...stripe.Option) Option {
	return func(o *options) { o.stripeOptions = append(o.stripeOptions, opts...) }
}

// WithSyncAdapter добавляет адаптер синхронизации к настроенным в конфигурации
func WithSyncAdapter(adapter any) Option {
	return func(o *options) { o.extraSync = append(o.extraSync, adapter) }
}

// New собирает приложение. Неверная конфигурация приводит к ошибке до начала работы.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, log: log}
	// при ошибке закрываем уже открытые ресурсы
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stripeClient, err := stripe.NewStripeClient(cfg.Stripe.SecretKey, log, o.stripeOptions...)
	if err != nil {
		return nil, err
	}

	store, sizer, probes, err := a.buildCache(ctx)
	if err != nil {
		return nil, err
	}

	adapters, err := a.buildSyncAdapters(ctx, probes)
	if err != nil {
		return nil, err
	}
	adapters = append(adapters, o.extraSync...)
	syncer := service.NewMultiSync(adapters...)
	log.Infow("Sync adapters configured", "count", syncer.Len())

	a.Webhooks, err = service.NewWebhookService(service.WebhookConfig{
		Secret:            cfg.Stripe.WebhookSecret,
		RefetchMaxElapsed: cfg.Webhook.RefetchMaxElapsed,
		ProcessTimeout:    cfg.Webhook.ProcessTimeout,
	}, stripeClient, store, log,
		service.WithSyncAdapter(syncer),
		service.WithHandlers(o.handlers),
		service.WithWebhookMetrics(metrics.NewWebhookMetrics(a.Registry, log)),
	)
	if err != nil {
		return nil, err
	}

	a.Checkout, err = service.NewCheckoutService(stripeClient, store, log, metrics.NewCheckoutMetrics(a.Registry))
	if err != nil {
		return nil, err
	}
	a.Queries, err = service.NewQueryService(stripeClient, store, log)
	if err != nil {
		return nil, err
	}

	a.systemMetrics = metrics.NewSystemMetrics(a.Registry, sizer, log)

	var auth *middleware.JWTMiddleware
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)})
	} else {
		log.Warnw("AUTH_JWT_SECRET is not set, /api/v1 is not protected")
	}

	router := rest.SetupRouter(log, a.Registry, rest.Handlers{
		Webhook:  handlers.NewWebhookHandler(a.Webhooks, log),
		Checkout: handlers.NewCheckoutHandler(a.Checkout, log),
		Query:    handlers.NewQueryHandler(a.Queries, log),
		Health:   handlers.NewHealthHandler(probes),
	}, auth)
	a.Server = rest.NewServer(router, cfg.Server, log)

	return a, nil
}

func (a *App) buildCache(ctx context.Context) (cache.Store, metrics.CacheSizer, map[string]handlers.HealthProbe, error) {
	probes := map[string]handlers.HealthProbe{}

	switch a.Config.Cache.Driver {
	case config.CacheDriverRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		}, a.log)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, client)

		store, err := cache.NewRedisStore(client, a.log)
		if err != nil {
			return nil, nil, nil, err
		}
		probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return store, nil, probes, nil

	default:
		store := cache.NewMemoryStore(a.log, cache.WithSweepInterval(a.Config.Cache.SweepInterval))
		a.closers = append(a.closers, store)
		probes["cache"] = func(context.Context) error { return nil }
		return store, store, probes, nil
	}
}

func (a *App) buildSyncAdapters(ctx context.Context, probes map[string]handlers.HealthProbe) ([]any, error) {
	var adapters []any

	if a.Config.Database.Enabled {
		db, err := repository.NewPostgresDB(ctx, a.Config.Database.DSN, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)

		if err := repository.Migrate(ctx, db); err != nil {
			return nil, err
		}
		pg := repository.NewPostgresSync(db, a.log)
		probes["postgres"] = pg.Ping
		adapters = append(adapters, pg)
	}

	if a.Config.Kafka.Enabled {
		if a.Config.Kafka.EnsureTopic {
			if err := kafka.EnsureKafkaTopics(ctx, a.Config.Kafka.Brokers, a.log); err != nil {
				// брокер может создавать топики автоматически
				a.log.Warnw("Failed to ensure Kafka topics", "error", err)
			}
		}

		switch a.Config.Kafka.Client {
		case config.KafkaClientSarama:
			p, err := producer.NewSaramaPublisherFromConfig(kafka.NewConfig(a.Config.Kafka.Brokers), a.log)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, p)
			adapters = append(adapters, p)
		default:
			p, err := kafka.NewPublisher(a.Config.Kafka.Brokers, a.log)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, p)
			adapters = append(adapters, p)
		}
	}

	return adapters, nil
}

// Run запускает сбор системных метрик и HTTP сервер; блокируется до остановки сервера
func (a *App) Run() error {
	if a.Config.Metrics.SystemInterval > 0 {
		a.systemMetrics.StartRecording(a.Config.Metrics.SystemInterval)
	}
	return a.Server.Start()
}

// Shutdown останавливает сервер и освобождает ресурсы
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close закрывает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	if a.systemMetrics != nil {
		a.systemMetrics.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
