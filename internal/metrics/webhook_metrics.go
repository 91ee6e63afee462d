package metrics

import (
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookMetrics интерфейс для метрик обработки вебхуков
type WebhookMetrics interface {
	IncEventReceived(kind string)
	IncEventRejected(code string)
	IncStageFailure(stage string)
	IncCallbackFailure(callback string)
	ObserveProcessingDuration(kind string, d time.Duration)
}

type webhookMetrics struct {
	log              *logger.Logger
	eventsReceived   *prometheus.CounterVec
	eventsRejected   *prometheus.CounterVec
	stageFailures    *prometheus.CounterVec
	callbackFailures *prometheus.CounterVec
	processing       *prometheus.HistogramVec
}

// NewWebhookMetrics создает метрики вебхуков в указанном реестре
func NewWebhookMetrics(registry *prometheus.Registry, log *logger.Logger) WebhookMetrics {
	eventsReceived := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "The total number of verified webhook events by normalized kind",
		},
		[]string{"kind"},
	)

	eventsRejected := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_rejected_total",
			Help: "The total number of webhook requests rejected at signature verification",
		},
		[]string{"code"},
	)

	stageFailures := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_stage_failures_total",
			Help: "The total number of refetch/cache-write failures by pipeline stage",
		},
		[]string{"stage"},
	)

	callbackFailures := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_callback_failures_total",
			Help: "The total number of failed or panicked sync adapter and user handler callbacks",
		},
		[]string{"callback"},
	)

	processing := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Time spent processing a verified webhook event",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		},
		[]string{"kind"},
	)

	return &webhookMetrics{
		log:              log,
		eventsReceived:   eventsReceived,
		eventsRejected:   eventsRejected,
		stageFailures:    stageFailures,
		callbackFailures: callbackFailures,
		processing:       processing,
	}
}

func (m *webhookMetrics) IncEventReceived(kind string) {
	m.eventsReceived.WithLabelValues(kind).Inc()
}

func (m *webhookMetrics) IncEventRejected(code string) {
	m.eventsRejected.WithLabelValues(code).Inc()
}

func (m *webhookMetrics) IncStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *webhookMetrics) IncCallbackFailure(callback string) {
	m.callbackFailures.WithLabelValues(callback).Inc()
}

func (m *webhookMetrics) ObserveProcessingDuration(kind string, d time.Duration) {
	m.processing.WithLabelValues(kind).Observe(d.Seconds())
}

type nopWebhookMetrics struct{}

// NewNopWebhookMetrics возвращает реализацию, которая ничего не записывает
func NewNopWebhookMetrics() WebhookMetrics {
	return nopWebhookMetrics{}
}

func (nopWebhookMetrics) IncEventReceived(string)                         {}
func (nopWebhookMetrics) IncEventRejected(string)                         {}
func (nopWebhookMetrics) IncStageFailure(string)                          {}
func (nopWebhookMetrics) IncCallbackFailure(string)                       {}
func (nopWebhookMetrics) ObserveProcessingDuration(string, time.Duration) {}
