package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CheckoutMetrics интерфейс для метрик checkout-потока
type CheckoutMetrics interface {
	IncCustomerResolved(source string)
	IncCheckoutSessionCreated(mode string)
	IncSubscriptionCreated()
}

type checkoutMetrics struct {
	customersResolved    *prometheus.CounterVec
	sessionsCreated      *prometheus.CounterVec
	subscriptionsCreated prometheus.Counter
}

// NewCheckoutMetrics создает метрики checkout-потока
func NewCheckoutMetrics(registry *prometheus.Registry) CheckoutMetrics {
	return &checkoutMetrics{
		customersResolved: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_customers_resolved_total",
				Help: "Customer resolutions by source (cache or created)",
			},
			[]string{"source"},
		),
		sessionsCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_sessions_created_total",
				Help: "The total number of created checkout sessions",
			},
			[]string{"mode"},
		),
		subscriptionsCreated: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "subscriptions_created_total",
				Help: "The total number of subscriptions created through the API",
			},
		),
	}
}

func (m *checkoutMetrics) IncCustomerResolved(source string) {
	m.customersResolved.WithLabelValues(source).Inc()
}

func (m *checkoutMetrics) IncCheckoutSessionCreated(mode string) {
	m.sessionsCreated.WithLabelValues(mode).Inc()
}

func (m *checkoutMetrics) IncSubscriptionCreated() {
	m.subscriptionsCreated.Inc()
}

type nopCheckoutMetrics struct{}

// NewNopCheckoutMetrics возвращает реализацию, которая ничего не записывает
func NewNopCheckoutMetrics() CheckoutMetrics {
	return nopCheckoutMetrics{}
}

func (nopCheckoutMetrics) IncCustomerResolved(string)       {}
func (nopCheckoutMetrics) IncCheckoutSessionCreated(string) {}
func (nopCheckoutMetrics) IncSubscriptionCreated()          {}
