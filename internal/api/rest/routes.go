package rest

import (
	"github.com/Dhoini/stripe-sync/internal/api/rest/handlers"
	"github.com/Dhoini/stripe-sync/internal/api/rest/middleware"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers набор обработчиков HTTP API
type Handlers struct {
	Webhook  *handlers.WebhookHandler
	Checkout *handlers.CheckoutHandler
	Query    *handlers.QueryHandler
	Health   *handlers.HealthHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware.
// auth может быть nil: тогда /api/v1 открыт.
func SetupRouter(log *logger.Logger, registry *prometheus.Registry, h Handlers, auth *middleware.JWTMiddleware) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	r.GET("/health", h.Health.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Вебхуки на корневом уровне роутера; метод проверяет обработчик (405)
	r.Any("/webhooks/stripe", h.Webhook.HandleStripeWebhook)

	v1 := r.Group("/api/v1")
	if auth != nil {
		v1.Use(auth.RequireAuth())
	}
	{
		v1.POST("/checkout/sessions", h.Checkout.CreateCheckoutSession)
		v1.GET("/checkout/sessions/:id", h.Query.GetCheckoutSession)
		v1.POST("/portal/sessions", h.Checkout.CreatePortalSession)

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.POST("", h.Checkout.CreateSubscription)
			subscriptions.GET("/:id", h.Query.GetSubscription)
		}

		customers := v1.Group("/customers")
		{
			customers.GET("/by-user/:user_id", h.Query.GetCustomerByUserID)
			customers.GET("/:id", h.Query.GetCustomer)
			customers.GET("/:id/subscription", h.Query.GetCustomerSubscription)
		}
	}
	return r
}
