package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Dhoini/stripe-sync/internal/api/rest/middleware"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/Dhoini/stripe-sync/pkg/res"
	"github.com/gin-gonic/gin"
)

// SnapshotReader читает снимки сущностей из кэша
type SnapshotReader interface {
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	RefreshSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*domain.Subscription, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error)
	GetCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
}

// QueryHandler обработчик чтения подписок и клиентов
type QueryHandler struct {
	svc SnapshotReader
	log *logger.Logger
}

func NewQueryHandler(svc SnapshotReader, log *logger.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, log: log}
}

// GetSubscription GET /api/v1/subscriptions/:id[?refresh=true]
func (h *QueryHandler) GetSubscription(c *gin.Context) {
	id := c.Param("id")
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	var (
		sub *domain.Subscription
		err error
	)
	if refresh {
		sub, err = h.svc.RefreshSubscription(c.Request.Context(), id)
	} else {
		sub, err = h.svc.GetSubscription(c.Request.Context(), id)
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// GetCustomerSubscription GET /api/v1/customers/:id/subscription
func (h *QueryHandler) GetCustomerSubscription(c *gin.Context) {
	sub, err := h.svc.GetSubscriptionByCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// GetCustomer GET /api/v1/customers/:id
func (h *QueryHandler) GetCustomer(c *gin.Context) {
	customer, err := h.svc.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *QueryHandler) GetCheckoutSession(c *gin.Context) {
	session, err := h.svc.GetCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetCustomerByUserID GET /api/v1/customers/by-user/:user_id
func (h *QueryHandler) GetCustomerByUserID(c *gin.Context) {
	userID := c.Param("user_id")
	if subject, ok := middleware.AuthenticatedUserID(c); ok && subject != userID {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "FORBIDDEN",
			Message: "customers of other users are not accessible",
		}, http.StatusForbidden, h.log.Zap())
		c.Abort()
		return
	}

	customer, err := h.svc.GetCustomerByUserID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}
