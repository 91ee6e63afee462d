package handlers

import (
	"context"
	"net/http"

	"github.com/Dhoini/stripe-sync/internal/api/rest/middleware"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/Dhoini/stripe-sync/pkg/req"
	"github.com/Dhoini/stripe-sync/pkg/res"
	"github.com/gin-gonic/gin"
)

// CheckoutCreator - операции customer-first
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, in domain.CheckoutRequest) (*domain.CheckoutSession, error)
	CreateSubscription(ctx context.Context, in domain.SubscriptionRequest) (*domain.Subscription, error)
	CreatePortalSession(ctx context.Context, in domain.PortalRequest) (*domain.PortalSession, error)
}

// CheckoutHandler обработчик checkout-сессий, подписок и портала
type CheckoutHandler struct {
	svc CheckoutCreator
	log *logger.Logger
}

func NewCheckoutHandler(svc CheckoutCreator, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, log: log}
}

// CreateCheckoutSession POST /api/v1/checkout/sessions
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	in, ok := decodeBody[domain.CheckoutRequest](c, h.log)
	if !ok || !h.bindUser(c, &in.UserID) {
		return
	}

	session, err := h.svc.CreateCheckoutSession(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// CreateSubscription POST /api/v1/subscriptions
func (h *CheckoutHandler) CreateSubscription(c *gin.Context) {
	in, ok := decodeBody[domain.SubscriptionRequest](c, h.log)
	if !ok || !h.bindUser(c, &in.UserID) {
		return
	}

	sub, err := h.svc.CreateSubscription(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// CreatePortalSession POST /api/v1/portal/sessions
func (h *CheckoutHandler) CreatePortalSession(c *gin.Context) {
	in, ok := decodeBody[domain.PortalRequest](c, h.log)
	if !ok || !h.bindUser(c, &in.UserID) {
		return
	}

	portal, err := h.svc.CreatePortalSession(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, portal)
}

// bindUser подставляет subject токена в пустой userId и запрещает действовать от имени другого пользователя
func (h *CheckoutHandler) bindUser(c *gin.Context, userID *string) bool {
	subject, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		return true
	}
	if *userID == "" {
		*userID = subject
		return true
	}
	if *userID != subject {
		h.log.Warnw("userId does not match token subject", "userID", *userID, "subject", subject)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "FORBIDDEN",
			Message: "userId does not match the authenticated user",
		}, http.StatusForbidden, h.log.Zap())
		c.Abort()
		return false
	}
	return true
}

// decodeBody читает JSON тело; проверка полей выполняется сервисом
func decodeBody[T any](c *gin.Context, log *logger.Logger) (T, bool) {
	body, err := req.Decode[T](c.Request.Body)
	if err != nil {
		log.Warnw("Failed to decode request body", "path", c.Request.URL.Path, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "INVALID_REQUEST_BODY",
			Message: "request body is not valid JSON",
		}, http.StatusBadRequest, log.Zap())
		c.Abort()
		return body, false
	}
	return body, true
}
