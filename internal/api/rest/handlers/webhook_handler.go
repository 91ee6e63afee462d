package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/Dhoini/stripe-sync/internal/service"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/Dhoini/stripe-sync/pkg/res"
	"github.com/gin-gonic/gin"
)

// MaxWebhookBodyBytes ограничение размера тела вебхука
const MaxWebhookBodyBytes = 65536

// WebhookProcessor обрабатывает проверенный запрос вебхука
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) (*service.WebhookResult, error)
}

// WebhookHandler обработчик для вебхуков Stripe
type WebhookHandler struct {
	processor WebhookProcessor
	log       *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(processor WebhookProcessor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		log:       log,
	}
}

// HandleStripeWebhook принимает событие Stripe.
// 401 - подпись отсутствует или неверна, 405 - не POST; в остальных случаях 200 {"received": true}.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "METHOD_NOT_ALLOWED",
			Message: "webhook endpoint only accepts POST",
		}, http.StatusMethodNotAllowed, h.log.Zap())
		c.Abort()
		return
	}

	// тело нужно целиком и без изменений: подпись считается по сырым байтам
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		h.log.Warnw("Failed to read webhook body", "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "INVALID_REQUEST_BODY",
			Message: "failed to read webhook body",
		}, http.StatusBadRequest, h.log.Zap())
		c.Abort()
		return
	}

	result, err := h.processor.Process(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if result != nil && result.FailedStage != "" {
		h.log.Debugw("Webhook acknowledged after failure", "eventID", result.EventID, "stage", result.FailedStage)
	}
	c.JSON(http.StatusOK, res.WebhookAck{Received: true})
}
