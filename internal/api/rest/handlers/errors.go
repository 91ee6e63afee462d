package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/Dhoini/stripe-sync/pkg/res"
	"github.com/gin-gonic/gin"
)

// writeError сопоставляет ошибку домена со статусом HTTP и пишет тело ошибки
func writeError(c *gin.Context, log *logger.Logger, err error) {
	var (
		validationErrs domain.ValidationErrors
		sigErr         *domain.SignatureError
		notFoundErr    *domain.NotFoundError
		upstreamErr    *domain.UpstreamOperationError
		configErr      *domain.ConfigurationError
	)

	status := http.StatusInternalServerError
	body := res.ErrorResponse{Error: "INTERNAL_ERROR", Message: "internal server error"}

	switch {
	case errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		body = res.ErrorResponse{Error: "VALIDATION_ERROR", Message: validationErrs.Error(), Details: validationErrs}
	case errors.As(err, &sigErr):
		status = http.StatusUnauthorized
		body = res.ErrorResponse{Error: sigErr.Code, Message: sigErr.Message}
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
		body = res.ErrorResponse{Error: "NOT_FOUND", Message: notFoundErr.Error()}
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		body = res.ErrorResponse{Error: upstreamErr.Code, Message: upstreamErr.Message}
	case errors.As(err, &configErr):
		body = res.ErrorResponse{Error: "CONFIGURATION_ERROR", Message: configErr.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body = res.ErrorResponse{Error: "TIMEOUT", Message: "request timed out"}
	}

	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	res.JsonErrorResponse(c.Writer, body, status, log.Zap())
	c.Abort()
}
