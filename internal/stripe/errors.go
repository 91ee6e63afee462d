package stripe

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
)

const (
	stripeService = "stripe"

	// CodeRequestFailed - код по умолчанию, если Stripe не вернул собственный
	CodeRequestFailed = "STRIPE_REQUEST_FAILED"
	// CodeInvalidEntity - Stripe вернул сущность, нарушающую инварианты
	CodeInvalidEntity = "STRIPE_INVALID_ENTITY"

	// stripe.ErrorType("...") - приведение строки к типу ошибки SDK
	errorTypeAPIConnection stripe.ErrorType = "api_connection_error"
)

// upstreamError логирует ошибку Stripe и оборачивает ее в domain.UpstreamOperationError.
func (sc *stripeClient) upstreamError(operation string, err error) error {
	logStripeError(sc.log, operation, err)

	upErr := domain.NewUpstreamOperationError(stripeService, CodeRequestFailed, operation, "stripe request failed", err)

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code != "" {
			upErr.Code = string(stripeErr.Code)
		}
		if stripeErr.Msg != "" {
			upErr.Message = stripeErr.Msg
		}
		upErr.StatusCode = stripeErr.HTTPStatusCode
	}
	return upErr
}

// IsRetryable сообщает, имеет ли смысл повторить операцию:
// rate limit, ошибки соединения и 5xx (кроме 501).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if stripeErr.Type == errorTypeAPIConnection {
			return true
		}
		return stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
