package middleware

import (
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader заголовок с ID запроса
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// LoggerMiddleware создает middleware для логирования запросов.
// Каждому запросу назначается ID (входящий X-Request-ID или новый uuid).
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", statusCode,
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"requestID", requestID,
		}

		switch {
		case statusCode >= 500:
			log.Errorw("HTTP request", fields...)
		case statusCode >= 400:
			log.Warnw("HTTP request", fields...)
		default:
			log.Infow("HTTP request", fields...)
		}
	}
}

// RequestID возвращает ID текущего запроса
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
