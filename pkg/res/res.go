package res

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error   string `json:"error"`             // Машиночитаемый код ошибки
	Message string `json:"message"`           // Сообщение для пользователя
	Details any    `json:"details,omitempty"` // Детали ошибки (например, ошибки валидации)
}

// WebhookAck - тело ответа на принятый webhook.
type WebhookAck struct {
	Received bool `json:"received"`
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse отправляет JSON ответ ошибки и пишет его в лог.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *zap.Logger) {
	JsonResponse(w, errResponse, status)
	if log != nil {
		log.Warn("Error response", zap.Int("status", status), zap.String("code", errResponse.Error), zap.String("message", errResponse.Message))
	}
}
