package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrWebhookValidationFailed не удалось проверить подпись вебхука
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrMisconfigured сервис сконфигурирован неверно
	ErrMisconfigured = errors.New("misconfigured")

	// ErrUpstream ошибка внешней системы (Stripe, кэш)
	ErrUpstream = errors.New("upstream operation failed")
)

// Коды ошибок подписи вебхука.
const (
	CodeSignatureMissing = "WEBHOOK_SIGNATURE_MISSING"
	CodeSignatureInvalid = "WEBHOOK_SIGNATURE_INVALID"
	CodePayloadInvalid   = "WEBHOOK_PAYLOAD_INVALID"
)

// ConfigurationError - неверный или отсутствующий секрет/параметр. Возвращается при создании компонентов.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error реализует интерфейс error
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Is позволяет сравнивать с ErrMisconfigured
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrMisconfigured
}

// NewConfigurationError создает новую ошибку конфигурации
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

// Error реализует интерфейс error
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}

	return fmt.Sprintf("validation failed: %d errors", len(e))
}

// Is позволяет сравнивать с ErrInvalidInput
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Fields возвращает список полей с ошибками
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// GetByField возвращает сообщение об ошибке для указанного поля
func (e ValidationErrors) GetByField(field string) string {
	for _, err := range e {
		if err.Field == field {
			return err.Message
		}
	}
	return ""
}

// SignatureError - подпись вебхука отсутствует или не прошла проверку.
type SignatureError struct {
	Code    string
	Message string
	Err     error
}

// Error реализует интерфейс error
func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signature error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("signature error [%s]: %s", e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *SignatureError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrWebhookValidationFailed
func (e *SignatureError) Is(target error) bool {
	return target == ErrWebhookValidationFailed
}

// NewSignatureError создает новую ошибку подписи
func NewSignatureError(code, message string, err error) *SignatureError {
	return &SignatureError{Code: code, Message: message, Err: err}
}

// UpstreamOperationError представляет ошибку внешнего сервиса (Stripe или хранилища кэша)
type UpstreamOperationError struct {
	Service     string
	Code        string
	Operation   string
	Key         string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *UpstreamOperationError) Error() string {
	target := e.Operation
	if e.Key != "" {
		target = fmt.Sprintf("%s %s", e.Operation, e.Key)
	}
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s %s failed [%s]: %s: %v", e.Service, target, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s %s failed [%s]: %s", e.Service, target, e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *UpstreamOperationError) Unwrap() error {
	return e.OriginalErr
}

// Is позволяет сравнивать с ErrUpstream
func (e *UpstreamOperationError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamOperationError создает новую ошибку внешнего сервиса
func NewUpstreamOperationError(service, code, operation, message string, err error) *UpstreamOperationError {
	return &UpstreamOperationError{
		Service:     service,
		Code:        code,
		Operation:   operation,
		Message:     message,
		OriginalErr: err,
	}
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}
