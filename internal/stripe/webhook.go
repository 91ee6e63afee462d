package stripe

import (
	"errors"

	"github.com/Dhoini/stripe-sync/internal/domain"

	"github.com/stripe/stripe-go/v78/webhook"
)

// VerifyWebhookSignature проверяет подпись Stripe-Signature (HMAC-SHA256, допуск по времени 5 минут)
// и возвращает конверт события. Любое несоответствие приводит к отказу.
func (sc *stripeClient) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (*domain.WebhookEvent, error) {
	if signatureHeader == "" {
		return nil, domain.NewSignatureError(domain.CodeSignatureMissing, "Stripe-Signature header is missing", nil)
	}
	if secret == "" {
		return nil, domain.NewSignatureError(domain.CodeSignatureInvalid, "webhook secret is not configured", nil)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		// версия API события не должна влиять на проверку подписи
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		sc.log.Warnw("Webhook signature verification failed", "error", err)
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, domain.NewSignatureError(domain.CodeSignatureInvalid, "webhook signature verification failed", err)
		default:
			return nil, domain.NewSignatureError(domain.CodePayloadInvalid, "webhook payload could not be parsed", err)
		}
	}

	return mapEvent(event), nil
}
