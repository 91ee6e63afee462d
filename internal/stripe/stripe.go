package stripe

import (
	"context"
	"regexp"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var (
	secretKeyPattern     = regexp.MustCompile(`^(sk|rk)_(test|live)_[0-9A-Za-z]+$`)
	webhookSecretPattern = regexp.MustCompile(`^whsec_[0-9A-Za-z]+$`)
)

// Client определяет методы для взаимодействия со Stripe API.
// Все сущности возвращаются в доменном виде, временные метки уже переведены в time.Time.
type Client interface {
	// VerifyWebhookSignature проверяет подпись вебхука и разбирает конверт события.
	VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (*domain.WebhookEvent, error)

	RetrieveCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	RetrieveCustomer(ctx context.Context, id string) (*domain.Customer, error)

	// CreateCustomer создает нового клиента в Stripe.
	CreateCustomer(ctx context.Context, params domain.CustomerParams) (*domain.Customer, error)

	// CreateCheckoutSession создает checkout-сессию для существующего клиента.
	CreateCheckoutSession(ctx context.Context, params domain.CheckoutSessionParams) (*domain.CheckoutSession, error)

	// CreateSubscription создает подписку в Stripe для клиента.
	CreateSubscription(ctx context.Context, params domain.SubscriptionParams) (*domain.Subscription, error)

	// CreatePortalSession создает сессию биллинг-портала.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API // Клиент Stripe SDK, свой для каждого экземпляра
	log    *logger.Logger
}

type options struct {
	backends *stripe.Backends
}

// Option настраивает клиента Stripe
type Option func(*options)

// WithBackendURL направляет запросы SDK на указанный адрес (stripe-mock, httptest).
func WithBackendURL(url string) Option {
	return func(o *options) {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(url),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		o.backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
}

// ValidateSecretKey проверяет формат секретного или ограниченного ключа API.
func ValidateSecretKey(apiKey string) error {
	if !secretKeyPattern.MatchString(apiKey) {
		return domain.NewConfigurationError("STRIPE_SECRET_KEY", "must look like sk_test_..., sk_live_..., rk_test_... or rk_live_...")
	}
	return nil
}

// ValidateWebhookSecret проверяет формат секрета подписи вебхуков.
func ValidateWebhookSecret(secret string) error {
	if !webhookSecretPattern.MatchString(secret) {
		return domain.NewConfigurationError("STRIPE_WEBHOOK_SECRET", "must look like whsec_...")
	}
	return nil
}

// NewStripeClient создает новый экземпляр клиента Stripe. Ключ проверяется сразу.
func NewStripeClient(apiKey string, log *logger.Logger, opts ...Option) (Client, error) {
	if err := ValidateSecretKey(apiKey); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	sc := &client.API{}
	sc.Init(apiKey, o.backends)
	return &stripeClient{
		client: sc,
		log:    log,
	}, nil
}

func (sc *stripeClient) RetrieveCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := sc.client.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, sc.upstreamError("RetrieveCheckoutSession", err)
	}

	sc.log.Debugw("Stripe checkout session retrieved", "sessionID", s.ID, "status", string(s.Status))
	return mapCheckoutSession(s), nil
}

func (sc *stripeClient) RetrieveSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := sc.client.Subscriptions.Get(id, params)
	if err != nil {
		return nil, sc.upstreamError("RetrieveSubscription", err)
	}

	sub, err := mapSubscription(s)
	if err != nil {
		sc.log.Errorw("Stripe returned an invalid subscription", "subscriptionID", id, "error", err)
		return nil, domain.NewUpstreamOperationError(stripeService, CodeInvalidEntity, "RetrieveSubscription", "invalid subscription snapshot", err)
	}

	sc.log.Debugw("Stripe subscription retrieved", "subscriptionID", sub.ID, "status", string(sub.Status))
	return sub, nil
}

func (sc *stripeClient) RetrieveCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := sc.client.Customers.Get(id, params)
	if err != nil {
		return nil, sc.upstreamError("RetrieveCustomer", err)
	}
	if c.Deleted {
		sc.log.Warnw("Stripe customer is deleted", "stripeCustomerID", id)
		return nil, domain.NewNotFoundError("customer", id)
	}

	return mapCustomer(c), nil
}

// CreateCustomer создает нового клиента в Stripe.
func (sc *stripeClient) CreateCustomer(ctx context.Context, in domain.CustomerParams) (*domain.Customer, error) {
	if in.Email == "" {
		var errs domain.ValidationErrors
		errs.Add("email", "is required")
		return nil, errs
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(in.Email),
		Metadata: in.Metadata,
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		return nil, sc.upstreamError("CreateCustomer", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", in.Metadata[domain.MetadataUserIDKey])
	return mapCustomer(cus), nil
}

func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, in domain.CheckoutSessionParams) (*domain.CheckoutSession, error) {
	mode := in.Mode
	if mode == "" {
		mode = domain.CheckoutModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(in.CustomerID),
		Mode:     stripe.String(string(mode)),
		Metadata: in.Metadata,
	}
	if in.SuccessURL != "" {
		params.SuccessURL = stripe.String(in.SuccessURL)
	}
	if in.CancelURL != "" {
		params.CancelURL = stripe.String(in.CancelURL)
	}
	if in.PriceID != "" {
		quantity := in.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		}
	}
	if mode == domain.CheckoutModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: in.SubscriptionMetadata,
		}
		if in.TrialPeriodDays > 0 {
			params.SubscriptionData.TrialPeriodDays = stripe.Int64(in.TrialPeriodDays)
		}
	}
	params.Context = ctx

	s, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, sc.upstreamError("CreateCheckoutSession", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", s.ID, "stripeCustomerID", in.CustomerID, "mode", string(mode))
	return mapCheckoutSession(s), nil
}

// CreateSubscription создает подписку в Stripe для указанного клиента и цены.
func (sc *stripeClient) CreateSubscription(ctx context.Context, in domain.SubscriptionParams) (*domain.Subscription, error) {
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		Metadata:        in.Metadata,
	}
	if in.TrialPeriodDays > 0 {
		params.TrialPeriodDays = stripe.Int64(in.TrialPeriodDays)
	}
	params.Context = ctx

	s, err := sc.client.Subscriptions.New(params)
	if err != nil {
		return nil, sc.upstreamError("CreateSubscription", err)
	}

	sub, err := mapSubscription(s)
	if err != nil {
		sc.log.Errorw("Stripe returned an invalid subscription", "subscriptionID", s.ID, "error", err)
		return nil, domain.NewUpstreamOperationError(stripeService, CodeInvalidEntity, "CreateSubscription", "invalid subscription snapshot", err)
	}

	sc.log.Infow("Stripe subscription created", "stripeSubscriptionID", sub.ID, "status", string(sub.Status))
	return sub, nil
}

func (sc *stripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := sc.client.BillingPortalSessions.New(params)
	if err != nil {
		return nil, sc.upstreamError("CreatePortalSession", err)
	}

	return &domain.PortalSession{URL: s.URL}, nil
}
