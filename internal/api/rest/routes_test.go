package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhoini/stripe-sync/internal/api/rest/handlers"
	"github.com/Dhoini/stripe-sync/internal/api/rest/middleware"
	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/service"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "sk_test_4eC39HqLyjWDarjtT1zdp7dc"
	testWebhookSecret = "whsec_routesecret"
	subscriptionJSON  = `{
		"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "past_due",
		"current_period_start": 1767225600, "current_period_end": 1769904000, "created": 1767225600,
		"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_1"}, "quantity": 1}]}
	}`
)

// stripeBackend имитирует API Stripe и считает обращения
type stripeBackend struct {
	requests atomic.Int32
	failing  atomic.Bool
}

func (b *stripeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if b.failing.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "unavailable"}}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/subscriptions/sub_1":
		_, _ = w.Write([]byte(subscriptionJSON))
	case r.Method == http.MethodGet && r.URL.Path == "/v1/customers/cus_new":
		_, _ = w.Write([]byte(`{"id": "cus_new", "object": "customer", "email": "a@example.com", "metadata": {"userId": "user_1"}, "created": 1767225600}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/customers":
		_ = r.ParseForm()
		_, _ = fmt.Fprintf(w, `{"id": "cus_new", "object": "customer", "email": %q, "metadata": {"userId": %q}, "created": 1767225600}`,
			r.PostForm.Get("email"), r.PostForm.Get("metadata[userId]"))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
		_ = r.ParseForm()
		_, _ = fmt.Fprintf(w, `{"id": "cs_1", "object": "checkout.session", "url": "https://checkout.stripe.com/c/pay/cs_1", "status": "open", "customer": %q, "created": 1767225600}`,
			r.PostForm.Get("customer"))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such resource"}}`))
	}
}

type testEnv struct {
	router  *gin.Engine
	backend *stripeBackend
	store   *cache.MemoryStore
}

func newTestEnv(t *testing.T, auth *middleware.JWTMiddleware) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	backend := &stripeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := stripe.NewStripeClient(testAPIKey, log, stripe.WithBackendURL(srv.URL))
	require.NoError(t, err)

	store := cache.NewMemoryStore(log, cache.WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	webhookSvc, err := service.NewWebhookService(service.WebhookConfig{Secret: testWebhookSecret, RefetchMaxElapsed: 50 * time.Millisecond}, client, store, log)
	require.NoError(t, err)
	checkoutSvc, err := service.NewCheckoutService(client, store, log, nil)
	require.NoError(t, err)
	querySvc, err := service.NewQueryService(client, store, log)
	require.NoError(t, err)

	h := Handlers{
		Webhook:  handlers.NewWebhookHandler(webhookSvc, log),
		Checkout: handlers.NewCheckoutHandler(checkoutSvc, log),
		Query:    handlers.NewQueryHandler(querySvc, log),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthProbe{
			"cache": func(context.Context) error { return nil },
		}),
	}
	return &testEnv{
		router:  SetupRouter(log, prometheus.NewRegistry(), h, auth),
		backend: backend,
		store:   store,
	}
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sign(payload string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

const updatedEvent = `{"id":"evt_1","object":"event","type":"customer.subscription.updated","created":1767225600,"data":{"object":{"id":"sub_1","object":"subscription","status":"active"}}}`

func TestWebhook_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/webhooks/stripe", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(t, w))
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestWebhook_SignatureFailures(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.CodeSignatureMissing, errorCode(t, w))

	w = env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, map[string]string{"Stripe-Signature": "t=1,v1=00"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.CodeSignatureInvalid, errorCode(t, w))

	assert.Zero(t, env.backend.requests.Load())
	assert.Zero(t, env.store.Len())
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	body := strings.Repeat("x", handlers.MaxWebhookBodyBytes+1)
	w := env.do(http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": sign(body)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST_BODY", errorCode(t, w))
}

func TestWebhook_SyncsAndServesFromCache(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, map[string]string{"Stripe-Signature": sign(updatedEvent)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/subscriptions/sub_1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, domain.SubscriptionStatusPastDue, sub.Status)
}

func TestWebhook_UpstreamOutageIsAcknowledged(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.failing.Store(true)

	w := env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, map[string]string{"Stripe-Signature": sign(updatedEvent)})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Zero(t, env.store.Len())
}

func TestSubscriptions_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/subscriptions/sub_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))

	w = env.do(http.MethodGet, "/api/v1/subscriptions/sub_1?refresh=true", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.backend.failing.Store(true)
	w = env.do(http.MethodGet, "/api/v1/subscriptions/sub_1?refresh=true", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCheckout_CustomerFirst(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"userId":"user_1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	assert.Contains(t, w.Body.String(), `"field":"email"`)
	assert.Zero(t, env.backend.requests.Load())

	w = env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"userId":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST_BODY", errorCode(t, w))

	body := `{"userId":"user_1","email":"a@example.com","priceId":"price_1","successUrl":"https://example.com/ok","cancelUrl":"https://example.com/cancel"}`
	w = env.do(http.MethodPost, "/api/v1/checkout/sessions", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session domain.CheckoutSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "cus_new", session.CustomerID)

	w = env.do(http.MethodGet, "/api/v1/customers/by-user/user_1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var customer domain.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customer))
	assert.Equal(t, "cus_new", customer.ID)

	w = env.do(http.MethodGet, "/api/v1/checkout/sessions/cs_1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"customerId":"cus_new"`)

	w = env.do(http.MethodGet, "/api/v1/customers/cus_new", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"email":"a@example.com"`)
}

func TestQueries_ServeCachedSnapshots(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/customers/cus_1/subscription", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/v1/checkout/sessions/cs_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/v1/customers/cus_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, map[string]string{"Stripe-Signature": sign(updatedEvent)})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/customers/cus_1/subscription", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "sub_1", sub.ID)
}

func TestPortal_UnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/portal/sessions", `{"userId":"user_x","returnUrl":"https://example.com"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_JWTGuard(t *testing.T) {
	secret := []byte("jwt-secret")
	env := newTestEnv(t, middleware.NewJWTMiddleware(logger.NewNop(), &middleware.DefaultTokenValidator{Secret: secret}))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(secret)
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	w := env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"email":"a@example.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"userId":"user_2","email":"a@example.com"}`, bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/customers/by-user/user_2", "", bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"email":"a@example.com"}`, bearer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	id, found, err := cache.GetAs[string](context.Background(), env.store, "customer:userId:user_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cus_new", id)

	// вебхуки не проходят через JWT
	w = env.do(http.MethodPost, "/webhooks/stripe", updatedEvent, map[string]string{"Stripe-Signature": sign(updatedEvent)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_Degraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", handlers.NewHealthHandler(map[string]handlers.HealthProbe{
		"cache": func(context.Context) error { return errors.New("connection refused") },
	}).HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
