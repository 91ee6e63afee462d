package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/stripe-sync/internal/cache"
	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "sk_test_4eC39HqLyjWDarjtT1zdp7dc"
	testWebhookSecret = "whsec_testsecret123"
)

// fakeStripe - управляемая реализация stripe.Client.
// Проверка подписи делегируется настоящему клиенту, сетевые вызовы подменяются функциями.
type fakeStripe struct {
	verifier stripe.Client

	mu    sync.Mutex
	calls map[string]int
	last  map[string]any

	retrieveCheckoutSession func(ctx context.Context, id string) (*domain.CheckoutSession, error)
	retrieveSubscription    func(ctx context.Context, id string) (*domain.Subscription, error)
	retrieveCustomer        func(ctx context.Context, id string) (*domain.Customer, error)
	createCustomer          func(ctx context.Context, p domain.CustomerParams) (*domain.Customer, error)
	createCheckoutSession   func(ctx context.Context, p domain.CheckoutSessionParams) (*domain.CheckoutSession, error)
	createSubscription      func(ctx context.Context, p domain.SubscriptionParams) (*domain.Subscription, error)
	createPortalSession     func(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error)
}

func newFakeStripe(t *testing.T) *fakeStripe {
	t.Helper()
	verifier, err := stripe.NewStripeClient(testAPIKey, logger.NewNop())
	require.NoError(t, err)
	return &fakeStripe{verifier: verifier, calls: map[string]int{}, last: map[string]any{}}
}

func (f *fakeStripe) record(op string, arg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.last[op] = arg
}

func (f *fakeStripe) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStripe) Last(op string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[op]
}

func (f *fakeStripe) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

var errNotConfigured = errors.New("fake: not configured")

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, header, secret string) (*domain.WebhookEvent, error) {
	f.record("VerifyWebhookSignature", header)
	return f.verifier.VerifyWebhookSignature(payload, header, secret)
}

func (f *fakeStripe) RetrieveCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	f.record("RetrieveCheckoutSession", id)
	if f.retrieveCheckoutSession == nil {
		return nil, errNotConfigured
	}
	return f.retrieveCheckoutSession(ctx, id)
}

func (f *fakeStripe) RetrieveSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	f.record("RetrieveSubscription", id)
	if f.retrieveSubscription == nil {
		return nil, errNotConfigured
	}
	return f.retrieveSubscription(ctx, id)
}

func (f *fakeStripe) RetrieveCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	f.record("RetrieveCustomer", id)
	if f.retrieveCustomer == nil {
		return nil, errNotConfigured
	}
	return f.retrieveCustomer(ctx, id)
}

func (f *fakeStripe) CreateCustomer(ctx context.Context, p domain.CustomerParams) (*domain.Customer, error) {
	f.record("CreateCustomer", p)
	if f.createCustomer == nil {
		return nil, errNotConfigured
	}
	return f.createCustomer(ctx, p)
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, p domain.CheckoutSessionParams) (*domain.CheckoutSession, error) {
	f.record("CreateCheckoutSession", p)
	if f.createCheckoutSession == nil {
		return nil, errNotConfigured
	}
	return f.createCheckoutSession(ctx, p)
}

func (f *fakeStripe) CreateSubscription(ctx context.Context, p domain.SubscriptionParams) (*domain.Subscription, error) {
	f.record("CreateSubscription", p)
	if f.createSubscription == nil {
		return nil, errNotConfigured
	}
	return f.createSubscription(ctx, p)
}

func (f *fakeStripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error) {
	f.record("CreatePortalSession", customerID)
	if f.createPortalSession == nil {
		return nil, errNotConfigured
	}
	return f.createPortalSession(ctx, customerID, returnURL)
}

// recordingStore оборачивает MemoryStore, запоминает TTL записей и умеет имитировать сбои.
type recordingStore struct {
	*cache.MemoryStore

	mu      sync.Mutex
	ttls    map[string]time.Duration
	sets    int
	failSet string // префикс ключа, запись которого завершается ошибкой
	failGet bool
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	mem := cache.NewMemoryStore(logger.NewNop(), cache.WithSweepInterval(0))
	t.Cleanup(func() { _ = mem.Close() })
	return &recordingStore{MemoryStore: mem, ttls: map[string]time.Duration{}}
}

func (s *recordingStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return false, &domain.UpstreamOperationError{Service: "cache", Code: "CACHE_GET_FAILED", Operation: "get", Key: key, OriginalErr: errors.New("connection reset")}
	}
	return s.MemoryStore.Get(ctx, key, dest)
}

func (s *recordingStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	if s.failSet != "" && strings.HasPrefix(key, s.failSet) {
		s.mu.Unlock()
		return &domain.UpstreamOperationError{Service: "cache", Code: "CACHE_SET_FAILED", Operation: "set", Key: key, OriginalErr: errors.New("connection reset")}
	}
	s.ttls[key] = ttl
	s.sets++
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func (s *recordingStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.ttls[key]
	return ttl, ok
}

func (s *recordingStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(id, eventType, objectJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":1767225600,"data":{"object":%s}}`, id, eventType, objectJSON))
}

func testSubscription(id string, status domain.SubscriptionStatus) *domain.Subscription {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Subscription{
		ID:                 id,
		CustomerID:         "cus_1",
		Status:             status,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
		Items:              []domain.SubscriptionItem{{ID: "si_1", PriceID: "price_1", Quantity: 1}},
	}
}
