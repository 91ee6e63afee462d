package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, logger.NewNop())
	require.NoError(t, err)
	return store, mr
}

func TestRedisStore_WireFormat(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "customer:userId:u1", "cus_1", NoExpiry))
	require.NoError(t, store.Set(ctx, "checkout:cs_1", domain.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1", Status: domain.CheckoutSessionStatusOpen}, CheckoutTTL))
	require.NoError(t, store.Set(ctx, "counter", 7, NoExpiry))

	raw, err := mr.Get("customer:userId:u1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", raw, "strings are stored verbatim")

	raw, err = mr.Get("checkout:cs_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cs_1","url":"https://checkout.stripe.com/c/cs_1","status":"open"}`, raw)

	raw, err = mr.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "7", raw)

	session, found, err := GetAs[domain.CheckoutSession](ctx, store, "checkout:cs_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cs_1", session.ID)

	id, found, err := GetAs[string](ctx, store, "customer:userId:u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cus_1", id)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "short", "v", time.Second))
	require.NoError(t, store.Set(ctx, "zero", "v", 0))
	require.NoError(t, store.Set(ctx, "negative", "v", -1))

	assert.Equal(t, time.Second, mr.TTL("short"))
	assert.Equal(t, time.Duration(0), mr.TTL("zero"))
	assert.Equal(t, time.Duration(0), mr.TTL("negative"))

	mr.FastForward(1100 * time.Millisecond)

	found, err := store.Get(ctx, "short", nil)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = store.Get(ctx, "zero", nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedisStore_OverwriteReplacesTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", "a", time.Minute))
	require.NoError(t, store.Set(ctx, "k", "b", NoExpiry))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))

	require.NoError(t, store.Set(ctx, "k", "c", CanceledSubscriptionTTL))
	assert.Equal(t, 24*time.Hour, mr.TTL("k"))
}

func TestRedisStore_MalformedContentIsTolerated(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set("subscription:sub_1", "{not json"))

	var sub domain.Subscription
	found, err := store.Get(ctx, "subscription:sub_1", &sub)
	assert.NoError(t, err)
	assert.False(t, found)

	var raw any
	found, err = store.Get(ctx, "subscription:sub_1", &raw)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{not json", raw)
}

func TestRedisStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", "v", NoExpiry))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestRedisStore_FailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	mr.SetError("ERR injected failure")

	_, err := store.Get(ctx, "subscription:sub_1", nil)
	var upErr *domain.UpstreamOperationError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, CodeCacheGetFailed, upErr.Code)
	assert.Equal(t, "get", upErr.Operation)
	assert.Equal(t, "subscription:sub_1", upErr.Key)
	assert.NotNil(t, errors.Unwrap(err))

	err = store.Set(ctx, "subscription:sub_1", "v", time.Minute)
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, CodeCacheSetFailed, upErr.Code)

	err = store.Delete(ctx, "subscription:sub_1")
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, CodeCacheDeleteFailed, upErr.Code)
}

func TestNewRedisStore_Construction(t *testing.T) {
	_, err := NewRedisStore(nil, logger.NewNop())
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = NewRedisStoreFromFactory(func() (redis.Cmdable, error) {
		return nil, errors.New("no redis module")
	}, logger.NewNop())
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	mr := miniredis.RunT(t)
	calls := 0
	store, err := NewRedisStoreFromFactory(func() (redis.Cmdable, error) {
		calls++
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
	}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.NoError(t, store.Set(context.Background(), "k", "v", NoExpiry))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr}, logger.NewNop())
	assert.Error(t, err)
}
