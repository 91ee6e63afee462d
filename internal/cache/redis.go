package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	cacheService = "cache"

	CodeCacheGetFailed    = "CACHE_GET_FAILED"
	CodeCacheSetFailed    = "CACHE_SET_FAILED"
	CodeCacheDeleteFailed = "CACHE_DELETE_FAILED"
)

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient создает клиент Redis и проверяет соединение
func NewRedisClient(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", cfg.Addr)
	return client, nil
}

// RedisStore реализует Store поверх Redis.
// Клиент передается снаружи; RedisStore им не владеет и не закрывает его.
type RedisStore struct {
	client redis.Cmdable
	log    *logger.Logger
}

// NewRedisStore создает хранилище поверх готового клиента
func NewRedisStore(client redis.Cmdable, log *logger.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, domain.NewConfigurationError("redis", "client is required")
	}
	return &RedisStore{client: client, log: log}, nil
}

// NewRedisStoreFromFactory создает хранилище, получив клиента от фабрики
func NewRedisStoreFromFactory(factory func() (redis.Cmdable, error), log *logger.Logger) (*RedisStore, error) {
	if factory == nil {
		return nil, domain.NewConfigurationError("redis", "client factory is required")
	}
	client, err := factory()
	if err != nil {
		log.Errorw("Redis client factory failed", "error", err)
		return nil, domain.NewConfigurationError("redis", fmt.Sprintf("client factory failed: %v", err))
	}
	return NewRedisStore(client, log)
}

func (r *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.log.Errorw("Error getting value from Redis", "key", key, "error", err)
		return false, r.wrap(CodeCacheGetFailed, "get", key, "failed to read cache entry", err)
	}

	if err := decode(raw, dest); err != nil {
		r.log.Warnw("Cached value does not match destination type", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		r.log.Errorw("Failed to encode value for cache", "key", key, "error", err)
		return r.wrap(CodeCacheSetFailed, "set", key, "failed to encode cache entry", err)
	}

	// 0 означает запись без срока жизни и сбрасывает прежний TTL
	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.log.Errorw("Failed to write value to Redis", "key", key, "error", err)
		return r.wrap(CodeCacheSetFailed, "set", key, "failed to write cache entry", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete value from Redis", "key", key, "error", err)
		return r.wrap(CodeCacheDeleteFailed, "delete", key, "failed to delete cache entry", err)
	}
	return nil
}

func (r *RedisStore) wrap(code, op, key, msg string, err error) error {
	upErr := domain.NewUpstreamOperationError(cacheService, code, op, msg, err)
	upErr.Key = key
	return upErr
}
