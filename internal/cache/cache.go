// Package cache - key/value кэш с TTL на уровне ключа.
// Кэш никогда не является источником истины: при промахе данные перезапрашиваются у Stripe.
package cache

import (
	"context"
	"time"
)

// Store хранилище кэша.
// Get возвращает false при отсутствии или истечении ключа и не считает промах ошибкой.
// Set с ttl <= 0 сохраняет запись бессрочно; перезапись заменяет прежний TTL.
// Delete идемпотентен.
type Store interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetAs читает значение ключа как T
func GetAs[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	found, err := s.Get(ctx, key, &out)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return out, true, nil
}
