package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
)

// DefaultSweepInterval период фоновой очистки истекших записей
const DefaultSweepInterval = 60 * time.Second

type memoryEntry struct {
	raw       string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore - кэш в памяти процесса.
// Истекшие записи удаляются при обращении и фоновой горутиной, которой владеет экземпляр.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry

	log           *logger.Logger
	now           func() time.Time
	sweepInterval time.Duration

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// MemoryOption настраивает MemoryStore
type MemoryOption func(*MemoryStore)

// WithSweepInterval задает период фоновой очистки. Значение <= 0 отключает очистку.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.sweepInterval = d
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore создает кэш в памяти и запускает фоновую очистку
func NewMemoryStore(log *logger.Logger, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items:         make(map[string]memoryEntry),
		log:           log,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sweepInterval > 0 {
		go s.sweepLoop()
	} else {
		close(s.doneCh)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if entry.expired(s.now()) {
		s.mu.Lock()
		// запись могла быть перезаписана между блокировками
		if current, still := s.items[key]; still && current.expired(s.now()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return false, nil
	}

	if err := decode(entry.raw, dest); err != nil {
		s.log.Warnw("Cached value does not match destination type", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		s.log.Errorw("Failed to encode value for cache", "key", key, "error", err)
		return err
	}

	entry := memoryEntry{raw: raw}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len возвращает число неистекших записей
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Sweep удаляет все истекшие записи и возвращает их количество
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// Close останавливает фоновую очистку. Повторный вызов безопасен.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	return nil
}

func (s *MemoryStore) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.log.Debugw("Expired cache entries removed", "count", removed)
			}
		case <-s.stopCh:
			return
		}
	}
}
