package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// The LRU bound caps memory if a flood of distinct event ids arrives;
// expiry is checked lazily on read.
const defaultMemoryCacheSize = 10_000

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryProvider is a process-local Provider backed by an LRU cache.
type MemoryProvider struct {
	cache *lru.Cache[string, entry]
}

func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := lru.New[string, entry](defaultMemoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c}, nil
}

func (m *MemoryProvider) Get(_ context.Context, key string) (string, error) {
	cached, ok := m.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	if cached.expired(time.Now()) {
		m.cache.Remove(key)
		return "", ErrNotFound
	}
	return cached.value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.cache.Add(key, entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (m *MemoryProvider) Delete(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
