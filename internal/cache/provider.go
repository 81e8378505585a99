// Package cache provides short-lived caching for webhook idempotency.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Provider stores processed webhook event ids so redeliveries can be
// acknowledged without re-entering the payment pipeline. Entries expire;
// the database transition guard is the durable check.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

// NewProvider selects a backend by name. An empty name means in-memory,
// which is fine for a single instance but not shared across replicas.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// WebhookKey namespaces a gateway event id, e.g. WebhookKey("stripe", evt.ID).
func WebhookKey(source, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, eventID)
}
