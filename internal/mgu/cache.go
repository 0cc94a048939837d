package mgu

import (
	"context"
	"net/http"
	"time"
)

// Cache is the token persistence the manager writes through to. It lets the
// access token survive process restarts and be shared across replicas; the
// Redis implementation lives in internal/repository/redis.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Doer executes an HTTP request. Satisfied by both the pooled client and its
// circuit-breaker wrapper.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
