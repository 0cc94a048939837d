package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "mgu:session:"

// SessionRepository implements repository.SessionStore using Redis. Each
// issued token is an opaque UUID; possession of an unexpired token is what
// authorizes flow calls.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository creates a Redis-backed session store.
func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
	}
}

// Issue creates a new session token with the configured TTL.
func (r *SessionRepository) Issue(ctx context.Context) (string, error) {
	token := uuid.New().String()
	if err := r.client.Set(ctx, sessionKeyPrefix+token, "1", r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set session: %w", err)
	}
	return token, nil
}

// Validate reports whether the token is known, sliding its TTL on success
// so active sessions stay alive.
func (r *SessionRepository) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	ok, err := r.client.Expire(ctx, sessionKeyPrefix+token, r.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis expire session: %w", err)
	}
	return ok, nil
}
