package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wbuist/mgu-api-integration/internal/domain"
	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

const paymentKeyPrefix = "mgu:payment:"

// PendingPaymentRepository implements repository.PendingPaymentStore using
// Redis. Entries expire after the configured TTL so abandoned flows don't
// leave bank details lying around.
type PendingPaymentRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingPaymentRepository creates a Redis-backed pending payment store.
func NewPendingPaymentRepository(client *redis.Client, ttl time.Duration) *PendingPaymentRepository {
	return &PendingPaymentRepository{
		client: client,
		ttl:    ttl,
	}
}

func paymentKey(customerID int) string {
	return paymentKeyPrefix + strconv.Itoa(customerID)
}

// Save persists a pending payment keyed by customer ID, replacing any
// previous mandate for the same customer.
func (r *PendingPaymentRepository) Save(ctx context.Context, payment *domain.PendingPayment) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("marshal pending payment: %w", err)
	}

	if err := r.client.Set(ctx, paymentKey(payment.CustomerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set pending payment: %w", err)
	}

	return nil
}

// Consume atomically retrieves and deletes the pending payment. GETDEL
// guarantees at-most-once consumption even with concurrent confirms.
func (r *PendingPaymentRepository) Consume(ctx context.Context, customerID int) (*domain.PendingPayment, error) {
	data, err := r.client.GetDel(ctx, paymentKey(customerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("pending payment", strconv.Itoa(customerID))
		}
		return nil, fmt.Errorf("redis getdel pending payment: %w", err)
	}

	var payment domain.PendingPayment
	if err := json.Unmarshal(data, &payment); err != nil {
		return nil, fmt.Errorf("unmarshal pending payment: %w", err)
	}

	return &payment, nil
}

// Peek returns the pending payment without consuming it.
func (r *PendingPaymentRepository) Peek(ctx context.Context, customerID int) (*domain.PendingPayment, error) {
	data, err := r.client.Get(ctx, paymentKey(customerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("pending payment", strconv.Itoa(customerID))
		}
		return nil, fmt.Errorf("redis get pending payment: %w", err)
	}

	var payment domain.PendingPayment
	if err := json.Unmarshal(data, &payment); err != nil {
		return nil, fmt.Errorf("unmarshal pending payment: %w", err)
	}

	return &payment, nil
}
