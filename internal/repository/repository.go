package repository

import (
	"context"

	"github.com/wbuist/mgu-api-integration/internal/domain"
)

// PendingPaymentStore holds direct-debit mandates stashed ahead of basket
// confirmation, keyed by customer ID.
type PendingPaymentStore interface {
	// Save stores (or replaces) the pending payment for a customer.
	Save(ctx context.Context, payment *domain.PendingPayment) error

	// Consume atomically retrieves and deletes the pending payment for a
	// customer. A second Consume for the same customer reports not found.
	Consume(ctx context.Context, customerID int) (*domain.PendingPayment, error)

	// Peek returns the pending payment without consuming it.
	Peek(ctx context.Context, customerID int) (*domain.PendingPayment, error)
}

// SessionStore issues and checks the per-session anti-forgery tokens the
// front-end boundary requires on every flow call.
type SessionStore interface {
	// Issue creates a new session token with the configured TTL.
	Issue(ctx context.Context) (string, error)

	// Validate reports whether the token is known and unexpired, refreshing
	// its TTL on success.
	Validate(ctx context.Context, token string) (bool, error)
}

// AuditRepository persists workflow outcomes, including the partial-failure
// state where a basket confirmed but the chained payment did not complete.
type AuditRepository interface {
	// Record inserts one audit row.
	Record(ctx context.Context, rec *domain.AuditRecord) error

	// ListByCustomer returns a customer's audit rows, newest first.
	ListByCustomer(ctx context.Context, customerID int) ([]domain.AuditRecord, error)
}
