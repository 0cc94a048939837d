package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wbuist/mgu-api-integration/internal/domain"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuditRepository implements repository.AuditRepository using PostgreSQL.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a PostgreSQL-backed audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts one audit row. ID and CreatedAt are filled in when empty.
func (r *AuditRepository) Record(ctx context.Context, rec *domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_audit (
			id, basket_id, customer_id, status, outcome,
			payment_outcome, failure_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.BasketID,
		rec.CustomerID,
		rec.Status,
		rec.Outcome,
		rec.PaymentOutcome,
		rec.FailureReason,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

// ListByCustomer returns a customer's audit rows, newest first.
func (r *AuditRepository) ListByCustomer(ctx context.Context, customerID int) ([]domain.AuditRecord, error) {
	query := `
		SELECT id, basket_id, customer_id, status, outcome,
			   payment_outcome, failure_reason, created_at
		FROM workflow_audit
		WHERE customer_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.BasketID,
			&rec.CustomerID,
			&rec.Status,
			&rec.Outcome,
			&rec.PaymentOutcome,
			&rec.FailureReason,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return records, nil
}
