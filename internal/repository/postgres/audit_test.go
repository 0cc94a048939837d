package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbuist/mgu-api-integration/internal/domain"
)

func newAuditFixture(t *testing.T) (*AuditRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAuditRepository(mock), mock
}

func auditColumns() []string {
	return []string{
		"id", "basket_id", "customer_id", "status", "outcome",
		"payment_outcome", "failure_reason", "created_at",
	}
}

func TestAuditRecord_Insert(t *testing.T) {
	repo, mock := newAuditFixture(t)

	rec := &domain.AuditRecord{
		ID:             "aud-1",
		BasketID:       42,
		CustomerID:     100,
		Status:         domain.AuditPartiallyPaid,
		Outcome:        domain.OutcomePaymentRequired,
		PaymentOutcome: "",
		FailureReason:  "payment declined: insufficient funds",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO workflow_audit").
		WithArgs(rec.ID, rec.BasketID, rec.CustomerID, rec.Status, rec.Outcome,
			rec.PaymentOutcome, rec.FailureReason, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecord_FillsIDAndTimestamp(t *testing.T) {
	repo, mock := newAuditFixture(t)

	rec := &domain.AuditRecord{
		BasketID:   42,
		CustomerID: 100,
		Status:     domain.AuditConfirmed,
		Outcome:    domain.OutcomeConfirmed,
	}

	mock.ExpectExec("INSERT INTO workflow_audit").
		WithArgs(pgxmock.AnyArg(), rec.BasketID, rec.CustomerID, rec.Status, rec.Outcome,
			"", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecord_InsertError(t *testing.T) {
	repo, mock := newAuditFixture(t)

	mock.ExpectExec("INSERT INTO workflow_audit").
		WithArgs(pgxmock.AnyArg(), 42, 100, domain.AuditPaid, domain.OutcomeConfirmed,
			"Success", "", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Record(context.Background(), &domain.AuditRecord{
		BasketID:       42,
		CustomerID:     100,
		Status:         domain.AuditPaid,
		Outcome:        domain.OutcomeConfirmed,
		PaymentOutcome: "Success",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit record")
}

func TestListByCustomer(t *testing.T) {
	repo, mock := newAuditFixture(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(auditColumns()).
		AddRow("aud-2", 43, 100, domain.AuditPaid, domain.OutcomeConfirmed, "Success", "", now).
		AddRow("aud-1", 42, 100, domain.AuditCancelled, "", "", "", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM workflow_audit").
		WithArgs(100).
		WillReturnRows(rows)

	records, err := repo.ListByCustomer(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "aud-2", records[0].ID)
	assert.Equal(t, domain.AuditPaid, records[0].Status)
	assert.Equal(t, 42, records[1].BasketID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCustomer_Empty(t *testing.T) {
	repo, mock := newAuditFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM workflow_audit").
		WithArgs(999).
		WillReturnRows(pgxmock.NewRows(auditColumns()))

	records, err := repo.ListByCustomer(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, records)
}
