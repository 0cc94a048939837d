package domain

import "time"

// Workflow audit statuses. PartiallyPaid records the deliberate in-between
// state where the basket confirmed but the chained payment failed; those
// rows feed reconciliation.
const (
	AuditConfirmed     = "confirmed"
	AuditPaid          = "paid"
	AuditPartiallyPaid = "partially_paid"
	AuditCancelled     = "cancelled"
)

// AuditRecord is one row in the workflow audit trail, written whenever a
// basket reaches a terminal or partial-failure state.
type AuditRecord struct {
	ID             string    `json:"id"`
	BasketID       int       `json:"basket_id"`
	CustomerID     int       `json:"customer_id"`
	Status         string    `json:"status"`
	Outcome        string    `json:"outcome"`
	PaymentOutcome string    `json:"payment_outcome,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
