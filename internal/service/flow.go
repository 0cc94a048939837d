package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wbuist/mgu-api-integration/internal/domain"
	"github.com/wbuist/mgu-api-integration/internal/event"
	"github.com/wbuist/mgu-api-integration/internal/repository"
	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
	pkgvalidator "github.com/wbuist/mgu-api-integration/pkg/validator"
)

// Gateway is the surface of the MGU API client the orchestrator drives.
type Gateway interface {
	CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error)
	FindCustomer(ctx context.Context, customerID int) (*domain.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindCustomerByMobile(ctx context.Context, mobile string) (*domain.Customer, error)
	FindCustomerByExternalID(ctx context.Context, externalID string) (*domain.Customer, error)

	OpenBasket(ctx context.Context, customerID int, period domain.PremiumPeriod, lossCover domain.LossCoverFlag) (*domain.Basket, error)
	GetBasket(ctx context.Context, basketID int) (*domain.Basket, error)
	InsureGadget(ctx context.Context, basketID int, gadget domain.GadgetDetails) (*domain.Policy, error)
	InsureGadgets(ctx context.Context, basketID int, gadgets []domain.GadgetDetails) (*domain.Basket, error)
	AddLossCover(ctx context.Context, basketID int) error
	RemoveLossCover(ctx context.Context, basketID int) error
	RemovePolicy(ctx context.Context, basketID, policyID int) error
	CancelBasket(ctx context.Context, basketID int) error
	Confirm(ctx context.Context, basketID int) (*domain.ConfirmResult, error)
	PayByDirectDebit(ctx context.Context, basketID int, dd domain.DirectDebit) (*domain.PaymentResult, error)

	Manufacturers(ctx context.Context) ([]domain.Manufacturer, error)
	ManufacturersByGadget(ctx context.Context, gadgetType domain.GadgetType) ([]domain.Manufacturer, error)
	Models(ctx context.Context, manufacturerID int, gadgetType domain.GadgetType) ([]domain.Model, error)
	GetQuote(ctx context.Context, productID int, memoryInstalled string, purchasePrice float64) (*domain.Quote, error)
}

// ConfirmOutcome is what the confirm step hands back to the caller. Payment
// is set when a pending payment was chained; PaymentFailure carries the
// reason when the basket confirmed but the chained payment did not, the
// deliberate partial state the audit trail records.
type ConfirmOutcome struct {
	Result         *domain.ConfirmResult `json:"result"`
	Payment        *domain.PaymentResult `json:"payment,omitempty"`
	PaymentFailure string                `json:"paymentFailure,omitempty"`
}

// FlowService sequences the quote workflow against the remote API: catalogue
// lookups, customer management, and the basket state machine through to
// confirmation and payment. The remote API owns basket and customer state;
// this service holds no durable state of its own beyond the pending-payment
// stash and the audit trail.
type FlowService struct {
	gateway  Gateway
	payments repository.PendingPaymentStore
	audit    repository.AuditRepository
	events   event.Publisher
	logger   *slog.Logger
}

// NewFlowService creates the orchestrator.
func NewFlowService(gateway Gateway, payments repository.PendingPaymentStore, audit repository.AuditRepository, events event.Publisher, logger *slog.Logger) *FlowService {
	return &FlowService{
		gateway:  gateway,
		payments: payments,
		audit:    audit,
		events:   events,
		logger:   logger,
	}
}

// Manufacturers lists manufacturers, filtered by gadget type when given.
func (s *FlowService) Manufacturers(ctx context.Context, gadgetType domain.GadgetType) ([]domain.Manufacturer, error) {
	if gadgetType == "" || gadgetType == domain.GadgetNone {
		return s.gateway.Manufacturers(ctx)
	}
	return s.gateway.ManufacturersByGadget(ctx, gadgetType)
}

// Models lists device models for a manufacturer and gadget type.
func (s *FlowService) Models(ctx context.Context, manufacturerID int, gadgetType domain.GadgetType) ([]domain.Model, error) {
	return s.gateway.Models(ctx, manufacturerID, gadgetType)
}

// Quote fetches a standalone price indication for one device.
func (s *FlowService) Quote(ctx context.Context, productID int, memoryInstalled string, purchasePrice float64) (*domain.Quote, error) {
	return s.gateway.GetQuote(ctx, productID, memoryInstalled, purchasePrice)
}

// CreateCustomer creates the policy holder record.
func (s *FlowService) CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	return s.gateway.CreateCustomer(ctx, customer)
}

// UpdateCustomer updates the policy holder record.
func (s *FlowService) UpdateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	return s.gateway.UpdateCustomer(ctx, customer)
}

// FindCustomer fetches a customer by MGU ID.
func (s *FlowService) FindCustomer(ctx context.Context, customerID int) (*domain.Customer, error) {
	return s.gateway.FindCustomer(ctx, customerID)
}

// LookupCustomer finds a customer by email, mobile, or external ID,
// whichever is given, in that order.
func (s *FlowService) LookupCustomer(ctx context.Context, email, mobile, externalID string) (*domain.Customer, error) {
	switch {
	case email != "":
		return s.gateway.FindCustomerByEmail(ctx, email)
	case mobile != "":
		return s.gateway.FindCustomerByMobile(ctx, mobile)
	case externalID != "":
		return s.gateway.FindCustomerByExternalID(ctx, externalID)
	default:
		return nil, apperrors.Validation("email", "is required")
	}
}

// OpenBasket opens a new basket for a customer.
func (s *FlowService) OpenBasket(ctx context.Context, customerID int, period domain.PremiumPeriod, lossCover domain.LossCoverFlag) (*domain.Basket, error) {
	basket, err := s.gateway.OpenBasket(ctx, customerID, period, lossCover)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "basket opened",
		slog.Int("basket_id", basket.ID),
		slog.Int("customer_id", customerID),
		slog.String("premium_period", string(period)),
	)

	return basket, nil
}

// GetBasket fetches the authoritative basket state.
func (s *FlowService) GetBasket(ctx context.Context, basketID int) (*domain.Basket, error) {
	return s.gateway.GetBasket(ctx, basketID)
}

// AddGadget adds one gadget and returns the re-fetched basket. The re-fetch
// is mandatory: premium and discount totals are recomputed server-side.
func (s *FlowService) AddGadget(ctx context.Context, basketID int, gadget domain.GadgetDetails) (*domain.Basket, error) {
	if _, err := s.gateway.InsureGadget(ctx, basketID, gadget); err != nil {
		return nil, err
	}
	return s.gateway.GetBasket(ctx, basketID)
}

// AddGadgets adds several gadgets in one call and returns the re-fetched
// basket.
func (s *FlowService) AddGadgets(ctx context.Context, basketID int, gadgets []domain.GadgetDetails) (*domain.Basket, error) {
	if _, err := s.gateway.InsureGadgets(ctx, basketID, gadgets); err != nil {
		return nil, err
	}
	return s.gateway.GetBasket(ctx, basketID)
}

// SetLossCover toggles policy-wide loss cover and returns the re-fetched
// basket. The underlying calls are idempotent.
func (s *FlowService) SetLossCover(ctx context.Context, basketID int, enable bool) (*domain.Basket, error) {
	var err error
	if enable {
		err = s.gateway.AddLossCover(ctx, basketID)
	} else {
		err = s.gateway.RemoveLossCover(ctx, basketID)
	}
	if err != nil {
		return nil, err
	}
	return s.gateway.GetBasket(ctx, basketID)
}

// RemovePolicy deletes one line item and returns the re-fetched basket.
func (s *FlowService) RemovePolicy(ctx context.Context, basketID, policyID int) (*domain.Basket, error) {
	if err := s.gateway.RemovePolicy(ctx, basketID, policyID); err != nil {
		return nil, err
	}
	return s.gateway.GetBasket(ctx, basketID)
}

// CancelBasket abandons the basket and records the cancellation.
func (s *FlowService) CancelBasket(ctx context.Context, basketID, customerID int) error {
	if err := s.gateway.CancelBasket(ctx, basketID); err != nil {
		return err
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		BasketID:   basketID,
		CustomerID: customerID,
		Status:     domain.AuditCancelled,
	})

	return nil
}

// StorePayment stashes a direct-debit mandate ahead of confirmation so the
// payment step can be chained automatically.
func (s *FlowService) StorePayment(ctx context.Context, customerID int, dd domain.DirectDebit) error {
	if customerID == 0 {
		return apperrors.Validation("customerId", "is required")
	}
	if err := pkgvalidator.Validate(&dd); err != nil {
		var ve *pkgvalidator.ValidationError
		if errors.As(err, &ve) {
			field, msg := ve.First()
			return apperrors.Validation(field, msg)
		}
		return err
	}

	return s.payments.Save(ctx, &domain.PendingPayment{
		CustomerID:  customerID,
		DirectDebit: dd,
		StoredAt:    time.Now().UTC(),
	})
}

// ConfirmBasket finalizes the basket. On a PaymentRequired outcome the
// customer's pending payment, when present, is consumed and exactly one
// payByDirectDebit is chained; its failure leaves the basket confirmed with
// payment outstanding, which is audited and surfaced rather than rolled
// back. Without a pending payment the PaymentRequired result is returned
// unchanged and the caller must supply payment separately.
func (s *FlowService) ConfirmBasket(ctx context.Context, basketID, customerID int) (*ConfirmOutcome, error) {
	result, err := s.gateway.Confirm(ctx, basketID)
	if err != nil {
		return nil, err
	}

	outcome := &ConfirmOutcome{Result: result}

	switch result.Outcome {
	case domain.OutcomeConfirmed:
		s.recordAudit(ctx, &domain.AuditRecord{
			BasketID:   basketID,
			CustomerID: customerID,
			Status:     domain.AuditConfirmed,
			Outcome:    result.Outcome,
		})
		s.publish(ctx, func() error {
			return s.events.PublishBasketConfirmed(ctx, basketID, customerID, result.Outcome)
		})
		return outcome, nil

	case domain.OutcomePaymentRequired:
		return s.chainPayment(ctx, basketID, customerID, outcome)

	default:
		s.logger.WarnContext(ctx, "unexpected confirm outcome",
			slog.Int("basket_id", basketID),
			slog.String("outcome", result.Outcome),
		)
		return outcome, nil
	}
}

// chainPayment consumes the customer's pending payment and runs the
// direct-debit collection. Consumption happens before the payment call, so
// the mandate is used at most once even if the collection fails.
func (s *FlowService) chainPayment(ctx context.Context, basketID, customerID int, outcome *ConfirmOutcome) (*ConfirmOutcome, error) {
	pending, err := s.payments.Consume(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "payment required with no stored mandate",
				slog.Int("basket_id", basketID),
				slog.Int("customer_id", customerID),
			)
			s.recordAudit(ctx, &domain.AuditRecord{
				BasketID:   basketID,
				CustomerID: customerID,
				Status:     domain.AuditConfirmed,
				Outcome:    domain.OutcomePaymentRequired,
			})
			s.publish(ctx, func() error {
				return s.events.PublishBasketConfirmed(ctx, basketID, customerID, domain.OutcomePaymentRequired)
			})
			return outcome, nil
		}
		return nil, err
	}

	payment, payErr := s.gateway.PayByDirectDebit(ctx, basketID, pending.DirectDebit)
	if payErr != nil {
		// The basket is confirmed; the failure is surfaced alongside it,
		// never as a rollback.
		s.logger.ErrorContext(ctx, "chained payment failed after confirmation",
			slog.Int("basket_id", basketID),
			slog.Int("customer_id", customerID),
			slog.String("error", payErr.Error()),
		)
		outcome.PaymentFailure = payErr.Error()
		s.recordAudit(ctx, &domain.AuditRecord{
			BasketID:      basketID,
			CustomerID:    customerID,
			Status:        domain.AuditPartiallyPaid,
			Outcome:       domain.OutcomePaymentRequired,
			FailureReason: payErr.Error(),
		})
		s.publish(ctx, func() error {
			return s.events.PublishPaymentFailed(ctx, basketID, customerID, payErr.Error())
		})
		return outcome, nil
	}

	outcome.Payment = payment
	s.recordAudit(ctx, &domain.AuditRecord{
		BasketID:       basketID,
		CustomerID:     customerID,
		Status:         domain.AuditPaid,
		Outcome:        domain.OutcomePaymentRequired,
		PaymentOutcome: payment.Outcome,
	})
	s.publish(ctx, func() error {
		return s.events.PublishPaymentCompleted(ctx, basketID, customerID, payment.Outcome)
	})

	return outcome, nil
}

// PayByDirectDebit collects payment for a basket with caller-supplied bank
// details, outside the stored-mandate chain.
func (s *FlowService) PayByDirectDebit(ctx context.Context, basketID, customerID int, dd domain.DirectDebit) (*domain.PaymentResult, error) {
	payment, err := s.gateway.PayByDirectDebit(ctx, basketID, dd)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		BasketID:       basketID,
		CustomerID:     customerID,
		Status:         domain.AuditPaid,
		PaymentOutcome: payment.Outcome,
	})
	s.publish(ctx, func() error {
		return s.events.PublishPaymentCompleted(ctx, basketID, customerID, payment.Outcome)
	})

	return payment, nil
}

// AuditTrail returns a customer's workflow audit rows.
func (s *FlowService) AuditTrail(ctx context.Context, customerID int) ([]domain.AuditRecord, error) {
	return s.audit.ListByCustomer(ctx, customerID)
}

// recordAudit writes an audit row; failures are logged, never surfaced, so
// a sick database cannot block the customer-facing flow.
func (s *FlowService) recordAudit(ctx context.Context, rec *domain.AuditRecord) {
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "audit record failed",
			slog.Int("basket_id", rec.BasketID),
			slog.String("status", rec.Status),
			slog.String("error", err.Error()),
		)
	}
}

// publish runs an event publish; failures are logged, never surfaced.
func (s *FlowService) publish(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "event publish failed", slog.String("error", err.Error()))
	}
}
