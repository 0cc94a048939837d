package domain

import "time"

// PremiumPeriod is the billing cadence for a basket.
type PremiumPeriod string

const (
	PeriodMonth  PremiumPeriod = "Month"
	PeriodAnnual PremiumPeriod = "Annual"
)

// Valid reports whether the premium period is Month or Annual.
func (p PremiumPeriod) Valid() bool {
	return p == PeriodMonth || p == PeriodAnnual
}

// Loss cover flags as the remote API expects them.
type LossCoverFlag string

const (
	LossCoverYes LossCoverFlag = "Yes"
	LossCoverNo  LossCoverFlag = "No"
)

// Valid reports whether the loss cover flag is Yes or No.
func (l LossCoverFlag) Valid() bool {
	return l == LossCoverYes || l == LossCoverNo
}

// Policy is one insured gadget line item inside a basket. All monetary
// fields come from the server; they are never computed locally.
type Policy struct {
	ID              int     `json:"id"`
	GadgetType      string  `json:"gadgetType"`
	Make            string  `json:"make"`
	Model           string  `json:"model"`
	Premium         float64 `json:"premium"`
	GrossPremium    float64 `json:"grossPremium"`
	NetPremium      float64 `json:"netPremium"`
	DiscountPercent float64 `json:"discountPercent"`
	LossCover       bool    `json:"lossCover"`
	LossPremium     float64 `json:"lossPremium"`
}

// Basket mirrors the server-side basket. The JSON field casing follows the
// remote API exactly, including the inconsistent DiscountTotal and
// NumberOfPolicies. The aggregate premium fields depend on server-side
// discount tiers, so the only way to refresh them after a mutation is a
// getBasket re-fetch.
type Basket struct {
	ID               int      `json:"id"`
	CustomerID       int      `json:"customerId"`
	PremiumPeriod    string   `json:"premiumPeriod"`
	GrossPremium     float64  `json:"grossPremium"`
	DiscountTotal    float64  `json:"DiscountTotal"`
	NumberOfPolicies int      `json:"NumberOfPolicies"`
	Policies         []Policy `json:"policies"`
}

// Confirm outcomes the workflow recognizes. Anything else is surfaced as an
// unexpected outcome, not treated as fatal.
const (
	OutcomeConfirmed       = "Confirmed"
	OutcomePaymentRequired = "PaymentRequired"
)

// ConfirmResult is the response of a basket confirmation.
type ConfirmResult struct {
	Outcome  string `json:"Outcome"`
	BasketID int    `json:"basketId,omitempty"`
	PolicyID int    `json:"policyId,omitempty"`
}

// DirectDebit holds UK bank account details for collection. Field casing
// follows the remote payment contract.
type DirectDebit struct {
	NameOnAccount string `json:"NameOnAccount" validate:"required"`
	AccountNumber string `json:"AccountNumber" validate:"required,len=8,numeric"`
	SortCode      string `json:"SortCode" validate:"required,len=6,numeric"`
}

// PaymentResult is the response of payByDirectDebit.
type PaymentResult struct {
	Outcome  string `json:"Outcome"`
	BasketID int    `json:"basketId,omitempty"`
}

// PendingPayment is a customer's stashed direct-debit mandate, stored ahead
// of confirmation so the payment step can be chained automatically when the
// server answers PaymentRequired. Consumed at most once.
type PendingPayment struct {
	CustomerID  int         `json:"customerId"`
	DirectDebit DirectDebit `json:"directDebit"`
	StoredAt    time.Time   `json:"storedAt"`
}
