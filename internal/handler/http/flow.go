package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wbuist/mgu-api-integration/internal/domain"
	"github.com/wbuist/mgu-api-integration/internal/repository"
	"github.com/wbuist/mgu-api-integration/internal/service"
	"github.com/wbuist/mgu-api-integration/pkg/httputil"
	"github.com/wbuist/mgu-api-integration/pkg/validator"
)

// FlowHandler exposes the quote workflow as an action-keyed JSON API:
// POST /api/v1/flow/{action} with a JSON body per action. Every response
// uses the {success, data} envelope.
type FlowHandler struct {
	flow     *service.FlowService
	sessions repository.SessionStore
	logger   *slog.Logger
	actions  map[string]http.HandlerFunc
}

// NewFlowHandler creates the flow HTTP handler.
func NewFlowHandler(flow *service.FlowService, sessions repository.SessionStore, logger *slog.Logger) *FlowHandler {
	h := &FlowHandler{
		flow:     flow,
		sessions: sessions,
		logger:   logger,
	}
	h.actions = map[string]http.HandlerFunc{
		"get-manufacturers":   h.getManufacturers,
		"get-models":          h.getModels,
		"get-quote":           h.getQuote,
		"create-customer":     h.createCustomer,
		"update-customer":     h.updateCustomer,
		"find-customer":       h.findCustomer,
		"open-basket":         h.openBasket,
		"get-basket":          h.getBasket,
		"add-gadget":          h.addGadget,
		"add-gadgets":         h.addGadgets,
		"add-loss-cover":      h.addLossCover,
		"remove-loss-cover":   h.removeLossCover,
		"remove-policy":       h.removePolicy,
		"cancel-basket":       h.cancelBasket,
		"store-payment":       h.storePayment,
		"confirm-basket":      h.confirmBasket,
		"pay-by-direct-debit": h.payByDirectDebit,
		"audit-trail":         h.auditTrail,
	}
	return h
}

// --- Request DTOs ---

type manufacturersRequest struct {
	GadgetType string `json:"gadgetType"`
}

type modelsRequest struct {
	ManufacturerID int    `json:"manufacturerId" validate:"required"`
	GadgetType     string `json:"gadgetType"`
}

type quoteRequest struct {
	ProductID       int     `json:"productId" validate:"required"`
	MemoryInstalled string  `json:"memoryInstalled"`
	PurchasePrice   float64 `json:"purchasePrice"`
}

type findCustomerRequest struct {
	CustomerID int    `json:"customerId"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	ExternalID string `json:"externalId"`
}

type openBasketRequest struct {
	CustomerID       int    `json:"customerId" validate:"required"`
	PremiumPeriod    string `json:"premiumPeriod" validate:"required"`
	IncludeLossCover string `json:"includeLossCover" validate:"required"`
}

type basketRequest struct {
	BasketID int `json:"basketId" validate:"required"`
}

type addGadgetRequest struct {
	BasketID int                  `json:"basketId" validate:"required"`
	Gadget   domain.GadgetDetails `json:"gadget"`
}

type addGadgetsRequest struct {
	BasketID int                    `json:"basketId" validate:"required"`
	Gadgets  []domain.GadgetDetails `json:"gadgets" validate:"required,min=1"`
}

type removePolicyRequest struct {
	BasketID int `json:"basketId" validate:"required"`
	PolicyID int `json:"policyId" validate:"required"`
}

type cancelBasketRequest struct {
	BasketID   int `json:"basketId" validate:"required"`
	CustomerID int `json:"customerId"`
}

type storePaymentRequest struct {
	CustomerID  int                `json:"customerId" validate:"required"`
	DirectDebit domain.DirectDebit `json:"directDebit"`
}

type confirmBasketRequest struct {
	BasketID   int `json:"basketId" validate:"required"`
	CustomerID int `json:"customerId" validate:"required"`
}

type payRequest struct {
	BasketID    int                `json:"basketId" validate:"required"`
	CustomerID  int                `json:"customerId"`
	DirectDebit domain.DirectDebit `json:"directDebit"`
}

type auditTrailRequest struct {
	CustomerID int `json:"customerId" validate:"required"`
}

// --- Dispatch ---

// Dispatch routes POST /api/v1/flow/{action} to the matching action handler.
func (h *FlowHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	handler, ok := h.actions[action]
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Success: false,
			Data:    "unknown action: " + action,
		})
		return
	}
	handler(w, r)
}

// CreateSession handles POST /api/v1/flow/session. It issues the anti-forgery
// token the flow endpoints require in the X-Session-Token header.
func (h *FlowHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	token, err := h.sessions.Issue(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"sessionToken": token})
}

// --- Action handlers ---

func (h *FlowHandler) getManufacturers(w http.ResponseWriter, r *http.Request) {
	var req manufacturersRequest
	if !h.decode(w, r, &req) {
		return
	}

	makers, err := h.flow.Manufacturers(r.Context(), domain.GadgetType(req.GadgetType))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, makers)
}

func (h *FlowHandler) getModels(w http.ResponseWriter, r *http.Request) {
	var req modelsRequest
	if !h.decode(w, r, &req) {
		return
	}

	models, err := h.flow.Models(r.Context(), req.ManufacturerID, domain.GadgetType(req.GadgetType))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, models)
}

func (h *FlowHandler) getQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	quote, err := h.flow.Quote(r.Context(), req.ProductID, req.MemoryInstalled, req.PurchasePrice)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, quote)
}

func (h *FlowHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if !h.decode(w, r, &customer) {
		return
	}

	created, err := h.flow.CreateCustomer(r.Context(), &customer)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, created)
}

func (h *FlowHandler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if !h.decode(w, r, &customer) {
		return
	}

	updated, err := h.flow.UpdateCustomer(r.Context(), &customer)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (h *FlowHandler) findCustomer(w http.ResponseWriter, r *http.Request) {
	var req findCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		customer *domain.Customer
		err      error
	)
	if req.CustomerID != 0 {
		customer, err = h.flow.FindCustomer(r.Context(), req.CustomerID)
	} else {
		customer, err = h.flow.LookupCustomer(r.Context(), req.Email, req.Mobile, req.ExternalID)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, customer)
}

func (h *FlowHandler) openBasket(w http.ResponseWriter, r *http.Request) {
	var req openBasketRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.OpenBasket(r.Context(), req.CustomerID,
		domain.PremiumPeriod(req.PremiumPeriod), domain.LossCoverFlag(req.IncludeLossCover))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) getBasket(w http.ResponseWriter, r *http.Request) {
	var req basketRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.GetBasket(r.Context(), req.BasketID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) addGadget(w http.ResponseWriter, r *http.Request) {
	var req addGadgetRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.AddGadget(r.Context(), req.BasketID, req.Gadget)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) addGadgets(w http.ResponseWriter, r *http.Request) {
	var req addGadgetsRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.AddGadgets(r.Context(), req.BasketID, req.Gadgets)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) addLossCover(w http.ResponseWriter, r *http.Request) {
	h.setLossCover(w, r, true)
}

func (h *FlowHandler) removeLossCover(w http.ResponseWriter, r *http.Request) {
	h.setLossCover(w, r, false)
}

func (h *FlowHandler) setLossCover(w http.ResponseWriter, r *http.Request, enable bool) {
	var req basketRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.SetLossCover(r.Context(), req.BasketID, enable)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) removePolicy(w http.ResponseWriter, r *http.Request) {
	var req removePolicyRequest
	if !h.decode(w, r, &req) {
		return
	}

	basket, err := h.flow.RemovePolicy(r.Context(), req.BasketID, req.PolicyID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, basket)
}

func (h *FlowHandler) cancelBasket(w http.ResponseWriter, r *http.Request) {
	var req cancelBasketRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.flow.CancelBasket(r.Context(), req.BasketID, req.CustomerID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "cancelled"})
}

func (h *FlowHandler) storePayment(w http.ResponseWriter, r *http.Request) {
	var req storePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.flow.StorePayment(r.Context(), req.CustomerID, req.DirectDebit); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "stored"})
}

func (h *FlowHandler) confirmBasket(w http.ResponseWriter, r *http.Request) {
	var req confirmBasketRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.flow.ConfirmBasket(r.Context(), req.BasketID, req.CustomerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, outcome)
}

func (h *FlowHandler) payByDirectDebit(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.flow.PayByDirectDebit(r.Context(), req.BasketID, req.CustomerID, req.DirectDebit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, payment)
}

func (h *FlowHandler) auditTrail(w http.ResponseWriter, r *http.Request) {
	var req auditTrailRequest
	if !h.decode(w, r, &req) {
		return
	}

	records, err := h.flow.AuditTrail(r.Context(), req.CustomerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, records)
}

// --- Helpers ---

// decode parses the JSON request body into v and runs struct validation.
// An empty body is treated as the zero request; required-field tags then
// decide whether that is acceptable. Returns false after writing the error
// response when the request cannot proceed.
func (h *FlowHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Success: false,
			Data:    "invalid request body: " + err.Error(),
		})
		return false
	}

	if err := validator.Validate(v); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
