package mgu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wbuist/mgu-api-integration/internal/domain"
	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
	"github.com/wbuist/mgu-api-integration/pkg/httpclient"
	pkgvalidator "github.com/wbuist/mgu-api-integration/pkg/validator"
)

var outboundRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mgu_outbound_requests_total",
		Help: "Total outbound requests to the MGU API by endpoint and result",
	},
	[]string{"endpoint", "result"},
)

// TokenSource supplies bearer tokens for outbound requests and discards
// them when the server stops accepting them.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Client is the gateway to the MGU REST API. Every call is authenticated
// with a bearer token from the TokenSource. A 401 response invalidates the
// token and the request is re-sent exactly once with a fresh token; a
// second 401 is reported as an auth failure. No other retries happen here.
type Client struct {
	httpClient Doer
	tokens     TokenSource
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a gateway client. baseURL is the environment API base,
// e.g. https://sandbox.api.mygadgetumbrella.com/sbapi.
func NewClient(httpClient Doer, tokens TokenSource, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// call executes one API request with the bounded re-authentication loop.
// jsonBody is re-marshaled per attempt; out, when non-nil, receives the
// decoded success body.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, jsonBody any, out any) error {
	endpoint := method + " " + path

	var payload []byte
	if jsonBody != nil {
		var err error
		payload, err = json.Marshal(jsonBody)
		if err != nil {
			return apperrors.Wrap(err, "marshal request body")
		}
	}

	// Two attempts at most: the original request plus one replay after a
	// 401 forces a token refresh.
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			outboundRequests.WithLabelValues(endpoint, "auth_error").Inc()
			return err
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return apperrors.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(ctx, req)
		if err != nil {
			outboundRequests.WithLabelValues(endpoint, "transport_error").Inc()
			return apperrors.Transport(fmt.Errorf("%s %s: %w", method, path, err))
		}

		if resp.StatusCode == http.StatusUnauthorized {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			c.tokens.Invalidate(ctx)

			if attempt == 0 {
				c.logger.WarnContext(ctx, "token rejected, replaying request once",
					slog.String("endpoint", endpoint),
				)
				continue
			}
			outboundRequests.WithLabelValues(endpoint, "auth_error").Inc()
			return apperrors.Auth("request rejected after token refresh")
		}

		if resp.StatusCode >= 400 {
			outboundRequests.WithLabelValues(endpoint, "api_error").Inc()
			err := httpclient.ParseResponseError(resp)
			_ = resp.Body.Close()
			return err
		}

		outboundRequests.WithLabelValues(endpoint, "success").Inc()

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return apperrors.Wrap(decodeErr, "decode response body")
		}
		return nil
	}

	// Unreachable: each loop iteration returns or continues once.
	return apperrors.Auth("request rejected after token refresh")
}

// CreateCustomer validates and creates a customer record. Validation
// failures name the offending field and never reach the network.
func (c *Client) CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	var created domain.Customer
	if err := c.call(ctx, http.MethodPost, "/v2/customer", nil, customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCustomer validates and updates an existing customer record.
func (c *Client) UpdateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	if customer.ID == 0 {
		return nil, apperrors.Validation("id", "is required")
	}
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	var updated domain.Customer
	if err := c.call(ctx, http.MethodPost, "/v2/customer", nil, customer, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func validateCustomer(customer *domain.Customer) error {
	if err := pkgvalidator.Validate(customer); err != nil {
		var ve *pkgvalidator.ValidationError
		if errors.As(err, &ve) {
			field, msg := ve.First()
			return apperrors.Validation(field, msg)
		}
		return err
	}
	return nil
}

// FindCustomer fetches a customer by MGU ID.
func (c *Client) FindCustomer(ctx context.Context, customerID int) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.call(ctx, http.MethodGet, "/v2/customer/"+strconv.Itoa(customerID), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByEmail looks a customer up by email address. The path
// segment "emai" is not a typo here: it is what the remote API serves.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.call(ctx, http.MethodGet, "/v2/customer/find/emai/"+url.PathEscape(email), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByMobile looks a customer up by mobile number.
func (c *Client) FindCustomerByMobile(ctx context.Context, mobile string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.call(ctx, http.MethodGet, "/v2/customer/find/mobile/"+url.PathEscape(mobile), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByExternalID looks a customer up by the caller's own ID.
func (c *Client) FindCustomerByExternalID(ctx context.Context, externalID string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.call(ctx, http.MethodGet, "/v2/customer/find/externalid/"+url.PathEscape(externalID), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// OpenBasket opens a new basket for a customer. Period and loss cover are
// validated locally so an out-of-range value costs no round trip.
func (c *Client) OpenBasket(ctx context.Context, customerID int, period domain.PremiumPeriod, lossCover domain.LossCoverFlag) (*domain.Basket, error) {
	if customerID == 0 {
		return nil, apperrors.Validation("customerId", "is required")
	}
	if !period.Valid() {
		return nil, apperrors.Validation("premiumPeriod", fmt.Sprintf("must be %s or %s", domain.PeriodMonth, domain.PeriodAnnual))
	}
	if !lossCover.Valid() {
		return nil, apperrors.Validation("includeLossCover", fmt.Sprintf("must be %s or %s", domain.LossCoverYes, domain.LossCoverNo))
	}

	query := url.Values{
		"customerId":       {strconv.Itoa(customerID)},
		"premiumPeriod":    {string(period)},
		"includeLossCover": {string(lossCover)},
	}

	var basket domain.Basket
	if err := c.call(ctx, http.MethodGet, "/v2/openBasket", query, nil, &basket); err != nil {
		return nil, err
	}
	return &basket, nil
}

// GetBasket fetches the current basket state. Pure read; this is the only
// source of premium and discount totals after any mutation.
func (c *Client) GetBasket(ctx context.Context, basketID int) (*domain.Basket, error) {
	var basket domain.Basket
	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	if err := c.call(ctx, http.MethodGet, "/v2/getBasket", query, nil, &basket); err != nil {
		return nil, err
	}
	return &basket, nil
}

// InsureGadget adds one gadget to the basket. A zero purchase price is
// omitted from the request entirely rather than sent as 0.
func (c *Client) InsureGadget(ctx context.Context, basketID int, gadget domain.GadgetDetails) (*domain.Policy, error) {
	if gadget.ProductID == 0 {
		return nil, apperrors.Validation("productId", "is required")
	}

	query := url.Values{
		"basketId":  {strconv.Itoa(basketID)},
		"productId": {strconv.Itoa(gadget.ProductID)},
	}
	if gadget.DateOfPurchase != "" {
		query.Set("dateOfPurchase", gadget.DateOfPurchase)
	}
	if gadget.SerialNumber != "" {
		query.Set("serialNumber", gadget.SerialNumber)
	}
	if gadget.InstalledMemory != "" {
		query.Set("installedMemory", gadget.InstalledMemory)
	}
	if gadget.PurchasePrice != 0 {
		query.Set("purchasePrice", formatPrice(gadget.PurchasePrice))
	}

	var policy domain.Policy
	if err := c.call(ctx, http.MethodGet, "/v2/insureGadget", query, nil, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// InsureGadgets adds several gadgets to the basket in one call. The gadget
// list travels as a JSON body with the basket ID as a query parameter.
func (c *Client) InsureGadgets(ctx context.Context, basketID int, gadgets []domain.GadgetDetails) (*domain.Basket, error) {
	if len(gadgets) == 0 {
		return nil, apperrors.Validation("gadgets", "is required")
	}
	for _, g := range gadgets {
		if g.ProductID == 0 {
			return nil, apperrors.Validation("productId", "is required")
		}
	}

	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	var basket domain.Basket
	if err := c.call(ctx, http.MethodPost, "/v2/insureGadgets", query, gadgets, &basket); err != nil {
		return nil, err
	}
	return &basket, nil
}

// Manufacturers lists all manufacturers in the catalogue.
func (c *Client) Manufacturers(ctx context.Context) ([]domain.Manufacturer, error) {
	var manufacturers []domain.Manufacturer
	if err := c.call(ctx, http.MethodGet, "/v2/manufacturers", nil, nil, &manufacturers); err != nil {
		return nil, err
	}
	return manufacturers, nil
}

// ManufacturersByGadget lists manufacturers offering the given gadget type.
func (c *Client) ManufacturersByGadget(ctx context.Context, gadgetType domain.GadgetType) ([]domain.Manufacturer, error) {
	if !gadgetType.Valid() {
		return nil, apperrors.Validation("gadgetType", "is not a recognized gadget type")
	}

	query := url.Values{"GadgetType": {string(gadgetType)}}
	var manufacturers []domain.Manufacturer
	if err := c.call(ctx, http.MethodGet, "/v2/manufacturersByGadget", query, nil, &manufacturers); err != nil {
		return nil, err
	}
	return manufacturers, nil
}

// Models lists device models for a manufacturer and gadget type.
func (c *Client) Models(ctx context.Context, manufacturerID int, gadgetType domain.GadgetType) ([]domain.Model, error) {
	if manufacturerID == 0 {
		return nil, apperrors.Validation("manufacturerId", "is required")
	}
	if !gadgetType.Valid() {
		return nil, apperrors.Validation("gadgetType", "is not a recognized gadget type")
	}

	query := url.Values{
		"ManufacturerId": {strconv.Itoa(manufacturerID)},
		"GadgetType":     {string(gadgetType)},
	}
	var models []domain.Model
	if err := c.call(ctx, http.MethodGet, "/v2/models", query, nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// GetQuote fetches a standalone price indication for a single device.
func (c *Client) GetQuote(ctx context.Context, productID int, memoryInstalled string, purchasePrice float64) (*domain.Quote, error) {
	if productID == 0 {
		return nil, apperrors.Validation("productId", "is required")
	}

	query := url.Values{
		"productId":       {strconv.Itoa(productID)},
		"memoryInstalled": {memoryInstalled},
		"purchasePrice":   {formatPrice(purchasePrice)},
	}
	var quote domain.Quote
	if err := c.call(ctx, http.MethodGet, "/v2/getQuote", query, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Confirm finalizes the basket. The caller interprets the outcome; in
// particular PaymentRequired triggers the pending-payment chain in the
// orchestrator, not here.
func (c *Client) Confirm(ctx context.Context, basketID int) (*domain.ConfirmResult, error) {
	var result domain.ConfirmResult
	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	if err := c.call(ctx, http.MethodGet, "/v2/confirm", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PayByDirectDebit collects payment for a confirmed basket.
func (c *Client) PayByDirectDebit(ctx context.Context, basketID int, dd domain.DirectDebit) (*domain.PaymentResult, error) {
	if err := pkgvalidator.Validate(&dd); err != nil {
		var ve *pkgvalidator.ValidationError
		if errors.As(err, &ve) {
			field, msg := ve.First()
			return nil, apperrors.Validation(field, msg)
		}
		return nil, err
	}

	body := map[string]any{
		"basketId":    basketID,
		"directDebit": dd,
	}
	var result domain.PaymentResult
	if err := c.call(ctx, http.MethodPost, "/v2/payByDirectDebit", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddLossCover enables policy-wide loss cover. Idempotent on the server;
// callers must re-fetch the basket afterwards because totals are
// recomputed remotely.
func (c *Client) AddLossCover(ctx context.Context, basketID int) error {
	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	return c.call(ctx, http.MethodGet, "/v2/addLossCover", query, nil, nil)
}

// RemoveLossCover disables policy-wide loss cover. Idempotent like
// AddLossCover.
func (c *Client) RemoveLossCover(ctx context.Context, basketID int) error {
	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	return c.call(ctx, http.MethodGet, "/v2/removeLossCover", query, nil, nil)
}

// RemovePolicy deletes one gadget line item from the basket.
func (c *Client) RemovePolicy(ctx context.Context, basketID, policyID int) error {
	query := url.Values{
		"basketId": {strconv.Itoa(basketID)},
		"policyId": {strconv.Itoa(policyID)},
	}
	return c.call(ctx, http.MethodGet, "/v2/removePolicy", query, nil, nil)
}

// CancelBasket abandons the basket.
func (c *Client) CancelBasket(ctx context.Context, basketID int) error {
	query := url.Values{"basketId": {strconv.Itoa(basketID)}}
	return c.call(ctx, http.MethodGet, "/v2/cancelBasket", query, nil, nil)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
