package mgu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbuist/mgu-api-integration/internal/domain"
	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
	"github.com/wbuist/mgu-api-integration/pkg/httpclient"
)

type fakeTokens struct {
	mu          sync.Mutex
	tokens      []string
	next        int
	invalidated int
}

func (f *fakeTokens) Token(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.tokens) {
		return f.tokens[len(f.tokens)-1], nil
	}
	tok := f.tokens[f.next]
	f.next++
	return tok, nil
}

func (f *fakeTokens) Invalidate(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *fakeTokens) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{tokens: []string{"tok-1", "tok-2", "tok-3"}}
	client := NewClient(httpclient.New(httpclient.DefaultConfig()), tokens, srv.URL, testLogger())
	return client, srv, tokens
}

func TestClient_Retries401ExactlyOnce(t *testing.T) {
	var requests int
	client, _, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(domain.Basket{ID: 7, CustomerID: 100})
	}))

	basket, err := client.GetBasket(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, basket.ID)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestClient_SecondUnauthorizedIsAuthError(t *testing.T) {
	var requests int
	client, _, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetBasket(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuth))
	// No third attempt.
	assert.Equal(t, 2, requests)
	assert.Equal(t, 2, tokens.invalidated)
}

func TestOpenBasket_RejectsBadPeriodWithoutNetwork(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected")
	}))

	_, err := client.OpenBasket(context.Background(), 100, domain.PremiumPeriod("Week"), domain.LossCoverNo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "premiumPeriod", appErr.Field)
}

func TestOpenBasket_SendsEnumeratedParams(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/openBasket", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("customerId"))
		assert.Equal(t, "Annual", r.URL.Query().Get("premiumPeriod"))
		assert.Equal(t, "No", r.URL.Query().Get("includeLossCover"))
		_ = json.NewEncoder(w).Encode(domain.Basket{ID: 42, CustomerID: 100, PremiumPeriod: "Annual"})
	}))

	basket, err := client.OpenBasket(context.Background(), 100, domain.PeriodAnnual, domain.LossCoverNo)
	require.NoError(t, err)
	assert.Equal(t, 42, basket.ID)
}

func TestInsureGadget_OmitsZeroPurchasePrice(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/insureGadget", r.URL.Path)
		assert.False(t, r.URL.Query().Has("purchasePrice"))
		assert.Equal(t, "55", r.URL.Query().Get("productId"))
		_ = json.NewEncoder(w).Encode(domain.Policy{ID: 1})
	}))

	_, err := client.InsureGadget(context.Background(), 42, domain.GadgetDetails{ProductID: 55})
	require.NoError(t, err)
}

func TestInsureGadget_SendsNonZeroPurchasePrice(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "450.00", r.URL.Query().Get("purchasePrice"))
		assert.Equal(t, "128GB", r.URL.Query().Get("installedMemory"))
		_ = json.NewEncoder(w).Encode(domain.Policy{ID: 1})
	}))

	_, err := client.InsureGadget(context.Background(), 42, domain.GadgetDetails{
		ProductID:       55,
		InstalledMemory: "128GB",
		PurchasePrice:   450.00,
	})
	require.NoError(t, err)
}

func TestCreateCustomer_NamesOffendingFieldWithoutNetwork(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected")
	}))

	_, err := client.CreateCustomer(context.Background(), &domain.Customer{
		LastName:     "Smith",
		Address1:     "1 High Street",
		PostCode:     "AB1 2CD",
		Email:        "j.smith@example.com",
		MobileNumber: "07700900000",
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, "givenName", appErr.Field)
}

func TestCreateCustomer_EnforcesMaxLengths(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected")
	}))

	_, err := client.CreateCustomer(context.Background(), &domain.Customer{
		GivenName:    "ThisGivenNameIsFarTooLongForTheContract",
		LastName:     "Smith",
		Address1:     "1 High Street",
		PostCode:     "AB1 2CD",
		Email:        "j.smith@example.com",
		MobileNumber: "07700900000",
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "givenName", appErr.Field)
	assert.Contains(t, appErr.Message, "25")
}

func TestCreateCustomer_PostsJSON(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/customer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var c domain.Customer
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		assert.Equal(t, "Jo", c.GivenName)

		c.ID = 100
		_ = json.NewEncoder(w).Encode(c)
	}))

	created, err := client.CreateCustomer(context.Background(), &domain.Customer{
		GivenName:    "Jo",
		LastName:     "Smith",
		Address1:     "1 High Street",
		PostCode:     "AB1 2CD",
		Email:        "j.smith@example.com",
		MobileNumber: "07700900000",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, created.ID)
}

func TestClient_ErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field wins", `{"message":"basket not found","error":"other"}`, "basket not found"},
		{"error field next", `{"error":"bad request"}`, "bad request"},
		{"errors array joined", `{"errors":["first","second"]}`, "first, second"},
		{"raw body fallback", `gateway exploded`, "API Error: gateway exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := client.GetBasket(context.Background(), 999)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrAPI))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfirm_ReturnsOutcome(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/confirm", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("basketId"))
		_ = json.NewEncoder(w).Encode(domain.ConfirmResult{Outcome: domain.OutcomePaymentRequired, BasketID: 42})
	}))

	res, err := client.Confirm(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePaymentRequired, res.Outcome)
}

func TestPayByDirectDebit_PostsBasketAndMandate(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/payByDirectDebit", r.URL.Path)

		var body struct {
			BasketID    int                `json:"basketId"`
			DirectDebit domain.DirectDebit `json:"directDebit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 42, body.BasketID)
		assert.Equal(t, "J Smith", body.DirectDebit.NameOnAccount)
		assert.Equal(t, "12345678", body.DirectDebit.AccountNumber)

		_ = json.NewEncoder(w).Encode(domain.PaymentResult{Outcome: "Success", BasketID: 42})
	}))

	res, err := client.PayByDirectDebit(context.Background(), 42, domain.DirectDebit{
		NameOnAccount: "J Smith",
		AccountNumber: "12345678",
		SortCode:      "123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "Success", res.Outcome)
}

func TestPayByDirectDebit_ValidatesMandate(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected")
	}))

	_, err := client.PayByDirectDebit(context.Background(), 42, domain.DirectDebit{
		NameOnAccount: "J Smith",
		AccountNumber: "1234", // too short
		SortCode:      "123456",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestModels_SendsCatalogueParams(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/models", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("ManufacturerId"))
		assert.Equal(t, "MobilePhone", r.URL.Query().Get("GadgetType"))
		_ = json.NewEncoder(w).Encode([]domain.Model{{ID: 1, ProductID: 55, Name: "pPhone 15"}})
	}))

	models, err := client.Models(context.Background(), 12, domain.GadgetMobilePhone)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, 55, models[0].ProductID)
}

func TestRemovePolicy_SendsBothIDs(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/removePolicy", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("basketId"))
		assert.Equal(t, "3", r.URL.Query().Get("policyId"))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.RemovePolicy(context.Background(), 42, 3))
}

func TestFindCustomerByEmail_UsesRemotePathSpelling(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/customer/find/emai/j.smith@example.com", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.Customer{ID: 100})
	}))

	customer, err := client.FindCustomerByEmail(context.Background(), "j.smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, 100, customer.ID)
}
