package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
	"github.com/wbuist/mgu-api-integration/pkg/validator"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]int{"basketId": 17})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"basketId": float64(17)}, resp.Data)
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/flow/open-basket", nil)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	WriteError(rec, r, apperrors.Validation("premiumPeriod", `must be "Month" or "Annual"`), quiet)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Data, "premiumPeriod")
}

func TestWriteError_UnclassifiedErrorIsMasked(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/flow/get-basket", nil)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	WriteError(rec, r, errors.New("pq: connection reset"), quiet)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "an internal error occurred", resp.Data)
}

func TestWriteValidationError(t *testing.T) {
	type form struct {
		GivenName string `json:"givenName" validate:"required"`
	}

	err := validator.Validate(form{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Field givenName: is required", resp.Data)
}
