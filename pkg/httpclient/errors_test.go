package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

func fakeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_MessageField(t *testing.T) {
	err := ParseResponseError(fakeResponse(400, `{"message":"basket is closed","error":"ignored"}`))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "basket is closed", appErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrAPI))
	assert.JSONEq(t, `{"message":"basket is closed","error":"ignored"}`, string(appErr.Payload))
}

func TestParseResponseError_ErrorField(t *testing.T) {
	err := ParseResponseError(fakeResponse(422, `{"error":"invalid product"}`))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "invalid product", appErr.Message)
}

func TestParseResponseError_ErrorsArrayJoined(t *testing.T) {
	err := ParseResponseError(fakeResponse(400, `{"errors":["bad serial","bad memory"]}`))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "bad serial, bad memory", appErr.Message)
}

func TestParseResponseError_RawBodyFallback(t *testing.T) {
	err := ParseResponseError(fakeResponse(500, `gateway exploded`))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "API Error: gateway exploded", appErr.Message)
}

func TestParseResponseError_EmptyBody(t *testing.T) {
	err := ParseResponseError(fakeResponse(503, ``))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Unknown error", appErr.Message)
}

func TestParseResponseError_401IsAuthError(t *testing.T) {
	err := ParseResponseError(fakeResponse(401, `{"message":"token expired"}`))

	assert.True(t, errors.Is(err, apperrors.ErrAuth))
	assert.False(t, errors.Is(err, apperrors.ErrAPI))
}
