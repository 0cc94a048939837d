package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

// errorBody models the shapes the MGU API uses for error responses. The API
// is not consistent: some endpoints return {"message": ...}, some
// {"error": ...}, some {"errors": [...]}.
type errorBody struct {
	Message string   `json:"message"`
	ErrMsg  string   `json:"error"`
	Errors  []string `json:"errors"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError carrying the best-available message, in priority order:
// message field, error field, joined errors array, raw body. The full payload
// is attached as error context.
//
// The caller should only invoke this when resp.StatusCode >= 400. The
// response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("api returned status %d (failed to read body: %w)", resp.StatusCode, err)
	}

	message := "Unknown error"
	var parsed errorBody
	if json.Unmarshal(bodyBytes, &parsed) == nil {
		switch {
		case parsed.Message != "":
			message = parsed.Message
		case parsed.ErrMsg != "":
			message = parsed.ErrMsg
		case len(parsed.Errors) > 0:
			message = strings.Join(parsed.Errors, ", ")
		case len(bodyBytes) > 0:
			message = "API Error: " + string(bodyBytes)
		}
	} else if len(bodyBytes) > 0 {
		message = "API Error: " + string(bodyBytes)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.Auth(message)
	}
	return apperrors.API(resp.StatusCode, message, json.RawMessage(bodyBytes))
}
