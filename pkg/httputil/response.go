package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
	"github.com/wbuist/mgu-api-integration/pkg/logger"
	"github.com/wbuist/mgu-api-integration/pkg/validator"
)

// Response is the JSON envelope the flow API returns for every call.
// Success responses carry the payload in Data; failures carry the error
// message string in Data.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails the headers are already sent, so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a {success:true, data} envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// WriteError converts any workflow error into the {success:false, data:message}
// envelope. Raw transport details never reach the caller: the message is the
// AppError message, or a generic one for unclassified errors, which are also
// logged. It prefers the request-scoped logger from context over the fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	status := apperrors.HTTPStatus(err)
	message := "an internal error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Field != "" {
			message = "Field " + appErr.Field + ": " + appErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Success: false, Data: message})
}

// WriteValidationError writes the envelope for a request-body validation
// failure, naming the first offending field the way the original flow did.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		field, msg := valErr.First()
		WriteJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Data:    "Field " + field + ": " + msg,
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{Success: false, Data: err.Error()})
}
