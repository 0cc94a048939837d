package http

import (
	"log/slog"
	"net/http"

	"github.com/wbuist/mgu-api-integration/internal/repository"
	"github.com/wbuist/mgu-api-integration/pkg/httputil"
)

// SessionTokenHeader carries the per-session anti-forgery token every flow
// action must present.
const SessionTokenHeader = "X-Session-Token"

// SessionAuth rejects flow requests that do not carry a known, unexpired
// session token. Validation slides the session TTL, so active sessions stay
// alive for as long as the customer keeps working.
func SessionAuth(sessions repository.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(SessionTokenHeader)
			if token == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
					Success: false,
					Data:    "session token is required",
				})
				return
			}

			ok, err := sessions.Validate(r.Context(), token)
			if err != nil {
				logger.ErrorContext(r.Context(), "session validation failed",
					slog.String("error", err.Error()),
				)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Success: false,
					Data:    "an internal error occurred",
				})
				return
			}
			if !ok {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
					Success: false,
					Data:    "session is invalid or expired",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON forces the response content type for the API subtree.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
