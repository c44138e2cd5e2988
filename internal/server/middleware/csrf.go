package middleware

import (
	"errors"
	"net/http"

	"github.com/cabinetdiet/cabinet/internal/csrf"
)

const (
	MsgCSRFMissing = "Token CSRF manquant"
	MsgCSRFInvalid = "Token CSRF invalide"
)

// CSRFVerifier checks the anti-forgery token of a request.
type CSRFVerifier interface {
	Verify(r *http.Request) error
}

// RequireCSRF rejects requests whose CSRF token is missing or does not match
// the secret cookie, with 403.
func RequireCSRF(guard CSRFVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard.Verify(r); err != nil {
				msg := MsgCSRFInvalid
				if errors.Is(err, csrf.ErrTokenMissing) {
					msg = MsgCSRFMissing
				}
				writeError(w, http.StatusForbidden, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
