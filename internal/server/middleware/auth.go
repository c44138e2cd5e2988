package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/service"
)

// User facing authentication messages.
const (
	MsgTokenRequired = "Token d'authentification requis."
	MsgTokenExpired  = "Token expiré. Veuillez vous reconnecter."
	MsgTokenInvalid  = "Token invalide."
)

type contextKeyAuth string

// AuthUserKey is the context key for the authenticated user.
const AuthUserKey contextKeyAuth = "auth_user"

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*model.User, error)
}

// Authenticate requires a valid bearer token. A missing token or an expired
// one answers 401; any other verification failure answers 403. On success
// the token's user is attached to the request context.
func Authenticate(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, MsgTokenRequired)
				return
			}
			user, err := tokens.ValidateToken(token)
			if errors.Is(err, service.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, MsgTokenExpired)
				return
			}
			if err != nil {
				writeError(w, http.StatusForbidden, MsgTokenInvalid)
				return
			}
			ctx := context.WithValue(r.Context(), AuthUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the authenticated user, or nil on unauthenticated
// requests.
func GetUser(ctx context.Context) *model.User {
	if u, ok := ctx.Value(AuthUserKey).(*model.User); ok {
		return u
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
