package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/ratelimit"
	"github.com/cabinetdiet/cabinet/internal/server/middleware"
	"github.com/cabinetdiet/cabinet/internal/service"
)

// User facing messages of the auth endpoints.
const (
	MsgLoginFieldsRequired    = "Nom d'utilisateur et mot de passe requis."
	MsgInvalidCredentials     = "Identifiants incorrects."
	MsgLoginSuccess           = "Connexion réussie"
	MsgLoginError             = "Erreur lors de la connexion."
	MsgPasswordFieldsRequired = "Mot de passe actuel et nouveau mot de passe requis."
	MsgPasswordTooShort       = "Le nouveau mot de passe doit contenir au moins 8 caractères."
	MsgCurrentPasswordWrong   = "Mot de passe actuel incorrect."
	MsgPasswordChanged        = "Mot de passe modifié avec succès."
	MsgPasswordChangeError    = "Erreur lors du changement de mot de passe."
	MsgTokenInvalid           = "Token invalide."
)

// Resetter clears the rate limit history of a client.
type Resetter interface {
	Reset(key string)
}

// AuthHandler serves login, session verification and password change.
type AuthHandler struct {
	auth     *service.AuthService
	limiters []Resetter
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. The limiters are reset for the
// client on every successful login.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger, limiters ...Resetter) *AuthHandler {
	return &AuthHandler{auth: auth, limiters: limiters, logger: logger}
}

// Login checks the credentials and returns a session token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := readJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, MsgLoginFieldsRequired)
		return
	}

	token, admin, err := h.auth.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Warn("login rejected", "remote_addr", ratelimit.ClientKey(r), "request_id", middleware.GetRequestID(r.Context()))
			writeError(w, http.StatusUnauthorized, MsgInvalidCredentials)
			return
		}
		h.internal(w, r, MsgLoginError, err)
		return
	}

	key := ratelimit.ClientKey(r)
	for _, l := range h.limiters {
		l.Reset(key)
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		Message: MsgLoginSuccess,
		Token:   token,
		User:    admin.User(),
	})
}

// Verify reports the identity of a valid bearer token. Authentication is
// done by middleware; reaching the handler means the token is valid.
// POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusForbidden, MsgTokenInvalid)
		return
	}
	writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: true, User: *user})
}

// ChangePassword replaces the admin password.
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if err := readJSON(r, &req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, MsgPasswordFieldsRequired)
		return
	}

	switch err := h.auth.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); {
	case err == nil:
		h.logger.Info("admin password changed", "request_id", middleware.GetRequestID(r.Context()))
		writeMessage(w, http.StatusOK, MsgPasswordChanged)
	case errors.Is(err, service.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, MsgPasswordTooShort)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, MsgCurrentPasswordWrong)
	default:
		h.internal(w, r, MsgPasswordChangeError, err)
	}
}

func (h *AuthHandler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logInternal(h.logger, r, msg, err)
	writeError(w, http.StatusInternalServerError, msg)
}

// logInternal records the cause of a 500 response. The cause is never sent
// to the client.
func logInternal(logger *slog.Logger, r *http.Request, msg string, err error) {
	logger.Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	)
}
