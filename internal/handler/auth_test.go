package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLoginValidCredentials(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/login", "", toJSON(t, map[string]string{
		"username": "admin",
		"password": testPassword,
	}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.LoginResponse
	decodeJSON(t, rr, &resp)
	if resp.Message != MsgLoginSuccess {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.User.ID != 1 || resp.User.Username != "admin" || resp.User.Role != model.RoleAdmin {
		t.Errorf("user = %+v", resp.User)
	}

	user, err := env.auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user.Username != "admin" || user.Role != model.RoleAdmin {
		t.Errorf("token user = %+v", user)
	}

	if len(env.limiter.keys) != 1 || env.limiter.keys[0] != "192.0.2.10" {
		t.Errorf("limiter resets = %v, want [192.0.2.10]", env.limiter.keys)
	}
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, MsgInvalidCredentials},
		{"unknown user", `{"username":"root","password":"` + testPassword + `"}`, http.StatusUnauthorized, MsgInvalidCredentials},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest, MsgLoginFieldsRequired},
		{"missing username", `{"password":"x"}`, http.StatusBadRequest, MsgLoginFieldsRequired},
		{"empty body", ``, http.StatusBadRequest, MsgLoginFieldsRequired},
		{"malformed json", `{"username":`, http.StatusBadRequest, MsgLoginFieldsRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, "POST", "/api/auth/login", "", strings.NewReader(tt.body))
			assertError(t, rr, tt.wantStatus, tt.wantMsg)
			if len(env.limiter.keys) != 0 {
				t.Errorf("limiter reset on failure: %v", env.limiter.keys)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rr := env.do(t, "POST", "/api/auth/verify", token, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp model.VerifyResponse
	decodeJSON(t, rr, &resp)
	if !resp.Valid || resp.User.Username != "admin" {
		t.Errorf("verify = %+v", resp)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/verify", "", nil)
	assertError(t, rr, http.StatusUnauthorized, middleware.MsgTokenRequired)

	rr = env.do(t, "POST", "/api/auth/verify", "not.a.token", nil)
	assertError(t, rr, http.StatusForbidden, middleware.MsgTokenInvalid)
}

// ---------------------------------------------------------------------------
// Change password
// ---------------------------------------------------------------------------

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"missing fields", map[string]string{"currentPassword": testPassword}, http.StatusBadRequest, MsgPasswordFieldsRequired},
		{"too short", map[string]string{"currentPassword": testPassword, "newPassword": "court"}, http.StatusBadRequest, MsgPasswordTooShort},
		{"wrong current", map[string]string{"currentPassword": "nope", "newPassword": "nouveau-mdp"}, http.StatusUnauthorized, MsgCurrentPasswordWrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/auth/change-password", token, toJSON(t, tt.body))
			assertError(t, rr, tt.wantStatus, tt.wantMsg)
		})
	}

	rr := env.do(t, "POST", "/api/auth/change-password", token, toJSON(t, map[string]string{
		"currentPassword": testPassword,
		"newPassword":     "nouveau-mdp",
	}))
	assertStatus(t, rr, http.StatusOK)
	var msg model.MessageResponse
	decodeJSON(t, rr, &msg)
	if msg.Message != MsgPasswordChanged {
		t.Errorf("message = %q", msg.Message)
	}

	rr = env.do(t, "POST", "/api/auth/login", "", toJSON(t, map[string]string{
		"username": "admin",
		"password": "nouveau-mdp",
	}))
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// System endpoints
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/health", "", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp model.HealthResponse
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	// 2025-03-09T10:00:00.000Z
	if len(resp.Timestamp) != 24 || !strings.HasSuffix(resp.Timestamp, "Z") {
		t.Errorf("timestamp = %q, want millisecond UTC RFC 3339", resp.Timestamp)
	}
}

func TestCSRFToken(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/csrf-token", "", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp model.CSRFTokenResponse
	decodeJSON(t, rr, &resp)
	if resp.CSRFToken != "salt.signature" {
		t.Errorf("csrfToken = %q", resp.CSRFToken)
	}
}

func TestCSRFTokenFailure(t *testing.T) {
	env := newTestEnv(t)
	env.system.csrf = stubIssuer{err: http.ErrNoCookie}

	rr := env.do(t, "GET", "/api/csrf-token", "", nil)
	assertError(t, rr, http.StatusInternalServerError, MsgCSRFError)
	if !strings.Contains(env.logs.String(), http.ErrNoCookie.Error()) {
		t.Errorf("cause not logged: %s", env.logs.String())
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/openapi.json", "", nil)
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/posts/{id}"]; !ok {
		t.Error("document lacks /api/posts/{id}")
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/nope", "", nil)
	assertError(t, rr, http.StatusNotFound, MsgRouteNotFound)
}
