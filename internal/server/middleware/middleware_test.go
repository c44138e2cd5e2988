package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cabinetdiet/cabinet/internal/csrf"
	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/service"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDClientValue(t *testing.T) {
	tests := []struct {
		name   string
		client string
		kept   bool
	}{
		{"trace id", "my-custom-trace-id-123", true},
		{"contains space", "bad id", false},
		{"too long", strings.Repeat("a", 129), false},
		{"control char", "abc\x01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("X-Request-ID", tt.client)
			rr := httptest.NewRecorder()
			RequestID(okHandler()).ServeHTTP(rr, req)

			got := rr.Header().Get("X-Request-ID")
			if tt.kept && got != tt.client {
				t.Errorf("got %q, want client value", got)
			}
			if !tt.kept && got == tt.client {
				t.Errorf("client value %q should have been replaced", tt.client)
			}
		})
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Authenticate middleware tests
// ---------------------------------------------------------------------------

type fakeValidator map[string]error

func (f fakeValidator) ValidateToken(token string) (*model.User, error) {
	if err, ok := f[token]; ok {
		return nil, err
	}
	return &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}, nil
}

func TestAuthenticate(t *testing.T) {
	validator := fakeValidator{
		"expired": service.ErrTokenExpired,
		"bad":     service.ErrTokenInvalid,
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"no header", "", http.StatusUnauthorized, MsgTokenRequired},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, MsgTokenRequired},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, MsgTokenRequired},
		{"expired", "Bearer expired", http.StatusUnauthorized, MsgTokenExpired},
		{"invalid", "Bearer bad", http.StatusForbidden, MsgTokenInvalid},
		{"valid", "Bearer good", http.StatusOK, ""},
		{"lowercase scheme", "bearer good", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *model.User
			handler := Authenticate(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetUser(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("POST", "/api/auth/verify", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if seen == nil || seen.Username != "admin" {
					t.Errorf("user in context = %+v", seen)
				}
				return
			}
			if msg := decodeError(t, rr); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestGetUserWithoutValue(t *testing.T) {
	if u := GetUser(context.Background()); u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
}

// ---------------------------------------------------------------------------
// RequireCSRF middleware tests
// ---------------------------------------------------------------------------

type fakeVerifier struct{ err error }

func (f fakeVerifier) Verify(*http.Request) error { return f.err }

func TestRequireCSRF(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"valid", nil, http.StatusOK, ""},
		{"missing", csrf.ErrTokenMissing, http.StatusForbidden, MsgCSRFMissing},
		{"invalid", csrf.ErrTokenInvalid, http.StatusForbidden, MsgCSRFInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RequireCSRF(fakeVerifier{tt.err})(okHandler()).ServeHTTP(rr, httptest.NewRequest("POST", "/api/posts", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantMsg != "" {
				if msg := decodeError(t, rr); msg != tt.wantMsg {
					t.Errorf("message = %q, want %q", msg, tt.wantMsg)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Recover, SecureHeaders, Logger
// ---------------------------------------------------------------------------

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/posts", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if msg := decodeError(t, rr); msg != MsgInternal {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Errorf("panic not logged: %s", logs.String())
	}
}

func TestSecureHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecureHeaders(false)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if rr.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("missing X-Frame-Options")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent in development")
	}
	if rr.Header().Get("Content-Security-Policy") != "" {
		t.Error("CSP must not be sent in development")
	}

	rr = httptest.NewRecorder()
	SecureHeaders(true)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing in production")
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Errorf("CSP = %q", rr.Header().Get("Content-Security-Policy"))
	}
}

func TestLoggerLevels(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	serve := func(path string, status int) {
		h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			io.WriteString(w, "{}")
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	serve("/api/health", http.StatusOK)
	if logs.Len() != 0 {
		t.Errorf("health probe logged at info: %s", logs.String())
	}

	serve("/api/posts/99", http.StatusNotFound)
	line := logs.String()
	if !strings.Contains(line, "level=WARN") || !strings.Contains(line, "status=404") {
		t.Errorf("unexpected log line: %s", line)
	}
	if !strings.Contains(line, "bytes=2") {
		t.Errorf("bytes not recorded: %s", line)
	}
}
