package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cabinetdiet/cabinet/internal/blog"
	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/server/middleware"
	"github.com/cabinetdiet/cabinet/internal/service"
	"github.com/cabinetdiet/cabinet/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-32b!"
	testPassword  = "supersecretpassword"
)

// recordingResetter remembers the keys it was asked to reset.
type recordingResetter struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingResetter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) IssueToken(http.ResponseWriter, *http.Request) (string, error) {
	return s.token, s.err
}

// testEnv holds shared state for handler tests.
type testEnv struct {
	repo    *store.Memory
	posts   *blog.Service
	auth    *service.AuthService
	limiter *recordingResetter
	system  *SystemHandler
	router  chi.Router
	logs    *bytes.Buffer
}

// newTestEnv mounts the handlers on a bare router. Bearer authentication is
// applied to the protected routes; CSRF is left to the server tests.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := store.NewMemory()
	hasher, err := service.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	creds := service.NewCredentialStore(repo, hasher, service.CredentialOptions{
		Username:        "admin",
		InitialPassword: testPassword,
	})
	auth := service.NewAuthService(creds, hasher, service.NewTokenService(testJWTSecret, time.Hour))

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	posts := blog.NewService(repo, blog.Options{
		Logger: logger,
		Now:    func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC) },
	})

	limiter := &recordingResetter{}
	authHandler := NewAuthHandler(auth, logger, limiter)
	postsHandler := NewPostsHandler(posts, logger)
	system := NewSystemHandler(stubIssuer{token: "salt.signature"}, "", logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", system.Health)
		r.Get("/csrf-token", system.CSRFToken)
		r.Get("/openapi.json", system.OpenAPI)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/posts", postsHandler.List)
		r.Get("/posts/categories", postsHandler.Categories)
		r.Get("/posts/slug/{slug}", postsHandler.GetBySlug)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(auth))
			r.Post("/auth/verify", authHandler.Verify)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Get("/posts/{id}", postsHandler.GetByID)
			r.Post("/posts", postsHandler.Create)
			r.Put("/posts/{id}", postsHandler.Update)
			r.Delete("/posts/{id}", postsHandler.Delete)
			r.Post("/posts/reset", postsHandler.Reset)
		})

		r.NotFound(system.NotFound)
	})

	return &testEnv{
		repo:    repo,
		posts:   posts,
		auth:    auth,
		limiter: limiter,
		system:  system,
		router:  r,
		logs:    logs,
	}
}

// login returns a bearer token for the test admin.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/auth/login", "", toJSON(t, map[string]string{
		"username": "admin",
		"password": testPassword,
	}))
	assertStatus(t, rr, http.StatusOK)
	var resp model.LoginResponse
	decodeJSON(t, rr, &resp)
	return resp.Token
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "192.0.2.10:41000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assertStatus(t, rr, status)
	var body model.ErrorResponse
	decodeJSON(t, rr, &body)
	if body.Error != msg {
		t.Errorf("error = %q, want %q", body.Error, msg)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
