package csrf

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGuard(t *testing.T, opts Options) *Guard {
	t.Helper()
	if opts.Key == "" {
		opts.Key = "test-csrf-key"
	}
	g, err := NewGuard(opts)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g
}

// issue runs IssueToken for a request carrying cookies and returns the token
// and the cookie set on the response.
func issue(t *testing.T, g *Guard, cookies ...*http.Cookie) (string, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	token, err := g.IssueToken(rec, req)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return token, c
		}
	}
	t.Fatal("no csrf cookie set")
	return "", nil
}

func mutation(token string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	if token != "" {
		req.Header.Set(HeaderName, token)
	}
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return req
}

func TestIssueAndVerify(t *testing.T) {
	g := newTestGuard(t, Options{})
	token, cookie := issue(t, g)

	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q", cookie.Path)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax in development", cookie.SameSite)
	}
	if cookie.Secure {
		t.Error("cookie must not be Secure in development")
	}
	if err := g.Verify(mutation(token, cookie)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestProductionCookie(t *testing.T) {
	g := newTestGuard(t, Options{Secure: true})
	_, cookie := issue(t, g)
	if !cookie.Secure {
		t.Error("cookie must be Secure in production")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", cookie.SameSite)
	}
}

func TestTokensReuseSecret(t *testing.T) {
	g := newTestGuard(t, Options{})
	first, cookie := issue(t, g)
	second, cookie2 := issue(t, g, cookie)

	if first == second {
		t.Error("tokens should differ between issuances")
	}
	// Both tokens verify against either cookie: the secret is unchanged.
	for _, tok := range []string{first, second} {
		for _, c := range []*http.Cookie{cookie, cookie2} {
			if err := g.Verify(mutation(tok, c)); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}
	}
}

func TestVerifyFailures(t *testing.T) {
	g := newTestGuard(t, Options{})
	token, cookie := issue(t, g)
	otherToken, otherCookie := issue(t, g)

	salt, _, _ := strings.Cut(token, ".")
	tampered := &http.Cookie{Name: CookieName, Value: cookie.Value[:len(cookie.Value)-2] + "xx"}

	tests := []struct {
		name string
		req  *http.Request
		want error
	}{
		{"no header", mutation("", cookie), ErrTokenMissing},
		{"no cookie", mutation(token, nil), ErrTokenInvalid},
		{"other session token", mutation(otherToken, cookie), ErrTokenInvalid},
		{"token for other cookie", mutation(token, otherCookie), ErrTokenInvalid},
		{"tampered cookie", mutation(token, tampered), ErrTokenInvalid},
		{"forged mac", mutation(salt+".AAAA", cookie), ErrTokenInvalid},
		{"no separator", mutation(strings.ReplaceAll(token, ".", ""), cookie), ErrTokenInvalid},
		{"garbage", mutation("garbage", cookie), ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Verify(tt.req); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCookieFromOtherKeyRejected(t *testing.T) {
	g1 := newTestGuard(t, Options{Key: "key-one"})
	g2 := newTestGuard(t, Options{Key: "key-two"})
	token, cookie := issue(t, g1)
	if err := g2.Verify(mutation(token, cookie)); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

func TestSecretRotatesAfterTTL(t *testing.T) {
	now := time.Now()
	g := newTestGuard(t, Options{TTL: time.Hour, Now: func() time.Time { return now }})
	token, cookie := issue(t, g)

	now = now.Add(30 * time.Minute)
	if err := g.Verify(mutation(token, cookie)); err != nil {
		t.Fatalf("Verify within TTL: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if err := g.Verify(mutation(token, cookie)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify after TTL: got %v, want ErrTokenInvalid", err)
	}

	// Asking for a token with the stale cookie starts a new secret.
	fresh, freshCookie := issue(t, g, cookie)
	if err := g.Verify(mutation(fresh, freshCookie)); err != nil {
		t.Errorf("Verify with fresh secret: %v", err)
	}
	if err := g.Verify(mutation(token, freshCookie)); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("old token accepted with new secret: %v", err)
	}
}
