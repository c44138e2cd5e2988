// Package csrf implements double-submit cookie protection. A random secret
// lives in an encrypted, signed cookie; tokens are salted HMACs of that
// secret, echoed back by clients in the X-CSRF-Token header.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

const (
	CookieName = "csrf-secret"
	HeaderName = "X-CSRF-Token"

	// DefaultTTL bounds the lifetime of a cookie secret.
	DefaultTTL = 24 * time.Hour

	secretLen = 32
	saltLen   = 12
)

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
)

var b64 = base64.RawURLEncoding

// Options configures a Guard.
type Options struct {
	// Key is the server key material the cookie keys are derived from. An
	// empty key draws a random one, which invalidates cookies on restart.
	Key string
	TTL time.Duration
	// Secure marks the cookie Secure and SameSite=Strict. Otherwise it is
	// SameSite=Lax so that local development over http works.
	Secure bool
	Now    func() time.Time
}

// Guard issues and verifies CSRF tokens.
type Guard struct {
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type cookieValue struct {
	Secret []byte `json:"s"`
	Issued int64  `json:"i"`
}

func NewGuard(opts Options) (*Guard, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ikm := []byte(opts.Key)
	if len(ikm) == 0 {
		ikm = securecookie.GenerateRandomKey(32)
		if ikm == nil {
			return nil, errors.New("generate csrf key: no randomness available")
		}
	}
	hashKey, err := deriveKey(ikm, "cabinet csrf cookie mac")
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(ikm, "cabinet csrf cookie encryption")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(opts.TTL / time.Second))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Guard{codec: codec, ttl: opts.TTL, secure: opts.Secure, now: opts.Now}, nil
}

func deriveKey(ikm []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}
	return key, nil
}

// IssueToken returns a fresh token bound to the caller's cookie secret,
// creating the secret (and setting the cookie) when the request carries no
// valid one.
func (g *Guard) IssueToken(w http.ResponseWriter, r *http.Request) (string, error) {
	v, ok := g.readCookie(r)
	if !ok {
		secret := make([]byte, secretLen)
		if _, err := rand.Read(secret); err != nil {
			return "", fmt.Errorf("generate csrf secret: %w", err)
		}
		v = cookieValue{Secret: secret, Issued: g.now().Unix()}
	}

	encoded, err := g.codec.Encode(CookieName, v)
	if err != nil {
		return "", fmt.Errorf("encode csrf cookie: %w", err)
	}
	remaining := g.ttl - g.now().Sub(time.Unix(v.Issued, 0))
	sameSite := http.SameSiteLaxMode
	if g.secure {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(remaining / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: sameSite,
	})

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate csrf salt: %w", err)
	}
	s := b64.EncodeToString(salt)
	return s + "." + sign(v.Secret, s), nil
}

// Verify checks the request's token header against its cookie secret.
func (g *Guard) Verify(r *http.Request) error {
	token := r.Header.Get(HeaderName)
	if token == "" {
		return ErrTokenMissing
	}
	v, ok := g.readCookie(r)
	if !ok {
		return ErrTokenInvalid
	}
	salt, mac, found := strings.Cut(token, ".")
	if !found || salt == "" || mac == "" {
		return ErrTokenInvalid
	}
	if !hmac.Equal([]byte(mac), []byte(sign(v.Secret, salt))) {
		return ErrTokenInvalid
	}
	return nil
}

// readCookie decodes the secret cookie, rejecting tampered, malformed and
// expired values.
func (g *Guard) readCookie(r *http.Request) (cookieValue, bool) {
	var v cookieValue
	c, err := r.Cookie(CookieName)
	if err != nil {
		return v, false
	}
	if err := g.codec.Decode(CookieName, c.Value, &v); err != nil {
		return v, false
	}
	if len(v.Secret) != secretLen {
		return v, false
	}
	age := g.now().Sub(time.Unix(v.Issued, 0))
	if age < 0 || age >= g.ttl {
		return v, false
	}
	return v, true
}

func sign(secret []byte, salt string) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(salt))
	return b64.EncodeToString(m.Sum(nil))
}
