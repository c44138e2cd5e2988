package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// DefaultWindow is the rolling window of both limiters.
const DefaultWindow = 15 * time.Minute

// User facing throttling messages.
const (
	MsgTooManyRequests = "Trop de requêtes, veuillez réessayer plus tard."
	MsgTooManyLogins   = "Trop de tentatives de connexion, veuillez réessayer dans 15 minutes."
)

// ClientKey returns the limiter key of the request's client address. It
// reads RemoteAddr, so a trusted proxy setup must rewrite it first.
func ClientKey(r *http.Request) string {
	key, _ := httprate.KeyByIP(r)
	return key
}

type limiter struct {
	rl      *httprate.RateLimiter
	counter *Counter
	limit   int
	window  time.Duration
	message string
}

func newLimiter(limit int, window time.Duration, message string) *limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &limiter{counter: NewCounter(), limit: limit, window: window, message: message}
	l.counter.Config(limit, window)
	l.rl = httprate.NewRateLimiter(limit, window,
		httprate.WithLimitCounter(l.counter),
		httprate.WithLimitHandler(l.respond),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusInternalServerError, "Une erreur interne est survenue.")
		}),
	)
	return l
}

// Reset clears the counts of one client key.
func (l *limiter) Reset(key string) {
	l.counter.Reset(key)
}

func (l *limiter) respond(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, l.message)
}

// APILimiter caps every request per client address. Preflight requests are
// not counted.
type APILimiter struct {
	*limiter
}

func NewAPILimiter(limit int, window time.Duration) *APILimiter {
	return &APILimiter{newLimiter(limit, window, MsgTooManyRequests)}
}

func (l *APILimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if l.rl.RespondOnLimit(w, r, ClientKey(r)) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginLimiter caps failed logins per client address. Every attempt holds a
// slot while the wrapped handler runs and gives it back unless the handler
// answers with an error status, so parallel attempts cannot exceed the limit.
type LoginLimiter struct {
	*limiter
}

func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{newLimiter(limit, window, MsgTooManyLogins)}
}

func (l *LoginLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)
		window, ok := l.counter.Acquire(key, l.limit, time.Now().UTC())
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			l.respond(w, r)
			return
		}

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status < http.StatusBadRequest || status == http.StatusTooManyRequests {
			l.counter.Release(key, window)
		}
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
