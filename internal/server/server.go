package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cabinetdiet/cabinet/internal/blog"
	"github.com/cabinetdiet/cabinet/internal/csrf"
	"github.com/cabinetdiet/cabinet/internal/handler"
	"github.com/cabinetdiet/cabinet/internal/ratelimit"
	"github.com/cabinetdiet/cabinet/internal/server/middleware"
	"github.com/cabinetdiet/cabinet/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	Production      bool
	TrustProxy      bool
	CORSOrigins     []string
	StaticDir       string
	BaseURL         string
	MaxBodySize     int64 // bytes
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with the development defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3001,
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3001"},
		MaxBodySize:     1 << 20, // 1MiB
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Deps are the components the router dispatches to.
type Deps struct {
	Auth         *service.AuthService
	Posts        *blog.Service
	CSRF         *csrf.Guard
	APILimiter   *ratelimit.APILimiter
	LoginLimiter *ratelimit.LoginLimiter
}

// Server is the HTTP server of the site API. It owns the Chi router and the
// components the handlers use.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server with every route and middleware mounted. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.SecureHeaders(s.cfg.Production))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrf.HeaderName, "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	r.Use(chimw.RequestSize(s.cfg.MaxBodySize))

	authHandler := handler.NewAuthHandler(s.deps.Auth, s.logger, s.deps.APILimiter, s.deps.LoginLimiter)
	postsHandler := handler.NewPostsHandler(s.deps.Posts, s.logger)
	sysHandler := handler.NewSystemHandler(s.deps.CSRF, s.cfg.BaseURL, s.logger)

	bearer := middleware.Authenticate(s.deps.Auth)
	requireCSRF := middleware.RequireCSRF(s.deps.CSRF)

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		r.Use(s.deps.APILimiter.Handler)

		r.Get("/health", sysHandler.Health)
		r.Get("/csrf-token", sysHandler.CSRFToken)
		r.Get("/openapi.json", sysHandler.OpenAPI)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.deps.LoginLimiter.Handler).Post("/login", authHandler.Login)
			r.With(bearer).Post("/verify", authHandler.Verify)
			r.With(bearer, requireCSRF).Post("/change-password", authHandler.ChangePassword)
		})

		r.Route("/posts", func(r chi.Router) {
			// Public reads
			r.Get("/", postsHandler.List)
			r.Get("/categories", postsHandler.Categories)
			r.Get("/slug/{slug}", postsHandler.GetBySlug)

			r.With(bearer).Get("/{id}", postsHandler.GetByID)

			// Mutations: bearer token, then CSRF token
			r.Group(func(r chi.Router) {
				r.Use(bearer, requireCSRF)
				r.Post("/", postsHandler.Create)
				r.Post("/reset", postsHandler.Reset)
				r.Put("/{id}", postsHandler.Update)
				r.Delete("/{id}", postsHandler.Delete)
			})
		})

		r.NotFound(sysHandler.NotFound)
		r.MethodNotAllowed(sysHandler.NotFound)
	})

	// --- Built front end ---
	if s.cfg.StaticDir != "" {
		spa := spaHandler(s.cfg.StaticDir)
		r.Get("/*", spa)
		r.Head("/*", spa)
	}

	s.router = r
}

// spaHandler serves files from dir as-is and index.html for every other
// path, so client side routes survive a reload.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	}
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled.
// It then performs a graceful shutdown, draining in-flight requests for up
// to the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String(), "production", s.cfg.Production)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
