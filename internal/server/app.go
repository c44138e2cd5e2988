package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cabinetdiet/cabinet/internal/blog"
	"github.com/cabinetdiet/cabinet/internal/config"
	"github.com/cabinetdiet/cabinet/internal/csrf"
	"github.com/cabinetdiet/cabinet/internal/ratelimit"
	"github.com/cabinetdiet/cabinet/internal/service"
	"github.com/cabinetdiet/cabinet/internal/store"
)

// App is a fully wired cabinet process: storage, services and the HTTP
// server built from one Config.
type App struct {
	Server  *Server
	Posts   *blog.Service
	Auth    *service.AuthService
	Backend *store.Backend
}

// NewApp opens the configured storage and builds every component on top of
// it. onBootstrap receives the generated admin password the first time the
// identity is created; nil prints it to stderr.
func NewApp(cfg *config.Config, logger *slog.Logger, onBootstrap service.BootstrapFunc) (*App, error) {
	backend, err := store.Open(store.Options{
		Driver:     cfg.Storage.Driver,
		DataDir:    cfg.Storage.DataDir,
		ContentDir: cfg.Storage.ContentDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	app, err := newApp(cfg, backend, logger, onBootstrap)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.Config, backend *store.Backend, logger *slog.Logger, onBootstrap service.BootstrapFunc) (*App, error) {
	hasher, err := service.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	creds := service.NewCredentialStore(backend.Identity, hasher, service.CredentialOptions{
		Username:        cfg.Auth.AdminUsername,
		InitialPassword: cfg.Auth.AdminInitialPassword,
		OnBootstrap:     onBootstrap,
	})
	auth := service.NewAuthService(creds, hasher, service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))

	posts := blog.NewService(backend.Posts, blog.Options{
		Author:            cfg.Blog.Author,
		MetaTitleSuffix:   cfg.Blog.MetaTitleSuffix,
		DefaultCoverImage: cfg.Blog.DefaultCoverImage,
		Logger:            logger,
	})

	guard, err := csrf.NewGuard(csrf.Options{
		Key:    cfg.CSRF.Secret,
		TTL:    cfg.CSRF.CookieTTL,
		Secure: cfg.Production(),
	})
	if err != nil {
		return nil, err
	}

	srv := New(serverConfig(cfg), Deps{
		Auth:         auth,
		Posts:        posts,
		CSRF:         guard,
		APILimiter:   ratelimit.NewAPILimiter(cfg.RateLimit.APIRequests, cfg.RateLimit.Window),
		LoginLimiter: ratelimit.NewLoginLimiter(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window),
	}, logger)

	return &App{Server: srv, Posts: posts, Auth: auth, Backend: backend}, nil
}

func serverConfig(cfg *config.Config) Config {
	baseURL := cfg.Server.FrontendURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	return Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Production:      cfg.Production(),
		TrustProxy:      cfg.Server.TrustProxy,
		CORSOrigins:     cfg.Origins(),
		StaticDir:       cfg.Server.StaticDir,
		BaseURL:         baseURL,
		MaxBodySize:     cfg.Server.MaxBodySize,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Run seeds the post collection, makes sure the admin identity exists and
// serves until ctx is cancelled. The storage is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Backend.Close()

	if err := a.Posts.EnsureSeeded(ctx); err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}
	if _, err := a.Auth.Admin(ctx); err != nil {
		return fmt.Errorf("admin identity: %w", err)
	}
	return a.Server.ListenAndServe(ctx)
}

// Close releases the storage without serving.
func (a *App) Close() error {
	return a.Backend.Close()
}
