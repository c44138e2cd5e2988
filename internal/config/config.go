// Package config loads the typed server configuration from viper: the
// cabinet.yaml file, CABINET_* environment variables and the legacy
// environment names of earlier deployments.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/cabinetdiet/cabinet/internal/store"
)

// DevJWTSecret signs tokens in development when no secret is configured.
const DevJWTSecret = "cabinet-development-secret-do-not-use-in-production"

// MinJWTSecretLength is the minimum secret size accepted in production.
const MinJWTSecretLength = 32

// Config is the effective configuration of a cabinet process.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	CSRF      CSRFConfig      `yaml:"csrf"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Blog      BlogConfig      `yaml:"blog"`
	Logging   LoggingConfig   `yaml:"logging"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	FrontendURL     string        `yaml:"frontend_url"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	StaticDir       string        `yaml:"static_dir"`
	MaxBodySize     int64         `yaml:"max_body_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig controls session tokens and the admin identity.
type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
	BcryptCost           int           `yaml:"bcrypt_cost"`
	AdminUsername        string        `yaml:"admin_username"`
	AdminInitialPassword string        `yaml:"admin_initial_password"`
}

// CSRFConfig controls the double-submit cookie.
type CSRFConfig struct {
	Secret    string        `yaml:"secret"`
	CookieTTL time.Duration `yaml:"cookie_ttl"`
}

// RateLimitConfig sets the per-address request budgets.
type RateLimitConfig struct {
	APIRequests   int           `yaml:"api_requests"`
	LoginAttempts int           `yaml:"login_attempts"`
	Window        time.Duration `yaml:"window"`
}

// StorageConfig selects the post and identity repositories.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	DataDir    string `yaml:"data_dir"`
	ContentDir string `yaml:"content_dir"`
}

// BlogConfig holds defaults applied to new posts.
type BlogConfig struct {
	Author            string `yaml:"author"`
	MetaTitleSuffix   string `yaml:"meta_title_suffix"`
	DefaultCoverImage string `yaml:"default_cover_image"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MCPConfig controls the MCP server started by "cabinet mcp".
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// Production reports whether the process runs with production settings.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.frontend_url", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.max_body_size", "1MiB")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_initial_password", "")

	v.SetDefault("csrf.secret", "")
	v.SetDefault("csrf.cookie_ttl", "24h")

	v.SetDefault("rate_limit.api_requests", 100)
	v.SetDefault("rate_limit.login_attempts", 5)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("storage.driver", store.DriverJSON)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.content_dir", "")

	v.SetDefault("blog.author", "Pauline Rolland")
	v.SetDefault("blog.meta_title_suffix", "Conseils diététicienne Dijon")
	v.SetDefault("blog.default_cover_image", "/images/blog/default.jpg")

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "text")

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.addr", "127.0.0.1:3002")
}

// legacyEnv maps keys to the environment names used by earlier
// deployments. CABINET_* names take precedence.
var legacyEnv = map[string]string{
	"server.port":                 "PORT",
	"server.env":                  "NODE_ENV",
	"server.frontend_url":         "FRONTEND_URL",
	"auth.jwt_secret":             "JWT_SECRET",
	"auth.admin_username":         "ADMIN_USERNAME",
	"auth.admin_initial_password": "ADMIN_INITIAL_PASSWORD",
	"csrf.secret":                 "CSRF_SECRET",
}

// BindEnv enables CABINET_* environment variables (server.port is read from
// CABINET_SERVER_PORT) and binds the legacy names.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CABINET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "CABINET_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		v.BindEnv(key, prefixed, legacy)
	}
}

// New returns a viper instance with defaults and environment bindings but no
// config file.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// Load reads the typed configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	bodySize, err := humanize.ParseBytes(v.GetString("server.max_body_size"))
	if err != nil {
		return nil, fmt.Errorf("server.max_body_size: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Env:             v.GetString("server.env"),
			FrontendURL:     strings.TrimRight(v.GetString("server.frontend_url"), "/"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			TrustProxy:      v.GetBool("server.trust_proxy"),
			StaticDir:       v.GetString("server.static_dir"),
			MaxBodySize:     int64(bodySize),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret:            v.GetString("auth.jwt_secret"),
			TokenTTL:             v.GetDuration("auth.token_ttl"),
			BcryptCost:           v.GetInt("auth.bcrypt_cost"),
			AdminUsername:        v.GetString("auth.admin_username"),
			AdminInitialPassword: v.GetString("auth.admin_initial_password"),
		},
		CSRF: CSRFConfig{
			Secret:    v.GetString("csrf.secret"),
			CookieTTL: v.GetDuration("csrf.cookie_ttl"),
		},
		RateLimit: RateLimitConfig{
			APIRequests:   v.GetInt("rate_limit.api_requests"),
			LoginAttempts: v.GetInt("rate_limit.login_attempts"),
			Window:        v.GetDuration("rate_limit.window"),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(v.GetString("storage.driver")),
			DataDir:    v.GetString("storage.data_dir"),
			ContentDir: v.GetString("storage.content_dir"),
		},
		Blog: BlogConfig{
			Author:            v.GetString("blog.author"),
			MetaTitleSuffix:   v.GetString("blog.meta_title_suffix"),
			DefaultCoverImage: v.GetString("blog.default_cover_image"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
		MCP: MCPConfig{
			Transport: strings.ToLower(v.GetString("mcp.transport")),
			Addr:      v.GetString("mcp.addr"),
		},
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if !cfg.Production() {
			cfg.Logging.Level = "debug"
		}
	}
	return cfg, nil
}

// Origins returns the CORS allow list: the configured origins when set,
// otherwise the front-end URL in production and the local dev servers in
// development.
func (c *Config) Origins() []string {
	if len(c.Server.CORSOrigins) > 0 {
		return c.Server.CORSOrigins
	}
	if c.Production() {
		if c.Server.FrontendURL == "" {
			return nil
		}
		return []string{c.Server.FrontendURL}
	}
	return []string{"http://localhost:5173", "http://localhost:3001"}
}

// Validate checks the configuration and fills development fallbacks. The
// returned warnings describe every fallback applied.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, errors.New("server.max_body_size must be positive"))
	}

	if c.Production() {
		if len(c.Auth.JWTSecret) < MinJWTSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", MinJWTSecretLength))
		}
		if c.Server.FrontendURL == "" && len(c.Server.CORSOrigins) == 0 {
			errs = append(errs, errors.New("FRONTEND_URL is required in production"))
		}
	} else if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DevJWTSecret
		warnings = append(warnings, "JWT_SECRET not set, using the development secret")
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d out of range [4,31]", c.Auth.BcryptCost))
	}
	if strings.TrimSpace(c.Auth.AdminUsername) == "" {
		errs = append(errs, errors.New("auth.admin_username must not be empty"))
	}
	if c.CSRF.CookieTTL <= 0 {
		errs = append(errs, errors.New("csrf.cookie_ttl must be positive"))
	}
	if c.RateLimit.APIRequests <= 0 || c.RateLimit.LoginAttempts <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit values must be positive"))
	}

	switch c.Storage.Driver {
	case store.DriverJSON, store.DriverMarkdown, store.DriverSQLite, store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q unknown (json, markdown, sqlite, memory)", c.Storage.Driver))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q unknown", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q unknown", c.Logging.Format))
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("mcp.transport %q unknown (stdio, http)", c.MCP.Transport))
	}

	return warnings, errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Auth.JWTSecret = mask(out.Auth.JWTSecret)
	out.Auth.AdminInitialPassword = mask(out.Auth.AdminInitialPassword)
	out.CSRF.Secret = mask(out.CSRF.Secret)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
