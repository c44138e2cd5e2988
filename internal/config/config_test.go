package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func mustLoad(t *testing.T, v *viper.Viper) *Config {
	t.Helper()
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

// ---------------------------------------------------------------------------
// Defaults and environment
// ---------------------------------------------------------------------------

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"port", cfg.Server.Port, 3001},
		{"host", cfg.Server.Host, "0.0.0.0"},
		{"driver", cfg.Storage.Driver, "json"},
		{"data dir", cfg.Storage.DataDir, "./data"},
		{"token ttl", cfg.Auth.TokenTTL, 24 * time.Hour},
		{"bcrypt cost", cfg.Auth.BcryptCost, 12},
		{"api limit", cfg.RateLimit.APIRequests, 100},
		{"login limit", cfg.RateLimit.LoginAttempts, 5},
		{"window", cfg.RateLimit.Window, 15 * time.Minute},
		{"csrf ttl", cfg.CSRF.CookieTTL, 24 * time.Hour},
		{"body limit", cfg.Server.MaxBodySize, int64(1 << 20)},
		{"read timeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"write timeout", cfg.Server.WriteTimeout, 60 * time.Second},
		{"idle timeout", cfg.Server.IdleTimeout, 120 * time.Second},
		{"shutdown timeout", cfg.Server.ShutdownTimeout, 30 * time.Second},
		{"author", cfg.Blog.Author, "Pauline Rolland"},
		{"dev log level", cfg.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Production() {
		t.Error("defaults must not be production")
	}
}

func TestLegacyEnvironment(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("FRONTEND_URL", "https://example.fr/")
	t.Setenv("ADMIN_USERNAME", "pauline")

	cfg := mustLoad(t, New())
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000", cfg.Server.Port)
	}
	if !cfg.Production() {
		t.Error("NODE_ENV=production not honored")
	}
	if cfg.Auth.JWTSecret != "legacy-secret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.FrontendURL != "https://example.fr" {
		t.Errorf("frontend url = %q, want trailing slash trimmed", cfg.Server.FrontendURL)
	}
	if cfg.Auth.AdminUsername != "pauline" {
		t.Errorf("admin username = %q", cfg.Auth.AdminUsername)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("production log level = %q, want info", cfg.Logging.Level)
	}
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("CABINET_SERVER_PORT", "5000")
	t.Setenv("CABINET_STORAGE_DRIVER", "Markdown")
	t.Setenv("CABINET_RATE_LIMIT_WINDOW", "1m")

	cfg := mustLoad(t, New())
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "markdown" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("window = %v", cfg.RateLimit.Window)
	}
}

func TestBadBodySize(t *testing.T) {
	v := New()
	v.Set("server.max_body_size", "lots")
	if _, err := Load(v); err == nil {
		t.Error("expected error for unparseable size")
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidateDevelopmentFallback(t *testing.T) {
	cfg := DefaultConfig()
	warnings, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Auth.JWTSecret != DevJWTSecret {
		t.Errorf("jwt secret = %q, want dev fallback", cfg.Auth.JWTSecret)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestValidateProduction(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		front   string
		wantErr string
	}{
		{"ok", strings.Repeat("s", 32), "https://example.fr", ""},
		{"short secret", "short", "https://example.fr", "JWT_SECRET"},
		{"no frontend", strings.Repeat("s", 32), "", "FRONTEND_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.Env = "production"
			cfg.Logging.Level = "info"
			cfg.Auth.JWTSecret = tt.secret
			cfg.Server.FrontendURL = tt.front

			_, err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 40 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"limits", func(c *Config) { c.RateLimit.LoginAttempts = 0 }},
		{"mcp transport", func(c *Config) { c.MCP.Transport = "sse" }},
		{"empty username", func(c *Config) { c.Auth.AdminUsername = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if _, err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Origins(); len(got) != 2 || got[0] != "http://localhost:5173" {
		t.Errorf("dev origins = %v", got)
	}

	cfg.Server.Env = "production"
	cfg.Server.FrontendURL = "https://example.fr"
	if got := cfg.Origins(); len(got) != 1 || got[0] != "https://example.fr" {
		t.Errorf("production origins = %v", got)
	}

	cfg.Server.CORSOrigins = []string{"https://a.fr", "https://b.fr"}
	if got := cfg.Origins(); len(got) != 2 || got[1] != "https://b.fr" {
		t.Errorf("configured origins = %v", got)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "top-secret"
	cfg.CSRF.Secret = "csrf-secret"

	red := cfg.Redacted()
	if red.Auth.JWTSecret == "top-secret" || red.CSRF.Secret == "csrf-secret" {
		t.Errorf("secrets not masked: %+v", red.Auth)
	}
	if red.Auth.AdminInitialPassword != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Auth.JWTSecret != "top-secret" {
		t.Error("Redacted modified the receiver")
	}
}

// ---------------------------------------------------------------------------
// Config file
// ---------------------------------------------------------------------------

func TestWriteDefaultFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := WriteDefaultFile(path, false); err != nil {
		t.Fatalf("WriteDefaultFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "# HTTP listener") {
		t.Errorf("expected comments in generated file:\n%s", data)
	}
	if !strings.Contains(string(data), "1.0 MiB") {
		t.Errorf("body size not humanized:\n%s", data)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	cfg := mustLoad(t, v)
	want := DefaultConfig()
	if cfg.Server.MaxBodySize != want.Server.MaxBodySize {
		t.Errorf("max body size = %d, want %d", cfg.Server.MaxBodySize, want.Server.MaxBodySize)
	}
	if cfg.RateLimit.Window != want.RateLimit.Window || cfg.Auth.TokenTTL != want.Auth.TokenTTL {
		t.Errorf("durations changed on round trip: %v %v", cfg.RateLimit.Window, cfg.Auth.TokenTTL)
	}

	if err := WriteDefaultFile(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := WriteDefaultFile(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}
