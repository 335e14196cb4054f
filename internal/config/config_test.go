package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("SOURCE_BASE_URL", "https://inventory.example.com/api/")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.HTTPPort)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.DatabaseDriver)
	}
	if cfg.SourceBaseURL != "https://inventory.example.com/api" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.SourceBaseURL)
	}
	if cfg.SourceTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.SourceTimeout)
	}
	if cfg.ReconcileSchedule != "@every 5m" {
		t.Errorf("unexpected schedule %q", cfg.ReconcileSchedule)
	}
	if cfg.JWTSecret != "test-secret" || cfg.JWTSecretSource != "env" {
		t.Errorf("expected secret from env, got %q from %s", cfg.JWTSecret, cfg.JWTSecretSource)
	}
	if !cfg.AuthEnabled {
		t.Error("auth should be enabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:mel.db")
	t.Setenv("SOURCE_TIMEOUT", "45")
	t.Setenv("SOURCE_RATE_LIMIT", "2.5")
	t.Setenv("GROUP_CACHE_TTL", "2m")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("SERVICE_API_KEYS", " k1, ,k2 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.DatabaseDriver != "sqlite" || cfg.DatabaseURL != "file:mel.db" {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if cfg.SourceTimeout != 45*time.Second {
		t.Errorf("expected bare seconds to parse, got %v", cfg.SourceTimeout)
	}
	if cfg.SourceRateLimit != 2.5 || cfg.GroupCacheTTL != 2*time.Minute {
		t.Errorf("unexpected rate/ttl: %v %v", cfg.SourceRateLimit, cfg.GroupCacheTTL)
	}
	if cfg.AuthEnabled {
		t.Error("expected auth disabled")
	}
	if len(cfg.ServiceAPIKeys) != 2 || cfg.ServiceAPIKeys[1] != "k2" {
		t.Errorf("unexpected service keys %v", cfg.ServiceAPIKeys)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:       3000,
			DatabaseDriver: "postgres",
			DatabaseURL:    "postgres://x",
			AuthEnabled:    true,
			AdminPassword:  "pw",
			JWTExpiryHours: 24,
			SourceMode:     SourceModeHTTP,
			SourceBaseURL:  "http://inv",
			SourceTimeout:  time.Second,
			SourceMaxPages: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"missing password", func(c *Config) { c.AdminPassword = "" }, "ADMIN_PASSWORD"},
		{"auth disabled needs no password", func(c *Config) { c.AuthEnabled = false; c.AdminPassword = "" }, ""},
		{"http mode without url", func(c *Config) { c.SourceBaseURL = "" }, "SOURCE_BASE_URL"},
		{"file mode without files", func(c *Config) { c.SourceMode = SourceModeFile }, "SOURCE_EQUIPMENT_FILE"},
		{"unknown mode", func(c *Config) { c.SourceMode = "ftp" }, "SOURCE_MODE"},
		{"slack without channel", func(c *Config) { c.SlackBotToken = "xoxb" }, "SLACK_CHANNEL"},
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }, "HTTP_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadOrGenerateJWTSecret_PersistsGeneratedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "nested", ".jwt_secret")

	first, source := loadOrGenerateJWTSecret(path)
	if source != "generated" || len(first) != 64 {
		t.Fatalf("expected generated 64-char secret, got %q from %s", first, source)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != first {
		t.Fatalf("secret not persisted: %v", err)
	}

	second, source := loadOrGenerateJWTSecret(path)
	if second != first || source != "file" {
		t.Errorf("expected persisted secret from file, got %q from %s", second, source)
	}
}
