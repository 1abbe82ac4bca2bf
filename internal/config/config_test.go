package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("Address = %q", cfg.Server.Address())
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", cfg.Session.IdleTimeout)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v, want 168h", cfg.Auth.TokenTTL)
	}
	if cfg.Barcode.CacheTTL != 24*time.Hour {
		t.Errorf("Barcode.CacheTTL = %v", cfg.Barcode.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("STORE_DB_HOST", "db.internal")
	t.Setenv("STORE_DB_PASS", "pw")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.App.IsProduction() || cfg.App.IsDevelopment() {
		t.Errorf("environment = %q", cfg.App.Environment)
	}
	want := "postgres://postgres:pw@db.internal:5432/pantrypal?sslmode=disable"
	if got := cfg.Store.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN = %q, want %q", got, want)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_REAP_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func validConfig() *Config {
	return &Config{
		Auth:   AuthConfig{JWTSecret: strings.Repeat("k", 32)},
		Store:  StoreConfig{Type: "sqlite"},
		Users:  UsersConfig{Type: "sqlite"},
		Cache:  CacheConfig{Type: "memory"},
		Upload: UploadConfig{Provider: "cloudinary", CloudinaryCloudName: "demo", CloudinaryUploadPreset: "unsigned"},
		Mail:   MailConfig{Host: "smtp.example.com"},
	}
}

func TestValidate(t *testing.T) {
	if problems := validConfig().Validate(); len(problems) != 0 {
		t.Fatalf("valid config reported %v", problems)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32"},
		{"mongo without uri", func(c *Config) { c.Store.Type = "mongodb" }, "MONGODB_URI"},
		{"unknown store", func(c *Config) { c.Store.Type = "dynamo" }, "STORE_TYPE"},
		{"unknown users", func(c *Config) { c.Users.Type = "ldap" }, "USERS_DB_TYPE"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "CACHE_TYPE"},
		{"no upload provider", func(c *Config) { c.Upload.Provider = "none" }, "UPLOAD_PROVIDER"},
		{"s3 without bucket", func(c *Config) { c.Upload.Provider = "s3" }, "UPLOAD_S3_BUCKET"},
		{"no smtp", func(c *Config) { c.Mail.Host = "" }, "SMTP_HOST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			problems := cfg.Validate()
			if len(problems) != 1 {
				t.Fatalf("problems = %v, want exactly one", problems)
			}
			if !strings.Contains(problems[0], tt.want) {
				t.Errorf("problem %q does not mention %q", problems[0], tt.want)
			}
		})
	}
}
