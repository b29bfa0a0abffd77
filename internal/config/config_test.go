package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "leads"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.DB.MaxConns != 10 {
		t.Fatalf("expected 10 max conns default, got %d", c.DB.MaxConns)
	}
	if c.Intake.RateLimitWindow != 60*time.Second {
		t.Fatalf("expected 60s rate limit window, got %v", c.Intake.RateLimitWindow)
	}
	if c.Intake.ListCacheTTL != 300*time.Second {
		t.Fatalf("expected 300s list cache ttl, got %v", c.Intake.ListCacheTTL)
	}
	if c.Audit.RetentionDays != 30 {
		t.Fatalf("expected 30 retention days, got %d", c.Audit.RetentionDays)
	}
	if c.AuditRetention() != 30*24*time.Hour {
		t.Fatalf("unexpected retention duration %v", c.AuditRetention())
	}
	if c.AuthEnabled() {
		t.Fatalf("auth must be disabled without a secret")
	}
}

func TestValidate_AuthRequiresIssuerInProduction(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth.JWTSecret = "secret"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production auth without issuer/audience")
	}

	c.Auth.JWTIssuer = "lead-intake"
	c.Auth.JWTAudience = "api"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected default access ttl, got %v", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_ThrottleBurstDefault(t *testing.T) {
	c := validLocal()
	c.RateLimit.RPS = 5
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.RateLimit.Burst != 6 {
		t.Fatalf("expected burst 6, got %d", c.RateLimit.Burst)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8081")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "leads")
	t.Setenv("DB_NAME", "leads")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("LEAD_RATE_LIMIT_WINDOW", "2m")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("HTTP_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.0/8,")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Intake.RateLimitWindow != 2*time.Minute {
		t.Fatalf("expected 2m window, got %v", c.Intake.RateLimitWindow)
	}
	if !c.DB.AutoMigrate {
		t.Fatalf("expected auto migrate")
	}
	if len(c.App.TrustedProxies) != 2 || c.App.TrustedProxies[1] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies %v", c.App.TrustedProxies)
	}
	if c.HTTPAddr() != ":8081" || c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
}

func TestLoad_RejectsNonIntegerPort(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "http")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "leads")
	t.Setenv("DB_NAME", "leads")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
