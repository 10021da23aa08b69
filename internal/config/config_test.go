package config

import (
	"testing"
	"time"
)

const testSecret = "this_is_a_valid_long_jwt_secret_value_123456"

func TestLoadRejectsDefaultJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", defaultJWTSecret)
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail with default jwt secret")
	}
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail with short jwt secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %s", cfg.JWTTTL)
	}
	if cfg.MaxFileSize != 500<<20 {
		t.Fatalf("unexpected max file size %d", cfg.MaxFileSize)
	}
	if cfg.MaxAvatarSize != 2<<20 {
		t.Fatalf("unexpected max avatar size %d", cfg.MaxAvatarSize)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite default driver, got %q", cfg.DBDriver)
	}
	if cfg.PasswordResetTTL != time.Hour {
		t.Fatalf("expected 1h reset ttl, got %s", cfg.PasswordResetTTL)
	}
}

func TestLoadRejectsInvalidDBDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for invalid DB_DRIVER")
	}
}

func TestLoadRequiresDSNForNetworkDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	for _, driver := range []string{"mysql", "pgx"} {
		t.Setenv("DB_DRIVER", driver)
		t.Setenv("DB_DSN", "")
		if _, err := Load(); err == nil {
			t.Fatalf("expected Load to fail for %s without DSN", driver)
		}
	}
}

func TestLoadRejectsUnknownResetSender(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PASSWORD_RESET_SENDER", "pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for unknown sender")
	}
}

func TestEnvCSVTrimsEmptyEntries(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	got := envCSV("CORS_ALLOWED_ORIGINS")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", got)
	}
}
