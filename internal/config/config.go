package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "CHANGE_ME_PRODUCTION_JWT_SECRET"

type Config struct {
	ListenAddr string

	DBDriver          string
	DBDSN             string
	DBPath            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadDir     string
	MaxFileSize   int64
	MaxAvatarSize int64

	CORSAllowedOrigins []string
	TrustProxy         bool

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	PasswordResetSender  string
	PasswordResetFrom    string
	PasswordResetBaseURL string
	PasswordResetTTL     time.Duration
	SMTPHost             string
	SMTPPort             int

	LogLevel  string
	LogFormat string
	LogFile   string
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":8080"),
		DBDriver:                 strings.ToLower(env("DB_DRIVER", "sqlite")),
		DBDSN:                    env("DB_DSN", ""),
		DBPath:                   env("APP_DB_PATH", "./data/docmanager.db"),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		JWTSecret:                env("JWT_SECRET", defaultJWTSecret),
		JWTTTL:                   envDuration("JWT_TTL", 24*time.Hour),
		RedisAddr:                env("REDIS_ADDR", ""),
		RedisPassword:            env("REDIS_PASSWORD", ""),
		RedisDB:                  envInt("REDIS_DB", 0),
		UploadDir:                env("UPLOAD_DIR", "./uploads"),
		MaxFileSize:              envInt64("MAX_FILE_SIZE", 500<<20),
		MaxAvatarSize:            envInt64("MAX_AVATAR_SIZE", 2<<20),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		TrustProxy:               envBool("TRUST_PROXY", false),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 60),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 120),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		BootstrapAdminEmail:      env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:   env("BOOTSTRAP_ADMIN_PASSWORD", ""),
		PasswordResetSender:      strings.ToLower(env("PASSWORD_RESET_SENDER", "log")),
		PasswordResetFrom:        env("PASSWORD_RESET_FROM", "no-reply@example.com"),
		PasswordResetBaseURL:     env("PASSWORD_RESET_BASE_URL", ""),
		PasswordResetTTL:         envDuration("PASSWORD_RESET_TTL", time.Hour),
		SMTPHost:                 env("SMTP_HOST", "127.0.0.1"),
		SMTPPort:                 envInt("SMTP_PORT", 25),
		LogLevel:                 strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat:                strings.ToLower(env("LOG_FORMAT", "text")),
		LogFile:                  env("LOG_FILE", ""),
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "mysql", "pgx":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return Config{}, fmt.Errorf("DB_DSN is required when DB_DRIVER=%s", cfg.DBDriver)
		}
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be one of: sqlite, mysql, pgx")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" ||
		cfg.JWTSecret == defaultJWTSecret ||
		len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be set to a strong non-default value (>=32 chars)")
	}
	if cfg.JWTTTL <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL must be positive")
	}
	if cfg.PasswordResetTTL <= 0 {
		return Config{}, fmt.Errorf("PASSWORD_RESET_TTL must be positive")
	}
	if cfg.MaxFileSize <= 0 || cfg.MaxAvatarSize <= 0 {
		return Config{}, fmt.Errorf("upload size limits must be positive")
	}
	switch cfg.PasswordResetSender {
	case "log", "smtp":
	default:
		return Config{}, fmt.Errorf("PASSWORD_RESET_SENDER must be one of: log, smtp")
	}
	if cfg.PasswordResetSender == "smtp" && cfg.SMTPPort <= 0 {
		return Config{}, fmt.Errorf("invalid SMTP port")
	}
	return cfg, nil
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
