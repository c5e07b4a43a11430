// Package config reads the site's settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Mail     MailConfig
	Content  ContentConfig
}

type ServerConfig struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	GinMode     string   `env:"GIN_MODE" envDefault:"debug"`
	PublicURL   string   `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`
}

type DatabaseConfig struct {
	Path string `env:"DB_PATH" envDefault:"./data/folio.db"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	AdminEmail      string        `env:"ADMIN_EMAIL" envDefault:"admin@localhost"`
	AdminPassword   string        `env:"ADMIN_PASSWORD"`
	LoginsPerMinute int           `env:"LOGINS_PER_MINUTE" envDefault:"5"`
}

type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
}

type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	ToEmail      string `env:"TO_EMAIL"`
	FromEmail    string `env:"FROM_EMAIL"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
}

type ContentConfig struct {
	File  string `env:"CONTENT_FILE"`
	Watch bool   `env:"CONTENT_WATCH" envDefault:"false"`
}

// Load builds the configuration from .env and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := randomHex(32)
		if err != nil {
			return nil, err
		}
		cfg.Auth.JWTSecret = secret
		log.Println("WARNING: JWT_SECRET not set, sessions will not survive a restart")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", cfg.Upload.MaxBytes)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
