// Package config maps the process environment (and an optional .env file)
// onto a typed Config built once at start-up.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	SQLiteDB string `env:"SQLITE_DB" envDefault:"data-dev.sqlite"`

	// SecretKey signs the session cookie and confirmation tokens.
	SecretKey string `env:"SECRET_KEY,required,notEmpty"`

	// AdminEmail is the address that gets the Administrator role on registration.
	AdminEmail string `env:"APP_ADMIN"`

	Domain string `env:"DOMAIN" envDefault:"http://localhost:8080"`

	SMTPHost          string `env:"SMTP_HOST"`
	SMTPPort          string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser          string `env:"SMTP_USER"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`
	SMTPFrom          string `env:"SMTP_FROM"`
	MailSubjectPrefix string `env:"MAIL_SUBJECT_PREFIX" envDefault:"[Cadenza] "`

	ConfirmationTTL time.Duration `env:"CONFIRMATION_TTL" envDefault:"1h"`

	CompositionsPerPage int `env:"COMPOSITIONS_PER_PAGE" envDefault:"20"`
	FollowsPerPage      int `env:"FOLLOWS_PER_PAGE" envDefault:"50"`

	CacheDir        string        `env:"CACHE_DIR" envDefault:"cache"`
	PageCacheMaxAge time.Duration `env:"PAGE_CACHE_MAX_AGE" envDefault:"10m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV" envDefault:"false"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.AdminEmail = strings.TrimSpace(cfg.AdminEmail)
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsAdminEmail reports whether email is the administrator address adminEmail.
// An empty adminEmail matches nothing.
func IsAdminEmail(adminEmail, email string) bool {
	adminEmail = strings.TrimSpace(adminEmail)
	return adminEmail != "" && strings.EqualFold(adminEmail, strings.TrimSpace(email))
}
