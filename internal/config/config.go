// Package config loads the service configuration from the environment.
//
// Values come from environment variables, optionally seeded from a .env
// file in the working directory. Every field has a default suitable for
// local development, so an empty environment starts a working server backed
// by a SQLite file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into Config.
	ErrParsingConfig = errors.New("config: failed to parse environment")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("config: invalid value")
)

// Config holds every setting the server and the admin CLI need.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"data/authcore.db"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them; the
	// login rate limiter keys on that IP.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	Auth      AuthConfig
	GitHub    GitHubConfig
	Google    GoogleConfig
	RateLimit RateLimitConfig
}

// AuthConfig configures sessions, passwords and the OAuth policy.
type AuthConfig struct {
	SessionDaysValid int    `env:"AUTH_SESSION_DAYS_VALID" envDefault:"30"`
	SessionHeader    string `env:"AUTH_SESSION_HEADER" envDefault:"x-auth"`
	SessionParam     string `env:"AUTH_SESSION_PARAM" envDefault:"t"`
	MinStrength      int    `env:"AUTH_MIN_PASSWORD_STRENGTH" envDefault:"1"`
	BcryptCost       int    `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	AllowCreate      bool   `env:"AUTH_ALLOW_CREATE" envDefault:"true"`
	AllowExpand      bool   `env:"AUTH_ALLOW_EXPAND" envDefault:"true"`
}

// GitHubConfig enables GitHub login when ClientID is set.
type GitHubConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `env:"GITHUB_CALLBACK_URL"`
}

// GoogleConfig enables Google ID-token login when ClientID is set.
type GoogleConfig struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
	CertsURL string `env:"GOOGLE_CERTS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
}

// RateLimitConfig throttles credential-checking endpoints per client IP.
type RateLimitConfig struct {
	LoginPerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	LoginBurst     int `env:"LOGIN_BURST" envDefault:"10"`
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), parses the environment into a Config and validates it.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.Port <= 0 || c.Port > 65535 {
		invalid("PORT %d out of range", c.Port)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		invalid("LOG_LEVEL %q", c.LogLevel)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		invalid("DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	if c.DBDSN == "" {
		invalid("DB_DSN is empty")
	}
	if c.Auth.SessionDaysValid <= 0 {
		invalid("AUTH_SESSION_DAYS_VALID must be positive, got %d", c.Auth.SessionDaysValid)
	}
	if c.Auth.MinStrength < 0 || c.Auth.MinStrength > 4 {
		invalid("AUTH_MIN_PASSWORD_STRENGTH must be 0-4, got %d", c.Auth.MinStrength)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		invalid("AUTH_BCRYPT_COST must be %d-%d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if c.Google.ClientID != "" && c.Google.CertsURL == "" {
		invalid("GOOGLE_CERTS_URL must be set when GOOGLE_CLIENT_ID is")
	}
	if c.Auth.SessionHeader == "" || c.Auth.SessionParam == "" {
		invalid("AUTH_SESSION_HEADER and AUTH_SESSION_PARAM must be set")
	}
	if c.GitHub.ClientID != "" && c.GitHub.ClientSecret == "" {
		invalid("GITHUB_CLIENT_SECRET is required with GITHUB_CLIENT_ID")
	}
	if c.RateLimit.LoginPerMinute <= 0 || c.RateLimit.LoginBurst <= 0 {
		invalid("LOGIN_RATE_PER_MINUTE and LOGIN_BURST must be positive")
	}

	return errors.Join(errs...)
}

// SlogLevel returns LOG_LEVEL as a slog.Level. Unknown values mean Info.
func (c Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// GitHubCallbackURL returns the configured callback, or the local default.
func (c Config) GitHubCallbackURL() string {
	if c.GitHub.CallbackURL != "" {
		return c.GitHub.CallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s))))
	return l, err
}
