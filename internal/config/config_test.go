package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authcore/internal/oauth"
)

// noEnvFile points Load at a file that does not exist, so a developer's
// local .env never leaks into the tests.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func validConfig() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",
		DBDriver: "sqlite",
		DBDSN:    ":memory:",
		Auth: AuthConfig{
			SessionDaysValid: 30,
			SessionHeader:    "x-auth",
			SessionParam:     "t",
			MinStrength:      1,
			BcryptCost:       10,
		},
		RateLimit: RateLimitConfig{LoginPerMinute: 10, LoginBurst: 10},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 30, cfg.Auth.SessionDaysValid)
	assert.Equal(t, "x-auth", cfg.Auth.SessionHeader)
	assert.Equal(t, "t", cfg.Auth.SessionParam)
	assert.Equal(t, 1, cfg.Auth.MinStrength)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.True(t, cfg.Auth.AllowCreate)
	assert.True(t, cfg.Auth.AllowExpand)
	assert.Empty(t, cfg.GitHub.ClientID)
	assert.False(t, cfg.TrustProxyHeaders, "proxy headers are ignored unless enabled")
	assert.Equal(t, oauth.GoogleCertsURL, cfg.Google.CertsURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/auth?sslmode=disable")
	t.Setenv("AUTH_SESSION_DAYS_VALID", "7")
	t.Setenv("AUTH_ALLOW_CREATE", "false")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("LOGIN_RATE_PER_MINUTE", "3")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 7, cfg.Auth.SessionDaysValid)
	assert.False(t, cfg.Auth.AllowCreate)
	assert.Equal(t, "id", cfg.GitHub.ClientID)
	assert.Equal(t, 3, cfg.RateLimit.LoginPerMinute)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load(noEnvFile(t))
	assert.ErrorIs(t, err, ErrParsingConfig)
}

func TestLoad_ValidationError(t *testing.T) {
	t.Setenv("AUTH_MIN_PASSWORD_STRENGTH", "9")

	_, err := Load(noEnvFile(t))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOOGLE_CLIENT_ID=from-file\nPORT=7000\n"), 0o600))

	// Already-set variables win over the file.
	t.Setenv("PORT", "7100")
	t.Cleanup(func() { os.Unsetenv("GOOGLE_CLIENT_ID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Google.ClientID)
	assert.Equal(t, 7100, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"dsn", func(c *Config) { c.DBDSN = "" }},
		{"session days", func(c *Config) { c.Auth.SessionDaysValid = 0 }},
		{"strength", func(c *Config) { c.Auth.MinStrength = 5 }},
		{"bcrypt cost low", func(c *Config) { c.Auth.BcryptCost = 2 }},
		{"bcrypt cost high", func(c *Config) { c.Auth.BcryptCost = 32 }},
		{"session header", func(c *Config) { c.Auth.SessionHeader = "" }},
		{"github secret", func(c *Config) { c.GitHub.ClientID = "id" }},
		{"rate", func(c *Config) { c.RateLimit.LoginBurst = 0 }},
		{"google certs", func(c *Config) { c.Google = GoogleConfig{ClientID: "id"} }},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := validConfig()

	cfg.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	cfg.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestGitHubCallbackURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL())

	cfg.GitHub.CallbackURL = "https://auth.example.com/auth/github/callback"
	assert.Equal(t, "https://auth.example.com/auth/github/callback", cfg.GitHubCallbackURL())
}
