package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSessionSecretLength = 32
)

// Config aggregates runtime configuration for the placement portal.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	DataStore      string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AllowedOrigins []string
	PublicURL      string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	AllowedDomain string
	AdminEmails   []string

	SessionSecret string
	SessionTTL    time.Duration
	SessionIssuer string
}

// rawEnv holds the values read directly from the environment. Secrets are read separately
// so they can also come from files.
type rawEnv struct {
	Environment    string        `env:"APP_ENV"`
	Port           string        `env:"PORT"`
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	DataStore      string        `env:"DATA_STORE" envDefault:"memory"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:4200,http://localhost:8080"`
	PublicURL      string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	GoogleClientID string        `env:"AUTH_GOOGLE_CLIENT_ID"`
	RedirectURL    string        `env:"AUTH_GOOGLE_REDIRECT_URL"`
	AllowedDomain  string        `env:"AUTH_ALLOWED_DOMAIN"`
	AdminEmails    []string      `env:"AUTH_ADMIN_EMAILS" envSeparator:","`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionIssuer  string        `env:"SESSION_ISSUER" envDefault:"placement-portal"`
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/placement_database_url")
	if err != nil {
		return Config{}, err
	}
	redisPassword, err := getEnvOrFile("REDIS_PASSWORD", "/run/secrets/placement_redis_password")
	if err != nil {
		return Config{}, err
	}
	googleClientSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "/run/secrets/placement_google_client_secret")
	if err != nil {
		return Config{}, err
	}
	sessionSecret, err := getEnvOrFile("SESSION_SECRET", "/run/secrets/placement_session_secret")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        strings.ToLower(strings.TrimSpace(raw.Environment)),
		LogLevel:           strings.ToLower(raw.LogLevel),
		DataStore:          strings.ToLower(strings.TrimSpace(raw.DataStore)),
		DatabaseURL:        strings.TrimSpace(databaseURL),
		RedisAddr:          strings.TrimSpace(raw.RedisAddr),
		RedisPassword:      redisPassword,
		RedisDB:            raw.RedisDB,
		AllowedOrigins:     cleanList(raw.AllowedOrigins),
		PublicURL:          strings.TrimRight(strings.TrimSpace(raw.PublicURL), "/"),
		GoogleClientID:     strings.TrimSpace(raw.GoogleClientID),
		GoogleClientSecret: strings.TrimSpace(googleClientSecret),
		GoogleRedirectURL:  strings.TrimSpace(raw.RedirectURL),
		AllowedDomain:      strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw.AllowedDomain), "@")),
		AdminEmails:        cleanList(raw.AdminEmails),
		SessionSecret:      sessionSecret,
		SessionTTL:         raw.SessionTTL,
		SessionIssuer:      strings.TrimSpace(raw.SessionIssuer),
	}

	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
		if cfg.OAuthConfigured() {
			cfg.Environment = EnvProduction
		}
	}
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.PublicURL + "/auth/google/callback"
	}

	portValue := raw.Port
	if portValue == "" {
		portValue = raw.HTTPPort
	}
	port, err := strconv.Atoi(portValue)
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid port %q", portValue)
	}
	cfg.HTTPPort = port

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DataStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATA_STORE is postgres but DATABASE_URL is not set")
		}
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("DATA_STORE is redis but REDIS_ADDR is not set")
		}
	default:
		return fmt.Errorf("unsupported DATA_STORE %q (memory, postgres or redis)", c.DataStore)
	}

	if c.AllowedDomain == "" {
		return errors.New("AUTH_ALLOWED_DOMAIN is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(c.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionIssuer == "" {
		return errors.New("SESSION_ISSUER must not be empty")
	}

	if c.IsDevelopment() {
		return nil
	}
	if c.GoogleClientID == "" {
		return errors.New("AUTH_GOOGLE_CLIENT_ID is required outside development")
	}
	if c.GoogleClientSecret == "" {
		return errors.New("AUTH_GOOGLE_CLIENT_SECRET is required outside development")
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("ALLOWED_ORIGINS must define at least one origin outside development")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return errors.New("ALLOWED_ORIGINS cannot contain wildcard outside development")
		}
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the server runs with development relaxations.
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// OAuthConfigured reports whether Google sign-in credentials are present.
func (c Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
