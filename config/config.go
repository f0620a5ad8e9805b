// Package config loads the connector's configuration from a YAML file with
// environment variable overrides.
//
// The config path is resolved in priority order: the --config flag, the
// CONFIG_PATH environment variable, then ./local.yaml. When no file exists
// the configuration is read from the environment alone. Secrets (client
// secret, database URL, encryption key) are expected from the environment in
// production.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full connector configuration.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	HubSpot   HubSpotConfig   `yaml:"hubspot"`
	DB        DBConfig        `yaml:"db"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Security  SecurityConfig  `yaml:"security"`
	Timezone  string          `yaml:"timezone" env:"TIMEZONE" env-default:"America/Sao_Paulo"`
}

// HTTPConfig configures the listening socket and server timeouts.
type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// Addr returns the host:port pair to listen on.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HubSpotConfig holds the OAuth app credentials and API endpoints. The URL
// fields exist for tests against a fake HubSpot; leave them empty in
// production to use the real endpoints.
type HubSpotConfig struct {
	ClientID     string        `yaml:"client_id" env:"HUBSPOT_CLIENT_ID" env-required:"true"`
	ClientSecret string        `env:"HUBSPOT_CLIENT_SECRET" env-required:"true"`
	RedirectURL  string        `yaml:"redirect_url" env:"HUBSPOT_REDIRECT_URL"`
	AuthURL      string        `yaml:"auth_url" env:"HUBSPOT_AUTH_URL"`
	TokenURL     string        `yaml:"token_url" env:"HUBSPOT_TOKEN_URL"`
	APIBaseURL   string        `yaml:"api_base_url" env:"HUBSPOT_API_BASE_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"HUBSPOT_TIMEOUT" env-default:"30s"`
}

// DBConfig holds the Postgres connection string.
type DBConfig struct {
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
}

// RateLimitConfig configures the per-IP limiter. Zero rate disables limiting.
type RateLimitConfig struct {
	Rate  int `yaml:"rate" env:"RATE_LIMIT_RATE" env-default:"10"`
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// SecurityConfig holds the at-rest encryption key, base64-encoded 32 bytes.
// Empty disables encryption.
type SecurityConfig struct {
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// Load reads the configuration from the given YAML file with environment
// overrides, or from the environment alone when path is empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}

// MustLoad resolves the config path (--config flag, CONFIG_PATH, then
// ./local.yaml) and loads it, exiting the process on failure.
func MustLoad() *Config {
	cfg, err := Load(configPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	return cfg
}

// configPath resolves the config file location. Returns "" when none is
// configured and ./local.yaml does not exist.
func configPath() string {
	var path string
	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path != "" {
		return path
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return "local.yaml"
	}
	return ""
}
