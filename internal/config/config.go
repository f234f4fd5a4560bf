package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the chat service.
// Environment variables are automatically parsed from the MASARIF_ prefix.
type Config struct {
	// Build target selects the high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration (local target)
	SQLitePath string `envconfig:"SQLITE_PATH" default:"masarif.db"`

	// Intent resolver: empty URL disables the external stage and the
	// deterministic matcher handles everything
	ResolverURL     string        `envconfig:"RESOLVER_URL" default:""`
	ResolverTimeout time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"3s"`

	// Confirmation windows
	PendingTTL  time.Duration `envconfig:"PENDING_TTL" default:"10m"`
	DialogueTTL time.Duration `envconfig:"DIALOGUE_TTL" default:"15m"`

	// Sweep cadence for expired pending actions and dialogue states
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`

	// Orchestration thresholds
	ClarifyThreshold     float64 `envconfig:"CLARIFY_THRESHOLD" default:"0.5"`
	SkipConfirmThreshold float64 `envconfig:"SKIP_CONFIRM_THRESHOLD" default:"0.95"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("MASARIF_POSTGRES_DSN is required for the postgres driver")
	}
	if c.ClarifyThreshold < 0 || c.ClarifyThreshold > 1 {
		return fmt.Errorf("CLARIFY_THRESHOLD out of range: %v", c.ClarifyThreshold)
	}
	if c.SkipConfirmThreshold < c.ClarifyThreshold || c.SkipConfirmThreshold > 1 {
		return fmt.Errorf("SKIP_CONFIRM_THRESHOLD out of range: %v", c.SkipConfirmThreshold)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with MASARIF_
// Example: MASARIF_HTTP_PORT, MASARIF_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MASARIF", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Bool("resolver_configured", cfg.ResolverURL != "").
		Dur("pending_ttl", cfg.PendingTTL).
		Dur("dialogue_ttl", cfg.DialogueTTL).
		Msg("configuration loaded")

	return &cfg, nil
}
