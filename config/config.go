// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/revlens/revlens/domain/tier"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Tiers    TiersConfig    `yaml:"tiers"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Admin    AdminConfig    `yaml:"admin"`
	Meter    MeterConfig    `yaml:"meter"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	OpenAPI  OpenAPIConfig  `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigin   string        `yaml:"cors_origin"` // dashboard origin; empty disables CORS headers
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres", or "memory"
	DSN    string `yaml:"dsn"`
}

// CacheConfig configures the optional Redis report cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// TiersConfig configures tier handling.
// MergeBasic controls whether the legacy "basic" tier name folds into "plus".
// Prices overrides the built-in monthly price table per tier name.
type TiersConfig struct {
	MergeBasic *bool              `yaml:"merge_basic,omitempty"`
	Prices     map[string]float64 `yaml:"prices,omitempty"`
}

// PricingConfig configures where the effective tier pricing comes from.
// Use "static" for built-in defaults, "config" for the hot-reloaded tier
// price table, or "stripe" to resolve prices from Stripe price objects.
type PricingConfig struct {
	Source          string            `yaml:"source"` // "static", "config", "stripe"
	StripeKey       string            `yaml:"stripe_key,omitempty"`
	StripePrices    map[string]string `yaml:"stripe_prices,omitempty"` // tier name -> price ID
	RefreshInterval time.Duration     `yaml:"refresh_interval"`
}

// AdminConfig configures the admin API.
// An empty token disables admin authentication (development only).
type AdminConfig struct {
	Token string `yaml:"token,omitempty"`
}

// MeterConfig configures the metering ingestion API.
type MeterConfig struct {
	Token    string `yaml:"token,omitempty"`
	MaxBatch int    `yaml:"max_batch"`
}

// IngestConfig configures the buffered event recorder.
type IngestConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Aliasing returns the tier aliasing mode the configuration selects.
func (t TiersConfig) Aliasing() tier.Aliasing {
	if t.MergeBasic != nil && !*t.MergeBasic {
		return tier.KeepBasic
	}
	return tier.MergeBasic
}

// PricingTable returns the built-in price table overlaid with any configured
// per-tier prices. Unknown tier names in the overrides are ignored.
func (c *Config) PricingTable() tier.Pricing {
	table := tier.DefaultPricing()
	aliasing := c.Tiers.Aliasing()
	for name, price := range c.Tiers.Prices {
		t, ok := tier.Normalize(name, aliasing)
		if !ok {
			continue
		}
		table[t] = price
	}
	return table
}

// Default returns a configuration with all defaults applied and no
// environment or file input.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	REVLENS_DATABASE_DRIVER   - Database driver: sqlite or postgres (default: sqlite)
//	REVLENS_DATABASE_DSN      - Database path or connection string (default: revlens.db)
//	REVLENS_SERVER_HOST       - Server host (default: 0.0.0.0)
//	REVLENS_SERVER_PORT       - Server port (default: 8080)
//	REVLENS_CACHE_ADDR        - Redis address for the report cache (enables caching)
//	REVLENS_ADMIN_TOKEN       - Admin API token (empty disables admin auth)
//	REVLENS_METER_TOKEN       - Metering API token (empty disables meter auth)
//	REVLENS_STRIPE_KEY        - Stripe secret key for the stripe pricing source
//	REVLENS_TIERS_MERGE_BASIC - Fold legacy "basic" tier into "plus" (default: true)
//	REVLENS_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	REVLENS_LOG_FORMAT        - Log format: json or console (default: json)
//	REVLENS_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
//	REVLENS_OPENAPI_ENABLED   - Enable OpenAPI/Swagger (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables. This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies REVLENS_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("REVLENS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REVLENS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REVLENS_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("REVLENS_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("REVLENS_SERVER_CORS_ORIGIN"); v != "" {
		cfg.Server.CORSOrigin = v
	}

	// Database configuration
	if v := os.Getenv("REVLENS_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REVLENS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Cache configuration
	if v := os.Getenv("REVLENS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("REVLENS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Tier configuration
	if v := os.Getenv("REVLENS_TIERS_MERGE_BASIC"); v != "" {
		b := parseBool(v)
		cfg.Tiers.MergeBasic = &b
	}

	// Pricing configuration
	if v := os.Getenv("REVLENS_PRICING_SOURCE"); v != "" {
		cfg.Pricing.Source = v
	}
	if v := os.Getenv("REVLENS_STRIPE_KEY"); v != "" {
		cfg.Pricing.StripeKey = v
	}

	// Token configuration
	if v := os.Getenv("REVLENS_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("REVLENS_METER_TOKEN"); v != "" {
		cfg.Meter.Token = v
	}

	// Logging configuration
	if v := os.Getenv("REVLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REVLENS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("REVLENS_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("REVLENS_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("REVLENS_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "revlens.db"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 60 * time.Second
	}

	if cfg.Pricing.Source == "" {
		cfg.Pricing.Source = "config"
	}
	if cfg.Pricing.RefreshInterval == 0 {
		cfg.Pricing.RefreshInterval = 15 * time.Minute
	}

	if cfg.Meter.MaxBatch == 0 {
		cfg.Meter.MaxBatch = 1000
	}

	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.FlushInterval == 0 {
		cfg.Ingest.FlushInterval = 5 * time.Second
	}
	if cfg.Ingest.BufferSize == 0 {
		cfg.Ingest.BufferSize = 4096
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite', 'postgres' or 'memory', got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.driver is 'postgres'")
	}

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache.enabled is true")
	}

	validSources := map[string]bool{"static": true, "config": true, "stripe": true}
	if !validSources[cfg.Pricing.Source] {
		return fmt.Errorf("pricing.source must be one of: static, config, stripe, got %q", cfg.Pricing.Source)
	}
	if cfg.Pricing.Source == "stripe" && cfg.Pricing.StripeKey == "" {
		return fmt.Errorf("pricing.stripe_key is required when pricing.source is 'stripe'")
	}

	for name, price := range cfg.Tiers.Prices {
		if price < 0 {
			return fmt.Errorf("tiers.prices[%s] must be non-negative, got %v", name, price)
		}
	}

	if cfg.Meter.MaxBatch < 1 {
		return fmt.Errorf("meter.max_batch must be positive")
	}
	if cfg.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}

	return nil
}
