// ABOUTME: Configuration loading and parsing for abtrack
// ABOUTME: Supports YAML files with environment variable expansion and defaults

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/growthtools/abtrack/internal/flags"
)

// Config represents the complete abtrack configuration
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Database    DatabaseConfig            `yaml:"database"`
	Cache       CacheConfig               `yaml:"cache"`
	Tracking    TrackingConfig            `yaml:"tracking"`
	Cookie      CookieConfig              `yaml:"cookie"`
	Experiments map[string]RolloutConfig  `yaml:"experiments"`
	Logging     LoggingConfig             `yaml:"logging"`
	Metrics     MetricsConfig             `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the counter store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds the dedup cache configuration. An empty path selects the
// in-memory cache, which loses dedup state on restart.
type CacheConfig struct {
	Path      string `yaml:"path"`
	TTLDays   int    `yaml:"ttl_days"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TrackingConfig holds tracker behavior configuration
type TrackingConfig struct {
	// RequireViewBeforeConvertRaw distinguishes "unset" (default true) from
	// an explicit false in the YAML
	RequireViewBeforeConvertRaw *bool `yaml:"require_view_before_convert"`
}

// RequireViewBeforeConvert returns the setting with its default applied.
func (t TrackingConfig) RequireViewBeforeConvert() bool {
	if t.RequireViewBeforeConvertRaw == nil {
		return true
	}
	return *t.RequireViewBeforeConvertRaw
}

// CookieConfig holds visitor cookie configuration
type CookieConfig struct {
	Name string `yaml:"name"`

	MaxAge time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	MaxAgeRaw string `yaml:"max_age"`
}

// RolloutConfig holds per-experiment assignment configuration
type RolloutConfig struct {
	RolloutPercent int    `yaml:"rollout_percent"`
	Variant        string `yaml:"variant"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultCacheTTLDays bounds dedup entries when cache.ttl_days is unset.
const DefaultCacheTTLDays = 90

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Cache.TTLDays == 0 {
		c.Cache.TTLDays = DefaultCacheTTLDays
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = "abid"
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Cache.TTLDays < 0 {
		return fmt.Errorf("cache.ttl_days must not be negative")
	}

	for name, rollout := range c.Experiments {
		if rollout.RolloutPercent < 0 || rollout.RolloutPercent > 100 {
			return fmt.Errorf("experiments.%s.rollout_percent must be 0-100", name)
		}
	}

	return nil
}

// CacheTTL returns the dedup TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// Rollouts converts the experiments table into the splitter's configuration.
func (c *Config) Rollouts() map[string]flags.Rollout {
	if len(c.Experiments) == 0 {
		return nil
	}
	rollouts := make(map[string]flags.Rollout, len(c.Experiments))
	for name, rc := range c.Experiments {
		rollouts[name] = flags.Rollout{
			Percent: rc.RolloutPercent,
			Variant: rc.Variant,
		}
	}
	return rollouts
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cookie.MaxAgeRaw != "" {
		cfg.Cookie.MaxAge, err = time.ParseDuration(cfg.Cookie.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing cookie.max_age %q: %w", cfg.Cookie.MaxAgeRaw, err)
		}
	}

	return nil
}
