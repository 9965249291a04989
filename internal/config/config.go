package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowmaps/flowmaps-data/internal/fetch"
	"github.com/flowmaps/flowmaps-data/internal/query"
	"github.com/flowmaps/flowmaps-data/internal/transport/eve"
)

// Defaults. The API ones come from the packages that apply them.
const (
	DefaultBaseURL          = eve.DefaultBaseURL
	DefaultPageSize         = fetch.DefaultPageSize
	DefaultTimeZone         = query.DefaultTimeZone
	DefaultLogLevel         = "info"
	DefaultProgressInterval = 5
)

// Config holds the flowmaps-data client configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	TimeZone string         `yaml:"time_zone"`
	Logging  LoggingConfig  `yaml:"logging"`
	Progress ProgressConfig `yaml:"progress"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	PageSize          int     `yaml:"page_size"`
	TimeoutSec        int     `yaml:"timeout_sec"`         // whole command; 0 = none
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unthrottled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ProgressConfig holds download progress settings.
type ProgressConfig struct {
	Enabled     *bool `yaml:"enabled"` // default: true
	IntervalSec int   `yaml:"interval_sec"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"` // node-exporter textfile; empty = off
}

// Load reads configuration. An explicit path must exist; otherwise
// config/<env>.yaml is used when present and defaults apply when not.
func Load(env, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = findConfigPath(env)
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.PageSize <= 0 {
		c.API.PageSize = DefaultPageSize
	}
	if c.TimeZone == "" {
		c.TimeZone = DefaultTimeZone
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Progress.Enabled == nil {
		enabled := true
		c.Progress.Enabled = &enabled
	}
	if c.Progress.IntervalSec <= 0 {
		c.Progress.IntervalSec = DefaultProgressInterval
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSec < 0 {
		return fmt.Errorf("api.timeout_sec must not be negative, got %d", c.API.TimeoutSec)
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative, got %g", c.API.RequestsPerSecond)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("time_zone %q: %w", c.TimeZone, err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// ProgressEnabled reports whether download progress is logged.
func (c *Config) ProgressEnabled() bool {
	return c.Progress.Enabled == nil || *c.Progress.Enabled
}

// Timeout returns the per-command timeout, 0 when unbounded.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ProgressInterval returns the minimum delay between progress lines.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.IntervalSec) * time.Second
}

// findConfigPath locates the config file for env.
func findConfigPath(env string) string {
	return filepath.Join("config", fmt.Sprintf("%s.yaml", env))
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
