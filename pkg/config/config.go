// Package config loads regionfocus settings from YAML files and the
// environment.
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// Bus drivers.
const (
	BusDriverNone   = "none"
	BusDriverMemory = "memory"
	BusDriverNATS   = "nats"
)

// Config is the complete regionfocus configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Bus       BusConfig       `yaml:"bus"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// LogConfig controls the structured event log.
type LogConfig struct {
	Level string `yaml:"level"`
	// Path of the JSONL log file. Empty writes to stderr.
	Path string `yaml:"path"`
}

// MetricsConfig controls prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	// Listen serves /metrics on this address when set, e.g. "127.0.0.1:9464".
	Listen string `yaml:"listen"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	Pretty  bool `yaml:"pretty"`
	// Path receives exported spans. Empty writes to stdout.
	Path string `yaml:"path"`
}

// BusConfig selects where focus changes are published.
type BusConfig struct {
	Driver         string        `yaml:"driver"`
	URL            string        `yaml:"url"`
	Subject        string        `yaml:"subject"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// InspectorConfig sizes the terminal inspector when it runs headless.
type InspectorConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "regionfocus",
		},
		Bus: BusConfig{
			Driver:         BusDriverNone,
			URL:            defaultNATSURL(),
			Subject:        "regionfocus.focus",
			Name:           "regionfocus",
			ConnectTimeout: 5 * time.Second,
		},
		Inspector: InspectorConfig{
			Width:  80,
			Height: 24,
		},
	}
}

func defaultNATSURL() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "nats://nats:4222"
	}
	return "nats://127.0.0.1:4222"
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.regionfocus/config.yaml, ./.regionfocus/config.yaml, then the
// environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".regionfocus", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	projectConfigPath := filepath.Join(".", ".regionfocus", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path. The file must
// exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, expandHomeDir(path)); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies REGIONFOCUS_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REGIONFOCUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REGIONFOCUS_LOG_PATH"); v != "" {
		cfg.Log.Path = v
	}
	if val, ok := envBool("REGIONFOCUS_METRICS_ENABLED"); ok {
		cfg.Metrics.Enabled = val
	}
	if v := os.Getenv("REGIONFOCUS_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if val, ok := envBool("REGIONFOCUS_TRACING_ENABLED"); ok {
		cfg.Tracing.Enabled = val
	}
	if v := os.Getenv("REGIONFOCUS_BUS_DRIVER"); v != "" {
		cfg.Bus.Driver = v
	}
	if v := os.Getenv("REGIONFOCUS_BUS_URL"); v != "" {
		cfg.Bus.URL = v
	} else if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("REGIONFOCUS_BUS_SUBJECT"); v != "" {
		cfg.Bus.Subject = v
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid log level").
			WithContext("level", c.Log.Level)
	}

	switch strings.ToLower(strings.TrimSpace(c.Bus.Driver)) {
	case "", BusDriverNone, BusDriverMemory:
	case BusDriverNATS:
		if strings.TrimSpace(c.Bus.URL) == "" {
			return errors.New(errors.ErrCodeConfigInvalid, "bus.url is required for the nats driver")
		}
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid, "invalid bus driver: %s (valid: none, memory, nats)", c.Bus.Driver)
	}

	subject := strings.TrimSpace(c.Bus.Subject)
	if subject == "" || strings.ContainsAny(subject, "*> ") {
		return errors.Newf(errors.ErrCodeConfigInvalid, "invalid bus subject %q", c.Bus.Subject).
			WithRemediation("use a dotted subject without wildcards, e.g. regionfocus.focus")
	}

	if c.Inspector.Width <= 0 || c.Inspector.Height <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "inspector size must be positive, got %dx%d",
			c.Inspector.Width, c.Inspector.Height)
	}
	return nil
}

// BusDriver returns the normalized bus driver.
func (c *Config) BusDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Bus.Driver))
	if driver == "" {
		return BusDriverNone
	}
	return driver
}
