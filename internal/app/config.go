package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath string `yaml:"grid"` // hcl file or directory
	SavePath string `yaml:"save"` // where to write the graph after the run, if set

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	NodeTimeout time.Duration `yaml:"node_timeout"`
	MetricsPort int           `yaml:"metrics_port"`

	NATSURL           string `yaml:"nats_url"`
	SocketIOURL       string `yaml:"socketio_url"`
	SocketIONamespace string `yaml:"socketio_namespace"`

	// Sets are label.slot=value source overrides applied after the first run.
	Sets []string `yaml:"set"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		LogFormat: "json",
		LogLevel:  "info",
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys the file does
// not mention keep their current value; unknown keys are an error.
func LoadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

// NewConfig validates cfg and returns a normalized copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	if cfg.NodeTimeout < 0 {
		return nil, errors.New("invalid node-timeout: must not be negative")
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return nil, fmt.Errorf("invalid metrics-port %d: must be between 0 and 65535", cfg.MetricsPort)
	}

	for _, s := range cfg.Sets {
		if _, err := ParseOverride(s); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
