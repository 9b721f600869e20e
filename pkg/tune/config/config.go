package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	Console  bool           `mapstructure:"console"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// ToolsConfig holds explicit paths to the native utilities. Empty values
// fall back to PATH resolution.
type ToolsConfig struct {
	Registry string `mapstructure:"registry"`
	Services string `mapstructure:"services"`
	Power    string `mapstructure:"power"`
}

// PhaseConfig describes one pipeline phase.
type PhaseConfig struct {
	Name    string        `mapstructure:"name"`
	Command []string      `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config represents the application configuration.
type Config struct {
	// Workspace is where run directories (context + log files) live.
	Workspace string `mapstructure:"workspace"`

	// PhaseTimeout is the default per-phase wall-clock budget.
	PhaseTimeout time.Duration `mapstructure:"phase_timeout"`

	Phases  []PhaseConfig `mapstructure:"phases"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables. A
// non-empty path selects an explicit config file; otherwise the default
// locations apply, in order of precedence:
//   - $XDG_CONFIG_HOME/tunectl/config.yaml
//   - $HOME/.config/tunectl/config.yaml
//
// Environment variables are prefixed with TUNECTL_.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix("TUNECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("workspace", DefaultWorkspace())
	v.SetDefault("phase_timeout", DefaultPhaseTimeout)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.console", false)
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_backups", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Phases) == 0 {
		cfg.Phases = DefaultPhases
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return errors.New("workspace cannot be empty")
	}
	if c.PhaseTimeout < 0 {
		return errors.New("phase_timeout cannot be negative")
	}
	seen := make(map[string]bool, len(c.Phases))
	for i, p := range c.Phases {
		if p.Name == "" {
			return fmt.Errorf("phase %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate phase name %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Command) == 0 {
			return fmt.Errorf("phase %q has no command", p.Name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("phase %q has a negative timeout", p.Name)
		}
	}
	return nil
}

// ConfigDir returns the tunectl configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "tunectl")
}

// DefaultWorkspace returns the default run-state directory.
func DefaultWorkspace() string {
	return filepath.Join(xdg.StateHome, "tunectl", "runs")
}

// DefaultLogPath returns the log path inside a run directory; the run
// context derives the real one, this exists for commands that log before
// a run starts.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "tunectl", "tunectl.log")
}

// EnsureWorkspace creates the workspace directory if missing.
func (c *Config) EnsureWorkspace() error {
	if err := os.MkdirAll(c.Workspace, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// WriteDefault creates a commented default config file if none exists.
func WriteDefault() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# tunectl configuration

# Where run directories (context and log files) are stored
workspace: %s

# Default wall-clock budget per phase
phase_timeout: %s

# Logging
logging:
  level: %s
  console: false
  rotation:
    max_size: 10MB
    max_backups: 3

# Explicit tool paths; empty values are searched on PATH
tools:
  registry: ""
  services: ""
  power: ""

# Phases run in order; each command lists fallback candidates
#phases:
#  - name: power
#    command: [tunectl-power]
#    timeout: 2m
`, DefaultWorkspace(), DefaultPhaseTimeout, DefaultLogLevel)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
