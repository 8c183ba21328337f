// Package config handles soundpind configuration loading and parsing.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/soundpin/internal/quiet"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "250ms", "1s", "1m30s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Bare integers are milliseconds, which is what the notification payloads use
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '250ms', '1s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int64 {
	return time.Duration(d).Milliseconds()
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the configuration for soundpind.
// Loaded from ~/.config/soundpin/soundpind.toml or delivered over D-Bus.
type Config struct {
	Quiet        *quiet.Window `toml:"quiet,omitempty" json:"quiet,omitempty" yaml:"quiet,omitempty"`
	DefaultDelay Duration      `toml:"default_delay" json:"default_delay" yaml:"default_delay"`
	Debug        bool          `toml:"debug" json:"debug" yaml:"debug"`
	StartupSound string        `toml:"startup_sound" json:"startup_sound,omitempty" yaml:"startup_sound,omitempty"`
	SoundsDir    string        `toml:"sounds_dir" json:"sounds_dir" yaml:"sounds_dir"`
	Volume       int           `toml:"volume" json:"volume" yaml:"volume"` // 0-100
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Quiet:        nil, // Never suppress
		DefaultDelay: Duration(0),
		Debug:        false,
		StartupSound: "",
		SoundsDir:    DefaultSoundsDir(),
		Volume:       100,
	}
}

// ConfigPath returns the path to the daemon config file.
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "soundpin", "soundpind.toml"), nil
}

// DefaultSoundsDir returns the default sounds directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DefaultSoundsDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "sounds"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "soundpin", "sounds")
}

// LoadConfig loads the daemon configuration from path.
// If path is empty, the default config path is used.
// If the file doesn't exist, returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SoundsDir = expandPath(cfg.SoundsDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the daemon configuration to path.
func SaveConfig(path string, cfg *Config) error {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
// Quiet window times are deliberately not checked here; a malformed window
// is treated as inapplicable when it is evaluated.
func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Volume)
	}
	if c.DefaultDelay < 0 {
		return fmt.Errorf("default_delay must not be negative, got %s", c.DefaultDelay.Duration())
	}
	if c.SoundsDir == "" {
		return errors.New("sounds_dir must not be empty")
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// UnmarshalJSON accepts a number of milliseconds or a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*d = 0
		return nil
	case float64:
		*d = Duration(time.Duration(val * float64(time.Millisecond)))
		return nil
	case string:
		return d.UnmarshalText([]byte(val))
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
}

// MarshalJSON writes the duration as a string like "250ms".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ParseJSON decodes a JSON CONFIG payload on top of the defaults and
// validates the result.
func ParseJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config payload: %w", err)
	}

	cfg.SoundsDir = expandPath(cfg.SoundsDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MarshalYAML writes the duration as a string like "250ms".
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
