package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/xsafe/internal/logging"
	"github.com/1broseidon/xsafe/internal/x11"
)

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	// Level controls verbosity: debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
	// File is the log file path; empty logs to stderr
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the size at which File is rotated (default: 10)
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files"`
}

// DemoConfig sizes the window drawn by `xsafe demo`.
type DemoConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// Config holds the application configuration.
type Config struct {
	Display    string `yaml:"display,omitempty"`
	XAuthority string `yaml:"xauthority,omitempty"`
	// Screen selects a screen; -1 uses the one named by the display.
	Screen      int           `yaml:"screen"`
	AutoRelease bool          `yaml:"auto_release"`
	Logging     LoggingConfig `yaml:"logging"`
	Demo        DemoConfig    `yaml:"demo"`
}

func DefaultConfig() *Config {
	return &Config{
		Screen:      -1,
		AutoRelease: true,
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Demo: DemoConfig{
			Width:  320,
			Height: 240,
			Title:  "xsafe demo",
		},
	}
}

// LoggingOptions converts the logging section for the logging package,
// expanding a leading ~ in the file path.
func (c *Config) LoggingOptions() logging.Options {
	if c == nil {
		return logging.Options{}
	}
	file := c.Logging.File
	if strings.HasPrefix(file, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			file = filepath.Join(home, file[2:])
		}
	}
	return logging.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		File:      file,
		MaxSizeMB: c.Logging.MaxSizeMB,
		MaxFiles:  c.Logging.MaxFiles,
	}
}

// Save writes the configuration to path.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if d := strings.TrimSpace(c.Display); d != "" {
		if _, err := x11.ParseDisplayName(d); err != nil {
			return &ValidationError{Path: "display", Err: err}
		}
	}
	if c.Screen < -1 {
		return &ValidationError{Path: "screen", Err: fmt.Errorf("screen must be >= -1")}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Err: fmt.Errorf("format must be one of: text, json")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	if c.Demo.Width < 1 || c.Demo.Width > 0xffff {
		return &ValidationError{Path: "demo.width", Err: fmt.Errorf("width must be between 1 and 65535")}
	}
	if c.Demo.Height < 1 || c.Demo.Height > 0xffff {
		return &ValidationError{Path: "demo.height", Err: fmt.Errorf("height must be between 1 and 65535")}
	}
	return nil
}
