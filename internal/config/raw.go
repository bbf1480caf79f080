package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawLoggingConfig struct {
	Level     *string `yaml:"level"`
	Format    *string `yaml:"format"`
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
}

type RawDemoConfig struct {
	Width  *int    `yaml:"width"`
	Height *int    `yaml:"height"`
	Title  *string `yaml:"title"`
}

// RawConfig is one file as written. A nil field was not set there.
type RawConfig struct {
	Include     IncludeList       `yaml:"include"`
	Display     *string           `yaml:"display"`
	XAuthority  *string           `yaml:"xauthority"`
	Screen      *int              `yaml:"screen"`
	AutoRelease *bool             `yaml:"auto_release"`
	Logging     *RawLoggingConfig `yaml:"logging"`
	Demo        *RawDemoConfig    `yaml:"demo"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.XAuthority != nil {
		out.XAuthority = overlay.XAuthority
	}
	if overlay.Screen != nil {
		out.Screen = overlay.Screen
	}
	if overlay.AutoRelease != nil {
		out.AutoRelease = overlay.AutoRelease
	}
	if overlay.Logging != nil {
		if out.Logging == nil {
			out.Logging = &RawLoggingConfig{}
		}
		merged := mergeRawLogging(*out.Logging, *overlay.Logging)
		out.Logging = &merged
	}
	if overlay.Demo != nil {
		if out.Demo == nil {
			out.Demo = &RawDemoConfig{}
		}
		merged := mergeRawDemo(*out.Demo, *overlay.Demo)
		out.Demo = &merged
	}
	return out
}

func mergeRawLogging(base, overlay RawLoggingConfig) RawLoggingConfig {
	if overlay.Level != nil {
		base.Level = overlay.Level
	}
	if overlay.Format != nil {
		base.Format = overlay.Format
	}
	if overlay.File != nil {
		base.File = overlay.File
	}
	if overlay.MaxSizeMB != nil {
		base.MaxSizeMB = overlay.MaxSizeMB
	}
	if overlay.MaxFiles != nil {
		base.MaxFiles = overlay.MaxFiles
	}
	return base
}

func mergeRawDemo(base, overlay RawDemoConfig) RawDemoConfig {
	if overlay.Width != nil {
		base.Width = overlay.Width
	}
	if overlay.Height != nil {
		base.Height = overlay.Height
	}
	if overlay.Title != nil {
		base.Title = overlay.Title
	}
	return base
}
