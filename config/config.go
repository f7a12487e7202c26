// Package config provides YAML configuration parsing for Watchboard.
//
// This package lets the watchboard binary, or a host application, keep the
// engine settings in a file instead of code. Types to monitor are always
// declared in code; the file covers everything else.
//
// Example configuration:
//
//	title: Arena debug
//	port: 8080
//
//	modules:
//	  allow: [example.com/arena]
//	  deny: [example.com/arena/internal]
//
//	scheduler:
//	  threshold: 100ms
//	  frame: 16ms
//
//	format:
//	  element_indent: 4
//	  colors:
//	    label: "#c0c0c0"
//
//	diagnostics:
//	  log_level: info
//	  levels:
//	    malformed: error
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/monitor"
)

const (
	defaultPort = 8080

	// minThreshold bounds how often refresh passes may run.
	minThreshold = time.Millisecond
)

// Config is the root configuration structure for Watchboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Watchboard" if not set.
	// Supports environment variable substitution.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Headless disables the HTTP dashboard.
	Headless bool `yaml:"headless"`

	Modules     ModulesConfig     `yaml:"modules"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Format      FormatConfig      `yaml:"format"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// ModulesConfig filters discovery by package path prefix.
// Entries support environment variable substitution.
type ModulesConfig struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// SchedulerConfig controls the update loop.
type SchedulerConfig struct {
	// Threshold is the time accumulated between refresh passes.
	// Accepts duration strings like "50ms" or "1s". Defaults to 50ms.
	Threshold Duration `yaml:"threshold"`

	// Frame is the tick interval of the update loop. Defaults to 16ms.
	Frame Duration `yaml:"frame"`

	// IgnoreTimeScale counts real time towards the threshold.
	IgnoreTimeScale bool `yaml:"ignore_time_scale"`
}

// FormatConfig holds the formatting defaults.
type FormatConfig struct {
	// ElementIndent is the indent of collection elements. Defaults to 2.
	ElementIndent *int `yaml:"element_indent"`

	// ShowIndex prefixes collection elements with their index.
	ShowIndex bool `yaml:"show_index"`

	// Colors overrides entries of the built-in palette.
	Colors monitor.Colors `yaml:"colors"`
}

// DiagnosticsConfig controls logging.
type DiagnosticsConfig struct {
	// LogLevel is the minimum level of the binary's logger: debug, info,
	// warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Levels sets the level per error category: malformed, cancellation
	// and unknown.
	Levels map[string]string `yaml:"levels"`
}

// Level returns the parsed log level.
func (d DiagnosticsConfig) Level() slog.Level {
	l, err := diag.ParseLevel(d.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the title and module entries.
// Defaults are applied for Port (8080), the scheduler durations (50ms and
// 16ms) and the log level (info). An empty document is a valid config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Scheduler.Threshold == 0 {
		cfg.Scheduler.Threshold = Duration(50 * time.Millisecond)
	}
	if cfg.Scheduler.Frame == 0 {
		cfg.Scheduler.Frame = Duration(16 * time.Millisecond)
	}
	if cfg.Diagnostics.LogLevel == "" {
		cfg.Diagnostics.LogLevel = "info"
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	title, err := expandEnvVars(c.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	c.Title = title

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if err := expandAll("modules.allow", c.Modules.Allow); err != nil {
		return err
	}
	if err := expandAll("modules.deny", c.Modules.Deny); err != nil {
		return err
	}

	if c.Scheduler.Threshold.Duration() < minThreshold {
		return fmt.Errorf("scheduler.threshold must be at least %s, got %s", minThreshold, c.Scheduler.Threshold.Duration())
	}
	if c.Scheduler.Frame.Duration() <= 0 {
		return fmt.Errorf("scheduler.frame must be positive, got %s", c.Scheduler.Frame.Duration())
	}

	if c.Format.ElementIndent != nil && *c.Format.ElementIndent < 0 {
		return fmt.Errorf("format.element_indent cannot be negative, got %d", *c.Format.ElementIndent)
	}
	for name, color := range map[string]string{
		"label": c.Format.Colors.Label, "value": c.Format.Colors.Value,
		"true": c.Format.Colors.True, "false": c.Format.Colors.False, "null": c.Format.Colors.Null,
		"x": c.Format.Colors.X, "y": c.Format.Colors.Y, "z": c.Format.Colors.Z, "w": c.Format.Colors.W,
	} {
		if color != "" && !monitor.ValidColor(color) {
			return fmt.Errorf("format.colors.%s: invalid colour %q (expected #rrggbb or #rrggbbaa)", name, color)
		}
	}

	if _, err := diag.ParseLevel(c.Diagnostics.LogLevel); err != nil {
		return fmt.Errorf("diagnostics.log_level: %w", err)
	}
	for category, level := range c.Diagnostics.Levels {
		if _, err := diag.ParseCategory(category); err != nil {
			return fmt.Errorf("diagnostics.levels: %w", err)
		}
		if _, err := diag.ParseLevel(level); err != nil {
			return fmt.Errorf("diagnostics.levels[%s]: %w", category, err)
		}
	}

	return nil
}

// expandAll expands environment variables in place.
func expandAll(field string, values []string) error {
	for i, v := range values {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		if expanded == "" {
			return fmt.Errorf("%s[%d]: module path cannot be empty", field, i)
		}
		values[i] = expanded
	}
	return nil
}
