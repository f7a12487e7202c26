package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(``))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Scheduler.Threshold.Duration() != 50*time.Millisecond {
		t.Errorf("Threshold = %v, want 50ms", cfg.Scheduler.Threshold.Duration())
	}
	if cfg.Scheduler.Frame.Duration() != 16*time.Millisecond {
		t.Errorf("Frame = %v, want 16ms", cfg.Scheduler.Frame.Duration())
	}
	if cfg.Diagnostics.Level() != slog.LevelInfo {
		t.Errorf("Level() = %v, want INFO", cfg.Diagnostics.Level())
	}
	if cfg.Format.ElementIndent != nil {
		t.Errorf("ElementIndent = %d, want unset", *cfg.Format.ElementIndent)
	}
	if cfg.Headless {
		t.Error("Headless = true, want false")
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Arena debug
port: 9090
headless: true

modules:
  allow: [example.com/arena]
  deny: [example.com/arena/internal]

scheduler:
  threshold: 100ms
  frame: 8ms
  ignore_time_scale: true

format:
  element_indent: 4
  show_index: true
  colors:
    label: "#c0c0c0"
    "true": "#00ff00ff"

diagnostics:
  log_level: debug
  levels:
    malformed: error
    cancellation: info
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Arena debug" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Arena debug")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
	if len(cfg.Modules.Allow) != 1 || cfg.Modules.Allow[0] != "example.com/arena" {
		t.Errorf("Modules.Allow = %v, want [example.com/arena]", cfg.Modules.Allow)
	}
	if len(cfg.Modules.Deny) != 1 || cfg.Modules.Deny[0] != "example.com/arena/internal" {
		t.Errorf("Modules.Deny = %v, want [example.com/arena/internal]", cfg.Modules.Deny)
	}
	if cfg.Scheduler.Threshold.Duration() != 100*time.Millisecond {
		t.Errorf("Threshold = %v, want 100ms", cfg.Scheduler.Threshold.Duration())
	}
	if cfg.Scheduler.Frame.Duration() != 8*time.Millisecond {
		t.Errorf("Frame = %v, want 8ms", cfg.Scheduler.Frame.Duration())
	}
	if !cfg.Scheduler.IgnoreTimeScale {
		t.Error("IgnoreTimeScale = false, want true")
	}
	if cfg.Format.ElementIndent == nil || *cfg.Format.ElementIndent != 4 {
		t.Errorf("ElementIndent = %v, want 4", cfg.Format.ElementIndent)
	}
	if !cfg.Format.ShowIndex {
		t.Error("ShowIndex = false, want true")
	}
	if cfg.Format.Colors.Label != "#c0c0c0" {
		t.Errorf("Colors.Label = %q, want %q", cfg.Format.Colors.Label, "#c0c0c0")
	}
	if cfg.Format.Colors.True != "#00ff00ff" {
		t.Errorf("Colors.True = %q, want %q", cfg.Format.Colors.True, "#00ff00ff")
	}
	if cfg.Diagnostics.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", cfg.Diagnostics.Level())
	}
	if cfg.Diagnostics.Levels["malformed"] != "error" {
		t.Errorf("Levels[malformed] = %q, want %q", cfg.Diagnostics.Levels["malformed"], "error")
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("ARENA_TITLE", "Staging arena")
	t.Setenv("ARENA_MODULE", "example.com/arena")

	yaml := `
title: ${ARENA_TITLE}
modules:
  allow: ["${ARENA_MODULE}/game"]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Staging arena" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Staging arena")
	}
	if cfg.Modules.Allow[0] != "example.com/arena/game" {
		t.Errorf("Modules.Allow[0] = %q, want %q", cfg.Modules.Allow[0], "example.com/arena/game")
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `title: ${UNSET_WATCHBOARD_TITLE:-Local}`

	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Local" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Local")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
modules:
  deny: ["${MISSING_WATCHBOARD_MODULE}"]
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_WATCHBOARD_MODULE") {
		t.Errorf("error = %q, want to contain variable name", err.Error())
	}
	if !strings.Contains(err.Error(), "modules.deny[0]") {
		t.Errorf("error = %q, want to contain field path", err.Error())
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "negative port",
			yaml:        `port: -1`,
			wantErrLike: "port must be between 1 and 65535",
		},
		{
			name:        "port too large",
			yaml:        `port: 70000`,
			wantErrLike: "port must be between 1 and 65535",
		},
		{
			name: "threshold below minimum",
			yaml: `
scheduler:
  threshold: 100us
`,
			wantErrLike: "scheduler.threshold must be at least 1ms",
		},
		{
			name: "negative frame",
			yaml: `
scheduler:
  frame: -5ms
`,
			wantErrLike: "scheduler.frame must be positive",
		},
		{
			name: "negative element indent",
			yaml: `
format:
  element_indent: -2
`,
			wantErrLike: "format.element_indent cannot be negative",
		},
		{
			name: "invalid colour",
			yaml: `
format:
  colors:
    label: red
`,
			wantErrLike: "format.colors.label",
		},
		{
			name: "empty module path",
			yaml: `
modules:
  allow: ["${EMPTY_WATCHBOARD_MODULE:-}"]
`,
			wantErrLike: "module path cannot be empty",
		},
		{
			name: "invalid log level",
			yaml: `
diagnostics:
  log_level: loud
`,
			wantErrLike: "diagnostics.log_level",
		},
		{
			name: "unknown category",
			yaml: `
diagnostics:
  levels:
    network: error
`,
			wantErrLike: "unknown diagnostics category",
		},
		{
			name: "invalid category level",
			yaml: `
diagnostics:
  levels:
    malformed: sometimes
`,
			wantErrLike: "diagnostics.levels[malformed]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
scheduler:
  threshold: not-a-duration
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %q, want to contain 'invalid duration'", err.Error())
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"milliseconds", "250ms", 250 * time.Millisecond, false},
		{"seconds", "2s", 2 * time.Second, false},
		{"combined", "1s500ms", 1500 * time.Millisecond, false},
		{"minutes", "1m", time.Minute, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// use the threshold to test Duration parsing (values must be >= 1ms)
			yaml := `
scheduler:
  threshold: ` + tt.input

			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Scheduler.Threshold.Duration() != tt.want {
				t.Errorf("Threshold = %v, want %v", cfg.Scheduler.Threshold.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_TitleEmpty(t *testing.T) {
	cfg, err := Parse([]byte(`port: 8081`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// empty title is valid (defaults to "Watchboard" at render time)
	if cfg.Title != "" {
		t.Errorf("Title = %q, want empty string", cfg.Title)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	if err == nil {
		t.Fatal("Load() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q, want to contain 'failed to read config file'", err.Error())
	}
}
