package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dshills/replbridge/internal/logging"
)

// Settings holds every recognised configuration option.
//
// Key names follow the original settings file, including the historical
// "enviroment_variables" spelling.
type Settings struct {
	Shell                string            `toml:"shell" yaml:"shell" json:"shell"`
	ShellParams          []string          `toml:"shell_params" yaml:"shell_params" json:"shell_params"`
	UseShell             bool              `toml:"use_shell" yaml:"use_shell" json:"use_shell"`
	StartupCommands      string            `toml:"startup_commands" yaml:"startup_commands" json:"startup_commands"`
	ShutdownCommands     string            `toml:"shutdown_commands" yaml:"shutdown_commands" json:"shutdown_commands"`
	LinesToSuppress      int               `toml:"lines_to_suppress" yaml:"lines_to_suppress" json:"lines_to_suppress"`
	TextShortcuts        map[string]string `toml:"text_shortcuts" yaml:"text_shortcuts" json:"text_shortcuts"`
	PrependOutput        string            `toml:"prepend_output" yaml:"prepend_output" json:"prepend_output"`
	AppendOutput         string            `toml:"append_output" yaml:"append_output" json:"append_output"`
	OutputFilter         string            `toml:"output_filter" yaml:"output_filter" json:"output_filter"`
	EnvironmentVariables map[string]string `toml:"enviroment_variables" yaml:"enviroment_variables" json:"enviroment_variables"`
	LineEnding           string            `toml:"line_ending" yaml:"line_ending" json:"line_ending"`
	PollIntervalMS       int               `toml:"poll_interval_ms" yaml:"poll_interval_ms" json:"poll_interval_ms"`
	ShutdownTimeoutMS    int               `toml:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" json:"shutdown_timeout_ms"`
	HookScript           string            `toml:"hook_script" yaml:"hook_script" json:"hook_script"`
	LogLevel             string            `toml:"log_level" yaml:"log_level" json:"log_level"`
}

// Default returns the settings used when no configuration is supplied.
func Default() Settings {
	return Settings{
		Shell:                "python",
		ShellParams:          []string{},
		UseShell:             true,
		TextShortcuts:        map[string]string{"@": "##param##"},
		PrependOutput:        " ",
		EnvironmentVariables: map[string]string{},
		LineEnding:           "system",
		PollIntervalMS:       25,
		ShutdownTimeoutMS:    2000,
		LogLevel:             logging.LevelInfo,
	}
}

// PollInterval returns the dispatcher polling interval.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns how long shutdown waits for the child to exit.
func (s Settings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMS) * time.Millisecond
}

// Validate checks the settings for values the bridge cannot use.
func (s Settings) Validate() error {
	if s.Shell == "" {
		return &ValidationError{Key: "shell", Message: "must not be empty"}
	}
	if s.LinesToSuppress < 0 {
		return &ValidationError{Key: "lines_to_suppress", Message: "must be >= 0"}
	}
	if s.PollIntervalMS <= 0 {
		return &ValidationError{Key: "poll_interval_ms", Message: "must be > 0"}
	}
	if s.ShutdownTimeoutMS < 0 {
		return &ValidationError{Key: "shutdown_timeout_ms", Message: "must be >= 0"}
	}
	for prefix := range s.TextShortcuts {
		if prefix == "" {
			return &ValidationError{Key: "text_shortcuts", Message: "prefix must not be empty"}
		}
	}
	if s.OutputFilter != "" {
		if _, err := regexp.Compile(s.OutputFilter); err != nil {
			return &ValidationError{Key: "output_filter", Message: err.Error()}
		}
	}
	if !logging.ValidLevel(s.LogLevel) {
		return &ValidationError{Key: "log_level", Message: fmt.Sprintf("unknown level %q", s.LogLevel)}
	}
	return nil
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "replbridge", "config.toml"), nil
}

// InstallDir returns the directory holding the running executable,
// which is what "##plugin##" expands to.
func InstallDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
