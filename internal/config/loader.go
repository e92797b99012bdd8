package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. REPLBRIDGE_SHELL or REPLBRIDGE_LINES_TO_SUPPRESS.
const EnvPrefix = "REPLBRIDGE"

// overrideKeys lists the scalar options that may be overridden from the
// environment or command-line flags.
var overrideKeys = []string{
	"shell",
	"use_shell",
	"startup_commands",
	"shutdown_commands",
	"lines_to_suppress",
	"prepend_output",
	"append_output",
	"output_filter",
	"line_ending",
	"poll_interval_ms",
	"shutdown_timeout_ms",
	"hook_script",
	"log_level",
}

// NewOverrides returns a viper instance bound to the REPLBRIDGE_*
// environment variables. Callers may bind command-line flags to the same
// keys with BindPFlag; a changed flag wins over the environment.
func NewOverrides() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range overrideKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads settings from path, falling back to defaults for absent
// options. A missing file is not an error.
func Load(path string) (Settings, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides reads settings from path and then applies any keys
// set in overrides. The result is validated.
func LoadWithOverrides(path string, overrides *viper.Viper) (Settings, error) {
	s, err := loadFile(path)
	if err != nil {
		return Settings{}, err
	}
	if overrides != nil {
		applyOverrides(&s, overrides)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

func loadFile(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// Maps replace the defaults rather than merging with them.
	s.TextShortcuts = nil
	s.EnvironmentVariables = nil

	if err := decode(path, data, &s); err != nil {
		return Settings{}, &ParseError{Path: path, Err: err}
	}

	def := Default()
	if s.TextShortcuts == nil {
		s.TextShortcuts = def.TextShortcuts
	}
	if s.EnvironmentVariables == nil {
		s.EnvironmentVariables = def.EnvironmentVariables
	}
	if s.ShellParams == nil {
		s.ShellParams = def.ShellParams
	}
	return s, nil
}

// decode unmarshals data into s according to the file extension.
// Options absent from the file keep their current value.
func decode(path string, data []byte, s *Settings) error {
	switch format(path) {
	case "toml":
		return toml.Unmarshal(data, s)
	case "yaml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, s)
	case "json":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		// Editor settings files carry comments and trailing commas.
		std, err := hujson.Standardize(data)
		if err != nil {
			return err
		}
		return json.Unmarshal(std, s)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// format maps a file extension to a config format name.
// The editor's .sublime-settings files are JSON.
func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	case ".json", ".sublime-settings":
		return "json"
	default:
		return ""
	}
}

func applyOverrides(s *Settings, v *viper.Viper) {
	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
		}
	}
	set("shell", func() { s.Shell = v.GetString("shell") })
	set("use_shell", func() { s.UseShell = v.GetBool("use_shell") })
	set("startup_commands", func() { s.StartupCommands = v.GetString("startup_commands") })
	set("shutdown_commands", func() { s.ShutdownCommands = v.GetString("shutdown_commands") })
	set("lines_to_suppress", func() { s.LinesToSuppress = v.GetInt("lines_to_suppress") })
	set("prepend_output", func() { s.PrependOutput = v.GetString("prepend_output") })
	set("append_output", func() { s.AppendOutput = v.GetString("append_output") })
	set("output_filter", func() { s.OutputFilter = v.GetString("output_filter") })
	set("line_ending", func() { s.LineEnding = v.GetString("line_ending") })
	set("poll_interval_ms", func() { s.PollIntervalMS = v.GetInt("poll_interval_ms") })
	set("shutdown_timeout_ms", func() { s.ShutdownTimeoutMS = v.GetInt("shutdown_timeout_ms") })
	set("hook_script", func() { s.HookScript = v.GetString("hook_script") })
	set("log_level", func() { s.LogLevel = v.GetString("log_level") })
}

// Marshal encodes s in the format implied by path's extension.
func Marshal(path string, s Settings) ([]byte, error) {
	switch format(path) {
	case "toml":
		return toml.Marshal(s)
	case "yaml":
		return yaml.Marshal(s)
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Write writes s to path, creating parent directories. An existing file
// is only replaced when overwrite is true.
func Write(path string, s Settings, overwrite bool) error {
	data, err := Marshal(path, s)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
