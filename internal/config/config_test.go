package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	s := Default()

	if s.Shell != "python" {
		t.Errorf("Shell = %q", s.Shell)
	}
	if s.PrependOutput != " " {
		t.Errorf("PrependOutput = %q", s.PrependOutput)
	}
	if s.TextShortcuts["@"] != "##param##" {
		t.Errorf("TextShortcuts = %v", s.TextShortcuts)
	}
	if s.PollInterval() != 25*time.Millisecond {
		t.Errorf("PollInterval = %v", s.PollInterval())
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Shell != "python" {
		t.Errorf("Shell = %q", s.Shell)
	}
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `shell = "sh"
lines_to_suppress = 2
prepend_output = "> "

[text_shortcuts]
"@" = "echo ##param##"

[enviroment_variables]
PYTHONPATH = "##plugin##lib"
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `shell: sh
lines_to_suppress: 2
prepend_output: "> "
text_shortcuts:
  "@": "echo ##param##"
enviroment_variables:
  PYTHONPATH: "##plugin##lib"
`,
		},
		{
			name: "sublime-settings",
			file: "Interactivity.sublime-settings",
			content: `{
  "shell": "sh",
  "lines_to_suppress": 2,
  "prepend_output": "> ",
  "text_shortcuts": {"@": "echo ##param##"},
  "enviroment_variables": {"PYTHONPATH": "##plugin##lib"}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if s.Shell != "sh" {
				t.Errorf("Shell = %q", s.Shell)
			}
			if s.LinesToSuppress != 2 {
				t.Errorf("LinesToSuppress = %d", s.LinesToSuppress)
			}
			if s.PrependOutput != "> " {
				t.Errorf("PrependOutput = %q", s.PrependOutput)
			}
			if len(s.TextShortcuts) != 1 || s.TextShortcuts["@"] != "echo ##param##" {
				t.Errorf("TextShortcuts = %v", s.TextShortcuts)
			}
			// Environment variable names keep their case.
			if s.EnvironmentVariables["PYTHONPATH"] != "##plugin##lib" {
				t.Errorf("EnvironmentVariables = %v", s.EnvironmentVariables)
			}
			// Absent keys keep defaults.
			if s.PollIntervalMS != 25 || !s.UseShell {
				t.Errorf("defaults lost: poll=%d use_shell=%v", s.PollIntervalMS, s.UseShell)
			}
		})
	}
}

func TestLoad_ShortcutsReplaceDefaults(t *testing.T) {
	s, err := Load(writeFile(t, "c.json", `{"text_shortcuts": {"?": "help(##param##)"}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := s.TextShortcuts["@"]; ok {
		t.Errorf("expected default shortcut to be replaced, got %v", s.TextShortcuts)
	}
}

func TestLoad_CommentedSublimeSettings(t *testing.T) {
	content := `{
	// interpreter
	"shell": "python",
	"shell_params": ["-i", "-u"], /* unbuffered */
	"text_shortcuts": {
		"@": "print(##param##)",
	},
}
`
	s, err := Load(writeFile(t, "Interactivity.sublime-settings", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Shell != "python" {
		t.Errorf("Shell = %q", s.Shell)
	}
	if len(s.ShellParams) != 2 || s.ShellParams[0] != "-i" || s.ShellParams[1] != "-u" {
		t.Errorf("ShellParams = %v", s.ShellParams)
	}
	if s.TextShortcuts["@"] != "print(##param##)" {
		t.Errorf("TextShortcuts = %v", s.TextShortcuts)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeFile(t, "bad.json", `{"shell": "sh" // unterminated`))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", "shell = = ="))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "config.ini", "shell=sh"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		key    string
	}{
		{"empty shell", func(s *Settings) { s.Shell = "" }, "shell"},
		{"negative suppress", func(s *Settings) { s.LinesToSuppress = -1 }, "lines_to_suppress"},
		{"zero poll", func(s *Settings) { s.PollIntervalMS = 0 }, "poll_interval_ms"},
		{"bad filter", func(s *Settings) { s.OutputFilter = "(" }, "output_filter"},
		{"empty prefix", func(s *Settings) { s.TextShortcuts = map[string]string{"": "x"} }, "text_shortcuts"},
		{"bad level", func(s *Settings) { s.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(&s)
			var verr *ValidationError
			if err := s.Validate(); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Key != tt.key {
				t.Errorf("Key = %q, want %q", verr.Key, tt.key)
			}
		})
	}
}

func TestLoadWithOverrides_Environment(t *testing.T) {
	t.Setenv("REPLBRIDGE_SHELL", "bash")
	t.Setenv("REPLBRIDGE_LINES_TO_SUPPRESS", "3")

	path := writeFile(t, "config.toml", "shell = \"sh\"\nprepend_output = \"# \"\n")
	s, err := LoadWithOverrides(path, NewOverrides())
	if err != nil {
		t.Fatalf("LoadWithOverrides: %v", err)
	}
	if s.Shell != "bash" {
		t.Errorf("Shell = %q, want env override", s.Shell)
	}
	if s.LinesToSuppress != 3 {
		t.Errorf("LinesToSuppress = %d", s.LinesToSuppress)
	}
	if s.PrependOutput != "# " {
		t.Errorf("PrependOutput = %q, want file value", s.PrependOutput)
	}
}

func TestLoadWithOverrides_InvalidResult(t *testing.T) {
	t.Setenv("REPLBRIDGE_OUTPUT_FILTER", "[")
	if _, err := LoadWithOverrides("", NewOverrides()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWrite(t *testing.T) {
	for _, name := range []string{"out.toml", "out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := Default()
			want.Shell = "sh"

			if err := Write(path, want, false); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Shell != "sh" || got.TextShortcuts["@"] != "##param##" {
				t.Errorf("loaded %+v", got)
			}

			if err := Write(path, want, false); err == nil {
				t.Error("expected error writing over an existing file")
			}
			if err := Write(path, want, true); err != nil {
				t.Errorf("overwrite: %v", err)
			}
		})
	}
}
