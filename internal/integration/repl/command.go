package repl

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"github.com/anmitsu/go-shlex"
)

// PluginPlaceholder is replaced by the install directory followed by the
// path separator.
const PluginPlaceholder = "##plugin##"

// ExpandPlaceholder resolves PluginPlaceholder in s against installDir.
func ExpandPlaceholder(s, installDir string) string {
	if !strings.Contains(s, PluginPlaceholder) {
		return s
	}
	dir := strings.TrimRight(installDir, string(os.PathSeparator))
	return strings.ReplaceAll(s, PluginPlaceholder, dir+string(os.PathSeparator))
}

// MergeEnv returns base with overrides applied. Overridden variables keep
// their position; new ones are appended in lexical order.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[name]; ok {
			env = append(env, name+"="+v)
			seen[name] = true
			continue
		}
		env = append(env, kv)
	}
	for _, name := range sortedKeys(overrides) {
		if !seen[name] {
			env = append(env, name+"="+overrides[name])
		}
	}
	return env
}

// BuildCommand prepares the child command from opts without starting it.
func BuildCommand(opts Options) (*exec.Cmd, error) {
	shell := ExpandPlaceholder(opts.Shell, opts.InstallDir)
	if strings.TrimSpace(shell) == "" {
		return nil, &SpawnError{Shell: opts.Shell, Err: fmt.Errorf("empty shell")}
	}
	params := make([]string, len(opts.Params))
	for i, p := range opts.Params {
		params[i] = ExpandPlaceholder(p, opts.InstallDir)
	}

	var cmd *exec.Cmd
	if opts.UseShell {
		line := shell
		for _, p := range params {
			line += " " + quoteArg(p)
		}
		if runtime.GOOS == "windows" {
			cmd = exec.Command("cmd", "/C", line)
		} else {
			cmd = exec.Command("sh", "-c", line)
		}
	} else {
		argv, err := shlex.Split(shell, true)
		if err != nil {
			return nil, &SpawnError{Shell: shell, Err: fmt.Errorf("split shell: %w", err)}
		}
		if len(argv) == 0 {
			return nil, &SpawnError{Shell: shell, Err: fmt.Errorf("empty shell")}
		}
		cmd = exec.Command(argv[0], append(argv[1:], params...)...)
	}

	env := make(map[string]string, len(opts.Env))
	for k, v := range opts.Env {
		env[k] = ExpandPlaceholder(v, opts.InstallDir)
	}
	cmd.Env = MergeEnv(os.Environ(), env)
	cmd.Dir = opts.Dir
	return cmd, nil
}

// quoteArg quotes s for the platform shell when it needs quoting.
func quoteArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$`&|;<>()*?[]{}~#!%") {
		return s
	}
	if runtime.GOOS == "windows" {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
