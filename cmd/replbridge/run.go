package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dshills/replbridge/internal/app"
	"github.com/dshills/replbridge/internal/config"
	"github.com/dshills/replbridge/internal/logging"
	"pkt.systems/pslog"
)

// overrideFlags maps command-line flags to config keys.
var overrideFlags = map[string]string{
	"shell":             "shell",
	"use-shell":         "use_shell",
	"startup-commands":  "startup_commands",
	"shutdown-commands": "shutdown_commands",
	"lines-to-suppress": "lines_to_suppress",
	"prepend-output":    "prepend_output",
	"append-output":     "append_output",
	"output-filter":     "output_filter",
	"line-ending":       "line_ending",
	"hook-script":       "hook_script",
	"log-level":         "log_level",
}

func newRunCmd() *cobra.Command {
	var (
		cfgPath  string
		watch    bool
		lineMode bool
		logFile  string
	)
	overrides := config.NewOverrides()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interpreter and attach a document to it",
		Long: "Start the configured interpreter. On a terminal a full-screen editor opens;\n" +
			"otherwise each line read from stdin is entered as a command and the\n" +
			"interpreter's output is written to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd, cfgPath)
			settings, err := config.LoadWithOverrides(path, overrides)
			if err != nil {
				return err
			}

			interactive := !lineMode && isTerminal(os.Stdin) && isTerminal(os.Stdout)
			logger, closeLog, err := runLogger(cmd, logFile, settings.LogLevel, interactive)
			if err != nil {
				return err
			}
			defer closeLog()

			application, err := app.New(app.Options{
				Settings:   settings,
				ConfigPath: path,
				Watch:      watch && path != "",
				Overrides:  overrides,
				InstallDir: config.InstallDir(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			logger.Debug("starting", "shell", settings.Shell, "config", path, "interactive", interactive)

			if interactive {
				return application.RunTUI(cmd.Context(), nil)
			}
			return application.RunLines(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfgPath, "config", "c", "", "configuration file (default is the user config dir)")
	flags.BoolVar(&watch, "watch", true, "reload the configuration file when it changes")
	flags.BoolVar(&lineMode, "lines", false, "read commands from stdin even on a terminal")
	flags.StringVar(&logFile, "log-file", "", "append logs to this file")
	addOverrideFlags(flags)
	for name, key := range overrideFlags {
		_ = overrides.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

func addOverrideFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.String("shell", def.Shell, "interpreter command")
	flags.Bool("use-shell", def.UseShell, "run the interpreter through the system shell")
	flags.String("startup-commands", "", "commands sent right after start")
	flags.String("shutdown-commands", "", "commands sent before stopping")
	flags.Int("lines-to-suppress", 0, "number of initial output lines to drop")
	flags.String("prepend-output", def.PrependOutput, "text put before each output line")
	flags.String("append-output", "", "text put after each output line")
	flags.String("output-filter", "", "regular expression removed from output")
	flags.String("line-ending", def.LineEnding, "document line ending (unix, windows or system)")
	flags.String("hook-script", "", "Lua script defining on_command and on_output")
	flags.String("log-level", def.LogLevel, "log level")
}

// resolveConfigPath returns the explicit path, or the default location
// when it can be determined.
func resolveConfigPath(cmd *cobra.Command, explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := config.DefaultPath()
	if err != nil {
		pslog.Ctx(cmd.Context()).Warn("no default config location", "err", err)
		return ""
	}
	return path
}

// runLogger picks where logs go. A full-screen session only logs to a
// file, since stderr shares the terminal.
func runLogger(cmd *cobra.Command, logFile, level string, interactive bool) (pslog.Logger, func(), error) {
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return logging.NewStructured(f, level), func() { _ = f.Close() }, nil
	case interactive:
		return logging.New(io.Discard, level), func() {}, nil
	default:
		return logging.New(cmd.ErrOrStderr(), level), func() {}, nil
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
