// Package logging configures the structured logger shared by the bridge.
//
// Loggers travel in the context: commands attach one with
// ContextWithLogger and components fetch it with Ctx, annotating it with
// session identifiers as they go.
package logging

import (
	"context"
	"io"
	"strings"

	"pkt.systems/pslog"
)

// Log levels accepted by the configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// options builds pslog options for the given level.
// Unknown levels map to info.
func options(structured bool, level string) pslog.Options {
	opts := pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}
	if structured {
		opts.Mode = pslog.ModeStructured
		opts.NoColor = true
		opts.VerboseFields = true
	}
	switch strings.ToLower(level) {
	case LevelDebug:
		opts.MinLevel = pslog.DebugLevel
	case LevelWarn, "warning":
		opts.MinLevel = pslog.WarnLevel
	case LevelError:
		opts.MinLevel = pslog.ErrorLevel
	}
	return opts
}

// ValidLevel reports whether level is a recognised log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	default:
		return false
	}
}

// New builds a console logger writing to w at the given level.
func New(w io.Writer, level string) pslog.Logger {
	return pslog.NewWithOptions(w, options(false, level))
}

// NewStructured builds a JSON logger, used when output is not a terminal.
func NewStructured(w io.Writer, level string) pslog.Logger {
	return pslog.NewWithOptions(w, options(true, level))
}

// Ctx returns the logger bound to ctx.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// ContextWithLogger attaches log to ctx.
func ContextWithLogger(ctx context.Context, log pslog.Logger) context.Context {
	return pslog.ContextWithLogger(ctx, log)
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithComponent annotates the logger with the emitting component.
func WithComponent(log pslog.Logger, component string) pslog.Logger {
	return log.With("component", component)
}
