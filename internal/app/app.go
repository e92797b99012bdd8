// Package app hosts the REPL bridge behind a full-screen terminal or a
// line-oriented front end. Every document edit runs on a single
// cooperative loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dshills/replbridge/internal/config"
	"github.com/dshills/replbridge/internal/config/watcher"
	"github.com/dshills/replbridge/internal/document"
	"github.com/dshills/replbridge/internal/integration/repl"
	"github.com/dshills/replbridge/internal/plugin/lua"
	"github.com/spf13/viper"
	"pkt.systems/pslog"
)

// Options configures the application.
type Options struct {
	// Settings is the initial configuration.
	Settings config.Settings

	// ConfigPath is reloaded on change when Watch is set.
	ConfigPath string

	// Watch enables live config reload.
	Watch bool

	// Overrides are reapplied on every reload. Nil means the environment
	// only.
	Overrides *viper.Viper

	// InstallDir is what "##plugin##" expands to.
	InstallDir string

	// Logger receives application logs.
	Logger pslog.Logger
}

// Application wires a document, a loop and a bridge together.
type Application struct {
	opts Options
	log  pslog.Logger

	loop    *Loop
	doc     *document.Document
	bridge  *repl.Bridge
	hooks   *lua.Hooks
	watcher *watcher.Watcher

	frontEnd frontEnd
	startErr error
	status   atomic.Pointer[string]
	running  atomic.Bool
	closeMu  sync.Once
}

// frontEnd is the interactive surface driving the application.
type frontEnd interface {
	// start begins delivering input as tasks on the loop.
	start(ctx context.Context) error
	// redraw runs on the loop after each batch of tasks.
	redraw()
	// stop releases the front end's resources.
	stop()
}

// New builds an application from opts. The child is not started until Run.
func New(opts Options) (*Application, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	log := opts.Logger
	if log == nil {
		log = pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured})
	}

	app := &Application{opts: opts, log: log}
	app.setStatus("starting")
	app.loop = NewLoop(log, app.redraw)
	app.doc = document.New(document.WithLineEnding(document.ParseLineEnding(opts.Settings.LineEnding)))

	bridgeOpts := []repl.BridgeOption{
		repl.WithLogger(log.With("component", "bridge")),
		repl.WithInstallDir(opts.InstallDir),
		repl.WithStateHandler(app.bridgeStateChanged),
	}
	if opts.Settings.HookScript != "" {
		hooks, err := lua.LoadHooks(repl.ExpandPlaceholder(opts.Settings.HookScript, opts.InstallDir), log.With("component", "hooks"))
		if err != nil {
			return nil, &InitError{Component: "hooks", Err: err}
		}
		app.hooks = hooks
		bridgeOpts = append(bridgeOpts, repl.WithHooks(hooks))
	}
	app.bridge = repl.NewBridge(app.doc, app.loop, bridgeOpts...)
	return app, nil
}

// Document returns the application's document.
func (app *Application) Document() *document.Document {
	return app.doc
}

// Bridge returns the application's bridge. Use it only from loop tasks.
func (app *Application) Bridge() *repl.Bridge {
	return app.bridge
}

// Loop returns the application's scheduler.
func (app *Application) Loop() *Loop {
	return app.loop
}

// Status returns the one-line status shown by front ends.
func (app *Application) Status() string {
	return *app.status.Load()
}

func (app *Application) setStatus(s string) {
	app.status.Store(&s)
}

// run starts the session, the watcher and fe, then processes the loop
// until it is stopped or ctx is done. The session is shut down before run
// returns.
func (app *Application) run(ctx context.Context, fe frontEnd) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	app.frontEnd = fe

	ctx = pslog.ContextWithLogger(ctx, app.log)
	app.loop.Post(func() { app.activate(ctx) })
	if err := fe.start(ctx); err != nil {
		return &InitError{Component: "front end", Err: err}
	}
	defer fe.stop()

	if app.opts.Watch && app.opts.ConfigPath != "" {
		app.startWatcher()
	}

	err := app.loop.Run(ctx)
	if closeErr := app.Close(); closeErr != nil {
		app.log.Warn("shutdown", "error", closeErr)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil && app.startErr != nil {
		err = &InitError{Component: "session", Err: app.startErr}
	}
	return err
}

// Close stops the watcher, the session and the hooks. It runs once.
func (app *Application) Close() error {
	var errs ErrorList
	app.closeMu.Do(func() {
		app.loop.Stop()
		if app.watcher != nil {
			errs.Add(app.watcher.Close())
		}
		app.bridge.Close()
		if app.hooks != nil {
			errs.Add(app.hooks.Close())
		}
	})
	return errs.AsError()
}

// Quit stops the loop. Safe to call from any goroutine.
func (app *Application) Quit() {
	app.loop.Stop()
}

func (app *Application) activate(ctx context.Context) {
	app.startErr = app.bridge.Activate(ctx, app.opts.Settings)
	if app.startErr != nil {
		app.setStatus(fmt.Sprintf("start failed: %v", app.startErr))
		return
	}
	app.setStatus("running " + app.opts.Settings.Shell)
}

// restart replaces the session with a fresh one. Settings reloaded since
// the last activation take full effect here.
func (app *Application) restart(ctx context.Context) {
	app.bridge.Deactivate()
	app.activate(ctx)
}

func (app *Application) bridgeStateChanged(state repl.State, err error) {
	switch state {
	case repl.StateRunning:
		app.setStatus("running " + app.opts.Settings.Shell)
	case repl.StateEnded:
		switch {
		case err == nil:
			app.setStatus("session ended")
		case errors.Is(err, repl.ErrSessionEnded):
			app.setStatus(err.Error())
		default:
			app.setStatus(fmt.Sprintf("session ended: %v", err))
		}
	case repl.StateIdle:
		app.setStatus("idle")
	}
}

func (app *Application) redraw() {
	if app.frontEnd != nil {
		app.frontEnd.redraw()
	}
}

// report shows err in the status line.
func (app *Application) report(action string, err error) {
	if err == nil {
		return
	}
	app.log.Warn(action+" failed", "error", err)
	app.setStatus(fmt.Sprintf("%s: %v", action, err))
}
