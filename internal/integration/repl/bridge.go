package repl

import (
	"context"
	"io"
	"sync"

	"github.com/dshills/replbridge/internal/config"
	"github.com/dshills/replbridge/internal/integration/process"
	"pkt.systems/pslog"
)

// State is the bridge's externally visible status.
type State int32

const (
	// StateIdle means no session is active.
	StateIdle State = iota
	// StateRunning means a session is active.
	StateRunning
	// StateEnded means the session ended without being deactivated.
	StateEnded
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// StateHandler is notified, on the scheduler, when the bridge state changes.
type StateHandler func(state State, err error)

// Bridge connects one Surface to at most one child session at a time.
//
// Every method except State and Err must be called on the Scheduler's
// context.
type Bridge struct {
	surface    Surface
	sched      Scheduler
	sup        *process.Supervisor
	hooks      Hooks
	log        pslog.Logger
	installDir string
	onState    StateHandler

	session    *Session
	dispatcher *Dispatcher
	formatter  *Formatter
	router     *Router
	settings   config.Settings

	mu      sync.RWMutex
	state   State
	lastErr error
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(log pslog.Logger) BridgeOption {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithHooks installs command and output hooks.
func WithHooks(h Hooks) BridgeOption {
	return func(b *Bridge) {
		b.hooks = h
	}
}

// WithInstallDir sets the directory PluginPlaceholder expands to.
func WithInstallDir(dir string) BridgeOption {
	return func(b *Bridge) {
		b.installDir = dir
	}
}

// WithStateHandler sets the state change callback.
func WithStateHandler(h StateHandler) BridgeOption {
	return func(b *Bridge) {
		b.onState = h
	}
}

// WithSupervisor sets the process supervisor. It should allow at most
// one process.
func WithSupervisor(sup *process.Supervisor) BridgeOption {
	return func(b *Bridge) {
		if sup != nil {
			b.sup = sup
		}
	}
}

// NewBridge creates an idle bridge for surface.
func NewBridge(surface Surface, sched Scheduler, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		surface:  surface,
		sched:    sched,
		log:      pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured}),
		settings: config.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.sup == nil {
		b.sup = process.NewSupervisor(
			process.WithMaxProcesses(1),
			process.WithProcessExitCallback(b.childExited),
		)
	}
	return b
}

// childExited runs on the supervisor's monitor goroutine.
func (b *Bridge) childExited(p *process.Process) {
	b.log.Info("child exited",
		"pid", p.PID(),
		"exit_code", p.ExitCode(),
		"runtime", p.Runtime().String(),
		"error", p.ExitError(),
	)
}

// State returns the current bridge state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Err returns the error behind the last transition to StateEnded.
func (b *Bridge) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Session returns the active session, or nil.
func (b *Bridge) Session() *Session {
	return b.session
}

// Activate starts a session configured by settings.
func (b *Bridge) Activate(ctx context.Context, settings config.Settings) error {
	if b.session != nil {
		if b.session.Running() {
			return ErrSessionActive
		}
		b.release("")
	}

	fmtOpts, err := NewFormatOptions(settings.PrependOutput, settings.AppendOutput, settings.OutputFilter)
	if err != nil {
		return err
	}

	ctx = pslog.ContextWithLogger(ctx, b.log)
	sess, err := Start(ctx, b.sup, Options{
		Shell:           settings.Shell,
		Params:          settings.ShellParams,
		UseShell:        settings.UseShell,
		Env:             settings.EnvironmentVariables,
		InstallDir:      b.installDir,
		StartupCommands: settings.StartupCommands,
		ShutdownTimeout: settings.ShutdownTimeout(),
	})
	if err != nil {
		b.log.Error("activation failed", "shell", settings.Shell, "error", err)
		return err
	}

	b.settings = settings
	b.session = sess
	b.formatter = NewFormatter(fmtOpts, NewSuppressionBudget(settings.LinesToSuppress), b.hooks)
	b.router = NewRouter(NewShortcutTable(settings.TextShortcuts), b.send, b.hooks)
	b.dispatcher = NewDispatcher(sess.Queue(), b.sched, b.deliver,
		WithPollInterval(settings.PollInterval()),
		WithWakeOnOutput(),
		WithEndHandler(b.streamEnded(sess)),
	)
	if err := b.dispatcher.Start(); err != nil {
		b.release(settings.ShutdownCommands)
		return err
	}

	b.setState(StateRunning, nil)
	return nil
}

// Deactivate shuts the session down, delivers any output it produced
// before the sentinel, and returns the bridge to idle. It is a no-op when
// no session exists.
func (b *Bridge) Deactivate() {
	if b.session == nil {
		return
	}
	b.release(b.settings.ShutdownCommands)
	b.setState(StateIdle, nil)
}

// Close deactivates the bridge and stops its supervisor.
func (b *Bridge) Close() {
	b.Deactivate()
	b.sup.Shutdown(b.settings.ShutdownTimeout())
}

// Submit sends the text at the surface's selection as a command.
func (b *Bridge) Submit() error {
	if b.router == nil || b.session == nil {
		return ErrNoSession
	}
	return b.router.Submit(b.surface)
}

// HandleNewline runs shortcut expansion for an Enter key press. Without a
// session it does nothing.
func (b *Bridge) HandleNewline() (bool, error) {
	if b.router == nil || b.session == nil {
		return false, nil
	}
	return b.router.HandleNewline(b.surface)
}

// UpdateSettings applies settings that can change while a session runs:
// output formatting and text shortcuts. The rest take effect at the next
// Activate.
func (b *Bridge) UpdateSettings(settings config.Settings) error {
	fmtOpts, err := NewFormatOptions(settings.PrependOutput, settings.AppendOutput, settings.OutputFilter)
	if err != nil {
		return err
	}
	if b.formatter != nil {
		b.formatter.SetOptions(fmtOpts)
	}
	if b.router != nil {
		b.router = NewRouter(NewShortcutTable(settings.TextShortcuts), b.send, b.hooks)
	}
	b.settings = settings
	b.log.Info("settings updated")
	return nil
}

// Settings returns the settings of the current or most recent session.
func (b *Bridge) Settings() config.Settings {
	return b.settings
}

func (b *Bridge) send(line string) error {
	if b.session == nil {
		return ErrNoSession
	}
	if err := b.session.Send(line); err != nil {
		b.setState(StateEnded, err)
		return err
	}
	return nil
}

func (b *Bridge) deliver(line string) {
	if b.formatter == nil {
		return
	}
	if err := b.formatter.Deliver(b.surface, line); err != nil {
		b.log.Warn("output delivery", "error", err)
	}
}

// streamEnded handles the end of sess's output when the bridge did not
// initiate it.
func (b *Bridge) streamEnded(sess *Session) EndHandler {
	return func(reason EndReason, err error) {
		if b.session != sess {
			return
		}
		sess.MarkDead()
		err = sess.endError(reason, err)
		b.log.Warn("session ended unexpectedly", "session", sess.ID(), "reason", reason.String(), "error", err)
		b.setState(StateEnded, err)

		// Reap the child off the scheduler.
		go sess.Shutdown("")
	}
}

// release tears the current session down and flushes its remaining output.
func (b *Bridge) release(shutdownCommands string) {
	sess, disp := b.session, b.dispatcher
	b.session = nil
	b.dispatcher = nil

	sess.Shutdown(shutdownCommands)
	if disp != nil {
		disp.Flush()
	}
	if sel := b.surface.Selection(); len(sel) > 0 {
		b.surface.Show(sel[0].End())
	}
	b.router = nil
	b.formatter = nil
}

func (b *Bridge) setState(state State, err error) {
	b.mu.Lock()
	changed := b.state != state || err != nil
	b.state = state
	b.lastErr = err
	b.mu.Unlock()

	if changed && b.onState != nil {
		b.onState(state, err)
	}
}
