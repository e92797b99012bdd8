package repl

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/replbridge/internal/integration/process"
	"pkt.systems/pslog"
)

// DefaultShutdownTimeout bounds each wait during Shutdown.
const DefaultShutdownTimeout = 2 * time.Second

// exitWait bounds how long an unexpected end waits for the child's exit
// status.
const exitWait = 250 * time.Millisecond

// Options describe how to launch the child.
type Options struct {
	// Shell is the program (or command line when UseShell is set).
	Shell string
	// Params are extra arguments appended to Shell.
	Params []string
	// UseShell runs Shell through the platform shell.
	UseShell bool
	// Env overrides entries of the inherited environment.
	Env map[string]string
	// Dir is the working directory; empty means the current one.
	Dir string
	// InstallDir is what PluginPlaceholder expands to.
	InstallDir string
	// StartupCommands is written to the child right after launch.
	StartupCommands string
	// ShutdownTimeout bounds each wait during Shutdown.
	ShutdownTimeout time.Duration
}

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	// SessionRunning means the child accepts input.
	SessionRunning SessionState = iota
	// SessionDead means a write failed or the child went away.
	SessionDead
	// SessionStopped means Shutdown has run.
	SessionStopped
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionDead:
		return "dead"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is one running child process with its output drain.
type Session struct {
	proc    *process.Process
	queue   *OutputQueue
	drain   *Drain
	log     pslog.Logger
	timeout time.Duration
	shell   string
	wrapped bool

	writeMu  sync.Mutex
	state    atomic.Int32
	stopping atomic.Bool
	stopped  chan struct{}
}

// Start launches the child under sup and starts draining its output.
// sup should be limited to one process; hitting the limit is reported
// as ErrSessionActive.
func Start(ctx context.Context, sup *process.Supervisor, opts Options) (*Session, error) {
	log := pslog.Ctx(ctx)

	cmd, err := BuildCommand(opts)
	if err != nil {
		return nil, err
	}

	proc, err := sup.Start(opts.Shell, cmd)
	if err != nil {
		if errors.Is(err, process.ErrProcessLimit) {
			return nil, ErrSessionActive
		}
		return nil, &SpawnError{Shell: opts.Shell, Err: err}
	}

	log = log.With("session", proc.ID, "pid", proc.PID())
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	s := &Session{
		proc:    proc,
		queue:   NewOutputQueue(),
		log:     log,
		timeout: timeout,
		shell:   opts.Shell,
		wrapped: opts.UseShell,
		stopped: make(chan struct{}),
	}
	s.drain = StartDrain(proc.Output, s.queue, log)
	log.Info("session started", "shell", opts.Shell, "use_shell", opts.UseShell)

	if opts.StartupCommands != "" {
		if err := s.Send(opts.StartupCommands); err != nil {
			s.Shutdown("")
			return nil, fmt.Errorf("startup commands: %w", err)
		}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.proc.ID
}

// PID returns the child's process ID.
func (s *Session) PID() int {
	return s.proc.PID()
}

// Queue returns the session's output queue.
func (s *Session) Queue() *OutputQueue {
	return s.queue
}

// State returns the session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Running reports whether the session accepts input.
func (s *Session) Running() bool {
	return s.State() == SessionRunning
}

// Stopped is closed once Shutdown has finished.
func (s *Session) Stopped() <-chan struct{} {
	return s.stopped
}

// Send writes line followed by "\n" to the child. A failed write marks
// the session dead.
func (s *Session) Send(line string) error {
	if !s.Running() {
		return &WriteError{Op: "send", Err: ErrSessionEnded}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.proc.Write([]byte(line + "\n")); err != nil {
		s.state.CompareAndSwap(int32(SessionRunning), int32(SessionDead))
		s.log.Warn("write to child failed", "error", err)
		return &WriteError{Op: "send", Err: err}
	}
	s.log.Debug("command sent", "bytes", len(line)+1)
	return nil
}

// MarkDead records that the child went away on its own.
func (s *Session) MarkDead() {
	s.state.CompareAndSwap(int32(SessionRunning), int32(SessionDead))
}

// endError describes an output stream that ended without the sentinel,
// including the child's exit status once it has been reaped. A platform
// shell that could not find its command is reported as a SpawnError.
func (s *Session) endError(reason EndReason, readErr error) error {
	ended := &EndedError{Reason: reason, ExitCode: -1, Err: readErr}
	select {
	case <-s.proc.Done():
		ended.ExitCode = s.proc.ExitCode()
		if ended.Err == nil {
			ended.Err = s.proc.ExitError()
		}
	case <-time.After(exitWait):
	}
	if s.wrapped && commandNotFound(ended.ExitCode) {
		return &SpawnError{Shell: s.shell, Err: ended}
	}
	return ended
}

// commandNotFound reports whether code is the status the platform shell
// exits with when it cannot find its command.
func commandNotFound(code int) bool {
	if runtime.GOOS == "windows" {
		return code == 9009
	}
	return code == 127
}

// Shutdown runs the closing handshake: shutdownCommands and the sentinel
// are written (failures are ignored), stdin is closed, and the child is
// given up to the shutdown timeout to echo the sentinel or exit before it
// is killed. Shutdown returns once the drain and the process are gone.
// Only the first call has effect.
func (s *Session) Shutdown(shutdownCommands string) {
	if !s.stopping.CompareAndSwap(false, true) {
		<-s.stopped
		return
	}
	defer close(s.stopped)

	s.writeQuiet(shutdownCommands)
	s.writeQuiet(Sentinel)
	s.state.Store(int32(SessionStopped))
	if err := s.proc.CloseInput(); err != nil {
		s.log.Debug("close stdin", "error", err)
	}

	select {
	case <-s.drain.Done():
	case <-time.After(s.timeout):
		s.log.Debug("drain still open after grace period")
	}

	if s.proc.IsRunning() {
		if err := s.proc.KillTree(); err != nil {
			s.log.Debug("kill child", "error", err)
		}
	}

	select {
	case <-s.drain.Done():
	case <-time.After(s.timeout):
		// A grandchild may still hold the output pipe open.
		s.log.Warn("output still open after kill, closing it")
		s.drain.Abort()
		<-s.drain.Done()
	}

	select {
	case <-s.proc.Done():
	case <-time.After(s.timeout):
		s.log.Warn("child did not exit after kill")
	}
	if err := s.proc.Close(); err != nil {
		s.log.Debug("close process handles", "error", err)
	}
	s.log.Info("session stopped", "exit_code", s.proc.ExitCode())
}

func (s *Session) writeQuiet(text string) {
	if text == "" {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.proc.Write([]byte(text + "\n")); err != nil {
		s.log.Debug("shutdown write ignored", "error", err)
	}
}
