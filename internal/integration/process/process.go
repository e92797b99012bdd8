package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process represents a managed child process whose stdout and stderr
// are joined into a single Output stream.
//
// Process is safe for concurrent use. Writing to Stdin and reading from
// Output may happen from different goroutines.
type Process struct {
	// ID is the unique identifier for this process.
	ID string

	// Name is a human-readable name for the process.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Stdin provides write access to the process's stdin.
	Stdin io.WriteCloser

	// Output provides read access to the merged stdout/stderr stream.
	Output io.ReadCloser

	// Started is the time the process was started.
	Started time.Time

	// outputWriter is the parent's copy of the pipe write end.
	// It is closed right after start so EOF reaches Output on exit.
	outputWriter *os.File

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error

	waitOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewProcess creates a new Process wrapping the given command.
//
// The command should not be started before calling NewProcess.
// Use Supervisor.Start() to start the process with proper tracking.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:   id,
		Name: name,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1) // -1 indicates not exited
	return p
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code.
// Returns -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited returns true if the process has exited (normally or killed).
func (p *Process) HasExited() bool {
	state := p.State()
	return state == StateExited || state == StateKilled
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Signal sends a signal to the process.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() {
		return fmt.Errorf("process not running: %w", ErrProcessNotStarted)
	}
	if p.Cmd.Process == nil {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Signal(sig)
}

// Kill forcibly terminates the process.
func (p *Process) Kill() error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return fmt.Errorf("process not running: %w", ErrProcessNotStarted)
	}
	return p.Cmd.Process.Kill()
}

// KillTree kills the process and every descendant it has spawned. A REPL
// launched through a shell intermediary runs as a grandchild, and would
// otherwise keep the output pipe open after the shell dies.
func (p *Process) KillTree() error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return fmt.Errorf("process not running: %w", ErrProcessNotStarted)
	}
	kids := descendants(int32(p.Cmd.Process.Pid))
	err := p.Kill()
	for _, kid := range kids {
		_ = kid.Kill() // may already be gone
	}
	return err
}

// descendants lists the live process tree below pid, breadth first.
func descendants(pid int32) []*gops.Process {
	root, err := gops.NewProcess(pid)
	if err != nil {
		return nil
	}
	var out []*gops.Process
	queue := []*gops.Process{root}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		kids, err := next.Children()
		if err != nil {
			continue
		}
		out = append(out, kids...)
		queue = append(queue, kids...)
	}
	return out
}

// Terminate asks the process to exit.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Write writes b to the process's stdin.
func (p *Process) Write(b []byte) (int, error) {
	if p.Stdin == nil {
		return 0, ErrNoStdin
	}
	return p.Stdin.Write(b)
}

// start wires the pipes, starts the process and begins tracking it.
func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	stdin, err := p.Cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	// stdout and stderr share one pipe so output keeps its emitted order.
	r, w, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("create output pipe: %w", err)
	}
	p.Cmd.Stdout = w
	p.Cmd.Stderr = w

	if err := p.Cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = r.Close()
		_ = w.Close()
		return fmt.Errorf("start process: %w", err)
	}

	// The child holds its own copy of the write end.
	_ = w.Close()

	p.Stdin = stdin
	p.Output = r
	p.Started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return nil
}

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// CloseInput closes the process's stdin. Subsequent writes fail.
func (p *Process) CloseInput() error {
	if p.Stdin == nil {
		return nil
	}
	return p.Stdin.Close()
}

// Close closes all I/O handles associated with the process.
// This does not kill the process. Close is idempotent.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if p.Stdin != nil {
			if err := p.Stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, fmt.Errorf("close stdin: %w", err))
			}
		}
		if p.Output != nil {
			if err := p.Output.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, fmt.Errorf("close output: %w", err))
			}
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Runtime returns the duration the process has been running.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}

// Sentinel errors for process package.
var (
	// ErrProcessNotStarted is returned when operations require a started process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when trying to start an already running process.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrNoStdin is returned when writing to a process without a stdin pipe.
	ErrNoStdin = errors.New("process has no stdin")
)
