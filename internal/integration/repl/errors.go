package repl

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrSpawn classifies failures to launch the child process.
	ErrSpawn = errors.New("spawn failed")

	// ErrWrite classifies failures writing to the child's stdin.
	ErrWrite = errors.New("write failed")

	// ErrSessionActive is returned when starting a session while one is live.
	ErrSessionActive = errors.New("session already active")

	// ErrNoSession is returned when an operation needs a live session.
	ErrNoSession = errors.New("no active session")

	// ErrSessionEnded is returned when writing to a session whose child is gone.
	ErrSessionEnded = errors.New("session ended")

	// ErrDispatcherStarted is returned when starting a dispatcher twice.
	ErrDispatcherStarted = errors.New("dispatcher already started")
)

// SpawnError reports that the child process could not be launched.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}

// WriteError reports a failed write to the child's stdin. The session
// that produced it should be considered dead.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWrite, e.Err}
}

// EndedError reports that a session's output ended without the sentinel.
type EndedError struct {
	Reason EndReason
	// ExitCode is the child's exit status, or -1 if it had not exited or
	// was killed by a signal.
	ExitCode int
	// Err is the read error, or else the child's wait error.
	Err error
}

func (e *EndedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: output %s: %v", ErrSessionEnded, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: output %s", ErrSessionEnded, e.Reason)
}

func (e *EndedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionEnded}
	}
	return []error{ErrSessionEnded, e.Err}
}
