package repl

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/dshills/replbridge/internal/integration/process"
	"github.com/dshills/replbridge/internal/logging"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix userland")
	}
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
}

func testContext() context.Context {
	return logging.ContextWithLogger(context.Background(), discardLogger())
}

func catOptions() Options {
	return Options{Shell: "cat", ShutdownTimeout: time.Second}
}

func TestSession_EchoRoundTrip(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	s, err := Start(testContext(), sup, catOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Running() || s.ID() == "" || s.PID() <= 0 {
		t.Fatalf("session not running: state=%v id=%q pid=%d", s.State(), s.ID(), s.PID())
	}

	if err := s.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send("world"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := readLines(t, s.Queue(), 2)
	if len(got) != 2 || got[0] != "hello\n" || got[1] != "world\n" {
		t.Errorf("lines = %q", got)
	}

	s.Shutdown("")

	// cat echoes the sentinel, which ends the stream cleanly.
	if reason, _, closed := s.Queue().Closed(); !closed || reason != EndSentinel {
		t.Errorf("queue end = %v, %v", reason, closed)
	}
	if s.State() != SessionStopped {
		t.Errorf("State = %v", s.State())
	}

	err = s.Send("late")
	if !errors.Is(err, ErrWrite) || !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Send after shutdown = %v", err)
	}
}

func TestSession_StartupAndShutdownCommands(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	opts := catOptions()
	opts.StartupCommands = "boot"
	s, err := Start(testContext(), sup, opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := readLines(t, s.Queue(), 1)
	if len(got) != 1 || got[0] != "boot\n" {
		t.Errorf("startup output = %q", got)
	}

	s.Shutdown("bye")
	got = s.Queue().Drain()
	if len(got) != 1 || got[0] != "bye\n" {
		t.Errorf("shutdown output = %q", got)
	}
}

func TestSession_ShutdownIdempotent(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	s, err := Start(testContext(), sup, catOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Shutdown("")
		close(done)
	}()
	s.Shutdown("")
	<-done

	select {
	case <-s.Stopped():
	default:
		t.Error("Stopped not closed")
	}
}

func TestSession_SingleLiveSession(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	first, err := Start(testContext(), sup, catOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := Start(testContext(), sup, catOptions()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start = %v, want ErrSessionActive", err)
	}

	first.Shutdown("")
	second, err := Start(testContext(), sup, catOptions())
	if err != nil {
		t.Fatalf("Start after shutdown: %v", err)
	}
	second.Shutdown("")
}

func TestSession_SpawnError(t *testing.T) {
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	_, err := Start(testContext(), sup, Options{Shell: "/nonexistent/replbridge-child"})
	var serr *SpawnError
	if !errors.As(err, &serr) || !errors.Is(err, ErrSpawn) {
		t.Fatalf("Start = %v, want SpawnError", err)
	}
	if serr.Shell != "/nonexistent/replbridge-child" {
		t.Errorf("Shell = %q", serr.Shell)
	}
	if sup.Count() != 0 {
		t.Errorf("supervisor tracks %d processes", sup.Count())
	}
}

func TestSession_ChildExitsOnItsOwn(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	s, err := Start(testContext(), sup, Options{
		Shell:           "echo goodbye; exit 3",
		UseShell:        true,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := readLines(t, s.Queue(), 2)
	if len(got) != 1 || got[0] != "goodbye\n" {
		t.Errorf("lines = %q", got)
	}
	if reason, _, closed := s.Queue().Closed(); !closed || reason != EndEOF {
		t.Errorf("queue end = %v, %v", reason, closed)
	}

	finished := make(chan struct{})
	go func() {
		s.Shutdown("ignored")
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown hung on an exited child")
	}
}

func TestSession_EnvironmentOverrides(t *testing.T) {
	requireUnix(t)
	sup := process.NewSupervisor(process.WithMaxProcesses(1))
	defer sup.Shutdown(time.Second)

	s, err := Start(testContext(), sup, Options{
		Shell:           `echo "$REPLBRIDGE_TEST_VAR"`,
		UseShell:        true,
		Env:             map[string]string{"REPLBRIDGE_TEST_VAR": "##plugin##data"},
		InstallDir:      "/srv/rb",
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown("")

	got := readLines(t, s.Queue(), 1)
	if len(got) != 1 || got[0] != "/srv/rb/data\n" {
		t.Errorf("lines = %q", got)
	}
}
