package repl

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dshills/replbridge/internal/logging"
	"pkt.systems/pslog"
)

func discardLogger() pslog.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

// manualScheduler records callbacks and runs them only when told to.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func()
	delay []time.Duration
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, fn)
	s.delay = append(s.delay, d)
}

// runPending runs the callbacks scheduled so far and returns how many ran.
func (s *manualScheduler) runPending() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.delay = nil
	s.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) lastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delay) == 0 {
		return -1
	}
	return s.delay[len(s.delay)-1]
}

// serialScheduler runs callbacks on timers, one at a time. Tests use Do
// to act on the same serialized context.
type serialScheduler struct {
	mu sync.Mutex
}

func (s *serialScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
	})
}

func (s *serialScheduler) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// waitFor polls cond on the scheduler until it holds or the deadline passes.
func waitFor(t *testing.T, s *serialScheduler, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var ok bool
		s.Do(func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// readLines collects lines from q until want lines arrived or the queue
// closed.
func readLines(t *testing.T, q *OutputQueue, want int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < want {
		if lines := q.Drain(); len(lines) > 0 {
			got = append(got, lines...)
			continue
		}
		if _, _, closed := q.Closed(); closed && q.Len() == 0 {
			return got
		}
		select {
		case <-q.Ready():
		case <-timeout:
			t.Fatalf("timed out after %d of %d lines: %q", len(got), want, got)
		}
	}
	return got
}
