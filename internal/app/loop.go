package app

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
)

// Loop is a cooperative scheduler: tasks posted from any goroutine run
// one at a time, in order, on the goroutine that called Run. Document
// mutation and everything the bridge does happen on it.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	done  chan struct{}
	idle  func()
	log   pslog.Logger

	running atomic.Bool
	stopped atomic.Bool
	stop    sync.Once
}

// NewLoop creates a loop. idle, if set, runs after each batch of tasks,
// which is where front ends redraw.
func NewLoop(log pslog.Logger, idle func()) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		idle: idle,
		log:  log,
	}
}

// Post queues fn. It never blocks and reports false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	if l.stopped.Load() {
		return false
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc posts fn after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(d, func() { l.Post(fn) })
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrNotRunning
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.tasks
			l.tasks = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if l.stopped.Load() {
					return nil
				}
				l.runTask(fn)
			}
		}
		if l.idle != nil && !l.stopped.Load() {
			l.runTask(l.idle)
		}
	}
}

// Stop ends Run. Queued tasks are dropped.
func (l *Loop) Stop() {
	l.stop.Do(func() {
		l.stopped.Store(true)
		close(l.done)
	})
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := NewRecoveredPanicError(r, string(debug.Stack()))
			l.log.Error("task panicked", "error", err)
		}
	}()
	fn()
}
