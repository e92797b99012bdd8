package repl

import (
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often the dispatcher checks the queue.
const DefaultPollInterval = 25 * time.Millisecond

// EndHandler is told why the output stream ended.
type EndHandler func(reason EndReason, err error)

// Dispatcher moves queued output onto the UI context. It runs entirely on
// its Scheduler: each tick delivers every available line in order, then
// reschedules itself until the stream ends or Stop is called.
type Dispatcher struct {
	queue    *OutputQueue
	sched    Scheduler
	deliver  func(line string)
	interval time.Duration
	onEnd    EndHandler
	wake     bool

	started atomic.Bool
	stopped atomic.Bool
	gen     atomic.Uint64
	quit    chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval sets the delay between ticks.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.interval = d
		}
	}
}

// WithEndHandler sets the callback invoked, on the scheduler, once the
// stream has ended and every line before the end has been delivered.
func WithEndHandler(h EndHandler) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.onEnd = h
	}
}

// WithWakeOnOutput schedules a tick as soon as the queue signals new
// output or its end, instead of waiting for the next poll. The poll keeps
// running as a fallback. The dispatcher becomes the queue's only Ready
// consumer.
func WithWakeOnOutput() DispatcherOption {
	return func(disp *Dispatcher) {
		disp.wake = true
	}
}

// NewDispatcher creates a dispatcher feeding deliver from queue.
func NewDispatcher(queue *OutputQueue, sched Scheduler, deliver func(line string), opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:    queue,
		sched:    sched,
		deliver:  deliver,
		interval: DefaultPollInterval,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start schedules the first tick.
func (d *Dispatcher) Start() error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDispatcherStarted
	}
	if d.wake {
		go d.watch()
	}
	d.schedule(0)
	return nil
}

// Stop prevents further ticks. Lines still queued are not delivered.
func (d *Dispatcher) Stop() {
	d.halt()
}

// Flush synchronously delivers what is queued, up to the end of the
// stream, and stops the dispatcher. It must be called on the scheduler.
func (d *Dispatcher) Flush() {
	if d.stopped.Load() {
		return
	}
	d.pump()
	d.halt()
}

// watch turns queue signals into immediate ticks until the dispatcher stops.
func (d *Dispatcher) watch() {
	for {
		select {
		case <-d.quit:
			return
		case <-d.queue.Ready():
			d.schedule(0)
		}
	}
}

// schedule queues a tick. The newest scheduled tick owns the poll chain.
func (d *Dispatcher) schedule(delay time.Duration) {
	gen := d.gen.Add(1)
	d.sched.AfterFunc(delay, func() { d.tick(gen) })
}

func (d *Dispatcher) tick(gen uint64) {
	if d.stopped.Load() {
		return
	}
	if d.pump() {
		return
	}
	if d.gen.Load() == gen {
		d.schedule(d.interval)
	}
}

// pump delivers available lines and reports whether the stream is over.
func (d *Dispatcher) pump() bool {
	for {
		for _, line := range d.queue.Drain() {
			if IsSentinel(line) {
				d.finish(EndSentinel, nil)
				return true
			}
			d.deliver(line)
			if d.stopped.Load() {
				return true
			}
		}

		reason, err, closed := d.queue.Closed()
		if !closed {
			return false
		}
		// Close happens after the final push, so an empty queue here is final.
		if d.queue.Len() == 0 {
			d.finish(reason, err)
			return true
		}
	}
}

// halt stops the dispatcher and reports whether this call did so.
func (d *Dispatcher) halt() bool {
	if !d.stopped.CompareAndSwap(false, true) {
		return false
	}
	close(d.quit)
	return true
}

func (d *Dispatcher) finish(reason EndReason, err error) {
	if !d.halt() {
		return
	}
	if d.onEnd != nil {
		d.onEnd(reason, err)
	}
}
