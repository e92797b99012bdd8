package repl

import "sync"

// EndReason records why an output stream stopped.
type EndReason uint8

const (
	// EndNone means the stream is still open.
	EndNone EndReason = iota
	// EndSentinel means the child echoed the sentinel.
	EndSentinel
	// EndEOF means the child closed its output without the sentinel.
	EndEOF
	// EndError means reading the child's output failed.
	EndError
)

// String returns a human-readable representation of the reason.
func (r EndReason) String() string {
	switch r {
	case EndNone:
		return "open"
	case EndSentinel:
		return "sentinel"
	case EndEOF:
		return "eof"
	case EndError:
		return "error"
	default:
		return "unknown"
	}
}

// Unexpected reports whether the stream ended without the sentinel.
func (r EndReason) Unexpected() bool {
	return r == EndEOF || r == EndError
}

// OutputQueue is an unbounded FIFO of output lines shared by exactly one
// producer and one consumer. Pushes never block.
type OutputQueue struct {
	mu     sync.Mutex
	lines  []string
	reason EndReason
	err    error
	ready  chan struct{}
}

// NewOutputQueue creates an empty, open queue.
func NewOutputQueue() *OutputQueue {
	return &OutputQueue{ready: make(chan struct{}, 1)}
}

// Push appends line. It reports false if the queue is already closed.
func (q *OutputQueue) Push(line string) bool {
	q.mu.Lock()
	if q.reason != EndNone {
		q.mu.Unlock()
		return false
	}
	q.lines = append(q.lines, line)
	q.mu.Unlock()
	q.signal()
	return true
}

// Drain removes and returns every available line, oldest first. It never
// blocks.
func (q *OutputQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	lines := q.lines
	q.lines = nil
	return lines
}

// Len returns the number of queued lines.
func (q *OutputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

// Close marks the end of the stream. Only the first call has effect;
// lines already queued stay available.
func (q *OutputQueue) Close(reason EndReason, err error) {
	if reason == EndNone {
		reason = EndError
	}
	q.mu.Lock()
	if q.reason != EndNone {
		q.mu.Unlock()
		return
	}
	q.reason = reason
	q.err = err
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether the stream has ended, and why.
func (q *OutputQueue) Closed() (EndReason, error, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reason, q.err, q.reason != EndNone
}

// Ready is signalled after a push or close. A single signal may cover
// several events, and only one goroutine should wait on it.
func (q *OutputQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *OutputQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
