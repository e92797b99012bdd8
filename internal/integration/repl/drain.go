package repl

import (
	"bufio"
	"errors"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"pkt.systems/pslog"
)

// Drain reads a child's merged output line by line into a queue.
type Drain struct {
	r     io.ReadCloser
	queue *OutputQueue
	log   pslog.Logger
	done  chan struct{}
}

// StartDrain starts reading r on a new goroutine. Bytes that are not
// valid UTF-8 are replaced with U+FFFD.
//
// The drain ends when it reads a sentinel line, when r reaches EOF, or
// when a read fails; in each case the queue is closed with the matching
// EndReason and r is closed. The sentinel itself is never queued.
func StartDrain(r io.ReadCloser, queue *OutputQueue, log pslog.Logger) *Drain {
	d := &Drain{
		r:     r,
		queue: queue,
		log:   log,
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Done is closed once the drain has stopped.
func (d *Drain) Done() <-chan struct{} {
	return d.done
}

// Abort closes the underlying reader so a blocked read returns.
func (d *Drain) Abort() {
	_ = d.r.Close()
}

func (d *Drain) run() {
	defer close(d.done)
	defer func() { _ = d.r.Close() }()

	reader := bufio.NewReader(unicode.UTF8.NewDecoder().Reader(d.r))
	for {
		line, err := reader.ReadString('\n')
		if line != "" && IsSentinel(line) {
			d.log.Debug("output sentinel received")
			d.queue.Close(EndSentinel, nil)
			return
		}
		if err != nil {
			if line != "" {
				// A final unterminated line still counts as a line.
				d.queue.Push(line + "\n")
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				d.log.Debug("output closed")
				d.queue.Close(EndEOF, nil)
				return
			}
			d.log.Warn("output read failed", "error", err)
			d.queue.Close(EndError, err)
			return
		}
		d.queue.Push(line)
	}
}
