// Package repl bridges an editable text surface to a long-lived child
// process that reads a line, runs it, and prints the result.
//
// Lines typed into the surface are sent to the child's stdin; whatever the
// child prints is read by a background Drain into an OutputQueue, and a
// Dispatcher running on the host's Scheduler moves it through a Formatter
// into the surface. Only the queue is shared between goroutines.
//
// # Session lifecycle
//
// A Bridge owns at most one Session. Activate launches the child, writes
// the configured startup commands and starts the dispatcher. Deactivate
// writes the shutdown commands and the Sentinel, gives the child a grace
// period to echo the sentinel back, then kills its process tree and
// flushes whatever output arrived before the sentinel:
//
//	doc := document.New()
//	loop := app.NewLoop(log, nil)
//	b := repl.NewBridge(doc, loop)
//	if err := b.Activate(ctx, settings); err != nil {
//	    return err
//	}
//	defer b.Close()
//
// If the child exits or closes its output on its own, the dispatcher
// stops and the bridge moves to StateEnded instead of polling forever. The
// error it reports is an *EndedError carrying the child's exit status; a
// platform shell that could not find its command is reported as a
// *SpawnError instead.
//
// # Shortcuts
//
// A line starting with a configured prefix is rewritten when the user
// presses Enter; "##param##" in the template receives the rest of the
// line exactly, leading spaces included. Longer prefixes win.
package repl
