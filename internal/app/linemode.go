package app

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dshills/replbridge/internal/document"
	"github.com/dshills/replbridge/internal/integration/repl"
)

// lineMode drives the bridge from plain text lines. Each input line is
// typed at the end of the document and entered; output the bridge inserts
// is written to out as it arrives.
type lineMode struct {
	app *Application
	in  io.Reader
	out io.Writer

	// typing is set while input is being applied, so the line itself is
	// not echoed back to out.
	typing bool
}

// RunLines runs the application reading commands from in until EOF, then
// shuts the session down and returns once its last output has been
// written to out.
func (app *Application) RunLines(ctx context.Context, in io.Reader, out io.Writer) error {
	return app.run(ctx, &lineMode{app: app, in: in, out: out})
}

func (lm *lineMode) start(context.Context) error {
	lm.app.doc.OnInsert(func(_ int, text string) {
		if lm.typing {
			return
		}
		if _, err := io.WriteString(lm.out, text); err != nil {
			lm.app.log.Warn("write output", "error", err)
		}
	})
	go lm.read()
	return nil
}

func (lm *lineMode) read() {
	sc := bufio.NewScanner(lm.in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if !lm.app.loop.Post(func() { lm.enter(line) }) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		lm.app.log.Warn("read input", "error", err)
	}
	lm.app.loop.Post(func() {
		lm.app.bridge.Deactivate()
		lm.app.Quit()
	})
}

// enter types line at the end of the document and presses Enter: a text
// shortcut wins, otherwise the line is submitted.
func (lm *lineMode) enter(line string) {
	doc := lm.app.doc
	lm.typing = true
	defer func() { lm.typing = false }()

	end := doc.Len()
	doc.SetSelection(document.Point(end))
	if _, err := doc.Insert(end, line); err != nil {
		lm.app.report("edit", err)
		return
	}

	handled, err := lm.app.bridge.HandleNewline()
	lm.app.report("shortcut", err)
	if handled {
		caret := doc.Selection()[0].B
		if _, err := doc.Insert(caret, doc.LineEnding().Sequence()); err != nil {
			lm.app.report("edit", err)
		}
		return
	}
	lm.app.report("submit", lm.app.bridge.Submit())
}

// redraw ends line mode once the child has gone away on its own.
func (lm *lineMode) redraw() {
	if lm.app.bridge.State() == repl.StateEnded {
		lm.app.Quit()
	}
}

// stop does not wait for the reader, which may be blocked on in.
func (lm *lineMode) stop() {}
