package repl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/replbridge/internal/document"
)

var promptPattern = regexp.MustCompile(`(^|\n)>>> `)

// NormalizeCommand strips the interactive prompt ">>> " from the start of
// text and from the start of every following line.
func NormalizeCommand(text string) string {
	return promptPattern.ReplaceAllString(text, "$1")
}

// SendFunc writes one command line to the child.
type SendFunc func(line string) error

// Router turns user actions on a Surface into commands for the child.
type Router struct {
	shortcuts *ShortcutTable
	send      SendFunc
	hooks     Hooks
}

// NewRouter creates a router. hooks may be nil.
func NewRouter(shortcuts *ShortcutTable, send SendFunc, hooks Hooks) *Router {
	return &Router{shortcuts: shortcuts, send: send, hooks: hooks}
}

// Shortcuts returns the router's shortcut table.
func (r *Router) Shortcuts() *ShortcutTable {
	return r.shortcuts
}

// Submit sends the text at the first selection region.
//
// A selection spanning lines is widened to whole lines; one inside a
// single line is sent as selected; an empty selection sends its line.
// A line ending is inserted after the last line involved and the caret
// is moved onto the new line.
func (r *Router) Submit(s Surface) error {
	sel := s.Selection()
	if len(sel) == 0 {
		return nil
	}
	region := sel[0]

	switch {
	case region.Empty():
		region = document.Point(s.Line(region.B).B)
		s.SetSelection(region)
	case s.Line(region.Begin()) != s.Line(region.End()):
		region = s.FullLines(region)
		s.SetSelection(region)
	}

	var text string
	if region.Empty() {
		text = s.Substr(s.Line(region.B))
	} else {
		text = s.Substr(region)
	}

	lineEnd := s.FullLines(region).B
	s.SetSelection(document.Point(lineEnd))
	if _, err := s.Insert(lineEnd, s.LineEnding().Sequence()); err != nil {
		return fmt.Errorf("insert line ending: %w", err)
	}

	return r.dispatch(NormalizeCommand(text))
}

// HandleNewline checks each empty selection region for a line starting
// with a shortcut prefix. The first match is expanded and sent, the caret
// moves to the end of that line, and the rest of the event is ignored.
// It reports whether a shortcut fired. The caller still inserts the
// newline itself.
func (r *Router) HandleNewline(s Surface) (bool, error) {
	if r.shortcuts.Len() == 0 {
		return false, nil
	}
	for _, region := range s.Selection() {
		if !region.Empty() {
			continue
		}
		line := s.Line(region.B)
		text := s.Substr(line)
		sc, ok := r.shortcuts.Match(text)
		if !ok {
			continue
		}

		err := r.dispatch(sc.Expand(text))
		s.SetSelection(document.Point(line.B))
		s.Show(line.B)
		return true, err
	}
	return false, nil
}

func (r *Router) dispatch(command string) error {
	if r.hooks != nil {
		rewritten, err := r.hooks.OnCommand(command)
		if err != nil {
			return fmt.Errorf("command hook: %w", err)
		}
		command = rewritten
	}
	return r.send(strings.ReplaceAll(command, "\r\n", "\n"))
}
