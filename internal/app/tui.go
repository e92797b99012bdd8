package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/replbridge/internal/document"
)

const tabWidth = 4

var (
	textStyle      = tcell.StyleDefault
	selectionStyle = tcell.StyleDefault.Reverse(true)
	statusStyle    = tcell.StyleDefault.Reverse(true).Bold(true)
)

// tui is the full-screen front end. The event goroutine only reads the
// screen's event queue; every handler and every draw runs on the loop.
type tui struct {
	app    *Application
	doc    *document.Document
	screen tcell.Screen
	ctx    context.Context

	top     int // first visible line
	mark    int // selection anchor, -1 when unset
	pasting bool
	events  chan struct{}
}

// RunTUI runs the application on screen until the user quits or ctx is
// done. A nil screen opens the controlling terminal.
func (app *Application) RunTUI(ctx context.Context, screen tcell.Screen) error {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
		screen = s
	}
	return app.run(ctx, newTUI(app, screen))
}

func newTUI(app *Application, screen tcell.Screen) *tui {
	return &tui{
		app:    app,
		doc:    app.doc,
		screen: screen,
		mark:   -1,
		events: make(chan struct{}),
	}
}

func (t *tui) start(ctx context.Context) error {
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.EnablePaste()
	t.screen.Clear()
	t.ctx = ctx
	go t.pollEvents()
	return nil
}

func (t *tui) stop() {
	t.screen.Fini()
	<-t.events
}

func (t *tui) pollEvents() {
	defer close(t.events)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.app.loop.Post(func() { t.handleKey(ev) })
		case *tcell.EventPaste:
			start := ev.Start()
			t.app.loop.Post(func() { t.pasting = start })
		case *tcell.EventResize:
			t.app.loop.Post(t.screen.Sync)
		}
	}
}

// handleKey applies one key press to the document or the bridge.
func (t *tui) handleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		t.app.Quit()
		return
	case tcell.KeyCtrlE:
		t.mark = -1
		t.app.report("submit", t.app.bridge.Submit())
	case tcell.KeyCtrlR:
		t.mark = -1
		t.app.restart(t.ctx)
	case tcell.KeyCtrlSpace:
		t.mark = t.caret()
	case tcell.KeyEscape:
		t.mark = -1
	case tcell.KeyEnter:
		t.newline()
	case tcell.KeyTab:
		t.insert("\t")
	case tcell.KeyRune:
		t.insert(string(ev.Rune()))
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		t.deleteBackward()
	case tcell.KeyDelete:
		t.deleteForward()
	case tcell.KeyLeft:
		t.moveTo(t.prevBoundary(t.caret()))
	case tcell.KeyRight:
		t.moveTo(t.nextBoundary(t.caret()))
	case tcell.KeyUp:
		t.moveLine(-1)
	case tcell.KeyDown:
		t.moveLine(1)
	case tcell.KeyHome:
		t.moveTo(t.doc.Line(t.caret()).A)
	case tcell.KeyEnd:
		t.moveTo(t.doc.Line(t.caret()).B)
	}
	t.doc.Show(t.caret())
}

// newline runs shortcut expansion, then breaks the line at the caret.
// Pasted newlines are inserted as text.
func (t *tui) newline() {
	if !t.pasting {
		handled, err := t.app.bridge.HandleNewline()
		t.app.report("shortcut", err)
		if handled {
			t.mark = -1
		}
	}
	t.insert(t.doc.LineEnding().Sequence())
}

func (t *tui) caret() int {
	sel := t.doc.Selection()
	if len(sel) == 0 {
		return t.doc.Len()
	}
	return sel[0].B
}

// region returns the active selection, or the caret when no mark is set.
func (t *tui) region() document.Region {
	c := t.caret()
	if t.mark < 0 {
		return document.Point(c)
	}
	return document.Region{A: min(t.mark, t.doc.Len()), B: c}
}

func (t *tui) moveTo(pos int) {
	if t.mark >= 0 {
		t.doc.SetSelection(document.Region{A: t.mark, B: pos})
		return
	}
	t.doc.SetSelection(document.Point(pos))
}

// insert replaces the selection with text.
func (t *tui) insert(text string) {
	r := t.region()
	t.mark = -1
	if !r.Empty() {
		if err := t.doc.Delete(r); err != nil {
			t.app.report("edit", err)
			return
		}
	}
	pos := r.Begin()
	t.doc.SetSelection(document.Point(pos))
	if _, err := t.doc.Insert(pos, text); err != nil {
		t.app.report("edit", err)
	}
}

func (t *tui) deleteBackward() {
	r := t.region()
	t.mark = -1
	if r.Empty() {
		r = document.Region{A: t.prevBoundary(r.B), B: r.B}
	}
	t.delete(r)
}

func (t *tui) deleteForward() {
	r := t.region()
	t.mark = -1
	if r.Empty() {
		r = document.Region{A: r.B, B: t.nextBoundary(r.B)}
	}
	t.delete(r)
}

func (t *tui) delete(r document.Region) {
	if r.Empty() {
		return
	}
	if err := t.doc.Delete(r); err != nil {
		t.app.report("edit", err)
		return
	}
	t.doc.SetSelection(document.Point(r.Begin()))
}

// prevBoundary returns the offset one character before pos, treating
// "\r\n" as a single character.
func (t *tui) prevBoundary(pos int) int {
	if pos <= 0 {
		return 0
	}
	text := t.doc.Text()
	pos = min(pos, len(text))
	if pos >= 2 && text[pos-2:pos] == "\r\n" {
		return pos - 2
	}
	_, size := utf8.DecodeLastRuneInString(text[:pos])
	return pos - size
}

func (t *tui) nextBoundary(pos int) int {
	text := t.doc.Text()
	if pos >= len(text) {
		return len(text)
	}
	if strings.HasPrefix(text[pos:], "\r\n") {
		return pos + 2
	}
	_, size := utf8.DecodeRuneInString(text[pos:])
	return pos + size
}

// moveLine moves the caret delta lines, keeping its display column.
func (t *tui) moveLine(delta int) {
	c := t.caret()
	line := t.doc.Line(c)
	col := displayWidth(t.doc.Substr(document.Region{A: line.A, B: c}))

	var target document.Region
	switch {
	case delta < 0 && line.A == 0:
		t.moveTo(0)
		return
	case delta < 0:
		target = t.doc.Line(line.A - 1)
	case line.B >= t.doc.Len():
		t.moveTo(t.doc.Len())
		return
	default:
		target = t.doc.Line(t.nextBoundary(line.B))
	}
	t.moveTo(target.A + offsetAtColumn(t.doc.Substr(target), col))
}

// redraw paints the visible lines, the selection, the caret and the
// status line.
func (t *tui) redraw() {
	width, height := t.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	t.screen.Clear()
	body := height - 1

	text := t.doc.Text()
	lines := strings.Split(text, "\n")
	caret := t.caret()
	caretLine, caretCol := position(text, caret)
	shownLine, _ := position(text, t.doc.Shown())
	t.top = scrollTo(t.top, shownLine, body)
	t.top = scrollTo(t.top, caretLine, body)

	sel := t.region()
	offset := 0
	for i := 0; i < t.top && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	for row := 0; row < body && t.top+row < len(lines); row++ {
		line := strings.TrimSuffix(lines[t.top+row], "\r")
		x := 0
		for i, r := range line {
			style := textStyle
			if pos := offset + i; pos >= sel.Begin() && pos < sel.End() {
				style = selectionStyle
			}
			x += t.drawRune(x, row, r, style, width)
		}
		offset += len(lines[t.top+row]) + 1
	}

	t.drawStatus(width, height-1)
	if row := caretLine - t.top; row >= 0 && row < body && caretCol < width {
		t.screen.ShowCursor(caretCol, row)
	} else {
		t.screen.HideCursor()
	}
	t.screen.Show()
}

// drawRune paints r at (x, y) and returns the number of cells used.
func (t *tui) drawRune(x, y int, r rune, style tcell.Style, width int) int {
	if r == '\t' {
		n := tabWidth - x%tabWidth
		for i := 0; i < n && x+i < width; i++ {
			t.screen.SetContent(x+i, y, ' ', nil, style)
		}
		return n
	}
	w := runeWidth(r)
	if x+w <= width {
		t.screen.SetContent(x, y, r, nil, style)
	}
	return w
}

func (t *tui) drawStatus(width, y int) {
	status := " " + t.app.bridge.State().String() + " | " + t.app.Status()
	hint := "^E send  ^R restart  ^Q quit "
	x := 0
	for _, r := range status {
		if x >= width {
			break
		}
		t.screen.SetContent(x, y, r, nil, statusStyle)
		x += runeWidth(r)
	}
	for ; x < width; x++ {
		t.screen.SetContent(x, y, ' ', nil, statusStyle)
	}
	if hx := width - len(hint); hx > displayWidth(status) {
		for i, r := range hint {
			t.screen.SetContent(hx+i, y, r, nil, statusStyle)
		}
	}
}

// position returns the line index and display column of pos in text.
func position(text string, pos int) (int, int) {
	pos = max(0, min(pos, len(text)))
	before := text[:pos]
	line := strings.Count(before, "\n")
	start := strings.LastIndexByte(before, '\n') + 1
	return line, displayWidth(before[start:])
}

func scrollTo(top, line, height int) int {
	switch {
	case height <= 0:
		return line
	case line < top:
		return line
	case line >= top+height:
		return line - height + 1
	}
	return top
}

// displayWidth returns the number of cells s occupies.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r == '\t' {
			w += tabWidth - w%tabWidth
			continue
		}
		w += runeWidth(r)
	}
	return w
}

// offsetAtColumn returns the byte offset in line closest to col.
func offsetAtColumn(line string, col int) int {
	w := 0
	for i, r := range line {
		next := w + runeWidth(r)
		if r == '\t' {
			next = w + tabWidth - w%tabWidth
		}
		if next > col {
			return i
		}
		w = next
	}
	return len(line)
}

func runeWidth(r rune) int {
	if r == '\r' {
		return 0
	}
	if w := uniseg.StringWidth(string(r)); w > 0 {
		return w
	}
	return 1
}
