package document

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Errors returned by document operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrReadOnly         = errors.New("document is read-only")
)

// LineEnding specifies which line terminator is used when text is
// inserted on the document's behalf.
type LineEnding uint8

const (
	// LineEndingUnix terminates lines with "\n".
	LineEndingUnix LineEnding = iota
	// LineEndingWindows terminates lines with "\r\n".
	LineEndingWindows
	// LineEndingSystem uses the host operating system's convention.
	LineEndingSystem
)

// ParseLineEnding maps a setting value to a LineEnding.
// Unknown values map to LineEndingUnix.
func ParseLineEnding(s string) LineEnding {
	switch strings.ToLower(s) {
	case "windows", "crlf":
		return LineEndingWindows
	case "system":
		return LineEndingSystem
	default:
		return LineEndingUnix
	}
}

// String returns the setting name of the line ending.
func (le LineEnding) String() string {
	switch le {
	case LineEndingWindows:
		return "windows"
	case LineEndingSystem:
		return "system"
	default:
		return "unix"
	}
}

// Sequence returns the actual line ending characters.
func (le LineEnding) Sequence() string {
	switch le {
	case LineEndingWindows:
		return "\r\n"
	case LineEndingSystem:
		if os.PathSeparator == '\\' {
			return "\r\n"
		}
		return "\n"
	default:
		return "\n"
	}
}

// Region is a span of the document. A is the anchor and B the caret;
// A may be greater than B for a backwards selection.
type Region struct {
	A int
	B int
}

// Point returns an empty region at offset.
func Point(offset int) Region {
	return Region{A: offset, B: offset}
}

// Begin returns the smaller end of the region.
func (r Region) Begin() int {
	return min(r.A, r.B)
}

// End returns the larger end of the region.
func (r Region) End() int {
	return max(r.A, r.B)
}

// Empty reports whether the region has zero length.
func (r Region) Empty() bool {
	return r.A == r.B
}

// String returns a human-readable representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("[%d:%d)", r.Begin(), r.End())
}

// InsertHook observes text inserted into a document.
type InsertHook func(pos int, text string)

// Document is an in-memory text document with a multi-region selection.
// All methods are thread-safe.
type Document struct {
	mu         sync.RWMutex
	text       string
	sel        []Region
	lineEnding LineEnding
	shown      int
	readOnly   bool
	hooks      []InsertHook
}

// Option configures a Document.
type Option func(*Document)

// WithLineEnding sets the document's line ending convention.
func WithLineEnding(le LineEnding) Option {
	return func(d *Document) {
		d.lineEnding = le
	}
}

// WithText sets the initial content. The caret is placed at the end.
func WithText(text string) Option {
	return func(d *Document) {
		d.text = text
		d.sel = []Region{Point(len(text))}
	}
}

// WithReadOnly rejects all edits.
func WithReadOnly() Option {
	return func(d *Document) {
		d.readOnly = true
	}
}

// New creates an empty document with a single caret at offset 0.
func New(opts ...Option) *Document {
	d := &Document{
		sel: []Region{Point(0)},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Text returns the full document content.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// LineEnding returns the document's line ending convention.
func (d *Document) LineEnding() LineEnding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lineEnding
}

// OnInsert registers a hook called after every successful insertion.
// Hooks run on the inserting goroutine, outside the document lock.
func (d *Document) OnInsert(hook InsertHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hook)
}

// Insert inserts text at pos and returns the number of bytes inserted.
// Selection points at or after pos move forward with the text.
func (d *Document) Insert(pos int, text string) (int, error) {
	d.mu.Lock()
	if d.readOnly {
		d.mu.Unlock()
		return 0, ErrReadOnly
	}
	if pos < 0 || pos > len(d.text) {
		d.mu.Unlock()
		return 0, fmt.Errorf("insert at %d: %w", pos, ErrOffsetOutOfRange)
	}
	if text == "" {
		d.mu.Unlock()
		return 0, nil
	}

	d.text = d.text[:pos] + text + d.text[pos:]
	n := len(text)
	for i, r := range d.sel {
		d.sel[i] = Region{A: shift(r.A, pos, n), B: shift(r.B, pos, n)}
	}
	hooks := append([]InsertHook(nil), d.hooks...)
	d.mu.Unlock()

	for _, hook := range hooks {
		hook(pos, text)
	}
	return n, nil
}

func shift(p, pos, n int) int {
	if p >= pos {
		return p + n
	}
	return p
}

// Delete removes the bytes in r.
func (d *Document) Delete(r Region) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return ErrReadOnly
	}
	begin, end := r.Begin(), r.End()
	if begin < 0 || end > len(d.text) {
		return fmt.Errorf("delete %s: %w", r, ErrOffsetOutOfRange)
	}

	d.text = d.text[:begin] + d.text[end:]
	n := end - begin
	for i, s := range d.sel {
		d.sel[i] = Region{A: unshift(s.A, begin, end, n), B: unshift(s.B, begin, end, n)}
	}
	return nil
}

func unshift(p, begin, end, n int) int {
	switch {
	case p >= end:
		return p - n
	case p > begin:
		return begin
	default:
		return p
	}
}

// Substr returns the text covered by r, clamped to the document.
func (d *Document) Substr(r Region) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	begin := clamp(r.Begin(), len(d.text))
	end := clamp(r.End(), len(d.text))
	return d.text[begin:end]
}

// Line returns the region of the line containing pos, excluding its
// terminator. For a region spanning several lines use FullLines.
func (d *Document) Line(pos int) Region {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lineLocked(pos)
}

// FullLines returns the region from the start of r's first line to the
// end of its last line, excluding the final terminator.
func (d *Document) FullLines(r Region) Region {
	d.mu.RLock()
	defer d.mu.RUnlock()
	first := d.lineLocked(r.Begin())
	last := d.lineLocked(r.End())
	return Region{A: first.A, B: last.B}
}

func (d *Document) lineLocked(pos int) Region {
	pos = clamp(pos, len(d.text))
	start := strings.LastIndexByte(d.text[:pos], '\n') + 1
	end := len(d.text)
	if i := strings.IndexByte(d.text[pos:], '\n'); i >= 0 {
		end = pos + i
	}
	if end > start && d.text[end-1] == '\r' {
		end--
	}
	return Region{A: start, B: end}
}

// LineCount returns the number of lines in the document.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.Count(d.text, "\n") + 1
}

// Selection returns a copy of the current selection regions.
func (d *Document) Selection() []Region {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Region(nil), d.sel...)
}

// SetSelection replaces the selection. With no regions the caret is
// placed at the end of the document.
func (d *Document) SetSelection(regions ...Region) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(regions) == 0 {
		d.sel = []Region{Point(len(d.text))}
		return
	}
	d.sel = d.sel[:0]
	for _, r := range regions {
		d.sel = append(d.sel, Region{A: clamp(r.A, len(d.text)), B: clamp(r.B, len(d.text))})
	}
}

// Show records pos as the offset the view should keep visible.
func (d *Document) Show(pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = clamp(pos, len(d.text))
}

// Shown returns the offset most recently passed to Show.
func (d *Document) Shown() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.shown
}

func clamp(p, n int) int {
	if p < 0 {
		return 0
	}
	if p > n {
		return n
	}
	return p
}
