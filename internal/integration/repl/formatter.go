package repl

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// FormatOptions are the output formatting settings that can change while
// a session runs.
type FormatOptions struct {
	Prepend string
	Append  string
	Filter  *regexp.Regexp
}

// NewFormatOptions compiles filter and bundles the options. An empty
// filter disables filtering.
func NewFormatOptions(prepend, appendText, filter string) (FormatOptions, error) {
	opts := FormatOptions{Prepend: prepend, Append: appendText}
	if filter != "" {
		re, err := regexp.Compile(filter)
		if err != nil {
			return FormatOptions{}, fmt.Errorf("compile output filter: %w", err)
		}
		opts.Filter = re
	}
	return opts, nil
}

// Formatter turns output chunks into text for the surface.
type Formatter struct {
	opts   atomic.Pointer[FormatOptions]
	budget *SuppressionBudget
	hooks  Hooks
}

// NewFormatter creates a formatter. budget may be nil for no suppression.
func NewFormatter(opts FormatOptions, budget *SuppressionBudget, hooks Hooks) *Formatter {
	f := &Formatter{budget: budget, hooks: hooks}
	f.SetOptions(opts)
	return f
}

// SetOptions swaps the formatting options. Deliveries already in progress
// finish with the previous options.
func (f *Formatter) SetOptions(opts FormatOptions) {
	o := opts
	f.opts.Store(&o)
}

// Options returns the current formatting options.
func (f *Formatter) Options() FormatOptions {
	return *f.opts.Load()
}

// Format applies the suppression budget, the output hook, the filter and
// the wrapping to chunk. It reports false when the chunk is suppressed.
// A hook error is returned alongside text formatted from the unmodified
// chunk.
func (f *Formatter) Format(chunk, ending string) (string, bool, error) {
	if f.budget.Consume() {
		return "", false, nil
	}

	var hookErr error
	if f.hooks != nil {
		rewritten, err := f.hooks.OnOutput(chunk)
		if err != nil {
			hookErr = fmt.Errorf("output hook: %w", err)
		} else {
			chunk = rewritten
		}
	}

	opts := f.opts.Load()
	if opts.Filter != nil {
		chunk = opts.Filter.ReplaceAllString(chunk, "")
	}

	// The segment after the final break is always dropped.
	parts := lineBreak.Split(chunk, -1)
	parts = parts[:len(parts)-1]

	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(ending)
		}
		b.WriteString(opts.Prepend)
		b.WriteString(p)
		b.WriteString(opts.Append)
	}
	b.WriteString(ending)
	return b.String(), true, hookErr
}

// Deliver formats chunk and inserts it at the end of the surface's first
// selection region. A suppressed chunk inserts nothing.
func (f *Formatter) Deliver(s Surface, chunk string) error {
	text, ok, hookErr := f.Format(chunk, s.LineEnding().Sequence())
	if !ok {
		return nil
	}
	sel := s.Selection()
	if len(sel) == 0 {
		return hookErr
	}
	if _, err := s.Insert(sel[0].End(), text); err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	return hookErr
}
