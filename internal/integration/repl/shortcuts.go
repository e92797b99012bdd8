package repl

import (
	"sort"
	"strings"
)

// Placeholder is replaced by the remainder of the line when a shortcut
// template is expanded.
const Placeholder = "##param##"

// Shortcut rewrites a line starting with Prefix into Template.
type Shortcut struct {
	Prefix   string
	Template string
}

// Expand substitutes the part of line after the prefix into the template.
// line must start with the shortcut's prefix.
func (s Shortcut) Expand(line string) string {
	return strings.ReplaceAll(s.Template, Placeholder, line[len(s.Prefix):])
}

// ShortcutTable is an immutable list of shortcuts ordered so that a longer
// prefix is always tried before a shorter one.
type ShortcutTable struct {
	entries []Shortcut
}

// NewShortcutTable builds a table from a prefix→template mapping.
// Entries with equal prefix length are ordered lexically so matching is
// deterministic.
func NewShortcutTable(shortcuts map[string]string) *ShortcutTable {
	entries := make([]Shortcut, 0, len(shortcuts))
	for prefix, tmpl := range shortcuts {
		if prefix == "" {
			continue
		}
		entries = append(entries, Shortcut{Prefix: prefix, Template: tmpl})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].Prefix) != len(entries[j].Prefix) {
			return len(entries[i].Prefix) > len(entries[j].Prefix)
		}
		return entries[i].Prefix < entries[j].Prefix
	})
	return &ShortcutTable{entries: entries}
}

// Match returns the first shortcut whose prefix starts line.
func (t *ShortcutTable) Match(line string) (Shortcut, bool) {
	if t == nil {
		return Shortcut{}, false
	}
	for _, s := range t.entries {
		if strings.HasPrefix(line, s.Prefix) {
			return s, true
		}
	}
	return Shortcut{}, false
}

// Len returns the number of shortcuts.
func (t *ShortcutTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
