package repl

import "strings"

// Sentinel is the reserved line used in both directions: written to the
// child's stdin to ask it to wind down, and recognised on its output as
// "no more output is coming".
const Sentinel = "'%kill_routine%'"

// IsSentinel reports whether line carries the sentinel. The match is on
// the end of the line because interactive children often print a prompt
// on the same line, e.g. ">>> '%kill_routine%'".
func IsSentinel(line string) bool {
	return strings.HasSuffix(strings.TrimRight(line, "\r\n"), Sentinel)
}
