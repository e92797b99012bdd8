package repl

import (
	"time"

	"github.com/dshills/replbridge/internal/document"
)

// Surface is the editable text the bridge reads commands from and writes
// output into. *document.Document satisfies it.
type Surface interface {
	Insert(pos int, text string) (int, error)
	Selection() []document.Region
	SetSelection(regions ...document.Region)
	Line(pos int) document.Region
	FullLines(r document.Region) document.Region
	Substr(r document.Region) string
	LineEnding() document.LineEnding
	Show(pos int)
}

// Scheduler runs callbacks on the host's UI context after a delay.
// Callbacks scheduled on one Scheduler never run concurrently.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Hooks lets user code rewrite commands before they are sent and output
// before it is formatted.
type Hooks interface {
	OnCommand(text string) (string, error)
	OnOutput(chunk string) (string, error)
}

var _ Surface = (*document.Document)(nil)
