package repl

import (
	"errors"
	"testing"

	"github.com/dshills/replbridge/internal/document"
)

type recorder struct {
	sent []string
	err  error
}

func (r *recorder) send(line string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, line)
	return nil
}

func newDoc(text string) *document.Document {
	return document.New(document.WithText(text), document.WithLineEnding(document.LineEndingUnix))
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{">>> print(1)", "print(1)"},
		{"print(1)", "print(1)"},
		{">>> a\n>>> b", "a\nb"},
		{"x = '>>> '", "x = '>>> '"},
		{">>>x", ">>>x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCommand(tt.in); got != tt.want {
			t.Errorf("NormalizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRouter_SubmitEmptySelection(t *testing.T) {
	doc := newDoc("first\n>>> print(1)\nlast")
	doc.SetSelection(document.Point(9)) // inside the second line

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(nil), rec.send, nil)
	if err := r.Submit(doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(rec.sent) != 1 || rec.sent[0] != "print(1)" {
		t.Errorf("sent %q", rec.sent)
	}
	if got := doc.Text(); got != "first\n>>> print(1)\n\nlast" {
		t.Errorf("Text = %q", got)
	}
	// Caret sits at the start of the inserted line.
	if sel := doc.Selection(); len(sel) != 1 || sel[0] != document.Point(19) {
		t.Errorf("Selection = %v", sel)
	}
}

func TestRouter_SubmitSingleLineSelection(t *testing.T) {
	doc := newDoc("x = compute(42)")
	doc.SetSelection(document.Region{A: 4, B: 15})

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(nil), rec.send, nil)
	if err := r.Submit(doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(rec.sent) != 1 || rec.sent[0] != "compute(42)" {
		t.Errorf("sent %q", rec.sent)
	}
	if doc.Text() != "x = compute(42)\n" {
		t.Errorf("Text = %q", doc.Text())
	}
}

func TestRouter_SubmitMultiLineSelectionWidensToLines(t *testing.T) {
	doc := newDoc(">>> for i in x:\n>>>     f(i)\ntrailer")
	// From the middle of line one to the middle of line two.
	doc.SetSelection(document.Region{A: 6, B: 22})

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(nil), rec.send, nil)
	if err := r.Submit(doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(rec.sent) != 1 || rec.sent[0] != "for i in x:\n    f(i)" {
		t.Errorf("sent %q", rec.sent)
	}
	if doc.Text() != ">>> for i in x:\n>>>     f(i)\n\ntrailer" {
		t.Errorf("Text = %q", doc.Text())
	}
}

func TestRouter_SubmitCommandHook(t *testing.T) {
	doc := newDoc("ls")
	rec := &recorder{}
	hooks := stubHooks{command: func(s string) (string, error) { return s + " -l", nil }}

	r := NewRouter(NewShortcutTable(nil), rec.send, hooks)
	if err := r.Submit(doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0] != "ls -l" {
		t.Errorf("sent %q", rec.sent)
	}

	veto := stubHooks{command: func(string) (string, error) { return "", errors.New("blocked") }}
	r = NewRouter(NewShortcutTable(nil), rec.send, veto)
	if err := r.Submit(doc); err == nil {
		t.Error("expected hook error")
	}
	if len(rec.sent) != 1 {
		t.Errorf("vetoed command was sent: %q", rec.sent)
	}
}

func TestRouter_SubmitSendError(t *testing.T) {
	rec := &recorder{err: &WriteError{Op: "send", Err: ErrSessionEnded}}
	r := NewRouter(NewShortcutTable(nil), rec.send, nil)
	err := r.Submit(newDoc("x"))
	if !errors.Is(err, ErrWrite) || !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Submit = %v", err)
	}
}

func TestRouter_HandleNewline(t *testing.T) {
	shortcuts := NewShortcutTable(map[string]string{
		"@":  "##param##",
		"?":  "help(##param##)",
		"@@": "print(##param##)",
	})

	tests := []struct {
		name    string
		text    string
		caret   int
		handled bool
		sent    string
	}{
		{"default shortcut", "@1+1", 4, true, "1+1"},
		{"longest prefix", "@@x", 3, true, "print(x)"},
		{"caret mid line", "?len", 1, true, "help(len)"},
		{"no prefix", "plain", 5, false, ""},
		{"prefix not at start", " @x", 3, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDoc(tt.text)
			doc.SetSelection(document.Point(tt.caret))
			rec := &recorder{}

			r := NewRouter(shortcuts, rec.send, nil)
			handled, err := r.HandleNewline(doc)
			if err != nil {
				t.Fatalf("HandleNewline: %v", err)
			}
			if handled != tt.handled {
				t.Fatalf("handled = %v", handled)
			}
			if !handled {
				if len(rec.sent) != 0 {
					t.Errorf("sent %q", rec.sent)
				}
				return
			}
			if len(rec.sent) != 1 || rec.sent[0] != tt.sent {
				t.Errorf("sent %q, want %q", rec.sent, tt.sent)
			}
			end := len(tt.text)
			if sel := doc.Selection(); len(sel) != 1 || sel[0] != document.Point(end) {
				t.Errorf("Selection = %v", sel)
			}
			if doc.Shown() != end {
				t.Errorf("Shown = %d", doc.Shown())
			}
			if doc.Text() != tt.text {
				t.Errorf("document modified: %q", doc.Text())
			}
		})
	}
}

func TestRouter_HandleNewlineKeepsTextAfterPrefix(t *testing.T) {
	doc := newDoc(`@ "hi"`)
	doc.SetSelection(document.Point(6))

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(map[string]string{"@": "print(##param##)"}), rec.send, nil)
	handled, err := r.HandleNewline(doc)
	if err != nil || !handled {
		t.Fatalf("HandleNewline = %v, %v", handled, err)
	}
	// Everything after the prefix is substituted, leading space included.
	if want := `print( "hi")`; len(rec.sent) != 1 || rec.sent[0] != want {
		t.Errorf("sent %q, want %q", rec.sent, want)
	}
}

func TestRouter_HandleNewlineFirstMatchOnly(t *testing.T) {
	doc := newDoc("plain\n@a\n@b")
	doc.SetSelection(document.Point(2), document.Point(8), document.Point(11))

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(map[string]string{"@": "##param##"}), rec.send, nil)
	handled, err := r.HandleNewline(doc)
	if err != nil || !handled {
		t.Fatalf("HandleNewline = %v, %v", handled, err)
	}
	if len(rec.sent) != 1 || rec.sent[0] != "a" {
		t.Errorf("sent %q", rec.sent)
	}
}

func TestRouter_HandleNewlineSkipsNonEmptySelection(t *testing.T) {
	doc := newDoc("@x")
	doc.SetSelection(document.Region{A: 0, B: 2})

	rec := &recorder{}
	r := NewRouter(NewShortcutTable(map[string]string{"@": "##param##"}), rec.send, nil)
	if handled, _ := r.HandleNewline(doc); handled {
		t.Error("non-empty selection should not trigger shortcuts")
	}
}

func TestRouter_HandleNewlineNoShortcuts(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(NewShortcutTable(nil), rec.send, nil)
	if handled, _ := r.HandleNewline(newDoc("@x")); handled {
		t.Error("empty table should not match")
	}
}
