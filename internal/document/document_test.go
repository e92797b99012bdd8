package document

import (
	"errors"
	"testing"
)

func TestParseLineEnding(t *testing.T) {
	tests := []struct {
		in   string
		want LineEnding
		seq  string
	}{
		{"unix", LineEndingUnix, "\n"},
		{"Windows", LineEndingWindows, "\r\n"},
		{"crlf", LineEndingWindows, "\r\n"},
		{"bogus", LineEndingUnix, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLineEnding(tt.in)
			if got != tt.want {
				t.Errorf("ParseLineEnding(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Sequence() != tt.seq {
				t.Errorf("Sequence() = %q, want %q", got.Sequence(), tt.seq)
			}
		})
	}
}

func TestRegion(t *testing.T) {
	r := Region{A: 7, B: 3}
	if r.Begin() != 3 || r.End() != 7 {
		t.Errorf("backwards region bounds = %d,%d", r.Begin(), r.End())
	}
	if r.Empty() {
		t.Error("expected non-empty region")
	}
	if !Point(4).Empty() {
		t.Error("expected point to be empty")
	}
}

func TestDocument_InsertShiftsSelection(t *testing.T) {
	d := New(WithText("abc"))
	d.SetSelection(Point(1), Point(3))

	n, err := d.Insert(1, "XY")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 bytes inserted, got %d", n)
	}
	if d.Text() != "aXYbc" {
		t.Errorf("text = %q", d.Text())
	}

	sel := d.Selection()
	if sel[0] != Point(3) || sel[1] != Point(5) {
		t.Errorf("selection = %v", sel)
	}
}

func TestDocument_InsertOutOfRange(t *testing.T) {
	d := New(WithText("abc"))
	if _, err := d.Insert(10, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestDocument_ReadOnly(t *testing.T) {
	d := New(WithText("abc"), WithReadOnly())
	if _, err := d.Insert(0, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if err := d.Delete(Region{A: 0, B: 1}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestDocument_InsertHook(t *testing.T) {
	d := New()
	var got []string
	d.OnInsert(func(pos int, text string) {
		got = append(got, text)
	})

	_, _ = d.Insert(0, "one")
	_, _ = d.Insert(3, "")
	_, _ = d.Insert(3, "two")

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("hook saw %q", got)
	}
}

func TestDocument_Delete(t *testing.T) {
	d := New(WithText("hello world"))
	d.SetSelection(Point(8))

	if err := d.Delete(Region{A: 5, B: 11}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if d.Text() != "hello" {
		t.Errorf("text = %q", d.Text())
	}
	if sel := d.Selection(); sel[0] != Point(5) {
		t.Errorf("selection = %v", sel)
	}
}

func TestDocument_Line(t *testing.T) {
	d := New(WithText("first\r\nsecond\nthird"))

	tests := []struct {
		pos  int
		want string
	}{
		{0, "first"},
		{3, "first"},
		{7, "second"},
		{13, "second"},
		{14, "third"},
		{19, "third"},
	}

	for _, tt := range tests {
		if got := d.Substr(d.Line(tt.pos)); got != tt.want {
			t.Errorf("Line(%d) = %q, want %q", tt.pos, got, tt.want)
		}
	}
}

func TestDocument_FullLines(t *testing.T) {
	d := New(WithText(">>> a = 1\n>>> b = 2\nrest"))
	got := d.Substr(d.FullLines(Region{A: 6, B: 12}))
	if got != ">>> a = 1\n>>> b = 2" {
		t.Errorf("FullLines = %q", got)
	}
}

func TestDocument_SetSelectionClamps(t *testing.T) {
	d := New(WithText("abc"))
	d.SetSelection(Region{A: -1, B: 99})
	if sel := d.Selection(); sel[0] != (Region{A: 0, B: 3}) {
		t.Errorf("selection = %v", sel)
	}

	d.SetSelection()
	if sel := d.Selection(); len(sel) != 1 || sel[0] != Point(3) {
		t.Errorf("empty SetSelection = %v", sel)
	}
}

func TestDocument_Show(t *testing.T) {
	d := New(WithText("abc"))
	d.Show(2)
	if d.Shown() != 2 {
		t.Errorf("Shown() = %d", d.Shown())
	}
	d.Show(50)
	if d.Shown() != 3 {
		t.Errorf("Shown() clamps to %d", d.Shown())
	}
}
