package parser_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/eslider/mailbox/parser"
)

func newParser(t *testing.T, content string) *parser.Parser {
	t.Helper()
	return parser.New(bytes.NewReader([]byte(content)))
}

func TestReadHeaderUnfoldsContinuations(t *testing.T) {
	p := newParser(t, "Subject: hello\r\n world\r\nFrom: a@example.com\r\n\r\nbody\r\n")
	begin, end, fields, err := p.ReadHeader(0)
	if err != nil {
		t.Fatal(err)
	}
	if begin != 0 {
		t.Errorf("begin = %d, want 0", begin)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2: %+v", len(fields), fields)
	}
	if fields[0].Name != "Subject" || fields[0].Body != "hello world" {
		t.Errorf("Subject field = %+v", fields[0])
	}
	if fields[1].Name != "From" || fields[1].Body != "a@example.com" {
		t.Errorf("From field = %+v", fields[1])
	}
	if p.Tell() != end {
		t.Errorf("Tell() = %d, want %d", p.Tell(), end)
	}
}

func TestReadBodyUntilSeparatorStopsBeforeNextMessage(t *testing.T) {
	content := "line one\nline two\nFrom sender Mon Jan 1\nnext message\n"
	p := newParser(t, content)
	p.PushSeparator("From ")

	_, end, lines, err := p.ReadBodyUntilSeparator()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "line one\n" || lines[1] != "line two\n" {
		t.Fatalf("lines = %q", lines)
	}
	wantEnd := int64(len("line one\nline two\n"))
	if end != wantEnd {
		t.Errorf("end = %d, want %d", end, wantEnd)
	}
	if p.Tell() != wantEnd {
		t.Errorf("Tell() after stop = %d, want %d (separator must not be consumed)", p.Tell(), wantEnd)
	}

	_, _, fields, err := p.ReadHeader(0)
	if err != nil {
		t.Fatal(err)
	}
	_ = fields
	// Confirms the next ReadHeader begins exactly on the separator line: a
	// "From " line has no colon, so ReadHeader's default fix_header_errors
	// behavior synthesizes a placeholder field rather than erroring, but the
	// line itself must not have been silently skipped by
	// ReadBodyUntilSeparator.
}

func TestReadBodyUntilSeparatorEOF(t *testing.T) {
	p := newParser(t, "only one line, no trailing newline")
	_, _, lines, err := p.ReadBodyUntilSeparator()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "only one line, no trailing newline" {
		t.Errorf("lines = %q", lines)
	}
}

func TestSeekTellRestart(t *testing.T) {
	p := newParser(t, "abc\ndef\n")
	if _, _, _, err := p.ReadHeader(0); err != nil {
		t.Fatal(err)
	}
	if err := p.Restart(); err != nil {
		t.Fatal(err)
	}
	if p.Tell() != 0 {
		t.Errorf("Tell() after Restart = %d, want 0", p.Tell())
	}
	if err := p.Seek(4); err != nil {
		t.Fatal(err)
	}
	if p.Tell() != 4 {
		t.Errorf("Tell() after Seek(4) = %d, want 4", p.Tell())
	}
}

func TestPushPopSeparator(t *testing.T) {
	p := newParser(t, "x\n")
	p.PushSeparator("From ")
	p.PushSeparator(">From ")
	sep, ok := p.PopSeparator()
	if !ok || sep != ">From " {
		t.Fatalf("PopSeparator = %q, %v", sep, ok)
	}
	sep, ok = p.PopSeparator()
	if !ok || sep != "From " {
		t.Fatalf("PopSeparator = %q, %v", sep, ok)
	}
	if _, ok := p.PopSeparator(); ok {
		t.Error("PopSeparator on empty stack should report ok=false")
	}
}

func TestFoldHeaderLine(t *testing.T) {
	line := "Subject: " + strings.Repeat("word ", 20)
	folded := parser.FoldHeaderLine(line, 30)
	if len(folded) < 2 {
		t.Fatalf("expected multiple folded lines, got %d", len(folded))
	}
	joined := strings.Join(folded, "")
	if strings.ReplaceAll(joined, " ", "") != strings.ReplaceAll(line, " ", "") {
		t.Errorf("folding lost content: %q vs %q", joined, line)
	}
}

func TestStop(t *testing.T) {
	p := newParser(t, "a\nb\nc\n")
	p.Stop()
	if !p.Stopped() {
		t.Error("Stopped() = false after Stop()")
	}
	_, _, lines, err := p.ReadBodyUntilSeparator()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines read after Stop(), got %v", lines)
	}
}

var _ io.ReadSeeker = (*bytes.Reader)(nil)
