package head_test

import (
	"strings"
	"testing"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/head"
)

func mustField(t *testing.T, name, body string) field.Field {
	t.Helper()
	f, err := field.New(name, body, "")
	if err != nil {
		t.Fatalf("field.New(%q): %v", name, err)
	}
	return f
}

func TestAddAndGetPreservesDuplicates(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Received", "first"))
	h.Add(mustField(t, "Received", "second"))

	if h.Count("received") != 2 {
		t.Fatalf("Count = %d, want 2", h.Count("received"))
	}
	f0, _ := h.Get("received", 0)
	f1, _ := h.Get("received", 1)
	if f0.Body() != "first" || f1.Body() != "second" {
		t.Errorf("duplicates out of order: %q, %q", f0.Body(), f1.Body())
	}
}

func TestSetReplacesInPlace(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Subject", "one"))
	h.Add(mustField(t, "To", "a@example.com"))
	h.Set("Subject", mustField(t, "Subject", "two"))

	names := h.Names()
	if len(names) != 2 || names[0] != "subject" || names[1] != "to" {
		t.Errorf("Set must not move the slot: %v", names)
	}
	f, _ := h.GetFirst("subject")
	if f.Body() != "two" {
		t.Errorf("Subject = %q, want two", f.Body())
	}
}

func TestIsMultipart(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Content-Type", "multipart/mixed"))
	if !h.IsMultipart() {
		t.Error("IsMultipart() = false, want true")
	}
}

func TestResentGroups(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Resent-From", "a@example.com"))
	h.Add(mustField(t, "Received", "by mx1; Mon, 1 Jan 2024 00:00:00 +0000"))
	h.Add(mustField(t, "Resent-From", "b@example.com"))
	h.Add(mustField(t, "Received", "by mx2; Tue, 2 Jan 2024 00:00:00 +0000"))

	groups := h.ResentGroups()
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Fields[0].Body() != "a@example.com" {
		t.Errorf("group 0 out of order: %+v", groups[0])
	}
}

func TestRemoveResentGroups(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Resent-From", "a@example.com"))
	h.Add(mustField(t, "Received", "by mx1; Mon, 1 Jan 2024 00:00:00 +0000"))
	h.Add(mustField(t, "Subject", "kept"))

	h.RemoveResentGroups()
	if h.Count("resent-from") != 0 || h.Count("received") != 0 {
		t.Error("RemoveResentGroups left resent/received fields behind")
	}
	if h.Count("subject") != 1 {
		t.Error("RemoveResentGroups removed an unrelated field")
	}
}

func TestPrintEndsWithBlankLine(t *testing.T) {
	h := head.New(0)
	h.Add(mustField(t, "Subject", "hi"))
	var b strings.Builder
	if err := h.Print(&b); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(b.String(), "\r\n\r\n") {
		t.Errorf("Print output missing trailing blank line: %q", b.String())
	}
}
