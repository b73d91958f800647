package mbox_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/folder/mbox"
)

func writeFixture(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "mbox")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoMessages = "From alice Mon Jan  1 00:00:00 2024\r\n" +
	"Subject: first\r\n" +
	"\r\n" +
	"hello\r\n" +
	"From bob Tue Jan  2 00:00:00 2024\r\n" +
	"Subject: second\r\n" +
	"\r\n" +
	"world\r\n"

func TestOpenReadsTwoMessages(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, twoMessages)

	f, err := mbox.Open(path, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	subj0, _ := msgs[0].Head().GetFirst("subject")
	subj1, _ := msgs[1].Head().GetFirst("subject")
	if subj0.Body() != "first" || subj1.Body() != "second" {
		t.Errorf("subjects = %q, %q", subj0.Body(), subj1.Body())
	}
	if !strings.Contains(msgs[0].Body().AsText(), "hello") {
		t.Errorf("body0 = %q", msgs[0].Body().AsText())
	}
}

func TestOpenEmptyFileYieldsNoMessages(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "")
	f, err := mbox.Open(path, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(f.Messages(folder.All())); got != 0 {
		t.Errorf("got %d messages in empty mbox, want 0", got)
	}
}

func TestFromLineUnescapedOnRead(t *testing.T) {
	dir := t.TempDir()
	content := "From alice Mon Jan  1 00:00:00 2024\r\n" +
		"Subject: esc\r\n" +
		"\r\n" +
		">From the start of a quoted body line\r\n" +
		"normal line\r\n"
	path := writeFixture(t, dir, content)

	f, err := mbox.Open(path, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	text := msgs[0].Body().AsText()
	if !strings.Contains(text, "From the start of a quoted body line") {
		t.Errorf("From-unescaping failed: %q", text)
	}
	if strings.Contains(text, ">From the start") {
		t.Errorf("ReadBody left the escape byte in place: %q", text)
	}
}

func TestOpenNonexistentWithCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new-mbox")
	f, err := mbox.Open(path, folder.OpenOptions{AccessMode: "rw", Create: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(f.Messages(folder.All())); got != 0 {
		t.Errorf("new mbox should start empty, got %d messages", got)
	}
}
