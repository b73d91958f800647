package maildir_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/folder/maildir"
	"github.com/eslider/mailbox/message"
)

func mkMaildir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"new", "cur", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeIn(t *testing.T, dir, sub, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, sub, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildMessage(t *testing.T, subject string) *message.Message {
	t.Helper()
	f, err := field.New("Subject", subject, "")
	if err != nil {
		t.Fatal(err)
	}
	m, err := message.Build([]field.Field{f}, "body\n")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOpenReadsNewAndCur(t *testing.T) {
	dir := mkMaildir(t)
	writeIn(t, dir, "new", "1.host", "Subject: unread\n\nhi\n")
	writeIn(t, dir, "cur", "2.host:2,S", "Subject: read\n\nbye\n")

	f, err := maildir.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestOpenParsesSeenFlagFromCurSuffix(t *testing.T) {
	dir := mkMaildir(t)
	writeIn(t, dir, "cur", "1.host:2,FS", "Subject: x\n\nbody\n")

	f, err := maildir.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if _, ok := msgs[0].Label("seen"); !ok {
		t.Error("expected seen label from S flag")
	}
	if _, ok := msgs[0].Label("flagged"); !ok {
		t.Error("expected flagged label from F flag")
	}
}

func TestWriteDeliversNewMessageViaTmpAndNew(t *testing.T) {
	dir := mkMaildir(t)
	f, err := maildir.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	m := buildMessage(t, "fresh")
	if err := f.AddMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}
	if m.UniqueID() == "" {
		t.Fatal("expected a unique ID to be assigned on delivery")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "new"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files in new/, want 1", len(entries))
	}
	tmpEntries, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(tmpEntries) != 0 {
		t.Errorf("tmp/ should be empty after rename, got %d entries", len(tmpEntries))
	}
}

func TestWriteDeleteUnlinksFile(t *testing.T) {
	dir := mkMaildir(t)
	writeIn(t, dir, "cur", "1.host:2,S", "Subject: x\n\nbody\n")

	f, err := maildir.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	msgs[0].Delete()
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "cur"))
	if len(entries) != 0 {
		t.Errorf("deleted message file should be removed, got %d entries", len(entries))
	}
}

func TestWriteRewritesFlagsOnLabelChange(t *testing.T) {
	dir := mkMaildir(t)
	writeIn(t, dir, "cur", "1.host:2,", "Subject: x\n\nbody\n")

	f, err := maildir.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	msgs[0].Label("seen", "1")
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "cur"))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ":2,S") {
			found = true
		}
	}
	if !found {
		t.Error("expected renamed file with S flag after label change")
	}
}
