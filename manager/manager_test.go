package manager_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/manager"
	"github.com/eslider/mailbox/message"
)

func TestOpenAutodetectsMbox(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")
	content := "From alice Mon Jan  1 00:00:00 2024\r\nSubject: hi\r\n\r\nbody\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := manager.New()
	f, err := mgr.Open(manager.OpenSpec{Name: path, Options: folder.OpenOptions{AccessMode: "r"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Messages(folder.All())) != 1 {
		t.Errorf("got %d messages, want 1", len(f.Messages(folder.All())))
	}
}

func TestOpenAutodetectsMaildir(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"new", "cur", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	mgr := manager.New()
	f, err := mgr.Open(manager.OpenSpec{Name: dir, Options: folder.OpenOptions{AccessMode: "r"}})
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("expected a folder")
	}
}

func TestOpenReturnsSameInstanceForAlreadyOpenFolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := manager.New()
	f1, err := mgr.Open(manager.OpenSpec{Name: path, Options: folder.OpenOptions{AccessMode: "rw", Create: true}})
	if err != nil {
		t.Fatal(err)
	}
	f2, err := mgr.Open(manager.OpenSpec{Name: path, Options: folder.OpenOptions{AccessMode: "rw", Create: true}})
	if err != nil {
		t.Fatal(err)
	}
	if f1 != f2 {
		t.Error("expected the same folder instance on reopen")
	}
}

func TestOpenCreatesDefaultTypeWhenNothingMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new-folder")

	mgr := manager.New()
	f, err := mgr.Open(manager.OpenSpec{Name: path, Options: folder.OpenOptions{AccessMode: "rw", Create: true}})
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("expected a folder to be created")
	}
}

func TestOpenFailsReadOnlyWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing")

	mgr := manager.New()
	if _, err := mgr.Open(manager.OpenSpec{Name: path, Options: folder.OpenOptions{AccessMode: "r"}}); err == nil {
		t.Error("expected an error opening a nonexistent folder read-only")
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

func TestAppendMessagesWritesToTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")

	mgr := manager.New()
	m := buildMessage(t, "appended")
	err := mgr.AppendMessages(path, []*message.Message{m}, folder.OpenOptions{AccessMode: "rw", Create: true})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected appended message to be written to disk")
	}
}
