package mh_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eslider/mailbox/blobstore"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/folder/mh"
	"github.com/eslider/mailbox/message"
)

func writeMessageFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
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

func TestOpenReadsNumberedFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: first\n\nhello\n")
	writeMessageFile(t, dir, "3", "Subject: third\n\nworld\n")
	writeMessageFile(t, dir, "2", "Subject: second\n\nmiddle\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	wantOrder := []string{"first", "second", "third"}
	for i, m := range msgs {
		subj, _ := m.Head().GetFirst("subject")
		if subj.Body() != wantOrder[i] {
			t.Errorf("message %d subject = %q, want %q", i, subj.Body(), wantOrder[i])
		}
	}
}

func TestOpenIgnoresNonNumericEntries(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: keep\n\nbody\n")
	writeMessageFile(t, dir, ".mh_sequences", "unseen: 1\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(f.Messages(folder.All())); got != 1 {
		t.Errorf("got %d messages, want 1 (dotfile should be skipped)", got)
	}
}

func TestOpenPreservesGapsInNumbering(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: a\n\nx\n")
	writeMessageFile(t, dir, "5", "Subject: b\n\ny\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].UniqueID() != "1" || msgs[1].UniqueID() != "5" {
		t.Errorf("unique IDs = %q, %q, want 1, 5", msgs[0].UniqueID(), msgs[1].UniqueID())
	}
}

func TestAddMessageWriteAssignsNextFilename(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: a\n\nx\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	m := buildMessage(t, "new one")
	if err := f.AddMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}
	if m.UniqueID() != "2" {
		t.Errorf("new message got filename %q, want 2", m.UniqueID())
	}
	if _, err := os.Stat(filepath.Join(dir, "2")); err != nil {
		t.Errorf("expected file 2 to exist: %v", err)
	}
}

func TestWriteDeletesUnlinksFile(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: a\n\nx\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f.Messages(folder.All())
	msgs[0].Delete()
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1")); !os.IsNotExist(err) {
		t.Errorf("deleted message file should be removed, stat err = %v", err)
	}
}

func TestCompactRenumbersDensely(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: a\n\nx\n")
	writeMessageFile(t, dir, "5", "Subject: b\n\ny\n")
	writeMessageFile(t, dir, "9", "Subject: c\n\nz\n")

	f, err := mh.Open(dir, folder.OpenOptions{AccessMode: "rw"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Compact(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"1", "2", "3"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("expected compacted file %s: %v", want, err)
		}
	}
}

func TestIndexAvoidsReparsingUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	writeMessageFile(t, dir, "1", "Subject: cached\n\nbody\n")

	f1, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if len(f1.Messages(folder.All())) != 1 {
		t.Fatal("expected one message on first open")
	}

	f2, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f2.Messages(folder.All())
	if len(msgs) != 1 {
		t.Fatal("expected one message on second open")
	}
	subj, _ := msgs[0].Head().GetFirst("subject")
	if subj.Body() != "cached" {
		t.Errorf("subject from indexed reopen = %q, want cached", subj.Body())
	}
}

func TestWriteOverflowsLargeBodyToBlobStore(t *testing.T) {
	dir := t.TempDir()
	blobDir := t.TempDir()
	store := blobstore.NewFSStore(blobDir)

	f, err := mh.Open(dir, folder.OpenOptions{
		AccessMode:    "rw",
		BlobStore:     store,
		BlobThreshold: 32,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Repeat("x", 256) + "\n"
	sf, err := field.New("Subject", "big", "")
	if err != nil {
		t.Fatal(err)
	}
	m2, err := message.Build([]field.Field{sf}, want)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddMessage(m2); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(folder.WriteDefault); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, m2.UniqueID()))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "xxxxxxxxxx") {
		t.Errorf("large body should have overflowed to the blob store, found inline in %s", raw)
	}
	if !strings.Contains(string(raw), "X-Mailbox-Blob-Key:") {
		t.Errorf("expected blob-key header in written file, got:\n%s", raw)
	}

	f2, err := mh.Open(dir, folder.OpenOptions{AccessMode: "r", BlobStore: store})
	if err != nil {
		t.Fatal(err)
	}
	msgs := f2.Messages(folder.All())
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	b := msgs[0].Body()
	if b.Kind.String() != "blob" {
		t.Fatalf("reloaded body kind = %s, want blob", b.Kind)
	}
	got, err := b.Materialize(context.Background(), f2.BlobStore())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("materialized blob = %q, want %q", got, want)
	}
}
