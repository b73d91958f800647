package thread_test

import (
	"testing"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/thread"
)

type stubFolder struct {
	folder.Base
}

func newStubFolder(name string) *stubFolder {
	return &stubFolder{Base: folder.NewBase(name, false, true)}
}

func (s *stubFolder) AddMessage(m *message.Message) error        { return s.AddNew(m, s) }
func (s *stubFolder) Write(folder.WritePolicy) error             { return nil }
func (s *stubFolder) Close(folder.ClosePolicy) error             { return nil }
func (s *stubFolder) Delete() error                              { return nil }
func (s *stubFolder) CopyTo(folder.Folder, folder.OpenOptions) error { return nil }
func (s *stubFolder) ListSubFolders() ([]string, error)          { return nil, nil }
func (s *stubFolder) OpenSubFolder(string) (folder.Folder, error) { return nil, nil }

func buildMessage(t *testing.T, msgID, inReplyTo, references string) *message.Message {
	t.Helper()
	var fields []field.Field
	idF, err := field.New("Message-ID", msgID, "")
	if err != nil {
		t.Fatal(err)
	}
	fields = append(fields, idF)
	if inReplyTo != "" {
		f, err := field.New("In-Reply-To", inReplyTo, "")
		if err != nil {
			t.Fatal(err)
		}
		fields = append(fields, f)
	}
	if references != "" {
		f, err := field.New("References", references, "")
		if err != nil {
			t.Fatal(err)
		}
		fields = append(fields, f)
	}
	m, err := message.Build(fields, "body\n")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInReplyToCreatesReplyEdge(t *testing.T) {
	f := newStubFolder("box")
	parent := buildMessage(t, "<parent@x>", "", "")
	child := buildMessage(t, "<child@x>", "<parent@x>", "")
	f.AppendLoaded(parent)
	f.AppendLoaded(child)

	tm := thread.NewManager(f)
	node := tm.Thread(child)
	if node == nil || node.Parent == nil {
		t.Fatal("expected child to have a parent")
	}
	if node.Parent.MessageID != "<parent@x>" {
		t.Errorf("parent = %q, want <parent@x>", node.Parent.MessageID)
	}
	if node.ParentQuality != thread.REPLY {
		t.Errorf("quality = %v, want REPLY", node.ParentQuality)
	}
}

func TestMissingReferencedMessageBecomesDummy(t *testing.T) {
	f := newStubFolder("box")
	child := buildMessage(t, "<child@x>", "<ghost@x>", "")
	f.AppendLoaded(child)

	tm := thread.NewManager(f)
	node := tm.Thread(child)
	if node.Parent == nil {
		t.Fatal("expected a parent node")
	}
	if !node.Parent.Dummy() {
		t.Error("expected parent to be a dummy placeholder")
	}
}

func TestReplyDominatesReferenceAndIsNeverDowngraded(t *testing.T) {
	f := newStubFolder("box")
	a := buildMessage(t, "<a@x>", "", "")
	b := buildMessage(t, "<b@x>", "", "")
	child := buildMessage(t, "<child@x>", "<b@x>", "<a@x> <b@x>")
	f.AppendLoaded(a)
	f.AppendLoaded(b)
	f.AppendLoaded(child)

	tm := thread.NewManager(f)
	node := tm.Thread(child)
	if node.Parent.MessageID != "<b@x>" {
		t.Errorf("parent = %q, want <b@x> (the In-Reply-To target)", node.Parent.MessageID)
	}
	if node.ParentQuality != thread.REPLY {
		t.Errorf("quality = %v, want REPLY", node.ParentQuality)
	}
}

func TestKnownReturnsRootsWithoutScanning(t *testing.T) {
	f := newStubFolder("box")
	root := buildMessage(t, "<root@x>", "", "")
	child := buildMessage(t, "<child@x>", "<root@x>", "")
	f.AppendLoaded(root)
	f.AppendLoaded(child)

	tm := thread.NewManager(f)
	roots := tm.Known()
	found := false
	for _, n := range roots {
		if n.MessageID == "<root@x>" {
			found = true
		}
	}
	if !found {
		t.Error("expected <root@x> among known roots")
	}
}
