package message_test

import (
	"strings"
	"testing"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/message"
)

func mustField(t *testing.T, name, bodyText string) field.Field {
	t.Helper()
	f, err := field.New(name, bodyText, "")
	if err != nil {
		t.Fatalf("field.New(%q): %v", name, err)
	}
	return f
}

func newTestMessage(t *testing.T) *message.Message {
	t.Helper()
	m, err := message.Build([]field.Field{
		mustField(t, "Subject", "hello"),
		mustField(t, "From", "alice@example.com"),
		mustField(t, "To", "bob@example.com"),
	}, "line one\nline two\n")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

type fakeFolder struct {
	name     string
	received []*message.Message
}

func (f *fakeFolder) Name() string { return f.name }
func (f *fakeFolder) AddMessage(m *message.Message) error {
	m.SetFolder(f)
	f.received = append(f.received, m)
	return nil
}

func TestBuildGeneratesMessageID(t *testing.T) {
	m := newTestMessage(t)
	if _, ok := m.Head().GetFirst("message-id"); !ok {
		t.Error("Build did not generate a Message-ID")
	}
}

func TestLabelGetSet(t *testing.T) {
	m := newTestMessage(t)
	if _, ok := m.Label("seen"); ok {
		t.Error("expected label unset initially")
	}
	m.Label("seen", "1")
	v, ok := m.Label("seen")
	if !ok || v != "1" {
		t.Errorf("Label(seen) = %q, %v", v, ok)
	}
	if !m.Modified() {
		t.Error("setting a label should mark the message modified")
	}
}

func TestDeleteMarksDeleted(t *testing.T) {
	m := newTestMessage(t)
	if m.Deleted() {
		t.Fatal("new message should not be deleted")
	}
	m.Delete()
	if !m.Deleted() {
		t.Error("Delete() did not mark message deleted")
	}
}

func TestCopyToClonesIntoDestination(t *testing.T) {
	m := newTestMessage(t)
	dst := &fakeFolder{name: "dest"}
	if err := m.CopyTo(dst); err != nil {
		t.Fatal(err)
	}
	if len(dst.received) != 1 {
		t.Fatalf("got %d messages in dest, want 1", len(dst.received))
	}
	if dst.received[0] == m {
		t.Error("CopyTo must clone, not share the source message")
	}
	if m.Deleted() {
		t.Error("CopyTo must not delete the source")
	}
}

func TestMoveToDeletesSource(t *testing.T) {
	m := newTestMessage(t)
	dst := &fakeFolder{name: "dest"}
	if err := m.MoveTo(dst); err != nil {
		t.Fatal(err)
	}
	if !m.Deleted() {
		t.Error("MoveTo must delete the source")
	}
	if len(dst.received) != 1 {
		t.Fatalf("got %d messages in dest, want 1", len(dst.received))
	}
}

func TestForwardDoesNotReadBodyWithoutQuote(t *testing.T) {
	m := newTestMessage(t)
	fwd, err := m.Forward(message.ForwardOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(fwd.Body().AsText(), "line one") {
		t.Error("Forward without Quote must not include the source body text")
	}
	subj, _ := fwd.Head().GetFirst("subject")
	if !strings.HasPrefix(subj.Body(), "Fwd:") {
		t.Errorf("Subject = %q, want Fwd: prefix", subj.Body())
	}
}

func TestForwardQuotesBodyWhenRequested(t *testing.T) {
	m := newTestMessage(t)
	fwd, err := m.Forward(message.ForwardOptions{Quote: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fwd.Body().AsText(), "> line one") {
		t.Errorf("expected quoted source line, got %q", fwd.Body().AsText())
	}
}

func TestReplySetsInReplyToAndReferences(t *testing.T) {
	m := newTestMessage(t)
	reply, err := m.Reply(message.ReplyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	msgID, _ := m.Head().GetFirst("message-id")
	inReplyTo, ok := reply.Head().GetFirst("in-reply-to")
	if !ok || inReplyTo.Body() != msgID.Body() {
		t.Errorf("In-Reply-To = %+v, want %q", inReplyTo, msgID.Body())
	}
	to, ok := reply.Head().GetFirst("to")
	if !ok || to.Body() != "alice@example.com" {
		t.Errorf("To = %+v, want alice@example.com", to)
	}
}

func TestBouncePreservesOriginalAndAddsResentGroup(t *testing.T) {
	m := newTestMessage(t)
	bounced, err := m.Bounce(message.BounceOptions{To: "carol@example.com", From: "bob@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	subj, _ := bounced.Head().GetFirst("subject")
	if subj.Body() != "hello" {
		t.Errorf("Bounce must not alter Subject, got %q", subj.Body())
	}
	groups := bounced.Head().ResentGroups()
	if len(groups) != 1 {
		t.Fatalf("got %d resent groups, want 1", len(groups))
	}
}

func TestCoerceFromPart(t *testing.T) {
	part := body.Part{Body: body.NewLines([]string{"x\n"})}
	m, err := message.Coerce(part)
	if err != nil {
		t.Fatal(err)
	}
	if m.Body().AsText() != "x\n" {
		t.Errorf("Coerce lost body content: %q", m.Body().AsText())
	}
}

func TestCoerceUnsupportedType(t *testing.T) {
	if _, err := message.Coerce(42); err == nil {
		t.Error("Coerce(int) should fail")
	}
}
