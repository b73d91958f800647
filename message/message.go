// Package message ties a head.Head and a body.Body together with the
// folder-level metadata (labels, sequence number, owning folder, unique ID,
// on-disk location, deletion state) that turns a parsed RFC 822 entity into
// something a Folder can store, select, and rewrite.
package message

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/head"
)

// Location is the message's last-known byte span within its folder's
// backing storage, used by write policies to detect whether a message
// moved and by how much.
type Location struct {
	Begin, End int64
}

// FolderRef is the narrow slice of folder.Folder a Message needs for
// copyTo/moveTo, kept local to avoid message importing folder (folder
// necessarily imports message to hold them).
type FolderRef interface {
	Name() string
	AddMessage(m *Message) error
}

// Message is one mail item: its parsed header and body, plus the labels,
// sequence position, owning folder, unique ID, size hint, on-disk location,
// and deletion timestamp a folder backend needs to manage it.
type Message struct {
	head *head.Head
	body *body.Body

	labels     map[string]string
	sequenceNr int
	folder     FolderRef
	uniqueID   string
	sizeHint   int64
	location   Location
	deletedAt  *time.Time
	modified   bool
}

// New builds a Message from an already-parsed header and body.
func New(h *head.Head, b *body.Body) *Message {
	return &Message{head: h, body: b, labels: make(map[string]string)}
}

// Build assembles a new Message from header fields and a plain-text body,
// generating a Message-ID if none of fields supplies one.
func Build(fields []field.Field, data string) (*Message, error) {
	h := head.New(78)
	hasMessageID := false
	for _, f := range fields {
		if strings.EqualFold(f.Name(), "message-id") {
			hasMessageID = true
		}
		h.Add(f)
	}
	if !hasMessageID {
		idField, err := field.New("Message-ID", head.CreateMessageID(""), "")
		if err == nil {
			h.Add(idField)
		}
	}
	lines := splitRetainingNewlines(data)
	m := New(h, body.NewLines(lines))
	m.uniqueID = newUniqueID()
	return m, nil
}

func splitRetainingNewlines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func newUniqueID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Head returns the message's header.
func (m *Message) Head() *head.Head { return m.head }

// Body returns the message's current body, materializing it first if the
// backend handed it over as a Delayed placeholder.
func (m *Message) Body() *body.Body {
	if m.body != nil && m.body.Kind == body.KindDelayed {
		m.body.MaterializeDelayed()
	}
	return m.body
}

// BodySet replaces the message's body and marks it modified.
func (m *Message) BodySet(b *body.Body) {
	m.body = b
	m.modified = true
}

// UniqueID returns the folder-assigned unique identifier, generating one on
// first access if the message predates unique-ID tracking.
func (m *Message) UniqueID() string {
	if m.uniqueID == "" {
		m.uniqueID = newUniqueID()
	}
	return m.uniqueID
}

// SetUniqueID overrides the unique ID, used by a folder backend restoring a
// previously assigned one.
func (m *Message) SetUniqueID(id string) { m.uniqueID = id }

// SequenceNr returns the message's position within its folder's selection
// order, assigned by the folder on load/append.
func (m *Message) SequenceNr() int { return m.sequenceNr }

// SetSequenceNr is called by the owning folder to (re)number the message.
func (m *Message) SetSequenceNr(n int) { m.sequenceNr = n }

// Location returns the message's last-known byte span in folder storage.
func (m *Message) Location() Location { return m.location }

// SetLocation records the message's byte span, called by the folder after
// reading or rewriting it.
func (m *Message) SetLocation(loc Location) { m.location = loc }

// SizeHint returns the folder-reported size (e.g. an mbox envelope's
// Content-Length), used before the body is materialized.
func (m *Message) SizeHint() int64 { return m.sizeHint }

// SetSizeHint records a folder-reported size estimate.
func (m *Message) SetSizeHint(n int64) { m.sizeHint = n }

// Modified reports whether the head or body has changed since load, or any
// label/deletion flag was set.
func (m *Message) Modified() bool {
	return m.modified || (m.head != nil && m.head.Modified()) || (m.body != nil && m.body.Modified)
}

// ClearModified resets the modified flag after a successful write.
func (m *Message) ClearModified() {
	m.modified = false
	if m.head != nil {
		m.head.ClearModified()
	}
	if m.body != nil {
		m.body.Modified = false
	}
}

// Folder returns the folder the message currently belongs to, or nil.
func (m *Message) Folder() FolderRef { return m.folder }

// SetFolder is called by Folder.AddMessage to claim ownership.
func (m *Message) SetFolder(f FolderRef) { m.folder = f }

// Label returns the value of a named label and whether it is set. Pass a
// value to set it instead.
func (m *Message) Label(name string, value ...string) (string, bool) {
	key := strings.ToLower(name)
	if len(value) > 0 {
		m.labels[key] = value[0]
		m.modified = true
		return value[0], true
	}
	v, ok := m.labels[key]
	return v, ok
}

// Labels returns a copy of all set labels.
func (m *Message) Labels() map[string]string {
	out := make(map[string]string, len(m.labels))
	for k, v := range m.labels {
		out[k] = v
	}
	return out
}

// Deleted reports (or sets, if flag is given) the message's deletion state.
// A deleted message stays resident until the owning folder's write policy
// actually removes it.
func (m *Message) Deleted(flag ...bool) bool {
	if len(flag) > 0 {
		if flag[0] {
			now := time.Now()
			m.deletedAt = &now
		} else {
			m.deletedAt = nil
		}
		m.modified = true
	}
	return m.deletedAt != nil
}

// Delete marks the message deleted; equivalent to Deleted(true).
func (m *Message) Delete() { m.Deleted(true) }

// Clone returns a deep copy detached from any folder. The body is
// materialized first: a clone must not carry a Delayed placeholder whose
// Resolve closure points back at the source folder's file.
func (m *Message) Clone() *Message {
	clone := &Message{
		head:       m.head.Clone(func(string) bool { return true }),
		body:       cloneBody(m.Body()),
		labels:     make(map[string]string, len(m.labels)),
		sequenceNr: 0,
		sizeHint:   m.sizeHint,
	}
	for k, v := range m.labels {
		clone.labels[k] = v
	}
	return clone
}

func cloneBody(b *body.Body) *body.Body {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Lines = append([]string(nil), b.Lines...)
	return &cp
}

// CopyTo coerces the message (via Coerce, performing whatever envelope/flag
// remapping crossing folder backends requires) and adds the result to dst.
func (m *Message) CopyTo(dst FolderRef) error {
	if dst == nil {
		return eris.New("message: CopyTo requires a non-nil folder")
	}
	coerced, err := Coerce(m)
	if err != nil {
		return eris.Wrap(err, "message: CopyTo coerce")
	}
	return dst.AddMessage(coerced)
}

// MoveTo copies the message into dst and marks the source deleted; the
// source folder's write policy removes it on next write.
func (m *Message) MoveTo(dst FolderRef) error {
	if err := m.CopyTo(dst); err != nil {
		return eris.Wrap(err, "message: MoveTo")
	}
	m.Delete()
	return nil
}

// Size returns the best-effort byte size of the message: header lines plus
// body size.
func (m *Message) Size() int64 {
	var n int64
	if m.head != nil {
		for _, l := range m.head.Lines() {
			n += int64(len(l))
		}
	}
	n += m.body.Size()
	return n
}

// Print writes the message's full RFC 822 representation (header, blank
// line, body) to w.
func (m *Message) Print(w io.Writer) error {
	if err := m.head.Print(w); err != nil {
		return eris.Wrap(err, "message: print head")
	}
	if b := m.Body(); b != nil && b.Kind == body.KindLines {
		for _, l := range b.Lines {
			if _, err := io.WriteString(w, l); err != nil {
				return eris.Wrap(err, "message: print body")
			}
		}
	}
	return nil
}

// ErrCoerce is the CoerceError kind: other has no shape Coerce knows how to
// adapt into a Message.
var ErrCoerce = eris.New("message: cannot coerce value into a Message")

// Coerce adapts a foreign value into a Message: a *Message clones, a
// body.Part wraps its head/body pair directly. Anything else fails, since
// only these two shapes carry enough structure to become a Message without
// invoking the parser.
func Coerce(other any) (*Message, error) {
	switch v := other.(type) {
	case *Message:
		return v.Clone(), nil
	case body.Part:
		return New(v.Head, v.Body), nil
	case *body.Part:
		return New(v.Head, v.Body), nil
	default:
		return nil, eris.Wrapf(ErrCoerce, "%T", other)
	}
}

// AsPart returns the message's head+body as a body.Part, letting it appear
// as a MIME sub-part or a message/rfc822 nested body. The body is
// materialized first, since a Part is handed to code (multipart assembly,
// Coerce) with no access back to the owning folder's Delayed resolver.
func (m *Message) AsPart() body.Part {
	return body.Part{Head: m.head, Body: m.Body()}
}
