package folder

import (
	"strings"
	"sync"

	"github.com/eslider/mailbox/message"
)

// Base holds the bookkeeping shared by every concrete backend: the message
// list, a Message-ID index for Find/MessageByID, the added-since-open flag
// that factors into Modified, and the closed flag. Concrete folders embed
// it and implement the I/O-specific pieces (Write, Close's actual
// persistence, ListSubFolders, OpenSubFolder).
type Base struct {
	mu             sync.RWMutex
	name           string
	messages       []*message.Message
	byMessageID    map[string]*message.Message
	keepDuplicates bool
	readOnly       bool
	addedSinceOpen bool
	closed         bool

	// OnClose, if set, is invoked after a successful Close so a manager can
	// drop the folder from its open-folder set.
	OnClose func(Folder)
}

// NewBase initializes a Base for a folder named name.
func NewBase(name string, readOnly, keepDuplicates bool) Base {
	return Base{
		name:           name,
		byMessageID:    make(map[string]*message.Message),
		keepDuplicates: keepDuplicates,
		readOnly:       readOnly,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Modified reports whether any message is modified or deletion-flagged, or
// a message was added since open, per the folder's modified-flag contract.
func (b *Base) Modified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.addedSinceOpen {
		return true
	}
	for _, m := range b.messages {
		if m.Modified() || m.Deleted() {
			return true
		}
	}
	return false
}

// AppendLoaded registers a message read from storage (not a new addition),
// indexing it by Message-ID without marking the folder modified.
func (b *Base) AppendLoaded(m *message.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m.SetSequenceNr(len(b.messages))
	m.ClearModified()
	b.messages = append(b.messages, m)
	if msgID, ok := m.Head().GetFirst("message-id"); ok {
		b.byMessageID[msgID.Body()] = m
	}
}

// AddNew registers a newly appended message, honoring keepDuplicates by
// Message-ID, and marks the folder modified.
func (b *Base) AddNew(m *message.Message, self Folder) error {
	if m.Folder() != nil {
		return ErrAlreadyInFolder
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.keepDuplicates {
		if msgID, ok := m.Head().GetFirst("message-id"); ok {
			if _, dup := b.byMessageID[msgID.Body()]; dup {
				return nil
			}
		}
	}

	m.SetFolder(self)
	m.SetSequenceNr(len(b.messages))
	b.messages = append(b.messages, m)
	if msgID, ok := m.Head().GetFirst("message-id"); ok {
		b.byMessageID[msgID.Body()] = m
	}
	b.addedSinceOpen = true
	return nil
}

func (b *Base) Messages(sel Selector) []*message.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*message.Message
	total := len(b.messages)
	for i, m := range b.messages {
		if sel.Matches(m, i, total) {
			out = append(out, m)
		}
	}
	return out
}

func (b *Base) Message(i int) (*message.Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 {
		i += len(b.messages)
	}
	if i < 0 || i >= len(b.messages) {
		return nil, false
	}
	return b.messages[i], true
}

// MessageByID looks up a message by Message-ID, optionally registering put
// under that ID if it isn't already present (the "put?" form from the
// folder contract).
func (b *Base) MessageByID(msgID string, put ...*message.Message) (*message.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.byMessageID[msgID]; ok {
		return m, true
	}
	if len(put) > 0 && put[0] != nil {
		b.byMessageID[msgID] = put[0]
		return put[0], true
	}
	return nil, false
}

// Find looks up a message already loaded by Message-ID. Every backend
// parses headers eagerly at Open (only a message's body may arrive as a
// body.Delayed placeholder, materialized transparently by Message.Body on
// first access), so the Message-ID index built at load time is always
// complete; there is no scan-back to force here.
func (b *Base) Find(msgID string) (*message.Message, bool) {
	return b.MessageByID(msgID)
}

func (b *Base) ReadOnly() bool { return b.readOnly }

func (b *Base) markClosed() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Base) clearModified() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addedSinceOpen = false
	for _, m := range b.messages {
		m.ClearModified()
	}
}

// allMessages returns the live message slice under lock, for backends
// implementing Write.
func (b *Base) allMessages() []*message.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*message.Message(nil), b.messages...)
}

func normalizeSubfolderName(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, "/"), "/")
}
