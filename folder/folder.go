// Package folder defines the storage-agnostic Folder contract every
// concrete backend (mbox, MH, Maildir, PST) implements, plus the message
// selector grammar and write/close policies shared across all of them.
package folder

import (
	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/blobstore"
	"github.com/eslider/mailbox/message"
)

// WritePolicy controls how a folder's write() persists pending changes.
type WritePolicy string

const (
	WriteReplace WritePolicy = "REPLACE"
	WriteInplace WritePolicy = "INPLACE"
	WriteDefault WritePolicy = "DEFAULT"
)

// ClosePolicy controls whether Close writes pending changes.
type ClosePolicy string

const (
	CloseAlways   ClosePolicy = "ALWAYS"
	CloseNever    ClosePolicy = "NEVER"
	CloseModified ClosePolicy = "MODIFIED" // default
)

// SelectorKind discriminates a Selector's meaning.
type SelectorKind int

const (
	SelectAll SelectorKind = iota
	SelectActive
	SelectDeleted
	SelectRange
	SelectLabel
	SelectPredicate
)

// Selector chooses a subset of a folder's messages for Folder.Messages.
type Selector struct {
	Kind      SelectorKind
	Begin     int // for SelectRange; negative counts from the end
	End       int
	Label     string
	Negate    bool
	Predicate func(*message.Message) bool
}

// All selects every message.
func All() Selector { return Selector{Kind: SelectAll} }

// Active selects non-deleted messages.
func Active() Selector { return Selector{Kind: SelectActive} }

// Deleted selects messages flagged for deletion.
func Deleted() Selector { return Selector{Kind: SelectDeleted} }

// Range selects messages in [begin,end), where a negative index counts
// from the end of the folder (as in Python slicing).
func Range(begin, end int) Selector { return Selector{Kind: SelectRange, Begin: begin, End: end} }

// ByLabel selects messages on which the named label is set; the label's
// value is not examined, so a label set to "0" or "" also matches.
func ByLabel(name string) Selector { return Selector{Kind: SelectLabel, Label: name} }

// NotLabel selects messages without the named label set.
func NotLabel(name string) Selector { return Selector{Kind: SelectLabel, Label: name, Negate: true} }

// Where selects messages matching an arbitrary predicate.
func Where(pred func(*message.Message) bool) Selector {
	return Selector{Kind: SelectPredicate, Predicate: pred}
}

// Matches reports whether m satisfies sel, resolving a SelectRange against
// m's SequenceNr position out of total.
func (sel Selector) Matches(m *message.Message, index, total int) bool {
	switch sel.Kind {
	case SelectAll:
		return true
	case SelectActive:
		return !m.Deleted()
	case SelectDeleted:
		return m.Deleted()
	case SelectRange:
		begin, end := sel.Begin, sel.End
		if begin < 0 {
			begin += total
		}
		if end < 0 {
			end += total
		}
		return index >= begin && index < end
	case SelectLabel:
		_, set := m.Label(sel.Label)
		if sel.Negate {
			return !set
		}
		return set
	case SelectPredicate:
		return sel.Predicate != nil && sel.Predicate(m)
	default:
		return false
	}
}

// OpenOptions configures Folder construction/open.
type OpenOptions struct {
	AccessMode string // "r" or "rw"
	Create     bool
	Lock       bool
	// StrictHeaders makes a malformed ("no colon") header line a surfaced
	// ParseError instead of the default fix_header_errors behavior (logged,
	// best-effort field synthesized, parsing continues).
	StrictHeaders bool
	// BlobStore, if set, receives message bodies whose rendered size
	// exceeds BlobThreshold instead of having them written inline (MH
	// only, one file per message makes the split unambiguous).
	BlobStore blobstore.Store
	// BlobThreshold is the byte size above which a body spills to
	// BlobStore. Zero (with BlobStore unset) disables overflow entirely.
	BlobThreshold int64
}

// Folder is the contract every concrete backend implements.
type Folder interface {
	Name() string
	Messages(sel Selector) []*message.Message
	Message(i int) (*message.Message, bool)
	MessageByID(msgID string, put ...*message.Message) (*message.Message, bool)
	Find(msgID string) (*message.Message, bool)
	AddMessage(m *message.Message) error
	Write(policy WritePolicy) error
	Close(policy ClosePolicy) error
	Delete() error
	CopyTo(dst Folder, opts OpenOptions) error
	ListSubFolders() ([]string, error)
	OpenSubFolder(name string) (Folder, error)
	Modified() bool
	IsClosed() bool
}

// ErrAlreadyInFolder is returned by AddMessage when the message already
// belongs to a different folder.
var ErrAlreadyInFolder = eris.New("folder: message already belongs to a folder")

// ErrReadOnly is returned by Close when policy would write but the folder
// was opened read-only.
var ErrReadOnly = eris.New("folder: cannot write a read-only folder")

// ErrClosed is returned by any operation attempted on an already-closed
// folder.
var ErrClosed = eris.New("folder: folder is closed")

// ErrFolderMissing is returned by manager.Open when asked to open a
// non-existent folder without Options.Create set.
var ErrFolderMissing = eris.New("folder: no such folder")

// ErrFolderTypeUnknown is returned by manager.Open when no registered
// backend's FoundIn matches and the open is read-only, so no default type
// can be created.
var ErrFolderTypeUnknown = eris.New("folder: could not determine folder type")
