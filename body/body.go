// Package body models the payload of a message or MIME part: one of
// several variants (in-memory lines, an on-disk file, a multipart
// container, a nested RFC 822 message, a delayed placeholder, or an
// overflow blob), each carrying MIME type/charset/transfer-encoding/
// disposition metadata.
package body

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/head"
)

// Kind discriminates which variant a Body holds. Exactly one of the
// corresponding fields is meaningful for a given Kind.
type Kind int

const (
	KindLines Kind = iota
	KindFile
	KindMultipart
	KindNested
	KindDelayed
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindLines:
		return "lines"
	case KindFile:
		return "file"
	case KindMultipart:
		return "multipart"
	case KindNested:
		return "nested"
	case KindDelayed:
		return "delayed"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Disposition is a parsed Content-Disposition: a type ("inline"/"attachment")
// plus filename and arbitrary parameters.
type Disposition struct {
	Type     string
	Filename string
	Params   map[string]string
}

// Part is a header+body pair: the shape shared by every MIME part and by a
// nested message/rfc822 body. It deliberately carries no folder-level
// metadata (labels, sequence number, ...) so it has no dependency on the
// message package, avoiding a body<->message import cycle while still
// letting a Body contain "sub-messages".
type Part struct {
	Head *head.Head
	Body *Body
}

// Delayed is a placeholder pointing at bytes not yet decoded from a
// parser's backing stream.
type Delayed struct {
	Begin, End    int64
	SizeHint      int64
	LineCountHint int
	// Source identifies the stream to re-seek into, e.g. a folder's file
	// path; concrete meaning is backend-specific.
	Source string

	// Resolve performs the deferred decode (CTE/charset/multipart
	// assembly) and returns the materialized Body. Set by the backend that
	// constructed this placeholder; when it is nil, MaterializeDelayed
	// returns an error.
	Resolve func() (*Body, error)
}

// FileRef is an on-disk payload referenced by path, loaded on access.
type FileRef struct {
	Path      string
	Size      int64
	LineCount int
}

// Multipart is a MIME multipart container.
type Multipart struct {
	Preamble *Body // text before the first boundary, or nil
	Parts    []Part
	Epilogue *Body // text after the closing boundary, or nil
	Boundary string
}

// Body is the tagged union described in spec.md §3. Exactly one of Lines,
// File, Multipart, Nested, Delayed, Blob is populated, selected by Kind.
type Body struct {
	Kind Kind

	MIMEType         string
	Charset          string
	TransferEncoding string
	Disposition      *Disposition
	Modified         bool

	Lines     []string
	File      *FileRef
	MultiPart *Multipart
	Nested    *Part
	Delay     *Delayed
	Blob      *BlobRef
}

// NewLines builds an in-memory Body from pre-split lines (each including
// its own terminator), defaulting to text/plain/7bit.
func NewLines(lines []string) *Body {
	return &Body{
		Kind:             KindLines,
		MIMEType:         "text/plain",
		TransferEncoding: "7bit",
		Lines:            append([]string(nil), lines...),
	}
}

// NewDelayed builds a placeholder Body pointing into a parser stream.
func NewDelayed(d Delayed) *Body {
	return &Body{Kind: KindDelayed, Delay: &d}
}

// MaterializeDelayed resolves a Delayed body in place via its Resolve func,
// replacing the receiver's fields with the decoded result. A non-Delayed
// body (including one already materialized) is a no-op. Named distinctly
// from the blob.go Materialize(ctx, store) method, which fetches bytes from
// an out-of-line store rather than mutating the receiver in place.
func (b *Body) MaterializeDelayed() (*Body, error) {
	if b == nil || b.Kind != KindDelayed {
		return b, nil
	}
	if b.Delay == nil || b.Delay.Resolve == nil {
		return b, eris.New("body: delayed body has no resolver")
	}
	resolved, err := b.Delay.Resolve()
	if err != nil {
		return b, eris.Wrap(err, "body: materialize delayed body")
	}
	*b = *resolved
	return b, nil
}

// NewFile builds a Body backed by an on-disk file.
func NewFile(ref FileRef) *Body {
	return &Body{Kind: KindFile, File: &ref}
}

// NewMultipart builds a multipart Body.
func NewMultipart(mp Multipart) *Body {
	return &Body{Kind: KindMultipart, MIMEType: "multipart/mixed", MultiPart: &mp}
}

// NewNested builds a message/rfc822 Body wrapping an inner header+body.
func NewNested(p Part) *Body {
	return &Body{Kind: KindNested, MIMEType: "message/rfc822", Nested: &p}
}

// AsText concatenates a KindLines body into one string. It is a no-op
// (returns "") for any other Kind; callers should materialize first.
func (b *Body) AsText() string {
	if b == nil || b.Kind != KindLines {
		return ""
	}
	return strings.Join(b.Lines, "")
}

// Size returns the best available byte-size estimate without forcing a
// materialization: exact for Lines/File/Blob, the hint for Delayed, the
// sum of parts for Multipart, 0 for Nested (caller must materialize).
func (b *Body) Size() int64 {
	if b == nil {
		return 0
	}
	switch b.Kind {
	case KindLines:
		var n int64
		for _, l := range b.Lines {
			n += int64(len(l))
		}
		return n
	case KindFile:
		return b.File.Size
	case KindDelayed:
		return b.Delay.SizeHint
	case KindBlob:
		return b.Blob.Size
	case KindMultipart:
		var n int64
		if b.MultiPart.Preamble != nil {
			n += b.MultiPart.Preamble.Size()
		}
		for _, p := range b.MultiPart.Parts {
			n += p.Body.Size()
		}
		if b.MultiPart.Epilogue != nil {
			n += b.MultiPart.Epilogue.Size()
		}
		return n
	default:
		return 0
	}
}

// PartsCount returns len(parts) + (preamble present) + (epilogue present),
// matching the §8 universal invariant for multipart bodies. It is 0 for
// non-multipart Body values.
func (b *Body) PartsCount() int {
	if b == nil || b.Kind != KindMultipart {
		return 0
	}
	n := len(b.MultiPart.Parts)
	if b.MultiPart.Preamble != nil {
		n++
	}
	if b.MultiPart.Epilogue != nil {
		n++
	}
	return n
}
