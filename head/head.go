// Package head models an RFC 822 header block: an ordered multimap of
// field.Field values with case-insensitive lookup and duplicate
// preservation, plus the byte-range record the parser fills in.
package head

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/eslider/mailbox/field"
)

// Head is a header block. The zero value is a valid, empty header with the
// default 78-column wrap length.
type Head struct {
	byName     map[string][]field.Field
	order      []string // insertion order of distinct (lowercase) names
	wrapLength int
	begin, end int64
	hasOffsets bool
	modified   bool
}

// New returns an empty Head with the given fold width (0 uses the default).
func New(wrapLength int) *Head {
	if wrapLength <= 0 {
		wrapLength = 78
	}
	return &Head{byName: make(map[string][]field.Field), wrapLength: wrapLength}
}

// SetOffsets records the byte range [begin,end) this header occupied on
// disk, for unmodified-span copying on write.
func (h *Head) SetOffsets(begin, end int64) {
	h.begin, h.end, h.hasOffsets = begin, end, true
}

// Offsets returns the recorded byte range and whether one was set.
func (h *Head) Offsets() (begin, end int64, ok bool) { return h.begin, h.end, h.hasOffsets }

// Modified reports whether any field was added/replaced since construction
// or since the last call to ClearModified.
func (h *Head) Modified() bool { return h.modified }

// ClearModified resets the modified flag (called by a folder after a
// successful write).
func (h *Head) ClearModified() { h.modified = false }

// Add appends f as a new occurrence of its name, preserving any existing
// occurrences and recording the name in insertion order if it's new.
func (h *Head) Add(f field.Field) {
	if h.byName == nil {
		h.byName = make(map[string][]field.Field)
	}
	name := f.Name()
	if _, seen := h.byName[name]; !seen {
		h.order = append(h.order, name)
	}
	h.byName[name] = append(h.byName[name], f)
	h.modified = true
}

// Set replaces all occurrences of fields' name with the given fields,
// preserving the name's slot position in Names(). Set with no fields
// removes the name, equivalent to Reset(name).
func (h *Head) Set(name string, fields ...field.Field) {
	h.Reset(name, fields...)
}

// Reset replaces all occurrences of name with fields (possibly zero),
// preserving name's position in the order slice when it already exists.
func (h *Head) Reset(name string, fields ...field.Field) {
	lname := strings.ToLower(name)
	if h.byName == nil {
		h.byName = make(map[string][]field.Field)
	}
	_, existed := h.byName[lname]
	if len(fields) == 0 {
		if existed {
			delete(h.byName, lname)
			h.removeFromOrder(lname)
			h.modified = true
		}
		return
	}
	if !existed {
		h.order = append(h.order, lname)
	}
	h.byName[lname] = append([]field.Field(nil), fields...)
	h.modified = true
}

func (h *Head) removeFromOrder(name string) {
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

// Get returns the field at duplicate index i for name (0 = first),
// reporting false if not present.
func (h *Head) Get(name string, i int) (field.Field, bool) {
	fields := h.byName[strings.ToLower(name)]
	if i < 0 || i >= len(fields) {
		return field.Field{}, false
	}
	return fields[i], true
}

// GetFirst is Get(name, 0).
func (h *Head) GetFirst(name string) (field.Field, bool) { return h.Get(name, 0) }

// GetAll returns every occurrence of name, in insertion order, or nil.
func (h *Head) GetAll(name string) []field.Field {
	return append([]field.Field(nil), h.byName[strings.ToLower(name)]...)
}

// Count returns the number of occurrences of name.
func (h *Head) Count(name string) int { return len(h.byName[strings.ToLower(name)]) }

// Names returns the distinct field names in insertion order.
func (h *Head) Names() []string { return append([]string(nil), h.order...) }

// KnownNames returns the distinct field names that are RFC-822-structured.
func (h *Head) KnownNames() []string {
	var out []string
	for _, n := range h.order {
		if field.IsStructured(n) {
			out = append(out, n)
		}
	}
	return out
}

// GrepNames returns the distinct names matching any of the given
// case-insensitive substrings.
func (h *Head) GrepNames(patterns ...string) []string {
	var out []string
	for _, n := range h.order {
		for _, p := range patterns {
			if strings.Contains(n, strings.ToLower(p)) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Clone makes a deep copy of h, optionally keeping only names for which
// filter(name) returns true (nil filter keeps everything).
func (h *Head) Clone(filter func(name string) bool) *Head {
	g := New(h.wrapLength)
	for _, n := range h.order {
		if filter != nil && !filter(n) {
			continue
		}
		g.order = append(g.order, n)
		g.byName[n] = append([]field.Field(nil), h.byName[n]...)
	}
	return g
}

// Size returns the number of distinct field names.
func (h *Head) Size() int { return len(h.order) }

// IsMultipart reports whether Content-Type's body starts with "multipart/".
func (h *Head) IsMultipart() bool {
	f, ok := h.GetFirst("content-type")
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.Body())), "multipart/")
}

// GuessBodySize returns the declared Content-Length if present and valid.
func (h *Head) GuessBodySize() (int, bool) {
	f, ok := h.GetFirst("content-length")
	if !ok {
		return 0, false
	}
	n, err := f.ToInt()
	if err != nil {
		return 0, false
	}
	return n, true
}

// GuessTimestamp parses the Date field, falling back to the first Received
// field's trailing date.
func (h *Head) GuessTimestamp() (time string, ok bool) {
	if f, present := h.GetFirst("date"); present {
		if t, parsed := f.ParseDate(); parsed {
			return field.FormatDate(t), true
		}
	}
	if f, present := h.GetFirst("received"); present {
		body := f.Body()
		if idx := strings.LastIndex(body, ";"); idx >= 0 {
			rf, err := field.New("Date", strings.TrimSpace(body[idx+1:]), "")
			if err == nil {
				if t, parsed := rf.ParseDate(); parsed {
					return field.FormatDate(t), true
				}
			}
		}
	}
	return "", false
}

// CreateMessageID synthesizes an RFC 822 Message-ID using a UUIDv7 so ids
// sort roughly by creation time, matching model.NewID's rationale.
func CreateMessageID(host string) string {
	if host == "" {
		host = "localhost"
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return fmt.Sprintf("<%s@%s>", id.String(), host)
}

// Print writes the header in RFC 822 wire form (CRLF line endings,
// terminated by a blank line) to w.
func (h *Head) Print(w io.Writer) error {
	for _, n := range h.order {
		for _, f := range h.byName[n] {
			for _, line := range f.ToLines() {
				if _, err := io.WriteString(w, line+"\r\n"); err != nil {
					return err
				}
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// Lines returns the header rendered as individual wire lines, without the
// trailing blank-line terminator.
func (h *Head) Lines() []string {
	var out []string
	for _, n := range h.order {
		for _, f := range h.byName[n] {
			out = append(out, f.ToLines()...)
		}
	}
	return out
}
