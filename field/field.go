// Package field models a single RFC 822 header line: its name, body,
// optional structured comment, and attributes parsed out of that comment.
package field

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// ErrMissingColon is returned by ParseLine when a header line has no ":",
// and, wrapped, by New when a field name contains one.
var ErrMissingColon = eris.New("field: missing colon in header line")

// structuredNames lists the field names whose body is split into a plain
// body and a ";"-separated comment that itself carries attribute=value
// pairs (e.g. Content-Type: text/plain; charset=utf-8).
var structuredNames = map[string]bool{
	"to": true, "cc": true, "bcc": true, "from": true, "date": true,
	"reply-to": true, "sender": true, "received": true,
	"references": true, "message-id": true, "in-reply-to": true,
	"content-length": true, "content-type": true, "delivered-to": true,
	"lines": true, "mime-version": true, "precedence": true, "status": true,
}

// Resent-* fields and the other fields that form a resent group are also
// structured; they are matched by prefix in IsStructured.
func isResent(name string) bool { return strings.HasPrefix(name, "resent-") }

// IsStructured reports whether name (any case) parses attributes out of
// its comment.
func IsStructured(name string) bool {
	n := strings.ToLower(name)
	return structuredNames[n] || isResent(n)
}

// caseOverrides gives canonical capitalization for tokens that title-casing
// alone would get wrong.
var caseOverrides = map[string]string{
	"id":   "ID",
	"mime": "MIME",
	"www":  "WWW",
	"spf":  "SPF",
	"dkim": "DKIM",
}

// CanonicalName derives the display form of a header name by splitting on
// "-" and title-casing each token, consulting caseOverrides for the tokens
// that don't title-case correctly (e.g. "ID", "MIME").
func CanonicalName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		lower := strings.ToLower(p)
		if override, ok := caseOverrides[lower]; ok {
			parts[i] = override
			continue
		}
		if p == "" {
			continue
		}
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, "-")
}

// Field is a single decomposed header line. Treat it as immutable once
// constructed; mutator-looking operations (AttributeSet) return a new
// Field and leave the receiver unchanged.
type Field struct {
	name        string
	displayName string
	body        string
	comment     string
	attrs       map[string]string
	wrapLength  int
}

// New builds a Field from a name/body/optional-comment triple. It rejects
// a colon or control byte in name and strips a trailing CRLF from body.
func New(name, body string, comment string) (Field, error) {
	if strings.ContainsRune(name, ':') {
		return Field{}, eris.Wrapf(ErrMissingColon, "field name %q contains ':'", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return Field{}, eris.Errorf("field: control byte in name %q", name)
		}
	}
	body = strings.TrimRight(body, "\r\n")

	f := Field{
		name:        strings.ToLower(name),
		displayName: CanonicalName(name),
		body:        body,
		wrapLength:  78,
	}
	if IsStructured(name) {
		f.comment = strings.TrimSpace(comment)
		f.attrs = parseAttributes(f.comment)
	}
	return f, nil
}

// ParseLine splits a raw header line "Name: body" on the first colon, and
// for structured fields further splits body on the first top-level ";"
// into body+comment.
func ParseLine(line string) (Field, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return Field{}, eris.Wrapf(ErrMissingColon, "line %q", line)
	}
	name := strings.TrimSpace(line[:idx])
	rest := strings.TrimSpace(unfold(line[idx+1:]))

	body, comment := rest, ""
	if IsStructured(name) {
		if semi := topLevelSemicolon(rest); semi >= 0 {
			body = strings.TrimSpace(rest[:semi])
			comment = strings.TrimSpace(rest[semi+1:])
		}
	}
	return New(name, body, comment)
}

// topLevelSemicolon finds the first ";" not inside a quoted string.
func topLevelSemicolon(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// unfold replaces CRLF/LF immediately followed by whitespace (a folded
// continuation) with a single space, leaving all other content untouched.
func unfold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' {
			// Skip the rest of the line terminator.
			if c == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			// A fold is terminator followed by space/tab; collapse to one space.
			if i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t') {
				b.WriteByte(' ')
				i++
				for i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t') {
					i++
				}
				continue
			}
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// parseAttributes extracts key="value" or key=value pairs from a
// structured field's comment portion.
func parseAttributes(comment string) map[string]string {
	attrs := make(map[string]string)
	if comment == "" {
		return attrs
	}
	for _, part := range splitTopLevel(comment, ';') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:eq]))
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		attrs[key] = val
	}
	return attrs
}

// splitTopLevel splits s on sep, ignoring occurrences inside double quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Name returns the lowercase field name.
func (f Field) Name() string { return f.name }

// DisplayName returns the canonical capitalized name.
func (f Field) DisplayName() string { return f.displayName }

// Body returns the unstructured (or pre-comment) body text.
func (f Field) Body() string { return f.body }

// Comment returns the post-";" portion for structured fields, else "".
func (f Field) Comment() string { return f.comment }

// Attribute returns the value of a comment attribute and whether it was present.
func (f Field) Attribute(key string) (string, bool) {
	v, ok := f.attrs[strings.ToLower(key)]
	return v, ok
}

// AttributeSet returns a copy of f with attribute key set to value and the
// comment regenerated from the updated attribute map in sorted key order.
func (f Field) AttributeSet(key, value string) Field {
	g := f
	g.attrs = make(map[string]string, len(f.attrs)+1)
	for k, v := range f.attrs {
		g.attrs[k] = v
	}
	g.attrs[strings.ToLower(key)] = value
	g.comment = renderAttributes(g.attrs)
	return g
}

func renderAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := attrs[k]
		if strings.ContainsAny(v, " ;\"") {
			v = fmt.Sprintf("%q", v)
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "; ")
}

// ToInt parses Body as an integer (e.g. Lines, Content-Length).
func (f Field) ToInt() (int, error) {
	var n int
	var sign int64 = 1
	s := strings.TrimSpace(f.body)
	if s == "" {
		return 0, eris.Errorf("field %q: empty int body", f.name)
	}
	if s[0] == '-' {
		sign = -1
		s = s[1:]
	}
	if s == "" {
		return 0, eris.Errorf("field %q: invalid int body", f.name)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, eris.Errorf("field %q: invalid int body %q", f.name, f.body)
		}
		n = n*10 + int(r-'0')
	}
	return n * int(sign), nil
}

// WrapLength returns the configured fold width (default 78).
func (f Field) WrapLength() int { return f.wrapLength }

// WithWrapLength returns a copy of f with a different fold width.
func (f Field) WithWrapLength(n int) Field {
	g := f
	g.wrapLength = n
	return g
}

// fullBody reassembles body + "; " + comment for structured fields.
func (f Field) fullBody() string {
	if f.comment == "" {
		return f.body
	}
	return f.body + "; " + f.comment
}

// ToLines folds the field into one or more output lines (without
// terminators), wrapping only structured fields at or before wrap_length.
func (f Field) ToLines() []string {
	header := f.displayName + ": "
	full := f.fullBody()
	if !IsStructured(f.name) || f.wrapLength <= 0 {
		return []string{header + full}
	}
	return foldBody(header, full, f.wrapLength)
}

// foldBody implements the folding rule: try splitting on "; " and ", " at
// or before wrap_length; continuation lines are prefixed with one space.
func foldBody(header, body string, wrap int) []string {
	first := header + body
	if len(first) <= wrap {
		return []string{first}
	}

	var lines []string
	remaining := body
	prefix := header
	for {
		budget := wrap - len(prefix)
		if budget < 1 || len(remaining) <= budget {
			lines = append(lines, prefix+remaining)
			break
		}
		cut := bestSplitPoint(remaining, budget)
		if cut <= 0 {
			lines = append(lines, prefix+remaining)
			break
		}
		lines = append(lines, prefix+remaining[:cut])
		remaining = strings.TrimLeft(remaining[cut:], " ")
		prefix = " "
	}
	return lines
}

// bestSplitPoint finds the rightmost "; " or ", " at-or-before budget,
// returning the index just after the separator (so it stays on the
// current line), or -1 if none exists.
func bestSplitPoint(s string, budget int) int {
	if budget >= len(s) {
		return len(s)
	}
	window := s[:budget]
	best := -1
	if i := strings.LastIndex(window, "; "); i >= 0 {
		best = i + 2
	}
	if i := strings.LastIndex(window, ", "); i >= 0 && i+2 > best {
		best = i + 2
	}
	return best
}

// Equal reports whether two fields are identical in all observable fields.
func (f Field) Equal(g Field) bool {
	return f.name == g.name && f.displayName == g.displayName &&
		f.body == g.body && f.comment == g.comment && f.wrapLength == g.wrapLength
}
