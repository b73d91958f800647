package pst

import "strings"

// newSeekableString wraps a synthesized RFC822 message as an io.ReadSeeker,
// the input shape parser.Parser requires.
func newSeekableString(s string) *strings.Reader {
	return strings.NewReader(s)
}
