package field

import "strings"

// StripCFWS removes comments and folding whitespace from s: balanced
// "(...)" comments (with nesting) are dropped, and runs of whitespace
// collapse to a single space. Non-comment content is preserved exactly.
func StripCFWS(s string) string {
	var b strings.Builder
	depth := 0
	lastWasSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(' && depth == 0 && !precededByBackslash(s, i):
			depth = 1
		case depth > 0:
			switch {
			case c == '\\' && i+1 < len(s):
				i++ // escaped char inside comment, still dropped
			case c == '(':
				depth++
			case c == ')':
				depth--
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			b.WriteByte(c)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func precededByBackslash(s string, i int) bool {
	return i > 0 && s[i-1] == '\\'
}
