package field

import (
	"strings"
	"time"
)

// dateLayouts are tried in order; real-world Date/Received headers deviate
// from RFC 5322 constantly (missing seconds, missing zone, comment zone).
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05",
	time.RFC822Z,
	time.RFC822,
}

// ParseDate parses the field body as a date-time, trying dateLayouts in
// order. It returns the zero time and false if nothing matched.
func (f Field) ParseDate() (time.Time, bool) {
	s := strings.TrimSpace(f.body)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders ts in the canonical RFC 1123Z form used for outgoing
// Date headers, matching Field.ToDate in spec.md.
func FormatDate(ts time.Time) string {
	return ts.Format(time.RFC1123Z)
}
