package body

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/head"
)

// ParseMultipart splits raw (the bytes between the Content-Type line and
// the end of the entity) into preamble/parts/epilogue per the boundary
// declared in contentType, using stdlib mime/multipart as the teacher's
// own eml parser does (see extractFromMultipart in
// internal/search/eml/parser.go).
func ParseMultipart(contentType string, raw []byte) (*Multipart, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, eris.Wrap(err, "parse multipart content-type")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, eris.New("multipart missing boundary")
	}

	dashBoundary := "--" + boundary
	preambleEnd := indexOfBoundaryLine(raw, dashBoundary)
	var preamble *Body
	bodyStart := 0
	if preambleEnd >= 0 {
		if preambleEnd > 0 {
			preamble = NewLines(splitLinesKeepEnds(raw[:preambleEnd]))
			preamble.MIMEType = "text/plain"
		}
		bodyStart = preambleEnd
	}

	mr := multipart.NewReader(&sliceReader{raw[bodyStart:]}, boundary)
	mp := &Multipart{Preamble: preamble, Boundary: boundary}

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h := head.New(78)
		for name, values := range part.Header {
			for _, v := range values {
				if f, ferr := field.New(name, v, ""); ferr == nil {
					h.Add(f)
				}
			}
		}
		data, _ := io.ReadAll(io.LimitReader(part, 64<<20))
		ct := part.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/plain"
		}
		partBody := bodyFromRaw(ct, part.Header.Get("Content-Transfer-Encoding"), data)
		mp.Parts = append(mp.Parts, Part{Head: h, Body: partBody})
		part.Close()
	}

	// Epilogue: whatever follows the final "--boundary--" line.
	if endIdx := strings.Index(string(raw), dashBoundary+"--"); endIdx >= 0 {
		rest := raw[endIdx+len(dashBoundary)+2:]
		rest = trimLeadingLineBreak(rest)
		if len(rest) > 0 {
			mp.Epilogue = NewLines(splitLinesKeepEnds(rest))
			mp.Epilogue.MIMEType = "text/plain"
		}
	}

	return mp, nil
}

// bodyFromRaw builds a concrete in-memory Body (Lines, or Multipart if
// ct is itself multipart/*) from already-decoded-from-the-wire-envelope
// raw part bytes (transfer-encoding is still applied, since parts carry
// their own Content-Transfer-Encoding).
func bodyFromRaw(contentType, cte string, raw []byte) *Body {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		if mp, err := ParseMultipart(contentType, raw); err == nil {
			b := NewMultipart(*mp)
			b.MIMEType = mediaType
			return b
		}
	}
	decoded, derr := Lookup(cte).Decode(raw)
	if derr != nil {
		decoded = raw
	}
	b := NewLines(splitLinesKeepEnds(decoded))
	b.MIMEType = mediaType
	b.TransferEncoding = strings.ToLower(strings.TrimSpace(cte))
	if cs, ok := params["charset"]; ok {
		b.Charset = cs
	}
	return b
}

func indexOfBoundaryLine(raw []byte, dashBoundary string) int {
	return strings.Index(string(raw), dashBoundary)
}

func trimLeadingLineBreak(b []byte) []byte {
	if len(b) > 0 && b[0] == '\r' {
		b = b[1:]
	}
	if len(b) > 0 && b[0] == '\n' {
		b = b[1:]
	}
	return b
}

func splitLinesKeepEnds(data []byte) []string {
	s := string(data)
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

// sliceReader adapts a byte slice to io.Reader without copying on Read.
type sliceReader struct{ b []byte }

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}
