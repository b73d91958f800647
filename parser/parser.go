// Package parser implements the byte-accurate streaming reader shared by
// every folder backend: it walks a file handle one line at a time,
// recognizing a stack of separator patterns, and hands back exact
// (begin,end) byte offsets for every header and body it reads so unmodified
// messages can be copied byte-exact back out later.
package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/reporter"
)

// ErrMalformedHeader is the ParseError kind: a header line with no colon.
// ReadHeader always logs this through Reporter; when StrictHeaders is unset
// it synthesizes a best-effort field (empty name, the raw line as body)
// instead of returning the error, so a single malformed line doesn't fail
// an otherwise-readable header.
var ErrMalformedHeader = eris.New("parser: malformed header line (no colon)")

// HeaderField is one raw (name, body) pair as read off the wire, before any
// field.New validation/attribute parsing is applied.
type HeaderField struct {
	Name string
	Body string
}

// Parser streams lines out of r, tracking a logical byte offset and a stack
// of active separator patterns (mbox nests none, but the stack lets a
// future backend push a boundary separator while already inside a
// message/rfc822 sub-stream, mirroring the imapClient readLine/readExact
// buffered-cursor idiom).
type Parser struct {
	r          io.ReadSeeker
	br         *bufio.Reader
	pos        int64
	separators []string
	stopped    bool

	// Reporter receives a Warning for every malformed header line
	// encountered, regardless of StrictHeaders. Zero value discards.
	Reporter reporter.Reporter
	// StrictHeaders makes ReadHeader fail with ErrMalformedHeader on a
	// colonless line instead of the default fix_header_errors behavior of
	// synthesizing a placeholder field and continuing.
	StrictHeaders bool
}

// New wraps r, assumed positioned at its current intended start offset.
func New(r io.ReadSeeker) *Parser {
	return &Parser{r: r, br: bufio.NewReader(r)}
}

// PushSeparator makes pattern the active line-start separator.
func (p *Parser) PushSeparator(pattern string) {
	p.separators = append(p.separators, pattern)
}

// PopSeparator removes and returns the most recently pushed separator.
func (p *Parser) PopSeparator() (string, bool) {
	if len(p.separators) == 0 {
		return "", false
	}
	last := p.separators[len(p.separators)-1]
	p.separators = p.separators[:len(p.separators)-1]
	return last, true
}

func (p *Parser) currentSeparator() (string, bool) {
	if len(p.separators) == 0 {
		return "", false
	}
	return p.separators[len(p.separators)-1], true
}

// Seek repositions the stream at offset, discarding any buffered lookahead.
func (p *Parser) Seek(offset int64) error {
	if _, err := p.r.Seek(offset, io.SeekStart); err != nil {
		return eris.Wrap(err, "parser: seek")
	}
	p.br = bufio.NewReader(p.r)
	p.pos = offset
	return nil
}

// Tell returns the current logical byte offset.
func (p *Parser) Tell() int64 { return p.pos }

// Restart seeks back to the beginning of the stream and clears Stopped.
func (p *Parser) Restart() error {
	p.stopped = false
	return p.Seek(0)
}

// Stop halts any in-progress ReadBodyUntilSeparator loop at its next line
// boundary, used by callers doing a bounded scan (e.g. thread scan-back).
func (p *Parser) Stop() { p.stopped = true }

// Stopped reports whether Stop has been called since the last Restart.
func (p *Parser) Stopped() bool { return p.stopped }

func (p *Parser) readRawLine() (line string, atEOF bool, err error) {
	line, err = p.br.ReadString('\n')
	if len(line) > 0 {
		p.pos += int64(len(line))
	}
	if err == io.EOF {
		if line == "" {
			return "", true, nil
		}
		return line, false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "parser: read line")
	}
	return line, false, nil
}

// ReadLine reads and returns exactly one raw line (including its
// terminator, if any), for callers that need to consume a separator line
// itself rather than stop before it (e.g. mbox's "From " envelope line).
func (p *Parser) ReadLine() (line string, atEOF bool, err error) {
	return p.readRawLine()
}

func (p *Parser) isSeparatorLine(line string) bool {
	sep, ok := p.currentSeparator()
	if !ok {
		return false
	}
	return strings.HasPrefix(line, sep)
}

// ReadHeader reads from the current offset up to (and consuming) the first
// blank line, unfolding continuation lines (leading space/tab) into their
// owning field. wrap is currently unused by reading (folding only matters on
// write) and accepted for symmetry with FoldHeaderLine.
func (p *Parser) ReadHeader(wrap int) (begin, end int64, fields []HeaderField, err error) {
	begin = p.pos
	for {
		line, atEOF, rerr := p.readRawLine()
		if rerr != nil {
			return begin, p.pos, fields, rerr
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if atEOF || trimmed == "" {
			end = p.pos
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(fields) > 0 {
				fields[len(fields)-1].Body += " " + strings.TrimSpace(trimmed)
			}
			continue
		}
		idx := strings.IndexByte(trimmed, ':')
		if idx < 0 {
			p.Reporter.Warning("malformed header line (no colon): %q", trimmed)
			if p.StrictHeaders {
				return begin, p.pos, fields, eris.Wrapf(ErrMalformedHeader, "line %q", trimmed)
			}
			fields = append(fields, HeaderField{Name: "", Body: trimmed})
			continue
		}
		fields = append(fields, HeaderField{
			Name: trimmed[:idx],
			Body: strings.TrimSpace(trimmed[idx+1:]),
		})
	}
	return begin, end, fields, nil
}

// ReadBodyUntilSeparator reads lines from the current offset until the next
// active separator (matched at line start) or EOF, returning the consumed
// span's exact byte offsets. The separator line itself is left unconsumed
// (the stream is rewound to just before it) so the caller's next
// ReadHeader starts exactly on it.
func (p *Parser) ReadBodyUntilSeparator() (begin, end int64, lines []string, err error) {
	begin = p.pos
	for {
		if p.stopped {
			break
		}
		line, atEOF, rerr := p.readRawLine()
		if rerr != nil {
			return begin, p.pos, lines, rerr
		}
		if atEOF {
			break
		}
		if p.isSeparatorLine(line) {
			back := p.pos - int64(len(line))
			if serr := p.Seek(back); serr != nil {
				return begin, p.pos, lines, serr
			}
			break
		}
		lines = append(lines, line)
	}
	end = p.pos
	return begin, end, lines, nil
}

// FoldHeaderLine wraps a fully rendered "Name: body" line at wrap columns,
// breaking at the last space before the wrap column (or exactly at the
// column when that stretch has no space) and indenting continuations with
// a single space, mirroring field.Field's own wrap behavior for the raw line form
// the parser deals in before a Field exists.
func FoldHeaderLine(line string, wrap int) []string {
	if wrap <= 0 || len(line) <= wrap {
		return []string{line}
	}
	var out []string
	rest := line
	for len(rest) > wrap {
		splitAt := strings.LastIndexByte(rest[:wrap], ' ')
		if splitAt <= 0 {
			splitAt = wrap
		}
		out = append(out, rest[:splitAt])
		rest = " " + strings.TrimLeft(rest[splitAt:], " ")
	}
	out = append(out, rest)
	return out
}
