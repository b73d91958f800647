// Package mbox implements the mbox folder backend: a single file holding a
// concatenation of messages, each preceded by a "From " envelope line.
package mbox

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/head"
	"github.com/eslider/mailbox/locker"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/parser"
	"github.com/eslider/mailbox/reporter"
)

const mboxSeparator = "From "

// LineSeparator selects the line terminator written after each message.
// Header lines are always written with CRLF and the "From " envelope line
// ends with LF, whatever the separator.
type LineSeparator string

const (
	LF   LineSeparator = "\n"
	CR   LineSeparator = "\r"
	CRLF LineSeparator = "\r\n"
)

// Folder is a single mbox file.
type Folder struct {
	folder.Base

	path          string
	dir           string
	lineSeparator LineSeparator
	lock          locker.Locker
}

// ExpandName expands a leading "=" in name to "<folderDir>/", the mbox
// folder-name convention.
func ExpandName(folderDir, name string) string {
	if strings.HasPrefix(name, "=") {
		return filepath.Join(folderDir, strings.TrimPrefix(name, "="))
	}
	return name
}

// Open reads path (an mbox file) and returns a populated Folder. opts.Create
// allows opening a path that doesn't exist yet, starting empty.
func Open(path string, opts folder.OpenOptions) (*Folder, error) {
	readOnly := opts.AccessMode == "r"
	f := &Folder{
		Base:          folder.NewBase(path, readOnly, false),
		path:          path,
		dir:           filepath.Dir(path),
		lineSeparator: LF,
	}

	if opts.Lock {
		f.lock = locker.NewDotLock(path, 0)
		if err := f.lock.Lock(5 * time.Second); err != nil {
			return nil, eris.Wrap(err, "mbox: lock")
		}
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if opts.Create {
				return f, nil
			}
		}
		return nil, eris.Wrapf(err, "mbox: open %s", path)
	}
	defer file.Close()

	if err := f.readMessages(file, opts.StrictHeaders); err != nil {
		return nil, err
	}
	return f, nil
}

// AddMessage implements folder.Folder, delegating to Base.AddNew with f as
// the owning folder.
func (f *Folder) AddMessage(m *message.Message) error {
	return f.AddNew(m, f)
}

func (f *Folder) readMessages(file *os.File, strictHeaders bool) error {
	p := parser.New(file)
	p.StrictHeaders = strictHeaders
	p.Reporter = reporter.New(reporter.DefaultSink{}, "mbox").With(f.path)
	p.PushSeparator(mboxSeparator)
	defer p.PopSeparator()

	for {
		envBegin := p.Tell()
		envLine, atEOF, err := p.ReadLine()
		if err != nil {
			return eris.Wrap(err, "mbox: read envelope line")
		}
		if atEOF {
			break
		}
		if !strings.HasPrefix(envLine, mboxSeparator) {
			return eris.Errorf("mbox: expected %q envelope, got %q", mboxSeparator, envLine)
		}

		hBegin, hEnd, rawFields, err := p.ReadHeader(0)
		if err != nil {
			return eris.Wrap(err, "mbox: read header")
		}

		h := head.New(78)
		for _, rf := range rawFields {
			ff, ferr := field.New(rf.Name, rf.Body, "")
			if ferr != nil {
				continue
			}
			h.Add(ff)
		}
		h.SetOffsets(hBegin, hEnd)

		bBegin, bEnd, lines, err := p.ReadBodyUntilSeparator()
		if err != nil {
			return eris.Wrap(err, "mbox: read body")
		}
		unescapeFromLines(lines)

		// The header is always parsed eagerly (Message-ID indexing and
		// selection need it), but the CTE/charset/multipart decode of the
		// body is deferred until first access via body.Delayed.Resolve.
		b := body.NewDelayed(body.Delayed{
			Begin:    bBegin,
			End:      bEnd,
			SizeHint: bEnd - bBegin,
			Source:   f.path,
		})
		b.Delay.Resolve = func() (*body.Body, error) {
			return bodyFromHeaderAndLines(h, lines), nil
		}
		m := message.New(h, b)
		m.SetLocation(message.Location{Begin: envBegin, End: bEnd})
		m.SetSizeHint(bEnd - bBegin)
		f.AppendLoaded(m)
	}
	return nil
}

func bodyFromHeaderAndLines(h *head.Head, lines []string) *body.Body {
	ct, _ := h.GetFirst("content-type")
	cte, _ := h.GetFirst("content-transfer-encoding")

	contentType := ct.Body()
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	joined := strings.Join(lines, "")
	if strings.HasPrefix(mediaType, "multipart/") {
		if mp, perr := body.ParseMultipart(contentType, []byte(joined)); perr == nil {
			b := body.NewMultipart(*mp)
			b.MIMEType = mediaType
			return b
		}
	}

	decoded, derr := body.Lookup(cte.Body()).Decode([]byte(joined))
	if derr != nil {
		decoded = []byte(joined)
	}
	if cs, ok := params["charset"]; ok && cs != "" {
		decoded = body.DecodeCharset(cs, decoded)
	}
	b := body.NewLines(splitLines(string(decoded)))
	b.MIMEType = mediaType
	b.TransferEncoding = strings.ToLower(strings.TrimSpace(cte.Body()))
	if cs, ok := params["charset"]; ok {
		b.Charset = cs
	}
	return b
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
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

// unescapeFromLines strips a leading ">" mbox quoting added to protect a
// genuine "From " line inside a body, in place.
func unescapeFromLines(lines []string) {
	for i, l := range lines {
		if strings.HasPrefix(l, ">From ") {
			lines[i] = l[1:]
		}
	}
}

// escapeFromLines prepends ">" to any body line starting with "From ".
func escapeFromLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.HasPrefix(l, "From ") {
			out[i] = ">" + l
		} else {
			out[i] = l
		}
	}
	return out
}
