// Package maildir implements the Maildir folder backend: new/cur/tmp
// subdirectories, one file per message, flags carried in the filename.
package maildir

import (
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/head"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/parser"
	"github.com/eslider/mailbox/reporter"
)

const (
	subNew = "new"
	subCur = "cur"
	subTmp = "tmp"
)

// flag letters, kept in the alphabetic order Maildir requires them to
// appear in a ":2,<FLAGS>" suffix.
const flagOrder = "DFRST"

// labelToFlag maps a Message label name to its single-letter Maildir flag.
var labelToFlag = map[string]byte{
	"draft":   'D',
	"flagged": 'F',
	"replied": 'R',
	"seen":    'S',
	"trashed": 'T',
}

var flagToLabel = func() map[byte]string {
	m := make(map[byte]string, len(labelToFlag))
	for label, flag := range labelToFlag {
		m[flag] = label
	}
	return m
}()

// Folder is a Maildir directory (the parent of new/cur/tmp).
type Folder struct {
	folder.Base

	dir           string
	strictHeaders bool
}

// Open reads dir's new and cur subdirectories and returns a populated
// Folder. Messages found in new are not moved to cur by Open; that happens
// only when Write is called with at least one read (label) change, mirroring
// the "new means never looked at" Maildir convention.
//
// opts.Lock is accepted for interface symmetry with mbox/mh but is a no-op:
// delivery via tmp-write-then-rename and flag changes via rename are each
// atomic, so Maildir needs no folder-wide lock.
func Open(dir string, opts folder.OpenOptions) (*Folder, error) {
	readOnly := opts.AccessMode == "r"

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "maildir: stat %s", dir)
		}
		if !opts.Create {
			return nil, eris.Wrapf(err, "maildir: open %s", dir)
		}
		for _, sub := range []string{subNew, subCur, subTmp} {
			if mkErr := os.MkdirAll(filepath.Join(dir, sub), 0o755); mkErr != nil {
				return nil, eris.Wrapf(mkErr, "maildir: create %s", sub)
			}
		}
	}

	f := &Folder{
		Base:          folder.NewBase(dir, readOnly, false),
		dir:           dir,
		strictHeaders: opts.StrictHeaders,
	}

	for _, entry := range []struct {
		sub    string
		isCur  bool
	}{{subNew, false}, {subCur, true}} {
		names, err := readEntries(filepath.Join(dir, entry.sub))
		if err != nil {
			return nil, err
		}
		sort.Strings(names)
		for _, name := range names {
			m, err := f.readMessage(entry.sub, name, entry.isCur)
			if err != nil {
				return nil, eris.Wrapf(err, "maildir: read %s/%s", entry.sub, name)
			}
			f.AppendLoaded(m)
		}
	}
	return f, nil
}

// AddMessage implements folder.Folder and message.FolderRef.
func (f *Folder) AddMessage(m *message.Message) error {
	return f.AddNew(m, f)
}

func readEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "maildir: read %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// baseKey returns the portion of a cur-directory filename before ":2,",
// which is also the exact filename used in new/.
func baseKey(filename string) string {
	if i := strings.Index(filename, ":2,"); i >= 0 {
		return filename[:i]
	}
	return filename
}

// flagsOf returns the flag letters of a cur-directory filename's
// ":2,<FLAGS>" suffix, in the order they appear in the filename.
func flagsOf(filename string) string {
	i := strings.Index(filename, ":2,")
	if i < 0 {
		return ""
	}
	return filename[i+3:]
}

func (f *Folder) readMessage(sub, filename string, isCur bool) (*message.Message, error) {
	path := filepath.Join(f.dir, sub, filename)
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "maildir: open message file")
	}
	defer file.Close()

	p := parser.New(file)
	p.StrictHeaders = f.strictHeaders
	p.Reporter = reporter.New(reporter.DefaultSink{}, "maildir").With(path)
	hBegin, hEnd, rawFields, err := p.ReadHeader(0)
	if err != nil {
		return nil, eris.Wrap(err, "maildir: read header")
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
		return nil, eris.Wrap(err, "maildir: read body")
	}

	b := body.NewDelayed(body.Delayed{
		Begin:    bBegin,
		End:      bEnd,
		SizeHint: bEnd - bBegin,
		Source:   path,
	})
	b.Delay.Resolve = func() (*body.Body, error) {
		return bodyFromHeaderAndLines(h, lines), nil
	}
	m := message.New(h, b)
	m.SetUniqueID(baseKey(filename))

	if isCur {
		for _, flag := range flagsOf(filename) {
			if label, ok := flagToLabel[byte(flag)]; ok {
				m.Label(label, "1")
			}
		}
	}
	return m, nil
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
