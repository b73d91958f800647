// Package mh implements the MH folder backend: one message per file, named
// by strictly increasing positive integers, with gaps permitted. Renumbering
// happens only on an explicit Compact.
package mh

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/blobstore"
	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/head"
	"github.com/eslider/mailbox/locker"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/parser"
	"github.com/eslider/mailbox/reporter"
)

// Folder is an MH directory.
type Folder struct {
	folder.Base

	dir           string
	index         *Index // nil if no SQLite index is usable for this folder
	lock          locker.Locker
	strictHeaders bool
	blobStore     blobstore.Store
	blobThreshold int64
}

// BlobStore returns the folder's configured overflow blob store, or nil.
func (f *Folder) BlobStore() blobstore.Store { return f.blobStore }

// blobKeyHeader names the synthetic header a blob-overflowed message
// carries instead of an inline body, recording where the payload lives.
// blobSizeHeader carries the plaintext byte size alongside it, so Body.Size
// stays cheap without a store round trip.
const (
	blobKeyHeader  = "X-Mailbox-Blob-Key"
	blobSizeHeader = "X-Mailbox-Blob-Size"
)

// blobKeyFor derives a blobstore key for message name within dir.
func blobKeyFor(dir, name string) string {
	return filepath.ToSlash(filepath.Join(filepath.Base(dir), name))
}

// Open reads dir's numbered message files and returns a populated Folder.
// When an index file is present and current for a given message (mtime
// match), that message's header loads from the index instead of the file.
func Open(dir string, opts folder.OpenOptions) (*Folder, error) {
	readOnly := opts.AccessMode == "r"

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "mh: stat %s", dir)
		}
		if !opts.Create {
			return nil, eris.Wrapf(err, "mh: open %s", dir)
		}
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, eris.Wrapf(mkErr, "mh: create %s", dir)
		}
	}

	f := &Folder{
		Base:          folder.NewBase(dir, readOnly, false),
		dir:           dir,
		strictHeaders: opts.StrictHeaders,
		blobStore:     opts.BlobStore,
		blobThreshold: opts.BlobThreshold,
	}

	if opts.Lock {
		f.lock = locker.NewDotLock(filepath.Join(dir, ".mh_sequences"), 0)
		if err := f.lock.Lock(5 * time.Second); err != nil {
			return nil, eris.Wrap(err, "mh: lock")
		}
	}

	idx, err := OpenIndex(dir)
	if err == nil {
		f.index = idx
	}

	filenames, err := readMessageFilenames(dir)
	if err != nil {
		return nil, err
	}

	for _, name := range filenames {
		m, err := f.readMessage(name)
		if err != nil {
			return nil, eris.Wrapf(err, "mh: read message %s", name)
		}
		m.SetUniqueID(name)
		f.AppendLoaded(m)
	}
	return f, nil
}

// AddMessage implements folder.Folder and message.FolderRef.
func (f *Folder) AddMessage(m *message.Message) error {
	return f.AddNew(m, f)
}

// readMessageFilenames returns the sorted numeric filename list, skipping
// anything that isn't a strictly positive integer (the index database,
// ".mh_sequences", dotfiles).
func readMessageFilenames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "mh: read directory")
	}
	var nums []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n <= 0 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	names := make([]string, len(nums))
	for i, n := range nums {
		names[i] = strconv.Itoa(n)
	}
	return names, nil
}

// nextFilename returns the smallest unused positive integer greater than
// every currently present message filename.
func nextFilename(dir string) (string, error) {
	names, err := readMessageFilenames(dir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "1", nil
	}
	last, _ := strconv.Atoi(names[len(names)-1])
	return strconv.Itoa(last + 1), nil
}

func (f *Folder) readMessage(name string) (*message.Message, error) {
	path := filepath.Join(f.dir, name)

	if f.index != nil {
		if entry, ok := f.index.Lookup(name, path); ok {
			h := headFromEntry(entry)
			if b, ok := blobBodyFromHeader(h); ok {
				return message.New(h, b), nil
			}
			lines, err := readBodyAt(path, entry.HeaderEnd)
			if err != nil {
				return nil, err
			}
			b := body.NewDelayed(body.Delayed{
				Begin:    entry.HeaderEnd,
				SizeHint: int64(len(strings.Join(lines, ""))),
				Source:   path,
			})
			b.Delay.Resolve = func() (*body.Body, error) {
				return bodyFromHeaderAndLines(h, lines), nil
			}
			return message.New(h, b), nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "mh: open message file")
	}
	defer file.Close()

	p := parser.New(file)
	p.StrictHeaders = f.strictHeaders
	p.Reporter = reporter.New(reporter.DefaultSink{}, "mh").With(path)
	hBegin, hEnd, rawFields, err := p.ReadHeader(0)
	if err != nil {
		return nil, eris.Wrap(err, "mh: read header")
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
		return nil, eris.Wrap(err, "mh: read body")
	}

	if f.index != nil {
		f.index.Store(name, path, rawFields, hEnd)
	}

	if b, ok := blobBodyFromHeader(h); ok {
		return message.New(h, b), nil
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
	return message.New(h, b), nil
}

// blobBodyFromHeader reports whether h carries a blob-overflow marker and,
// if so, builds the corresponding body.Blob body (MIME type/transfer
// encoding taken from the header same as any inline body would be).
func blobBodyFromHeader(h *head.Head) (*body.Body, bool) {
	keyField, ok := h.GetFirst(blobKeyHeader)
	if !ok || keyField.Body() == "" {
		return nil, false
	}
	var size int64
	if sf, ok := h.GetFirst(blobSizeHeader); ok {
		size, _ = strconv.ParseInt(sf.Body(), 10, 64)
	}
	ct, _ := h.GetFirst("content-type")
	cte, _ := h.GetFirst("content-transfer-encoding")
	mediaType := ct.Body()
	if mediaType == "" {
		mediaType = "text/plain"
	} else if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}
	b := body.NewBlob(body.BlobRef{Key: keyField.Body(), Size: size})
	b.MIMEType = mediaType
	b.TransferEncoding = strings.ToLower(strings.TrimSpace(cte.Body()))
	return b, true
}

func headFromEntry(entry IndexEntry) *head.Head {
	h := head.New(78)
	for _, rf := range entry.Fields {
		ff, err := field.New(rf.Name, rf.Body, "")
		if err != nil {
			continue
		}
		h.Add(ff)
	}
	h.SetOffsets(0, entry.HeaderEnd)
	return h
}

// readBodyAt reads everything in path from byte offset headerEnd to EOF,
// split into newline-terminated lines the way parser.ReadBodyUntilSeparator
// would for a file with no following separator.
func readBodyAt(path string, headerEnd int64) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "mh: open for body read")
	}
	defer file.Close()

	if _, err := file.Seek(headerEnd, io.SeekStart); err != nil {
		return nil, eris.Wrap(err, "mh: seek to body")
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, eris.Wrap(err, "mh: read body")
	}
	return splitLines(string(raw)), nil
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
