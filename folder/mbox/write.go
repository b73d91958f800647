package mbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/message"
)

// Write persists pending changes per policy. DEFAULT tries REPLACE first,
// falling back to INPLACE if REPLACE fails (e.g. no room for a temp file).
func (f *Folder) Write(policy folder.WritePolicy) error {
	if !f.Modified() {
		return nil
	}
	switch policy {
	case folder.WriteReplace:
		return f.writeReplace()
	case folder.WriteInplace:
		return f.writeInplace()
	case folder.WriteDefault, "":
		if err := f.writeReplace(); err != nil {
			return f.writeInplace()
		}
		return nil
	default:
		return eris.Errorf("mbox: unknown write policy %q", policy)
	}
}

// writeReplace writes every live (non-deleted) message to a temp file,
// byte-copying the original span verbatim for any message that hasn't
// changed since load and re-serializing only the modified/new ones, then
// atomically renames the temp file into place.
func (f *Folder) writeReplace() error {
	tmpPath := f.path + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrap(err, "mbox: create temp file")
	}

	var orig *os.File
	if of, oerr := os.Open(f.path); oerr == nil {
		orig = of
		defer orig.Close()
	}

	msgs := f.liveMessages()
	for _, m := range msgs {
		newBegin := currentOffset(out)
		loc := m.Location()
		if orig != nil && !m.Modified() && loc.End > 0 {
			if err := copySpan(out, orig, loc.Begin, loc.End); err != nil {
				out.Close()
				os.Remove(tmpPath)
				return err
			}
		} else if err := f.writeOneMessage(out, m); err != nil {
			out.Close()
			os.Remove(tmpPath)
			return err
		}
		newEnd := currentOffset(out)
		m.SetLocation(message.Location{Begin: newBegin, End: newEnd})
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "mbox: close temp file")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return eris.Wrap(err, "mbox: rename temp file into place")
	}
	return nil
}

// copySpan byte-copies orig[begin:end) verbatim into out, preserving an
// unmodified message's exact on-disk representation across a REPLACE write.
func copySpan(out *os.File, orig *os.File, begin, end int64) error {
	if _, err := orig.Seek(begin, io.SeekStart); err != nil {
		return eris.Wrap(err, "mbox: seek to original span")
	}
	if _, err := io.CopyN(out, orig, end-begin); err != nil {
		return eris.Wrap(err, "mbox: copy original span")
	}
	return nil
}

// writeInplace truncates the file at the old begin-offset of the first
// modified, deleted or newly added message (for a new message: the end of
// the message before it) and rewrites the live messages from there to EOF.
// It fails fast (returning an error) if truncate is unavailable, letting
// callers fall back to REPLACE.
func (f *Folder) writeInplace() error {
	msgs := f.Messages(folder.All())
	firstDirty := -1
	for i, m := range msgs {
		if m.Modified() || m.Deleted() || m.Location().End == 0 {
			firstDirty = i
			break
		}
	}
	if firstDirty < 0 {
		return nil
	}

	truncateAt := msgs[firstDirty].Location().Begin
	if msgs[firstDirty].Location().End == 0 {
		truncateAt = 0
		if firstDirty > 0 {
			truncateAt = msgs[firstDirty-1].Location().End
		}
	}
	file, err := os.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		return eris.Wrap(err, "mbox: open for inplace write")
	}
	defer file.Close()

	if err := file.Truncate(truncateAt); err != nil {
		return eris.Wrap(err, "mbox: truncate unavailable")
	}
	if _, err := file.Seek(truncateAt, io.SeekStart); err != nil {
		return eris.Wrap(err, "mbox: seek to truncation point")
	}

	for _, m := range msgs[firstDirty:] {
		if m.Deleted() {
			continue
		}
		newBegin := truncateAt + currentOffsetFromStart(file, truncateAt)
		if err := f.writeOneMessage(file, m); err != nil {
			return err
		}
		newEnd := truncateAt + currentOffsetFromStart(file, truncateAt)
		m.SetLocation(message.Location{Begin: newBegin, End: newEnd})
	}
	return nil
}

func currentOffset(f *os.File) int64 {
	pos, _ := f.Seek(0, io.SeekCurrent)
	return pos
}

func currentOffsetFromStart(f *os.File, start int64) int64 {
	pos, _ := f.Seek(0, io.SeekCurrent)
	return pos - start
}

func (f *Folder) writeOneMessage(out *os.File, m *message.Message) error {
	fmt.Fprintf(out, "From mailbox %s\n", envelopeDate(m))

	if err := m.Head().Print(out); err != nil {
		return eris.Wrap(err, "mbox: write header")
	}

	if b := m.Body(); b != nil {
		rendered, err := body.Render(b)
		if err != nil {
			return eris.Wrap(err, "mbox: render body")
		}
		for _, l := range escapeFromLines(splitLines(string(rendered))) {
			if _, err := out.WriteString(l); err != nil {
				return eris.Wrap(err, "mbox: write body")
			}
		}
	}
	if _, err := out.WriteString(string(f.lineSeparator)); err != nil {
		return eris.Wrap(err, "mbox: write message separator newline")
	}
	return nil
}

func envelopeDate(m *message.Message) string {
	if dateField, ok := m.Head().GetFirst("date"); ok {
		if ts, ok := dateField.ParseDate(); ok {
			return ts.Format("Mon Jan _2 15:04:05 2006")
		}
	}
	return "Thu Jan  1 00:00:00 1970"
}

func (f *Folder) liveMessages() []*message.Message {
	return f.Messages(folder.Active())
}

// Close implements the shared close protocol from folder.Base.CloseWith,
// releasing the dot-lock (if any) after a successful write.
func (f *Folder) Close(policy folder.ClosePolicy) error {
	return f.CloseWith(policy, f, f.Write, func() error {
		if f.lock == nil {
			return nil
		}
		return f.lock.Unlock()
	})
}

// Delete removes the backing mbox file.
func (f *Folder) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "mbox: delete")
	}
	return nil
}

// CopyTo copies every live message into dst.
func (f *Folder) CopyTo(dst folder.Folder, opts folder.OpenOptions) error {
	for _, m := range f.liveMessages() {
		if err := m.CopyTo(dst); err != nil {
			return eris.Wrap(err, "mbox: copy message")
		}
	}
	return nil
}

// ListSubFolders lists the optional sibling directory used to simulate mbox
// subfolders (a directory named "<file>.sdb" or "<file>.d" per convention;
// here the sibling-directory extension is fixed to ".d").
func (f *Folder) ListSubFolders() ([]string, error) {
	subDir := f.path + ".d"
	entries, err := os.ReadDir(subDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "mbox: list subfolders")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	return names, nil
}

// OpenSubFolder opens name within this mbox file's sibling subfolder
// directory.
func (f *Folder) OpenSubFolder(name string) (folder.Folder, error) {
	subPath := filepath.Join(f.path+".d", name)
	return Open(subPath, folder.OpenOptions{AccessMode: "rw", Create: true})
}
