package mh

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/head"
	"github.com/eslider/mailbox/message"
)

// Write persists every message that is new or modified since open to its
// own numbered file, and unlinks any message marked deleted. Policy is
// accepted for interface symmetry with mbox; MH has no replace-vs-inplace
// distinction since every message already lives in its own file.
func (f *Folder) Write(folder.WritePolicy) error {
	if !f.Modified() {
		return nil
	}
	if f.ReadOnly() {
		return folder.ErrReadOnly
	}

	for _, m := range f.Messages(folder.All()) {
		if m.Deleted() {
			if isMessageFilename(m.UniqueID()) {
				os.Remove(filepath.Join(f.dir, m.UniqueID()))
				if f.index != nil {
					f.index.Invalidate(m.UniqueID())
				}
			}
			continue
		}
		if !m.Modified() && isMessageFilename(m.UniqueID()) {
			continue
		}
		if err := f.writeMessage(m); err != nil {
			return err
		}
	}
	return nil
}

// isMessageFilename reports whether name is an MH message filename, a
// positive integer. A message whose unique ID is anything else has no file
// in the folder yet.
func isMessageFilename(name string) bool {
	n, err := strconv.Atoi(name)
	return err == nil && n > 0
}

func (f *Folder) writeMessage(m *message.Message) error {
	name := m.UniqueID()
	if !isMessageFilename(name) {
		n, err := nextFilename(f.dir)
		if err != nil {
			return err
		}
		name = n
	}
	path := filepath.Join(f.dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrapf(err, "mh: write message %s", name)
	}
	defer out.Close()

	inlineBody, err := f.prepareBody(m, name)
	if err != nil {
		return err
	}
	if err := m.Head().Print(out); err != nil {
		return eris.Wrap(err, "mh: write header")
	}
	if inlineBody != nil {
		if _, err := out.Write(inlineBody); err != nil {
			return eris.Wrap(err, "mh: write body")
		}
	}

	m.SetUniqueID(name)
	if f.index != nil {
		f.index.Invalidate(name)
	}
	return nil
}

// prepareBody renders m's body and, if it already lives in the blob store or
// grows past f.blobThreshold, overflows it: the payload is written to
// f.blobStore under a key derived from name and a blobKeyHeader/
// blobSizeHeader pair replaces it in m's header. It returns the bytes that
// should follow the header inline, or nil when the body was overflowed.
func (f *Folder) prepareBody(m *message.Message, name string) ([]byte, error) {
	b := m.Body()
	if b == nil {
		return nil, nil
	}
	if b.Kind == body.KindBlob {
		setHeaderField(m.Head(), blobKeyHeader, b.Blob.Key)
		setHeaderField(m.Head(), blobSizeHeader, strconv.FormatInt(b.Blob.Size, 10))
		return nil, nil
	}

	rendered, err := body.Render(b)
	if err != nil {
		return nil, eris.Wrap(err, "mh: render body")
	}

	if f.blobStore == nil || f.blobThreshold <= 0 || int64(len(rendered)) <= f.blobThreshold {
		m.Head().Reset(blobKeyHeader)
		m.Head().Reset(blobSizeHeader)
		return rendered, nil
	}

	plain, err := body.Lookup(b.TransferEncoding).Decode(rendered)
	if err != nil {
		plain = rendered
	}
	stored, err := body.StoreBlob(context.Background(), f.blobStore, blobKeyFor(f.dir, name), plain, b.MIMEType, b.TransferEncoding)
	if err != nil {
		return nil, eris.Wrap(err, "mh: store blob")
	}
	setHeaderField(m.Head(), blobKeyHeader, stored.Blob.Key)
	setHeaderField(m.Head(), blobSizeHeader, strconv.FormatInt(stored.Blob.Size, 10))
	return nil, nil
}

func setHeaderField(h *head.Head, name, value string) {
	fld, err := field.New(name, value, "")
	if err != nil {
		return
	}
	h.Set(name, fld)
}

// Close implements the shared close protocol from folder.Base.CloseWith,
// closing the header index and releasing the dot-lock (if any).
func (f *Folder) Close(policy folder.ClosePolicy) error {
	return f.CloseWith(policy, f, f.Write, func() error {
		if f.index != nil {
			if err := f.index.Close(); err != nil {
				return err
			}
		}
		if f.lock == nil {
			return nil
		}
		return f.lock.Unlock()
	})
}

// Delete removes the entire MH directory, including its index database.
func (f *Folder) Delete() error {
	if err := os.RemoveAll(f.dir); err != nil {
		return eris.Wrap(err, "mh: delete")
	}
	return nil
}

// CopyTo copies every live message into dst.
func (f *Folder) CopyTo(dst folder.Folder, opts folder.OpenOptions) error {
	for _, m := range f.Messages(folder.Active()) {
		if err := m.CopyTo(dst); err != nil {
			return eris.Wrap(err, "mh: copy message")
		}
	}
	return nil
}

// ListSubFolders lists child directories, the MH subfolder convention.
func (f *Folder) ListSubFolders() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, eris.Wrap(err, "mh: list subfolders")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OpenSubFolder opens name as a nested MH directory.
func (f *Folder) OpenSubFolder(name string) (folder.Folder, error) {
	return Open(filepath.Join(f.dir, name), folder.OpenOptions{AccessMode: "rw", Create: true})
}

// Compact renumbers every live message to a dense, strictly increasing
// sequence starting at 1, closing the gaps left by earlier deletions. It is
// never invoked implicitly by Write.
func (f *Folder) Compact() error {
	msgs := f.Messages(folder.Active())
	sort.Slice(msgs, func(i, j int) bool {
		ni, _ := strconv.Atoi(msgs[i].UniqueID())
		nj, _ := strconv.Atoi(msgs[j].UniqueID())
		return ni < nj
	})

	for i, m := range msgs {
		want := strconv.Itoa(i + 1)
		if m.UniqueID() == want {
			continue
		}
		oldPath := filepath.Join(f.dir, m.UniqueID())
		newPath := filepath.Join(f.dir, want)
		if err := os.Rename(oldPath, newPath); err != nil {
			return eris.Wrapf(err, "mh: compact rename %s to %s", oldPath, newPath)
		}
		if f.index != nil {
			f.index.Invalidate(m.UniqueID())
		}
		m.SetUniqueID(want)
	}
	return nil
}
