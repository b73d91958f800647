package maildir

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/message"
)

// Write delivers every message that has no file in this maildir yet via
// tmp-write + atomic rename into new, rewrites the flag suffix of every
// modified message (renaming it into cur/), and unlinks any message marked
// deleted. A message in new/ that has not been modified stays in new/, and
// Write adds no seen label to it.
func (f *Folder) Write(folder.WritePolicy) error {
	if !f.Modified() {
		return nil
	}
	if f.ReadOnly() {
		return folder.ErrReadOnly
	}

	for _, m := range f.Messages(folder.All()) {
		if m.Deleted() {
			if err := f.unlinkMessage(m); err != nil {
				return err
			}
			continue
		}
		if _, err := f.locateMessageFile(m.UniqueID()); err != nil {
			if err := f.deliverMessage(m); err != nil {
				return err
			}
			continue
		}
		if m.Modified() {
			if err := f.rewriteFlags(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliverMessage writes m to tmp/, then atomically renames it into new/,
// the standard Maildir delivery sequence.
func (f *Folder) deliverMessage(m *message.Message) error {
	key := newUniqueKey(time.Now())
	tmpPath := filepath.Join(f.dir, subTmp, key)

	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return eris.Wrap(err, "maildir: create tmp file")
	}
	if err := writeMessageBody(out, m); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "maildir: close tmp file")
	}

	newPath := filepath.Join(f.dir, subNew, key)
	if err := os.Rename(tmpPath, newPath); err != nil {
		return eris.Wrap(err, "maildir: rename into new")
	}
	m.SetUniqueID(key)
	return nil
}

func writeMessageBody(out *os.File, m *message.Message) error {
	if err := m.Head().Print(out); err != nil {
		return eris.Wrap(err, "maildir: write header")
	}
	if b := m.Body(); b != nil {
		rendered, err := body.Render(b)
		if err != nil {
			return eris.Wrap(err, "maildir: render body")
		}
		if _, err := out.Write(rendered); err != nil {
			return eris.Wrap(err, "maildir: write body")
		}
	}
	return nil
}

// rewriteFlags recomputes m's ":2,<FLAGS>" suffix from its current labels
// and renames its file into cur/ (moving it out of new/ if it was still
// there), since any label change implies the message has been looked at.
func (f *Folder) rewriteFlags(m *message.Message) error {
	oldPath, err := f.locateMessageFile(m.UniqueID())
	if err != nil {
		return err
	}

	flags := flagsForLabels(m.Labels())
	newName := m.UniqueID() + ":2," + flags
	newPath := filepath.Join(f.dir, subCur, newName)

	if oldPath == newPath {
		return nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return eris.Wrapf(err, "maildir: rewrite flags for %s", m.UniqueID())
	}
	return nil
}

// flagsForLabels renders a message's labels as a sorted Maildir flag
// string, e.g. seen+flagged -> "FS".
func flagsForLabels(labels map[string]string) string {
	set := make(map[byte]bool)
	for label := range labels {
		if flag, ok := labelToFlag[label]; ok {
			set[flag] = true
		}
	}
	var out []byte
	for i := 0; i < len(flagOrder); i++ {
		if set[flagOrder[i]] {
			out = append(out, flagOrder[i])
		}
	}
	return string(out)
}

// locateMessageFile finds the on-disk path for a message by its unique key,
// checking cur/ (with any flag suffix) then new/.
func (f *Folder) locateMessageFile(key string) (string, error) {
	curDir := filepath.Join(f.dir, subCur)
	entries, err := os.ReadDir(curDir)
	if err == nil {
		for _, e := range entries {
			if baseKey(e.Name()) == key {
				return filepath.Join(curDir, e.Name()), nil
			}
		}
	}
	newPath := filepath.Join(f.dir, subNew, key)
	if _, err := os.Stat(newPath); err == nil {
		return newPath, nil
	}
	return "", eris.Errorf("maildir: message file for %s not found", key)
}

func (f *Folder) unlinkMessage(m *message.Message) error {
	if m.UniqueID() == "" {
		return nil
	}
	path, err := f.locateMessageFile(m.UniqueID())
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "maildir: unlink")
	}
	return nil
}

// Close implements the shared close protocol from folder.Base.CloseWith.
func (f *Folder) Close(policy folder.ClosePolicy) error {
	return f.CloseWith(policy, f, f.Write, nil)
}

// Delete removes the entire Maildir directory tree.
func (f *Folder) Delete() error {
	if err := os.RemoveAll(f.dir); err != nil {
		return eris.Wrap(err, "maildir: delete")
	}
	return nil
}

// CopyTo copies every live message into dst.
func (f *Folder) CopyTo(dst folder.Folder, opts folder.OpenOptions) error {
	for _, m := range f.Messages(folder.Active()) {
		if err := m.CopyTo(dst); err != nil {
			return eris.Wrap(err, "maildir: copy message")
		}
	}
	return nil
}

// ListSubFolders lists Maildir++-style "." prefixed sibling directories
// (e.g. ".Sent", ".Trash") alongside this Maildir's parent.
func (f *Folder) ListSubFolders() ([]string, error) {
	parent := filepath.Dir(f.dir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, eris.Wrap(err, "maildir: list subfolders")
	}
	prefix := filepath.Base(f.dir) + "."
	var names []string
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			names = append(names, e.Name()[len(prefix):])
		}
	}
	sort.Strings(names)
	return names, nil
}

// OpenSubFolder opens name as a Maildir++ sibling directory.
func (f *Folder) OpenSubFolder(name string) (folder.Folder, error) {
	path := filepath.Join(filepath.Dir(f.dir), filepath.Base(f.dir)+"."+name)
	return Open(path, folder.OpenOptions{AccessMode: "rw", Create: true})
}
