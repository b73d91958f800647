package manager

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/folder/maildir"
	"github.com/eslider/mailbox/folder/mbox"
	"github.com/eslider/mailbox/folder/mh"
	"github.com/eslider/mailbox/folder/pst"
)

// FolderClass adapts one concrete backend package to the Manager's registry:
// how to open it, how to create a new empty one, and how to recognize an
// existing path as belonging to this format.
type FolderClass interface {
	TypeName() string
	Open(name string, opts folder.OpenOptions) (folder.Folder, error)
	Create(name string, opts folder.OpenOptions) error
	FoundIn(name string, opts folder.OpenOptions) bool
}

type mboxClass struct{}

func (mboxClass) TypeName() string { return "mbox" }

func (mboxClass) Open(name string, opts folder.OpenOptions) (folder.Folder, error) {
	return mbox.Open(name, opts)
}

func (mboxClass) Create(name string, opts folder.OpenOptions) error {
	f, err := mbox.Open(name, folder.OpenOptions{AccessMode: "rw", Create: true})
	if err != nil {
		return err
	}
	return f.Close(folder.CloseAlways)
}

// FoundIn reports whether name is a plain file that is either empty or
// starts with the mbox "From " envelope line.
func (mboxClass) FoundIn(name string, opts folder.OpenOptions) bool {
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() == 0 {
		return true
	}
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	line, _ := bufio.NewReader(f).ReadString('\n')
	return strings.HasPrefix(line, "From ")
}

type mhClass struct{}

func (mhClass) TypeName() string { return "mh" }

func (mhClass) Open(name string, opts folder.OpenOptions) (folder.Folder, error) {
	return mh.Open(name, opts)
}

func (mhClass) Create(name string, opts folder.OpenOptions) error {
	f, err := mh.Open(name, folder.OpenOptions{AccessMode: "rw", Create: true})
	if err != nil {
		return err
	}
	return f.Close(folder.CloseAlways)
}

// FoundIn reports whether name is a directory whose non-dotfile entries are
// all strictly-positive integers (or the directory is empty, the ambiguous
// case we still prefer over Maildir/mbox since an MH folder starts empty
// too).
func (mhClass) FoundIn(name string, opts folder.OpenOptions) bool {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := os.ReadDir(name)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return false
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if n, err := strconv.Atoi(e.Name()); err != nil || n <= 0 {
			return false
		}
	}
	return true
}

type maildirClass struct{}

func (maildirClass) TypeName() string { return "maildir" }

func (maildirClass) Open(name string, opts folder.OpenOptions) (folder.Folder, error) {
	return maildir.Open(name, opts)
}

func (maildirClass) Create(name string, opts folder.OpenOptions) error {
	f, err := maildir.Open(name, folder.OpenOptions{AccessMode: "rw", Create: true})
	if err != nil {
		return err
	}
	return f.Close(folder.CloseAlways)
}

// FoundIn reports whether name is a directory containing all three of
// new/, cur/, tmp/.
func (maildirClass) FoundIn(name string, opts folder.OpenOptions) bool {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, sub := range []string{"new", "cur", "tmp"} {
		si, err := os.Stat(name + string(os.PathSeparator) + sub)
		if err != nil || !si.IsDir() {
			return false
		}
	}
	return true
}

type pstClass struct{}

func (pstClass) TypeName() string { return "pst" }

func (pstClass) Open(name string, opts folder.OpenOptions) (folder.Folder, error) {
	return pst.Open(name, opts)
}

// Create always fails: PST files are read-only and not created by this
// library.
func (pstClass) Create(name string, opts folder.OpenOptions) error {
	return folder.ErrReadOnly
}

// FoundIn reports whether name is a plain file carrying the PST magic
// signature "!BDN" at offset 0.
func (pstClass) FoundIn(name string, opts folder.OpenOptions) bool {
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, 4)
	if n, _ := f.Read(magic); n < 4 {
		return false
	}
	return string(magic) == "!BDN"
}

// defaultRegistry returns the backend classes in spec autodetection order:
// mbox, MH, Maildir, then PST last.
func defaultRegistry() []FolderClass {
	return []FolderClass{mboxClass{}, mhClass{}, maildirClass{}, pstClass{}}
}
