// Package manager implements the folder-type registry, open-folder set, and
// cross-folder message routing described by spec.md §4.10.
package manager

import (
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/reporter"
	"github.com/eslider/mailbox/thread"
)

// OpenSpec describes a folder open request. Type, if non-empty, forces a
// specific backend instead of autodetection.
type OpenSpec struct {
	Name    string
	Type    string
	Options folder.OpenOptions
}

// Manager tracks the registry of folder backends, the set of currently open
// folders (keyed by name), and the thread managers built over them.
type Manager struct {
	mu       sync.RWMutex
	registry []FolderClass
	open     map[string]folder.Folder
	threads  map[string]*thread.Manager
	Reporter reporter.Reporter
}

// New returns a Manager with the default backend registry in spec
// autodetection order (mbox, MH, Maildir, then PST).
func New() *Manager {
	return &Manager{
		registry: defaultRegistry(),
		open:     make(map[string]folder.Folder),
		threads:  make(map[string]*thread.Manager),
		Reporter: reporter.New(nil, "manager"),
	}
}

// Register appends cls to the end of the autodetection registry, after the
// defaults. Every Manager from New starts with the defaults, so a
// registered class is consulted only after them.
func (mgr *Manager) Register(cls FolderClass) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.registry = append(mgr.registry, cls)
}

// Open resolves and opens a folder per spec:
//  1. If spec.Type is set, use that backend directly; on failure, if
//     Options.Create, call its Create then retry Open.
//  2. Else walk the registry in order calling FoundIn; first match opens.
//  3. If nothing matches and the open is writable, create a folder of the
//     first registered (default) type.
//
// An already-open folder with the same name is returned as-is.
func (mgr *Manager) Open(spec OpenSpec) (folder.Folder, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if existing, ok := mgr.open[spec.Name]; ok {
		mgr.Reporter.Notice("folder %s already open, returning existing handle", spec.Name)
		return existing, nil
	}

	if spec.Type != "" {
		cls, ok := mgr.classByName(spec.Type)
		if !ok {
			return nil, eris.Errorf("manager: unknown folder type %q", spec.Type)
		}
		f, err := mgr.openWithClass(cls, spec)
		if err != nil {
			return nil, err
		}
		mgr.open[spec.Name] = f
		return f, nil
	}

	for _, cls := range mgr.registry {
		if cls.FoundIn(spec.Name, spec.Options) {
			f, err := cls.Open(spec.Name, spec.Options)
			if err != nil {
				return nil, eris.Wrapf(err, "manager: open %s as %s", spec.Name, cls.TypeName())
			}
			mgr.open[spec.Name] = f
			return f, nil
		}
	}

	if spec.Options.AccessMode == "r" {
		if _, statErr := os.Stat(spec.Name); statErr != nil {
			return nil, eris.Wrapf(folder.ErrFolderMissing, "manager: %s", spec.Name)
		}
		return nil, eris.Wrapf(folder.ErrFolderTypeUnknown, "manager: %s", spec.Name)
	}
	if len(mgr.registry) == 0 {
		return nil, eris.New("manager: no folder classes registered")
	}
	f, err := mgr.openWithClass(mgr.registry[0], spec)
	if err != nil {
		return nil, err
	}
	mgr.open[spec.Name] = f
	return f, nil
}

func (mgr *Manager) classByName(name string) (FolderClass, bool) {
	for _, cls := range mgr.registry {
		if cls.TypeName() == name {
			return cls, true
		}
	}
	return nil, false
}

func (mgr *Manager) openWithClass(cls FolderClass, spec OpenSpec) (folder.Folder, error) {
	f, err := cls.Open(spec.Name, spec.Options)
	if err == nil {
		return f, nil
	}
	if !spec.Options.Create {
		return nil, eris.Wrapf(err, "manager: open %s as %s", spec.Name, cls.TypeName())
	}
	if createErr := cls.Create(spec.Name, spec.Options); createErr != nil {
		return nil, eris.Wrapf(createErr, "manager: create %s as %s", spec.Name, cls.TypeName())
	}
	f, err = cls.Open(spec.Name, spec.Options)
	if err != nil {
		return nil, eris.Wrapf(err, "manager: reopen %s after create", spec.Name)
	}
	return f, nil
}

// OpenFolders returns every currently open folder by name.
func (mgr *Manager) OpenFolders() map[string]folder.Folder {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	out := make(map[string]folder.Folder, len(mgr.open))
	for name, f := range mgr.open {
		out[name] = f
	}
	return out
}

// CloseFolder closes and forgets the folder at name, if open.
func (mgr *Manager) CloseFolder(name string, policy folder.ClosePolicy) error {
	mgr.mu.Lock()
	f, ok := mgr.open[name]
	if ok {
		delete(mgr.open, name)
	}
	mgr.mu.Unlock()
	if !ok {
		return nil
	}
	return f.Close(policy)
}

// CloseAll closes every open folder, collecting the first error.
func (mgr *Manager) CloseAll(policy folder.ClosePolicy) error {
	mgr.mu.Lock()
	folders := mgr.open
	mgr.open = make(map[string]folder.Folder)
	mgr.mu.Unlock()

	var firstErr error
	for _, f := range folders {
		if err := f.Close(policy); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AppendMessages opens or reuses the target folder and writes msgs into it.
func (mgr *Manager) AppendMessages(target string, msgs []*message.Message, opts folder.OpenOptions) error {
	f, err := mgr.Open(OpenSpec{Name: target, Options: opts})
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := f.AddMessage(m); err != nil {
			return eris.Wrapf(err, "manager: append to %s", target)
		}
	}
	return f.Write(folder.WriteDefault)
}

// CopyMessage copies m into the target folder; Message.CopyTo runs it
// through message.Coerce so a Mbox<->Maildir/MH crossing gets whatever
// envelope/flag remapping Coerce performs.
func (mgr *Manager) CopyMessage(target string, m *message.Message, opts folder.OpenOptions) error {
	f, err := mgr.Open(OpenSpec{Name: target, Options: opts})
	if err != nil {
		return err
	}
	if err := m.CopyTo(f); err != nil {
		return eris.Wrapf(err, "manager: copy to %s", target)
	}
	return f.Write(folder.WriteDefault)
}

// MoveMessage copies m into the target folder then deletes the source.
func (mgr *Manager) MoveMessage(target string, m *message.Message, opts folder.OpenOptions) error {
	if err := mgr.CopyMessage(target, m, opts); err != nil {
		return err
	}
	m.Delete()
	return nil
}

// ThreadManager returns (creating if necessary) the thread manager that
// threads the given folder names together.
func (mgr *Manager) ThreadManager(key string, folders ...folder.Folder) *thread.Manager {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if tm, ok := mgr.threads[key]; ok {
		return tm
	}
	tm := thread.NewManager(folders...)
	mgr.threads[key] = tm
	return tm
}
