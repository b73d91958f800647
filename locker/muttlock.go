package locker

import (
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
)

// MuttLock shells out to the external mutt_dotlock helper, for folders
// shared with a mutt/mbox toolchain that expects its own lock convention.
type MuttLock struct {
	path   string
	binary string
	held   bool
}

// NewMuttLock returns a MuttLock guarding path, invoking binary (typically
// "mutt_dotlock" resolved via PATH).
func NewMuttLock(path, binary string) *MuttLock {
	if binary == "" {
		binary = "mutt_dotlock"
	}
	return &MuttLock{path: path, binary: binary}
}

func (l *MuttLock) Name() string     { return "mutt" }
func (l *MuttLock) Filename() string { return l.path }
func (l *MuttLock) HasLock() bool    { return l.held }

func (l *MuttLock) IsLocked() (bool, error) {
	cmd := exec.Command(l.binary, "-t", l.path)
	err := cmd.Run()
	// mutt_dotlock -t returns 0 if the file is NOT locked.
	return err != nil, nil
}

func (l *MuttLock) Lock(timeout time.Duration) error {
	return retryUntil(timeout, func() (bool, error) {
		cmd := exec.Command(l.binary, l.path)
		if err := cmd.Run(); err != nil {
			return false, nil
		}
		l.held = true
		return true, nil
	})
}

func (l *MuttLock) Unlock() error {
	if !l.held {
		return nil
	}
	cmd := exec.Command(l.binary, "-u", l.path)
	if err := cmd.Run(); err != nil {
		return eris.Wrap(err, "locker: mutt_dotlock -u")
	}
	l.held = false
	return nil
}
