//go:build unix

package locker

import (
	"os"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// FcntlLock takes a POSIX advisory record lock (F_SETLK) on the whole of an
// open file descriptor, released automatically if the process exits or the
// descriptor is closed.
type FcntlLock struct {
	path string
	f    *os.File
	held bool
}

// NewFcntlLock returns an FcntlLock guarding path.
func NewFcntlLock(path string) *FcntlLock {
	return &FcntlLock{path: path}
}

func (l *FcntlLock) Name() string     { return "fcntl" }
func (l *FcntlLock) Filename() string { return l.path }
func (l *FcntlLock) HasLock() bool    { return l.held }

func (l *FcntlLock) flockT() syscall.Flock_t {
	return syscall.Flock_t{
		Type:   syscall.F_WRLCK,
		Whence: 0, // SEEK_SET
		Start:  0,
		Len:    0, // whole file
	}
}

func (l *FcntlLock) IsLocked() (bool, error) {
	if l.held {
		return true, nil
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return false, eris.Wrap(err, "locker: fcntl open")
	}
	defer f.Close()

	lk := l.flockT()
	if err := syscall.FcntlFlock(f.Fd(), syscall.F_GETLK, &lk); err != nil {
		return false, eris.Wrap(err, "locker: fcntl getlk")
	}
	return lk.Type != syscall.F_UNLCK, nil
}

func (l *FcntlLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return eris.Wrap(err, "locker: fcntl open")
	}

	err = retryUntil(timeout, func() (bool, error) {
		lk := l.flockT()
		ferr := syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, &lk)
		if ferr == nil {
			return true, nil
		}
		if ferr == syscall.EACCES || ferr == syscall.EAGAIN {
			return false, nil
		}
		return false, eris.Wrap(ferr, "locker: fcntl setlk")
	})
	if err != nil {
		f.Close()
		return err
	}
	l.f = f
	l.held = true
	return nil
}

func (l *FcntlLock) Unlock() error {
	if !l.held {
		return nil
	}
	lk := l.flockT()
	lk.Type = syscall.F_UNLCK
	if err := syscall.FcntlFlock(l.f.Fd(), syscall.F_SETLK, &lk); err != nil {
		l.f.Close()
		return eris.Wrap(err, "locker: fcntl unlock")
	}
	err := l.f.Close()
	l.held = false
	l.f = nil
	if err != nil {
		return eris.Wrap(err, "locker: fcntl close")
	}
	return nil
}
