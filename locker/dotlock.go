package locker

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// DotLock implements the classic mbox dot-lock convention: create
// "<filename>.lock" with O_CREAT|O_EXCL, which is atomic on any POSIX
// filesystem (and on NFS, subject to the same caveats hardlink-based
// locking works around in NFSLock).
type DotLock struct {
	path    string
	expires time.Duration
	held    bool
}

// NewDotLock returns a DotLock guarding path, treating an existing lock
// file older than expires as stale (expires <= 0 disables staleness).
func NewDotLock(path string, expires time.Duration) *DotLock {
	return &DotLock{path: path, expires: expires}
}

func (d *DotLock) lockPath() string { return d.path + ".lock" }

func (d *DotLock) Name() string     { return "dotlock" }
func (d *DotLock) Filename() string { return d.path }
func (d *DotLock) HasLock() bool    { return d.held }

func (d *DotLock) IsLocked() (bool, error) {
	info, err := os.Stat(d.lockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrap(err, "locker: dotlock stat")
	}
	if isStale(info, d.expires) {
		return false, nil
	}
	return true, nil
}

func (d *DotLock) Lock(timeout time.Duration) error {
	return retryUntil(timeout, func() (bool, error) {
		info, statErr := os.Stat(d.lockPath())
		switch {
		case statErr == nil && !isStale(info, d.expires):
			// Lock file exists and isn't stale.
			return false, nil
		case statErr == nil:
			// Stale: clear it before trying to create our own.
			if err := os.Remove(d.lockPath()); err != nil && !os.IsNotExist(err) {
				return false, eris.Wrap(ErrStale, err.Error())
			}
		case !os.IsNotExist(statErr):
			return false, eris.Wrap(statErr, "locker: dotlock stat")
		}

		f, err := os.OpenFile(d.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return false, nil
			}
			return false, eris.Wrap(err, "locker: dotlock create")
		}
		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Close()
		d.held = true
		return true, nil
	})
}

func (d *DotLock) Unlock() error {
	if !d.held {
		return nil
	}
	if err := os.Remove(d.lockPath()); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "locker: dotlock remove")
	}
	d.held = false
	return nil
}
