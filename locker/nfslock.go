package locker

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// NFSLock implements the classic NFS-safe locking recipe: write a uniquely
// named temp file, hard-link it to the lock name (link's return value is
// authoritative on NFS even when the client can't trust create's), then
// stat the temp file to confirm the link count reached 2.
type NFSLock struct {
	path    string
	expires time.Duration
	held    bool
	tmpPath string
}

// NewNFSLock returns an NFSLock guarding path.
func NewNFSLock(path string, expires time.Duration) *NFSLock {
	return &NFSLock{path: path, expires: expires}
}

func (n *NFSLock) lockPath() string { return n.path + ".lock" }

func (n *NFSLock) Name() string     { return "nfs" }
func (n *NFSLock) Filename() string { return n.path }
func (n *NFSLock) HasLock() bool    { return n.held }

func (n *NFSLock) IsLocked() (bool, error) {
	info, err := os.Stat(n.lockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrap(err, "locker: nfslock stat")
	}
	if isStale(info, n.expires) {
		return false, nil
	}
	return true, nil
}

func (n *NFSLock) Lock(timeout time.Duration) error {
	return retryUntil(timeout, func() (bool, error) {
		if locked, err := n.IsLocked(); err != nil {
			return false, err
		} else if locked {
			return false, nil
		}
		os.Remove(n.lockPath())

		tmp := fmt.Sprintf("%s.%d.%d", n.path, os.Getpid(), time.Now().UnixNano())
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return false, eris.Wrap(err, "locker: nfslock create temp")
		}
		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Close()
		defer os.Remove(tmp)

		if err := os.Link(tmp, n.lockPath()); err != nil {
			// Another process won the race.
			return false, nil
		}
		info, err := os.Stat(tmp)
		if err != nil {
			return false, eris.Wrap(err, "locker: nfslock stat temp")
		}
		if !linkCountAtLeastTwo(info) {
			os.Remove(n.lockPath())
			return false, nil
		}
		n.tmpPath = tmp
		n.held = true
		return true, nil
	})
}

func (n *NFSLock) Unlock() error {
	if !n.held {
		return nil
	}
	if err := os.Remove(n.lockPath()); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "locker: nfslock remove")
	}
	n.held = false
	return nil
}
