// Package locker provides the pluggable folder-locking strategies a backend
// chooses between: dot-lock, NFS-safe hardlink, POSIX fcntl record locks,
// BSD-style flock, an external mutt_dotlock helper, and a composite that
// requires all of several to succeed.
package locker

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// Locker guards exclusive access to a folder's backing file or directory.
type Locker interface {
	// Lock attempts to acquire the lock, retrying once per second until
	// timeout elapses. A zero timeout means try exactly once.
	Lock(timeout time.Duration) error
	// Unlock releases a lock this Locker holds. Unlocking an unheld lock is
	// a no-op, not an error.
	Unlock() error
	// HasLock reports whether this Locker instance currently holds the lock.
	HasLock() bool
	// IsLocked reports whether anyone (possibly another process) holds the
	// lock, without acquiring it.
	IsLocked() (bool, error)
	// Filename returns the path the lock is taken against.
	Filename() string
	// Name identifies the locking strategy ("dotlock", "nfs", "fcntl",
	// "flock", "mutt", "multi").
	Name() string
}

// retryInterval is the pause between acquisition attempts, matching the
// teacher's own connection-retry cadence in internal/sync/imap/imap.go.
const retryInterval = 1 * time.Second

// ErrTimeout is returned when Lock could not acquire within its deadline.
var ErrTimeout = eris.New("locker: timed out waiting for lock")

// ErrStale is returned when a lock file was detected as stale (older than
// its configured expiry) but could not be removed to make way for a fresh
// acquisition.
var ErrStale = eris.New("locker: stale lock file could not be removed")

// retryUntil calls attempt repeatedly, sleeping retryInterval between
// tries, until it succeeds, returns a non-nil error, or timeout elapses.
func retryUntil(timeout time.Duration, attempt func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := attempt()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(retryInterval)
	}
}

// isStale reports whether a lock file's age exceeds expires. expires <= 0
// disables staleness checking.
func isStale(info os.FileInfo, expires time.Duration) bool {
	if expires <= 0 {
		return false
	}
	return time.Since(info.ModTime()) > expires
}
