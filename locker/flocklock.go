package locker

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// FlockLock takes a BSD flock(2) advisory lock via github.com/gofrs/flock,
// whole-file and released when the descriptor closes.
type FlockLock struct {
	path string
	fl   *flock.Flock
	held bool
}

// NewFlockLock returns a FlockLock guarding "<path>.lock".
func NewFlockLock(path string) *FlockLock {
	return &FlockLock{path: path, fl: flock.New(path + ".lock")}
}

func (l *FlockLock) Name() string     { return "flock" }
func (l *FlockLock) Filename() string { return l.path }
func (l *FlockLock) HasLock() bool    { return l.held }

func (l *FlockLock) IsLocked() (bool, error) {
	if l.held {
		return true, nil
	}
	locked, err := l.fl.TryLock()
	if err != nil {
		return false, eris.Wrap(err, "locker: flock trylock probe")
	}
	if locked {
		// We just acquired it ourselves; release immediately since this was
		// only a probe.
		l.fl.Unlock()
		return false, nil
	}
	return true, nil
}

func (l *FlockLock) Lock(timeout time.Duration) error {
	if timeout <= 0 {
		ok, err := l.fl.TryLock()
		if err != nil {
			return eris.Wrap(err, "locker: flock trylock")
		}
		if !ok {
			return ErrTimeout
		}
		l.held = true
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := l.fl.TryLockContext(ctx, retryInterval)
	if err != nil {
		return eris.Wrap(err, "locker: flock trylock context")
	}
	if !ok {
		return ErrTimeout
	}
	l.held = true
	return nil
}

func (l *FlockLock) Unlock() error {
	if !l.held {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return eris.Wrap(err, "locker: flock unlock")
	}
	l.held = false
	return nil
}
