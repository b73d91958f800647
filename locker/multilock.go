package locker

import (
	"time"

	"github.com/rotisserie/eris"
)

// MultiLock requires every member Locker to succeed; if any fails, it
// unwinds the ones it already acquired before returning the error.
type MultiLock struct {
	path    string
	members []Locker
	held    bool
}

// NewMultiLock composes members into an all-or-nothing lock over path.
func NewMultiLock(path string, members ...Locker) *MultiLock {
	return &MultiLock{path: path, members: members}
}

func (m *MultiLock) Name() string     { return "multi" }
func (m *MultiLock) Filename() string { return m.path }
func (m *MultiLock) HasLock() bool    { return m.held }

func (m *MultiLock) IsLocked() (bool, error) {
	for _, member := range m.members {
		locked, err := member.IsLocked()
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
	}
	return false, nil
}

func (m *MultiLock) Lock(timeout time.Duration) error {
	acquired := make([]Locker, 0, len(m.members))
	for _, member := range m.members {
		if err := member.Lock(timeout); err != nil {
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].Unlock()
			}
			return eris.Wrapf(err, "locker: multi failed acquiring %s", member.Name())
		}
		acquired = append(acquired, member)
	}
	m.held = true
	return nil
}

func (m *MultiLock) Unlock() error {
	if !m.held {
		return nil
	}
	var firstErr error
	for i := len(m.members) - 1; i >= 0; i-- {
		if err := m.members[i].Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.held = false
	return firstErr
}
