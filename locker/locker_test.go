package locker_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eslider/mailbox/locker"
)

func TestDotLockExclusion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")

	a := locker.NewDotLock(path, 0)
	b := locker.NewDotLock(path, 0)

	if err := a.Lock(0); err != nil {
		t.Fatalf("a.Lock: %v", err)
	}
	if err := b.Lock(0); err == nil {
		t.Error("b.Lock should fail while a holds the lock")
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("a.Unlock: %v", err)
	}
	if err := b.Lock(0); err != nil {
		t.Errorf("b.Lock should succeed after a releases: %v", err)
	}
}

func TestDotLockStaleExpiry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")

	a := locker.NewDotLock(path, 1*time.Millisecond)
	if err := a.Lock(0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	b := locker.NewDotLock(path, 1*time.Millisecond)
	if err := b.Lock(0); err != nil {
		t.Errorf("b.Lock should treat a's lock as stale: %v", err)
	}
}

func TestNFSLockExclusion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")

	a := locker.NewNFSLock(path, 0)
	b := locker.NewNFSLock(path, 0)

	if err := a.Lock(0); err != nil {
		t.Fatalf("a.Lock: %v", err)
	}
	if err := b.Lock(0); err == nil {
		t.Error("b.Lock should fail while a holds the lock")
	}
	if err := a.Unlock(); err != nil {
		t.Fatal(err)
	}
}

func TestMultiLockAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbox")

	m := locker.NewMultiLock(path, locker.NewDotLock(path, 0), locker.NewFlockLock(path))
	if err := m.Lock(0); err != nil {
		t.Fatal(err)
	}
	if !m.HasLock() {
		t.Error("MultiLock.HasLock() = false after successful Lock")
	}
	if err := m.Unlock(); err != nil {
		t.Fatal(err)
	}
}
