// Package blobstore holds oversized message body payloads out of line from
// a folder's own storage, keyed by an opaque string the folder backend
// chooses (typically derived from folder name + message unique ID).
package blobstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a key has no stored blob.
var ErrNotFound = eris.New("blobstore: not found")

// Store reads and writes blobs by key. Keys use forward slashes.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// FSStore stores blobs under a local directory root.
type FSStore struct {
	root string
}

// NewFSStore returns a Store rooted at root. No directory is created here;
// Write creates the directories a blob needs when it stores it.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: filepath.Clean(root)}
}

func (f *FSStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *FSStore) Write(ctx context.Context, key string, data []byte) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return eris.Wrap(err, "blobstore: mkdir")
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return eris.Wrap(err, "blobstore: write")
	}
	return nil
}

func (f *FSStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "blobstore: read")
	}
	return data, nil
}

func (f *FSStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "blobstore: delete")
	}
	return nil
}

func (f *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := f.path(prefix)
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "blobstore: list")
	}
	return keys, nil
}
