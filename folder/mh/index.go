package mh

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eslider/mailbox/parser"
)

const indexDBFile = ".mh_index.sqlite"

const createIndexSQL = `
CREATE TABLE IF NOT EXISTS headers (
	filename    TEXT PRIMARY KEY,
	mtime_unix  INTEGER NOT NULL,
	header_end  INTEGER NOT NULL,
	fields_json TEXT NOT NULL
);
`

// IndexEntry is one folder's cached header for a message file.
type IndexEntry struct {
	HeaderEnd int64
	Fields    []parser.HeaderField
}

// Index is a per-folder SQLite cache of parsed headers keyed by filename,
// invalidated by file modification time. It lets Folder.Open skip reparsing
// a message's RFC822 header when the underlying file hasn't changed.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates dir's index database.
func OpenIndex(dir string) (*Index, error) {
	dbPath := filepath.Join(dir, indexDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createIndexSQL); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close releases the index's database connection.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Lookup returns the cached header for filename if the index row's recorded
// mtime still matches the file on disk.
func (idx *Index) Lookup(filename, path string) (IndexEntry, bool) {
	if idx == nil {
		return IndexEntry{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return IndexEntry{}, false
	}

	var mtimeUnix int64
	var headerEnd int64
	var fieldsJSON string
	row := idx.db.QueryRow(
		`SELECT mtime_unix, header_end, fields_json FROM headers WHERE filename = ?`,
		filename,
	)
	if err := row.Scan(&mtimeUnix, &headerEnd, &fieldsJSON); err != nil {
		return IndexEntry{}, false
	}
	if mtimeUnix != info.ModTime().Unix() {
		return IndexEntry{}, false
	}

	var fields []parser.HeaderField
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return IndexEntry{}, false
	}
	return IndexEntry{HeaderEnd: headerEnd, Fields: fields}, true
}

// Store records filename's parsed header and the file's current mtime, so a
// future Lookup can skip reparsing it as long as the file is unchanged.
func (idx *Index) Store(filename, path string, fields []parser.HeaderField, headerEnd int64) {
	if idx == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return
	}
	idx.db.Exec(
		`INSERT INTO headers (filename, mtime_unix, header_end, fields_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET mtime_unix = excluded.mtime_unix,
			header_end = excluded.header_end, fields_json = excluded.fields_json`,
		filename, info.ModTime().Unix(), headerEnd, string(fieldsJSON),
	)
}

// Invalidate removes filename's cached header, forcing a reparse on next
// Lookup (used after a message is rewritten, e.g. by Write or Compact).
func (idx *Index) Invalidate(filename string) {
	if idx == nil {
		return
	}
	idx.db.Exec(`DELETE FROM headers WHERE filename = ?`, filename)
}
