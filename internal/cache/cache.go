// Package cache provides SQLite-backed persistence for the lifted class
// table. Spec §6 describes the cache as "a single opaque binary cache file
// of the class table (format is the lifter's)" — this module's lifter
// chooses gob encoding, and stores the resulting blob in a one-row-per-path
// SQLite table rather than a bare file, which gets WAL-mode durability and
// a content hash for free the way the teacher's metrics cache does.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cache manages the on-disk class-table cache database.
type Cache struct {
	db     *sql.DB
	dbPath string
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS class_table (
    cache_key  TEXT PRIMARY KEY,
    blob       BLOB NOT NULL,
    blob_hash  TEXT NOT NULL,
    input_format TEXT NOT NULL,
    sdk        TEXT NOT NULL,
    cached_at  TEXT NOT NULL
);
`

// Open opens or creates the cache database at the given path. It
// initializes the schema if the database is new.
func Open(dbPath string) (*Cache, error) {
	if err := ensureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &Cache{db: db, dbPath: dbPath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return c, nil
}

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}

func ensureParentDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.dbPath
}
