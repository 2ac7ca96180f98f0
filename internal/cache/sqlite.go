package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// SQLiteCache persists entries in a single SQLite table
//
// Writes use INSERT ... ON CONFLICT DO NOTHING, so the first value stored
// under a key is the one every later reader sees.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the cache database at path
// Use ":memory:" for a private in-process database.
func NewSQLiteCache(path string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if path == ":memory:" {
		// Each new connection to :memory: would be a fresh database
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get retrieves a live value
func (c *SQLiteCache) Get(key string) ([]byte, bool) {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRow(`SELECT value, expires_at FROM entries WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		return nil, false
	}
	if expiresAt > 0 && c.now().Unix() > expiresAt {
		_, _ = c.db.Exec(`DELETE FROM entries WHERE key = ?`, key)
		return nil, false
	}
	return value, true
}

// Set stores a value unless the key already holds a live one
func (c *SQLiteCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = c.now().Add(ttl).Unix()
	}

	// Expired rows would otherwise block the insert below
	if _, err := c.db.Exec(`DELETE FROM entries WHERE key = ? AND expires_at > 0 AND expires_at < ?`, key, c.now().Unix()); err != nil {
		return fmt.Errorf("evict expired entry: %w", err)
	}

	_, err := c.db.Exec(`INSERT INTO entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a value
func (c *SQLiteCache) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM entries WHERE key = ?`, key)
	return err
}

// Clear removes all values
func (c *SQLiteCache) Clear() error {
	_, err := c.db.Exec(`DELETE FROM entries`)
	return err
}

// Close closes the database
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
