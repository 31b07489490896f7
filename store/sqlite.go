package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// DB wraps an SQLite connection shared by every SQLite store. Each store
// occupies its own bucket in a single key/value table.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories. WAL mode is enabled for concurrent reads. Use ":memory:" for a
// throwaway database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent task completion.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the connection.
func (db *DB) Close() error { return db.conn.Close() }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		bucket     TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (bucket, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kv_bucket_seq ON kv(bucket, seq)`,
}

// Migrate applies pending schema migrations, tracked in schema_version.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		if _, err := db.conn.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := db.conn.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SQLite is a durable core.Store encoding values as JSON. List returns values
// in first-insertion order.
type SQLite[V any] struct {
	db     *DB
	bucket string
}

// NewSQLite returns a store over the given bucket.
func NewSQLite[V any](db *DB, bucket string) *SQLite[V] {
	return &SQLite[V]{db: db, bucket: bucket}
}

// Get decodes the value stored under key.
func (s *SQLite[V]) Get(key string) (V, error) {
	var zero V
	var raw string
	err := s.db.conn.QueryRow(`SELECT value FROM kv WHERE bucket = ? AND key = ?`, s.bucket, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, core.NewNotFoundError("store.SQLite.Get", s.bucket, key)
	}
	if err != nil {
		return zero, fmt.Errorf("query %s/%s: %w", s.bucket, key, err)
	}
	var v V
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.bucket, key, err)
	}
	return v, nil
}

// Put upserts the JSON encoding of value.
func (s *SQLite[V]) Put(key string, value V) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.bucket, key, err)
	}
	_, err = s.db.conn.Exec(`
		INSERT INTO kv (bucket, key, value, seq, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM kv WHERE bucket = ?), ?)
		ON CONFLICT(bucket, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.bucket, key, string(b), s.bucket, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Delete removes the value under key.
func (s *SQLite[V]) Delete(key string) error {
	res, err := s.db.conn.Exec(`DELETE FROM kv WHERE bucket = ? AND key = ?`, s.bucket, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.bucket, key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("store.SQLite.Delete", s.bucket, key)
	}
	return nil
}

// List decodes every value in the bucket.
func (s *SQLite[V]) List() ([]V, error) {
	rows, err := s.db.conn.Query(`SELECT value FROM kv WHERE bucket = ? ORDER BY seq`, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.bucket, err)
	}
	defer rows.Close()

	var out []V
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.bucket, err)
		}
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.bucket, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
