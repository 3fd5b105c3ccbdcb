// Package store is the SQLite analysis cache: the declaration forest for
// every analyzed file, keyed by path and content hash, so unchanged files
// can be reloaded instead of re-parsed.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the analysis cache.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the cache tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Reset drops every cache table and recreates the schema.
func (s *Store) Reset() error {
	_, err := s.db.Exec(`
DROP TABLE IF EXISTS declaration_attrs;
DROP TABLE IF EXISTS declarations;
DROP TABLE IF EXISTS files;
`)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return s.Migrate()
}

const schemaDDL = `
-- AUTOINCREMENT so deleted file/declaration IDs are never reissued: a
-- caller holding a stale ID must read nothing, not another row's data.
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS declarations (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  parent_id       INTEGER REFERENCES declarations(id),
  ordinal         INTEGER NOT NULL,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  docstring       TEXT,
  return_type     TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

-- Ordered list-valued fields of a declaration: decorators, bases,
-- arguments, calls, assignments. One row per element.
CREATE TABLE IF NOT EXISTS declaration_attrs (
  id              INTEGER PRIMARY KEY,
  declaration_id  INTEGER NOT NULL REFERENCES declarations(id),
  kind            TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_declarations_file ON declarations(file_id);
CREATE INDEX IF NOT EXISTS idx_declarations_parent ON declarations(parent_id);
CREATE INDEX IF NOT EXISTS idx_declarations_name ON declarations(name);
CREATE INDEX IF NOT EXISTS idx_attrs_declaration ON declaration_attrs(declaration_id);
`
