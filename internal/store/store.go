package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the workspace index. The
// database lives in memory and is discarded on Close.
type Store struct {
	db *sql.DB
}

// NewStore opens a private in-memory SQLite database. Each connection to
// ":memory:" gets its own database, so the pool is pinned to a single
// connection.
func NewStore() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
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

// DB returns the underlying *sql.DB for use by QueryBuilder.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  uri             TEXT NOT NULL,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  package         TEXT NOT NULL DEFAULT '',
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_entries_file ON entries(file_id);
CREATE INDEX IF NOT EXISTS idx_entries_kind_name ON entries(kind, name);
CREATE INDEX IF NOT EXISTS idx_entries_package_name ON entries(package, name);
`

// DeleteFiles removes several files by path in one transaction. Unknown
// paths are ignored. It returns the number of files removed.
func (s *Store) DeleteFiles(paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := stringsToArgs(paths)
	rows, err := tx.Query("SELECT id FROM files WHERE path IN ("+placeholderList(len(paths))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("query files: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := deleteFileTx(tx, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ids), nil
}

func deleteFileTx(tx *sql.Tx, fileID int64) error {
	if _, err := tx.Exec("DELETE FROM entries WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
