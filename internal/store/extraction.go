package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// --- File operations ---

// ReplaceFile stores f and replaces every entry it owned with entries, in
// one transaction. The file is the unit of replacement: readers see either
// the old set or the new one. f.ID and each entry's ID and FileID are set
// on success.
func (s *Store) ReplaceFile(f *File, entries []*Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace file: begin: %w", err)
	}
	defer tx.Rollback()

	if err := replaceFileTx(tx, f, entries); err != nil {
		return fmt.Errorf("replace file %s: %w", f.Path, err)
	}
	return tx.Commit()
}

func replaceFileTx(tx *sql.Tx, f *File, entries []*Entry) error {
	err := tx.QueryRow(
		`INSERT INTO files (path, uri, hash, last_indexed) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET uri = excluded.uri, hash = excluded.hash,
			last_indexed = excluded.last_indexed
		 RETURNING id`,
		f.Path, f.URI, f.Hash, f.LastIndexed,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM entries WHERE file_id = ?", f.ID); err != nil {
		return fmt.Errorf("delete old entries: %w", err)
	}
	for _, e := range entries {
		e.FileID = f.ID
		id, err := insertEntryTx(tx, e)
		if err != nil {
			return fmt.Errorf("insert %s %q: %w", e.Kind, e.Name, err)
		}
		e.ID = id
		e.Path, e.URI = f.Path, f.URI
	}
	return nil
}

func insertEntryTx(tx *sql.Tx, e *Entry) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO entries (file_id, kind, name, package, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FileID, e.Kind, e.Name, e.Package, e.StartLine, e.StartCol, e.EndLine, e.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const fileCols = "id, path, uri, hash, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var indexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.URI, &hash, &indexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LastIndexed = indexed.Time
	return f, nil
}

// FileByPath returns the file stored under path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Entry operations ---

// EntryCols is the column list for entry queries joined with files,
// exported for use by QueryBuilder.
const EntryCols = `e.id, e.file_id, e.kind, e.name, e.package,
	e.start_line, e.start_col, e.end_line, e.end_col, f.path, f.uri`

// EntryFrom is the FROM clause matching EntryCols.
const EntryFrom = "entries e JOIN files f ON f.id = e.file_id"

// ScanEntryRow scans a row selected with EntryCols.
func ScanEntryRow(scanner interface{ Scan(...any) error }) (*Entry, error) {
	e := &Entry{}
	err := scanner.Scan(
		&e.ID, &e.FileID, &e.Kind, &e.Name, &e.Package,
		&e.StartLine, &e.StartCol, &e.EndLine, &e.EndCol, &e.Path, &e.URI,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// queryEntries selects entries matching where in insertion order. tail is
// appended after the ORDER BY clause.
func (s *Store) queryEntries(where, tail string, args ...any) ([]*Entry, error) {
	rows, err := s.db.Query("SELECT "+EntryCols+" FROM "+EntryFrom+" WHERE "+where+" ORDER BY e.id"+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		e, err := ScanEntryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EntriesByName returns entries with the given name whose kind is one of
// kinds, in insertion order.
func (s *Store) EntriesByName(name string, kinds ...string) ([]*Entry, error) {
	where, args := kindFilter(kinds)
	entries, err := s.queryEntries("e.name = ?"+where, "", append([]any{name}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("entries by name: %w", err)
	}
	return entries, nil
}

// EntriesByPackageName returns entries declared in pkg with the given name.
func (s *Store) EntriesByPackageName(pkg, name string, kinds ...string) ([]*Entry, error) {
	where, args := kindFilter(kinds)
	entries, err := s.queryEntries("e.package = ? AND e.name = ?"+where, "", append([]any{pkg, name}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("entries by package and name: %w", err)
	}
	return entries, nil
}

// EntriesByFile returns every entry owned by a file, in source order.
func (s *Store) EntriesByFile(fileID int64) ([]*Entry, error) {
	entries, err := s.queryEntries("e.file_id = ?", "", fileID)
	if err != nil {
		return nil, fmt.Errorf("entries by file: %w", err)
	}
	return entries, nil
}

// CountEntries returns the number of entries per kind.
func (s *Store) CountEntries() (map[string]int, error) {
	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM entries GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func kindFilter(kinds []string) (string, []any) {
	if len(kinds) == 0 {
		return "", nil
	}
	return " AND e.kind IN (" + placeholderList(len(kinds)) + ")", stringsToArgs(kinds)
}

// likeEscape escapes LIKE wildcards in s using backslash.
func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchEntries returns entries whose name or qualified name matches a `*`
// glob, optionally restricted to kinds. limit <= 0 means no limit.
func (s *Store) SearchEntries(glob string, kinds []string, limit int) ([]*Entry, error) {
	pattern := globToLike(glob)
	where := `(e.name LIKE ? ESCAPE '\' OR (e.package || '::' || e.name) LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	kw, kargs := kindFilter(kinds)
	where += kw
	args = append(args, kargs...)
	tail := ""
	if limit > 0 {
		tail = " LIMIT ?"
		args = append(args, limit)
	}
	entries, err := s.queryEntries(where, tail, args...)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return entries, nil
}
