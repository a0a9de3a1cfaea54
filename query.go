package perlnav

import (
	"fmt"
	"strings"

	"github.com/jward/perlnav/internal/store"
)

// QueryBuilder provides read access to the workspace index. Lookups
// return every match in insertion order.
type QueryBuilder struct {
	store *store.Store
}

// subroutineKinds are the kinds callable by name. Constants are
// subroutines in Perl.
var subroutineKinds = []string{store.KindSubroutine, store.KindConstant}

// FindPackage returns the package declarations named name.
func (q *QueryBuilder) FindPackage(name string) ([]*Entry, error) {
	return q.store.EntriesByName(name, store.KindPackage)
}

// FindSubroutine returns the subroutines and constants named name in any
// package.
func (q *QueryBuilder) FindSubroutine(name string) ([]*Entry, error) {
	return q.store.EntriesByName(name, subroutineKinds...)
}

// FindPackageSubroutine returns the subroutines and constants named name
// declared in pkg.
func (q *QueryBuilder) FindPackageSubroutine(pkg, name string) ([]*Entry, error) {
	return q.store.EntriesByPackageName(pkg, name, subroutineKinds...)
}

// FindVariable returns package variables of pkg. name carries its sigil.
func (q *QueryBuilder) FindVariable(pkg, name string) ([]*Entry, error) {
	return q.store.EntriesByPackageName(pkg, name, store.KindVariable)
}

// SearchSymbols matches pattern against plain and package-qualified names.
// `*` matches any run of characters; a pattern without one matches names
// containing it. Empty kinds searches every kind; limit <= 0 is unbounded.
func (q *QueryBuilder) SearchSymbols(pattern string, kinds []string, limit int) ([]*Entry, error) {
	if pattern == "" {
		pattern = "*"
	} else if !strings.Contains(pattern, "*") {
		pattern = "*" + pattern + "*"
	}
	return q.store.SearchEntries(pattern, kinds, limit)
}

// SymbolsInFile returns the entries declared by path in source order, or
// nil when the file is not indexed.
func (q *QueryBuilder) SymbolsInFile(path string) ([]*Entry, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("symbols in file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.EntriesByFile(f.ID)
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	return q.store.Files()
}

// Summary counts what the index holds.
type Summary struct {
	Files   int            `json:"files"`
	Entries map[string]int `json:"entries"`
}

// Summary returns the number of files and of entries per kind. Every kind
// is present in Entries.
func (q *QueryBuilder) Summary() (*Summary, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	counts, err := q.store.CountEntries()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	for _, kind := range store.AllKinds {
		if _, ok := counts[kind]; !ok {
			counts[kind] = 0
		}
	}
	return &Summary{Files: len(files), Entries: counts}, nil
}
