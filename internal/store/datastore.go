package store

// DataStore is the write side used while indexing. Store applies each
// replacement immediately; BatchedStore buffers replacements from parallel
// workers and commits them together.
type DataStore interface {
	// ReplaceFile atomically replaces everything recorded for f.Path.
	ReplaceFile(f *File, entries []*Entry) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
