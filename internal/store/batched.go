package store

import "sync"

// BatchedStore buffers file replacements in memory. It implements
// DataStore so the indexer can write to it without knowing whether it is
// hitting SQLite or a buffer; CommitBatch later applies the buffer in a
// single transaction.
//
// Thread safety: the mutex protects the buffer. Replacing the same path
// twice keeps only the last replacement.
type BatchedStore struct {
	mu      sync.Mutex
	order   []string
	pending map[string]pendingFile
}

type pendingFile struct {
	file    File
	entries []*Entry
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty buffer.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{pending: make(map[string]pendingFile)}
}

func (b *BatchedStore) ReplaceFile(f *File, entries []*Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.pending[f.Path]; !seen {
		b.order = append(b.order, f.Path)
	}
	b.pending[f.Path] = pendingFile{file: *f, entries: entries}
	return nil
}

// Len returns the number of buffered files.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Entries returns the buffered entries of path, or nil.
func (b *BatchedStore) Entries(path string) []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[path].entries
}

// drain returns the buffered replacements in first-seen order and empties
// the buffer.
func (b *BatchedStore) drain() []pendingFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]pendingFile, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, b.pending[p])
	}
	b.order = nil
	b.pending = make(map[string]pendingFile)
	return out
}
