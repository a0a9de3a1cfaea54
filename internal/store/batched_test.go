package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_BuffersUntilCommit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore()

	require.NoError(t, batch.ReplaceFile(testFile("/a.pm"), []*Entry{sub("A", "x", 0)}))
	assert.Equal(t, 1, batch.Len())
	assert.Len(t, batch.Entries("/a.pm"), 1)

	got, err := s.EntriesByName("x")
	require.NoError(t, err)
	assert.Empty(t, got, "nothing reaches the database before commit")

	require.NoError(t, s.CommitBatch(batch))
	got, err = s.EntriesByName("x")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Zero(t, batch.Len(), "commit drains the buffer")
}

func TestBatchedStore_LastReplacementWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore()
	require.NoError(t, batch.ReplaceFile(testFile("/a.pm"), []*Entry{sub("A", "first", 0)}))
	require.NoError(t, batch.ReplaceFile(testFile("/a.pm"), []*Entry{sub("A", "second", 0)}))
	assert.Equal(t, 1, batch.Len())

	require.NoError(t, s.CommitBatch(batch))
	first, err := s.EntriesByName("first")
	require.NoError(t, err)
	assert.Empty(t, first)
	second, err := s.EntriesByName("second")
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestBatchedStore_PreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore()
	for _, p := range []string{"C", "A", "B"} {
		require.NoError(t, batch.ReplaceFile(testFile("/"+p+".pm"), []*Entry{sub(p, "same", 0)}))
	}
	require.NoError(t, s.CommitBatch(batch))

	got, err := s.EntriesByName("same")
	require.NoError(t, err)
	assert.Equal(t, []string{"C::same", "A::same", "B::same"}, names(got))
}

func TestBatchedStore_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/f%02d.pm", i)
			assert.NoError(t, batch.ReplaceFile(testFile(path), []*Entry{sub("P", "work", 0)}))
		}(i)
	}
	wg.Wait()

	require.NoError(t, s.CommitBatch(batch))
	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 20)
}

func TestCommitBatch_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.CommitBatch(NewBatchedStore()))
}
