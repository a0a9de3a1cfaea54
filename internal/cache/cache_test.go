package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jward/perlnav/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestGet_SameContentSameDocument(t *testing.T) {
	c, _ := newTestCache(t)
	src := []byte("package Foo;\nsub bar { 1 }\n")

	a, err := c.Get(Text("/a.pm", src), Options{})
	require.NoError(t, err)
	b, err := c.Get(Text("/unrelated/b.pm", append([]byte(nil), src...)), Options{})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, Digest(src), a.Digest)
	assert.Equal(t, 1, c.Len())
}

func TestGet_ChangedContentMisses(t *testing.T) {
	c, _ := newTestCache(t)
	a, err := c.Get(Text("/a.pm", []byte("1;\n")), Options{})
	require.NoError(t, err)
	b, err := c.Get(Text("/a.pm", []byte("2;\n")), Options{})
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.Digest, b.Digest)
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(t)
	src := Text("/a.pm", []byte("1;\n"))

	a, err := c.Get(src, Options{})
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	b, err := c.Get(src, Options{})
	require.NoError(t, err)
	assert.Same(t, a, b, "access within the TTL returns the cached tree")

	clock.Advance(DefaultTTL + time.Second)
	d, err := c.Get(src, Options{})
	require.NoError(t, err)
	assert.NotSame(t, a, d)
}

func TestGet_SweepsOtherExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t)
	_, err := c.Get(Text("/a.pm", []byte("1;\n")), Options{})
	require.NoError(t, err)
	_, err = c.Get(Text("/b.pm", []byte("2;\n")), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	clock.Advance(2 * DefaultTTL)
	_, err = c.Get(Text("/c.pm", []byte("3;\n")), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestGet_ParseFailureNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(Text("/bad.pm", []byte("my $x = \"open;\n")), Options{})
	var pe *syntax.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, c.Len())
}

func TestGet_SingleLine(t *testing.T) {
	c, _ := newTestCache(t)
	content := []byte("use strict;\nmy $x = \"unterminated\nsub foo { 1 }\n")

	doc, err := c.Get(Text("/a.pm", content), Options{SingleLine: true, Line: 2})
	require.NoError(t, err)
	assert.True(t, doc.SingleLine)
	assert.Equal(t, "sub foo { 1 }", string(doc.Tree.Source()))

	empty, err := c.Get(Text("/a.pm", content), Options{SingleLine: true, Line: 40})
	require.NoError(t, err)
	assert.Equal(t, Digest(nil), empty.Digest)
}

func TestGet_ReadsFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.pm")
	require.NoError(t, os.WriteFile(path, []byte("package Foo;\n"), 0o644))

	c, _ := newTestCache(t)
	doc, err := c.Get(File(path), Options{})
	require.NoError(t, err)
	assert.Equal(t, "package Foo;\n", string(doc.Tree.Source()))

	_, err = c.Get(File(filepath.Join(dir, "missing.pm")), Options{})
	require.Error(t, err)
}

func TestGet_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(Text("/a.pm", []byte("sub x { 1 }\n")), Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
