package modules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, rel string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("package X;\n1;\n"), 0o644))
	return p
}

func TestModulePath(t *testing.T) {
	assert.Equal(t, filepath.Join("Foo", "Bar", "Baz.pm"), ModulePath("Foo::Bar::Baz"))
	assert.Equal(t, "Foo.pm", ModulePath("Foo"))
}

func TestLocateModule_FirstPathWins(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeModule(t, b, "Foo/Bar.pm")
	want := writeModule(t, a, "Foo/Bar.pm")

	got, ok := LocateModule("Foo::Bar", []string{a, b})
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = LocateModule("Missing", []string{a, b})
	assert.False(t, ok)
	_, ok = LocateModule("", []string{a})
	assert.False(t, ok)
}

func TestLocateModule_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Odd.pm"), 0o755))
	_, ok := LocateModule("Odd", []string{dir})
	assert.False(t, ok)
}

func TestLocator_MemoizesUntilReset(t *testing.T) {
	dir := t.TempDir()
	l := NewLocator([]string{dir})
	ctx := context.Background()

	_, ok := l.Locate(ctx, "Late::Mod")
	require.False(t, ok)

	path := writeModule(t, dir, "Late/Mod.pm")
	_, ok = l.Locate(ctx, "Late::Mod")
	assert.False(t, ok, "miss is memoized")

	l.Reset()
	got, ok := l.Locate(ctx, "Late::Mod")
	require.True(t, ok)
	assert.Equal(t, path, got)
}

func TestLocator_SetPaths(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	want := writeModule(t, b, "Only/InB.pm")
	l := NewLocator([]string{a})
	_, ok := l.Locate(context.Background(), "Only::InB")
	require.False(t, ok)

	l.SetPaths([]string{a, b})
	got, ok := l.Locate(context.Background(), "Only::InB")
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{a, b}, l.Paths())
}

func TestLocator_Concurrent(t *testing.T) {
	dir := t.TempDir()
	want := writeModule(t, dir, "Shared.pm")
	l := NewLocator([]string{dir})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := l.Locate(context.Background(), "Shared")
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestIncludePaths_ConfiguredThenLib(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	other := t.TempDir()

	got := IncludePaths(context.Background(), []string{other, other}, []string{root, t.TempDir()}, "")
	assert.Equal(t, []string{other, filepath.Join(root, "lib")}, got)
}

func TestIncludePaths_MissingPerlTolerated(t *testing.T) {
	dir := t.TempDir()
	got := IncludePaths(context.Background(), []string{dir}, nil, filepath.Join(dir, "no-such-perl"))
	assert.Equal(t, []string{dir}, got)
}
