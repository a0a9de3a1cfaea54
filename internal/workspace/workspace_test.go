package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var perlExts = []string{".pl", ".pm", ".t"}

// fakeIndex records calls in order; the sweep drops files exists rejects.
type fakeIndex struct {
	calls   []string
	indexed [][]string
	files   map[string]bool
	exists  func(string) bool
	err     error
}

func (f *fakeIndex) CleanupOldFiles() (int, error) {
	f.calls = append(f.calls, "cleanup")
	n := 0
	for p := range f.files {
		if !f.exists(p) {
			delete(f.files, p)
			n++
		}
	}
	return n, nil
}

func (f *fakeIndex) IndexFiles(ctx context.Context, paths []string) error {
	f.calls = append(f.calls, "index")
	f.indexed = append(f.indexed, paths)
	for _, p := range paths {
		f.files[p] = true
	}
	return f.err
}

func newFakeIndex(exists func(string) bool) *fakeIndex {
	return &fakeIndex{files: map[string]bool{}, exists: exists}
}

func onDisk(paths ...string) func(string) bool {
	set := map[string]bool{}
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

// --- Classification ---

func TestClassify(t *testing.T) {
	c := NewClassifier("/w", perlExts, []string{"blib", "t/fixtures/*", "*.bak.pm"})
	tests := []struct {
		path      string
		source    bool
		ignored   bool
		indexable bool
	}{
		{"/w/lib/Foo.pm", true, false, true},
		{"/w/script.PL", true, false, true},
		{"/w/README.md", false, false, false},
		{"/w/blib/lib/Foo.pm", true, true, false},
		{"/w/t/fixtures/x.pl", true, true, false},
		{"/w/t/basic.t", true, false, true},
		{"/w/lib/Old.bak.pm", true, true, false},
		{"/elsewhere/Foo.pm", true, false, true},
		{"/w/lib/.Foo.perlnav-0b7e6c1a.pm", false, false, false},
		{"/w/lib/.Foo.pm", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := c.Classify(tt.path)
			assert.Equal(t, tt.source, f.Source)
			assert.Equal(t, tt.ignored, f.Ignored)
			assert.Equal(t, tt.indexable, f.Indexable())
			assert.Equal(t, PathToURI(tt.path), f.URI)
		})
	}
}

func TestIsTempCopy(t *testing.T) {
	assert.True(t, IsTempCopy("/w/lib/.Foo.perlnav-0b7e6c1a.pm"))
	assert.True(t, IsTempCopy(".app.perlnav-x.pl"))
	assert.False(t, IsTempCopy("/w/lib/Foo.perlnav-x.pm"))
	assert.False(t, IsTempCopy("/w/lib/.Foo.pm"))
	assert.False(t, IsTempCopy("/w/lib/Foo.pm"))
}

func TestDiscover_Walk(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"lib/Foo.pm", "lib/Foo/Bar.pm", "bin/tool.pl", "t/basic.t", "README",
		".hidden/X.pm", "blib/lib/Foo.pm", "local/lib/perl5/Dep.pm", "skip/Me.pm",
	} {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("1;\n"), 0o644))
	}
	c := NewClassifier(root, perlExts, []string{"skip"})

	got, err := c.Discover(context.Background())
	require.NoError(t, err)
	for i, p := range got {
		got[i], _ = filepath.Rel(root, p)
	}
	sort.Strings(got)
	assert.Equal(t, []string{
		filepath.Join("bin", "tool.pl"),
		filepath.Join("lib", "Foo", "Bar.pm"),
		filepath.Join("lib", "Foo.pm"),
		filepath.Join("t", "basic.t"),
	}, got)
}

// --- URIs ---

func TestURIRoundTrip(t *testing.T) {
	uri := PathToURI("/w/lib/My Module.pm")
	assert.Equal(t, "file:///w/lib/My%20Module.pm", uri)
	path, err := URIToPath(uri)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/w/lib/My Module.pm"), path)
}

func TestURIToPath_Errors(t *testing.T) {
	_, err := URIToPath("")
	assert.Error(t, err)
	_, err = URIToPath("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrNotFileURI)
	_, err = URIToPath("file://%zz")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFileURI))
}

// --- Change processing ---

func TestProcess_IndexesSourceFilesOnce(t *testing.T) {
	idx := newFakeIndex(onDisk())
	p := NewProcessor(NewClassifier("/w", perlExts, []string{"blib"}), idx)

	res, err := p.Process(context.Background(), []ChangeEvent{
		{URI: "file:///w/lib/A.pm", Kind: Changed},
		{URI: "file:///w/lib/B.pm", Kind: Created},
		{URI: "file:///w/lib/A.pm", Kind: Changed},
		{URI: "file:///w/README.md", Kind: Changed},
		{URI: "file:///w/blib/lib/A.pm", Kind: Created},
		{URI: "untitled:Untitled-1", Kind: Changed},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, idx.calls)
	want := []string{filepath.FromSlash("/w/lib/A.pm"), filepath.FromSlash("/w/lib/B.pm")}
	assert.Equal(t, [][]string{want}, idx.indexed)
	assert.Equal(t, want, res.Indexed)
	assert.Zero(t, res.Pruned)
}

func TestProcess_DeletionsSweepOnce(t *testing.T) {
	a, b := filepath.FromSlash("/w/a.pm"), filepath.FromSlash("/w/b.pm")
	idx := newFakeIndex(onDisk())
	idx.files[a], idx.files[b] = true, true
	p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)

	res, err := p.Process(context.Background(), []ChangeEvent{
		{URI: "file:///w/a.pm", Kind: Deleted},
		{URI: "file:///w/b.pm", Kind: Deleted},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cleanup"}, idx.calls)
	assert.Equal(t, 2, res.Pruned)
	assert.Empty(t, idx.files)
}

func TestProcess_DeleteThenCreateSameFile(t *testing.T) {
	a := filepath.FromSlash("/w/a.pm")
	idx := newFakeIndex(onDisk(a))
	idx.files[a] = true
	p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)

	_, err := p.Process(context.Background(), []ChangeEvent{
		{URI: "file:///w/a.pm", Kind: Deleted},
		{URI: "file:///w/a.pm", Kind: Created},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cleanup", "index"}, idx.calls)
	assert.True(t, idx.files[a])
}

func TestProcess_DeletedNonSourceIgnored(t *testing.T) {
	idx := newFakeIndex(onDisk())
	p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)

	_, err := p.Process(context.Background(), []ChangeEvent{{URI: "file:///w/notes.txt", Kind: Deleted}})
	require.NoError(t, err)
	assert.Empty(t, idx.calls)
}

func TestProcess_MalformedBatchRejectedWhole(t *testing.T) {
	for name, bad := range map[string]ChangeEvent{
		"empty uri":    {URI: "", Kind: Changed},
		"unparseable":  {URI: "file://%zz/a.pm", Kind: Changed},
		"unknown kind": {URI: "file:///w/a.pm", Kind: 7},
	} {
		t.Run(name, func(t *testing.T) {
			idx := newFakeIndex(onDisk())
			p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)
			_, err := p.Process(context.Background(), []ChangeEvent{
				{URI: "file:///w/ok.pm", Kind: Deleted},
				bad,
			})
			assert.ErrorIs(t, err, ErrMalformedBatch)
			assert.Empty(t, idx.calls, "nothing runs for a rejected batch")
		})
	}
}

func TestProcess_EmptyBatch(t *testing.T) {
	idx := newFakeIndex(onDisk())
	p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)
	res, err := p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, idx.calls)
}

func TestProcess_IndexErrorReturned(t *testing.T) {
	idx := newFakeIndex(onDisk())
	idx.err = errors.New("disk on fire")
	p := NewProcessor(NewClassifier("/w", perlExts, nil), idx)
	_, err := p.Process(context.Background(), []ChangeEvent{{URI: "file:///w/a.pm", Kind: Changed}})
	assert.ErrorContains(t, err, "disk on fire")
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "ChangeKind(9)", ChangeKind(9).String())
}
