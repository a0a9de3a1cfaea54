package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav"
	"github.com/jward/perlnav/internal/workspace"
)

func TestWorkspaceRoot(t *testing.T) {
	rootURI := protocol.DocumentUri(workspace.PathToURI("/w/root"))
	rootPath := "/w/path"

	assert.Equal(t, "/w/root", workspaceRoot(&protocol.InitializeParams{RootURI: &rootURI, RootPath: &rootPath}, "/fallback"))
	assert.Equal(t, "/w/folder", workspaceRoot(&protocol.InitializeParams{
		WorkspaceFolders: []protocol.WorkspaceFolder{{URI: workspace.PathToURI("/w/folder"), Name: "folder"}},
	}, "/fallback"))
	assert.Equal(t, "/w/path", workspaceRoot(&protocol.InitializeParams{RootPath: &rootPath}, "/fallback"))
	assert.Equal(t, "/fallback", workspaceRoot(&protocol.InitializeParams{}, "/fallback"))
}

type published struct {
	method string
	params *protocol.PublishDiagnosticsParams
}

func newTestServer(t *testing.T, root string) (*lspServer, *glsp.Context, chan published) {
	t.Helper()
	saved := engineOptions
	engineOptions = []perlnav.Option{perlnav.WithIncludePaths([]string{}), perlnav.WithRunner(quietRunner{})}
	t.Cleanup(func() { engineOptions = saved })

	s := newLSPServer(context.Background(), root)
	t.Cleanup(s.stop)

	rootURI := protocol.DocumentUri(workspace.PathToURI(root))
	_, err := s.initialize(nil, &protocol.InitializeParams{RootURI: &rootURI})
	require.NoError(t, err)
	t.Cleanup(func() { s.current().Close() })

	notes := make(chan published, 16)
	ctx := &glsp.Context{Notify: func(method string, params any) {
		notes <- published{method, params.(*protocol.PublishDiagnosticsParams)}
	}}
	return s, ctx, notes
}

func waitPublished(t *testing.T, notes chan published) published {
	t.Helper()
	select {
	case p := <-notes:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostics published")
		return published{}
	}
}

func TestLSPServer_DocumentLifecycle(t *testing.T) {
	root := newWorkspace(t)
	s, ctx, notes := newTestServer(t, root)
	require.NoError(t, s.current().IndexWorkspace(context.Background()))

	uri := workspace.PathToURI(filepath.Join(root, "bin", "scratch.pl"))
	require.NoError(t, s.didOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), LanguageID: "perl", Version: 1, Text: "use Foo;\n"},
	}))
	// The file is not on disk, so the saved-file check reports nothing.
	p := waitPublished(t, notes)
	assert.Equal(t, protocol.ServerTextDocumentPublishDiagnostics, p.method)
	assert.Equal(t, protocol.DocumentUri(uri), p.params.URI)

	require.NoError(t, s.didChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "use Foo;\nFoo::greet();\n"}},
	}))
	waitPublished(t, notes)

	got, err := s.definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			Position:     protocol.Position{Line: 1, Character: 6},
		},
	})
	require.NoError(t, err)
	locs, ok := got.([]protocol.Location)
	require.True(t, ok)
	require.Len(t, locs, 1)
	assert.Equal(t, protocol.DocumentUri(workspace.PathToURI(filepath.Join(root, "lib", "Foo.pm"))), locs[0].URI)

	require.NoError(t, s.didClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
	}))
	p = waitPublished(t, notes)
	assert.NotNil(t, p.params.Diagnostics)
	assert.Empty(t, p.params.Diagnostics)
	_, open := s.current().Document(uri)
	assert.False(t, open)
}

func TestLSPServer_WatchedFiles(t *testing.T) {
	root := newWorkspace(t)
	s, ctx, _ := newTestServer(t, root)
	require.NoError(t, s.current().IndexWorkspace(context.Background()))

	path := filepath.Join(root, "lib", "Bar.pm")
	writeTestFile(t, path, "package Bar;\nsub hello { 1 }\n1;\n")

	require.NoError(t, s.didChangeWatchedFiles(ctx, &protocol.DidChangeWatchedFilesParams{
		Changes: []protocol.FileEvent{{URI: protocol.DocumentUri(workspace.PathToURI(path)), Type: protocol.FileChangeTypeCreated}},
	}))

	subs, err := s.current().Query().FindPackageSubroutine("Bar", "hello")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestLSPServer_BeforeInitialize(t *testing.T) {
	s := newLSPServer(context.Background(), t.TempDir())
	defer s.stop()

	got, err := s.definition(nil, &protocol.DefinitionParams{})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, s.didOpen(&glsp.Context{}, &protocol.DidOpenTextDocumentParams{}))
}
