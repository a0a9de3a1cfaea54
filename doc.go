// Package perlnav is the analysis core of a Perl language server. It parses
// Perl source into syntax trees, keeps a workspace-wide index of package,
// subroutine, constant and variable declarations, resolves the symbol under
// a cursor to its declarations, and runs compile and lint checks per
// document.
//
// # Usage
//
// Create an Engine for a workspace, index it, and ask questions:
//
//	e, err := perlnav.New("path/to/project", nil)
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexWorkspace(ctx)
//
//	locs, err := e.ResolveDefinition(ctx, "file:///path/to/project/bin/app.pl",
//		protocol.Position{Line: 9, Character: 4})
//	diags, err := e.Diagnose(ctx, "file:///path/to/project/lib/Foo.pm", false, false)
//
// Positions and ranges use the editor protocol's 0-indexed convention.
//
// # Index
//
// [Engine.IndexFiles] replaces each file's entries with what its current
// content declares; unchanged files are skipped by content hash. Files are
// the unit of replacement. A file that does not parse contributes nothing
// and never stops the rest of a batch. The index lives in memory and is
// rebuilt on every start.
//
// [Engine.NotifyChanges] applies watched-file events: deletions trigger one
// sweep of files missing from disk, then every created or changed source
// file is re-indexed in a single batch.
//
// # Definitions
//
// [Engine.ResolveDefinition] classifies the tokens under the cursor and
// tries, closest token first: qualified and plain subroutine calls,
// Class->method and $obj->method calls, package and import references, and
// lexically scoped variables. Packages missing from the index are looked up
// on the include path. POD L<...> links are the fallback.
//
// # Diagnostics
//
// [Engine.Diagnose] runs `perl -c` and perlcritic plus the embedded Risor
// lint policies under scripts/lint. Unsaved buffers are checked through a
// temporary sibling file. Lint runs are serialized on one worker.
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] exposes exact-name lookups
// ([QueryBuilder.FindPackage], [QueryBuilder.FindSubroutine],
// [QueryBuilder.FindPackageSubroutine], [QueryBuilder.FindVariable]),
// workspace symbol search, per-file symbols and index summaries.
package perlnav
