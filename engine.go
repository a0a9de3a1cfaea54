package perlnav

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/op/go-logging"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav/internal/cache"
	"github.com/jward/perlnav/internal/config"
	"github.com/jward/perlnav/internal/diagnostics"
	"github.com/jward/perlnav/internal/document"
	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/modules"
	"github.com/jward/perlnav/internal/resolve"
	"github.com/jward/perlnav/internal/runtime"
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
	"github.com/jward/perlnav/internal/workspace"
	"github.com/jward/perlnav/scripts"
)

var log = logging.MustGetLogger("perlnav")

// Engine is the analysis context for one workspace. It owns the index,
// the parse cache, open buffers, the resolver and the diagnostics
// pipeline, and is safe for concurrent use.
type Engine struct {
	cfg        *config.Config
	root       string
	store      *store.Store
	cache      *cache.Cache
	docs       *document.Store
	modules    *modules.Locator
	resolver   *resolve.Resolver
	pipeline   *diagnostics.Pipeline
	runtime    *runtime.Runtime
	classifier *workspace.Classifier
	processor  *workspace.Processor

	// Options collected before the collaborators are built.
	scriptsFS    fs.FS
	runner       diagnostics.Runner
	includePaths []string
	cacheOpts    []cache.Option

	// writes serializes index updates; reads go straight to the store.
	writes chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithScriptsFS loads lint policies from fsys instead of the embedded
// scripts. Lint.ScriptsDir in the configuration takes precedence.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.scriptsFS = fsys }
}

// WithRunner runs the external checkers through r.
func WithRunner(r diagnostics.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithIncludePaths fixes the module include path instead of assembling it
// from the configuration, the workspace lib/ directory and perl's @INC.
func WithIncludePaths(paths []string) Option {
	return func(e *Engine) { e.includePaths = paths }
}

// WithCacheOptions passes options to the parse cache.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(e *Engine) { e.cacheOpts = append(e.cacheOpts, opts...) }
}

// New creates an Engine for the workspace at root. A nil cfg uses
// config.Default.
func New(root string, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("perlnav: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("perlnav: workspace root: %w", err)
	}

	s, err := store.NewStore()
	if err != nil {
		return nil, fmt.Errorf("perlnav: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("perlnav: migrate: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		root:      abs,
		store:     s,
		docs:      document.NewStore(),
		scriptsFS: scripts.FS,
		writes:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cache = cache.New(append([]cache.Option{cache.WithTTL(cfg.Cache.TTL)}, e.cacheOpts...)...)

	if e.includePaths == nil {
		e.includePaths = modules.IncludePaths(context.Background(), cfg.IncludePaths, []string{abs}, cfg.PerlPath)
	}
	e.modules = modules.NewLocator(e.includePaths)

	switch {
	case cfg.Lint.ScriptsDir != "":
		e.runtime = runtime.NewRuntime(cfg.Lint.ScriptsDir)
	case e.scriptsFS != nil:
		e.runtime = runtime.NewRuntime("", runtime.WithRuntimeFS(e.scriptsFS))
	}

	popts := []diagnostics.Option{diagnostics.WithIncludePaths(e.includePaths)}
	if e.runner != nil {
		popts = append(popts, diagnostics.WithRunner(e.runner))
	}
	if cfg.Lint.Scripts && e.runtime != nil {
		popts = append(popts, diagnostics.WithPolicies(e.runtime, e.cache))
	}
	e.pipeline = diagnostics.New(cfg, popts...)

	e.resolver = resolve.New(e.Query(), e.modules, e.parseFile)
	e.classifier = workspace.NewClassifier(abs, cfg.Extensions, cfg.IgnoreGlobs)
	e.processor = workspace.NewProcessor(e.classifier, e)

	log.Infof("workspace %s: %d include path(s)", abs, len(e.includePaths))
	return e, nil
}

// Close stops the diagnostics worker and releases the index.
func (e *Engine) Close() error {
	e.pipeline.Close()
	return e.store.Close()
}

// Root returns the absolute workspace root.
func (e *Engine) Root() string { return e.root }

// Config returns the configuration the Engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store { return e.store }

// Classifier returns the workspace file classifier.
func (e *Engine) Classifier() *workspace.Classifier { return e.classifier }

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

func (e *Engine) lockWrites(ctx context.Context) error {
	select {
	case e.writes <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) unlockWrites() { <-e.writes }

// =============================================================================
// Index maintenance
// =============================================================================

// IndexWorkspace discovers every source file under the root and indexes
// it.
func (e *Engine) IndexWorkspace(ctx context.Context) error {
	paths, err := e.classifier.Discover(ctx)
	if err != nil {
		return fmt.Errorf("perlnav: discover: %w", err)
	}
	log.Infof("indexing %d file(s) under %s", len(paths), e.root)
	return e.IndexFiles(ctx, paths)
}

// CleanupOldFiles drops every indexed file that no longer exists on disk
// and returns how many were removed.
func (e *Engine) CleanupOldFiles() (int, error) {
	files, err := e.store.Files()
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	var gone []string
	for _, f := range files {
		if _, err := os.Stat(f.Path); errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, f.Path)
		}
	}
	return e.RemoveFiles(gone)
}

// RemoveFiles drops the named files from the index. Entries of other
// files are untouched.
func (e *Engine) RemoveFiles(paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	if err := e.lockWrites(context.Background()); err != nil {
		return 0, err
	}
	defer e.unlockWrites()

	clean := make([]string, len(paths))
	for i, p := range paths {
		clean[i] = filepath.Clean(p)
	}
	n, err := e.store.DeleteFiles(clean)
	if err != nil {
		return 0, fmt.Errorf("remove files: %w", err)
	}
	if n > 0 {
		log.Infof("removed %d file(s) from the index", n)
	}
	e.updateIndexMetrics()
	return n, nil
}

// NotifyChanges applies a batch of watched-file events. Deletions sweep
// the index once; created and changed source files are re-indexed
// together after the sweep.
func (e *Engine) NotifyChanges(ctx context.Context, events []workspace.ChangeEvent) (workspace.Result, error) {
	// New files may now satisfy module lookups that missed before.
	e.modules.Reset()
	return e.processor.Process(ctx, events)
}

func (e *Engine) updateIndexMetrics() {
	files, err := e.store.Files()
	if err != nil {
		return
	}
	metrics.IndexFiles.Set(float64(len(files)))
	counts, err := e.store.CountEntries()
	if err != nil {
		return
	}
	for _, kind := range store.AllKinds {
		metrics.IndexEntries.WithLabelValues(kind).Set(float64(counts[kind]))
	}
}

// =============================================================================
// Buffers
// =============================================================================

// OpenDocument records an editor buffer. Definitions and diagnostics for
// uri use its text until it is closed.
func (e *Engine) OpenDocument(uri, text string, version int32) {
	e.docs.Open(uri, text, version)
}

// UpdateDocument applies protocol content changes to an open buffer.
func (e *Engine) UpdateDocument(uri string, version int32, changes []any) error {
	return e.docs.Update(uri, version, changes)
}

// CloseDocument forgets a buffer. Later requests read the file on disk.
func (e *Engine) CloseDocument(uri string) {
	e.docs.Close(uri)
}

// Document returns the open buffer for uri.
func (e *Engine) Document(uri string) (*document.Document, bool) {
	return e.docs.Get(uri)
}

// source returns the buffer for uri when one is open, else its file.
func (e *Engine) source(uri string) (cache.Source, string, error) {
	path, perr := workspace.URIToPath(uri)
	if text, ok := e.docs.Text(uri); ok {
		if perr != nil {
			path = uri
		}
		return cache.Text(path, text), path, nil
	}
	if perr != nil {
		return cache.Source{}, "", perr
	}
	return cache.File(path), path, nil
}

// =============================================================================
// Requests
// =============================================================================

// ResolveDefinition returns the declarations of the symbol at pos in uri.
// A document that does not parse yields no locations.
func (e *Engine) ResolveDefinition(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Location, error) {
	src, path, err := e.source(uri)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	doc, err := e.cache.Get(src, cache.Options{})
	if err != nil {
		if isParseError(err) {
			log.Debugf("definition %s: %v", path, err)
			return []protocol.Location{}, nil
		}
		return nil, fmt.Errorf("definition: %w", err)
	}
	return e.resolver.Resolve(ctx, resolve.Document{URI: uri, Tree: doc.Tree}, pos)
}

// Diagnose runs the syntax and lint checks for uri. With unsaved set the
// open buffer is checked instead of the file; closing clears diagnostics.
func (e *Engine) Diagnose(ctx context.Context, uri string, unsaved, closing bool) ([]protocol.Diagnostic, error) {
	path, err := workspace.URIToPath(uri)
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}
	req := diagnostics.Request{Path: path, Closing: closing}
	if unsaved {
		if text, ok := e.docs.Text(uri); ok {
			req.Unsaved = true
			req.Text = text
		}
	}
	start := time.Now()
	diags, err := e.pipeline.Diagnose(ctx, req)
	if err == nil {
		log.Debugf("diagnose %s: %d finding(s) in %s", path, len(diags), time.Since(start))
	}
	return diags, err
}

func (e *Engine) parseFile(path string) (*syntax.Tree, error) {
	doc, err := e.cache.Get(cache.File(path), cache.Options{})
	if err != nil {
		return nil, err
	}
	return doc.Tree, nil
}
