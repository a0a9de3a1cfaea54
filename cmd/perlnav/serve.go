package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/jward/perlnav"
	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/workspace"
)

const lsName = "perlnav"

var flagMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server on stdio",
	Long:  "Speaks the language server protocol on stdin/stdout: definitions, diagnostics on open/change/save, and index updates from watched-file notifications. Logs go to stderr.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	s := newLSPServer(contextOf(cmd), findRepoRoot(cwd))
	defer s.stop()

	log.Infof("starting %s %s on stdio", lsName, perlnav.Version)
	return server.NewServer(&s.handler, lsName, false).RunStdio()
}

// lspServer adapts protocol requests to an Engine created on initialize.
type lspServer struct {
	handler  protocol.Handler
	fallback string // workspace root when the client sends none

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	engine *perlnav.Engine

	// generations drops diagnostics superseded by a newer request for the
	// same document.
	genMu       sync.Mutex
	generations map[string]uint64
}

func newLSPServer(parent context.Context, fallbackRoot string) *lspServer {
	ctx, cancel := context.WithCancel(parent)
	s := &lspServer{
		fallback:    fallbackRoot,
		ctx:         ctx,
		cancel:      cancel,
		generations: make(map[string]uint64),
	}
	s.handler = protocol.Handler{
		Initialize:                     s.initialize,
		Initialized:                    s.initialized,
		Shutdown:                       s.shutdown,
		SetTrace:                       s.setTrace,
		TextDocumentDidOpen:            s.didOpen,
		TextDocumentDidChange:          s.didChange,
		TextDocumentDidSave:            s.didSave,
		TextDocumentDidClose:           s.didClose,
		TextDocumentDefinition:         s.definition,
		WorkspaceDidChangeWatchedFiles: s.didChangeWatchedFiles,
	}
	return s
}

func (s *lspServer) stop() {
	s.cancel()
}

func (s *lspServer) current() *perlnav.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *lspServer) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	root := workspaceRoot(params, s.fallback)
	log.Debugf("initialize: root %s", root)

	engine, err := openEngine(root)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	addr := flagMetricsAddr
	if addr == "" {
		addr = engine.Config().Metrics.Addr
	}
	if addr != "" {
		serveMetrics(addr)
	}

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      true,
	}
	capabilities.DefinitionProvider = true

	version := perlnav.Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

// workspaceRoot picks the root the client names, preferring rootUri.
func workspaceRoot(params *protocol.InitializeParams, fallback string) string {
	var uris []string
	if params.RootURI != nil {
		uris = append(uris, string(*params.RootURI))
	}
	for _, folder := range params.WorkspaceFolders {
		uris = append(uris, string(folder.URI))
	}
	for _, uri := range uris {
		if path, err := workspace.URIToPath(uri); err == nil {
			return path
		}
	}
	if params.RootPath != nil && *params.RootPath != "" {
		return *params.RootPath
	}
	return fallback
}

func (s *lspServer) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	go func() {
		start := time.Now()
		if err := engine.IndexWorkspace(s.ctx); err != nil {
			log.Warningf("indexing %s: %s", engine.Root(), err)
			return
		}
		log.Infof("indexed %s in %s", engine.Root(), time.Since(start).Round(time.Millisecond))
	}()
	return nil
}

func (s *lspServer) shutdown(_ *glsp.Context) error {
	log.Debug("shutdown")
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.cancel()
	return nil
}

func (s *lspServer) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *lspServer) didOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	uri := string(params.TextDocument.URI)
	engine.OpenDocument(uri, params.TextDocument.Text, int32(params.TextDocument.Version))
	go s.publishDiagnostics(context.Notify, engine, uri, false, false)
	return nil
}

func (s *lspServer) didChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	uri := string(params.TextDocument.URI)
	if err := engine.UpdateDocument(uri, int32(params.TextDocument.Version), params.ContentChanges); err != nil {
		return err
	}
	go s.publishDiagnostics(context.Notify, engine, uri, true, false)
	return nil
}

func (s *lspServer) didSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	go s.publishDiagnostics(context.Notify, engine, string(params.TextDocument.URI), false, false)
	return nil
}

func (s *lspServer) didClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	uri := string(params.TextDocument.URI)
	engine.CloseDocument(uri)
	s.publishDiagnostics(context.Notify, engine, uri, false, true)
	return nil
}

func (s *lspServer) definition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	engine := s.current()
	if engine == nil {
		return nil, nil
	}
	locs, err := engine.ResolveDefinition(s.ctx, string(params.TextDocument.URI), params.Position)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *lspServer) didChangeWatchedFiles(_ *glsp.Context, params *protocol.DidChangeWatchedFilesParams) error {
	engine := s.current()
	if engine == nil {
		return nil
	}
	events := make([]workspace.ChangeEvent, len(params.Changes))
	for i, change := range params.Changes {
		events[i] = workspace.ChangeEvent{URI: string(change.URI), Kind: workspace.ChangeKind(change.Type)}
	}
	res, err := engine.NotifyChanges(s.ctx, events)
	if err != nil {
		return err
	}
	log.Debugf("watched files: pruned %d, indexed %d", res.Pruned, len(res.Indexed))
	return nil
}

// publishDiagnostics runs Diagnose and sends the result unless a newer
// request for uri started meanwhile.
func (s *lspServer) publishDiagnostics(notify glsp.NotifyFunc, engine *perlnav.Engine, uri string, unsaved, closing bool) {
	gen := s.nextGeneration(uri)
	diags, err := engine.Diagnose(s.ctx, uri, unsaved, closing)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warningf("diagnostics for %s: %s", uri, err)
		}
		return
	}
	if !s.isCurrent(uri, gen) {
		return
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(uri),
		Diagnostics: diags,
	})
}

func (s *lspServer) nextGeneration(uri string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[uri]++
	return s.generations[uri]
}

func (s *lspServer) isCurrent(uri string, gen uint64) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[uri] == gen
}

// serveMetrics exposes the Prometheus registry on addr until exit.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	atexit.Register(func() { srv.Close() })
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warningf("metrics server on %s: %s", addr, err)
		}
	}()
	log.Infof("metrics on http://%s/metrics", addr)
}
