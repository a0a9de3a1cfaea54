// Package diagnostics produces compile and lint findings for a document.
//
// A run fans out to two checks. The syntax check runs `perl -c` against the
// file, bounded by Syntax.MaxConcurrent across all runs. The lint check is
// handed to a single worker goroutine so lint runs never overlap; further
// requests queue behind it. Unsaved buffers are written to a hidden sibling
// of the real file for the duration of the run so relative `use lib` paths
// and line numbers still match.
//
// A check whose tool cannot run contributes no diagnostics; the other
// check's results are still returned. Two runs for the same document are
// independent and the caller keeps whichever finished last.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jward/perlnav/internal/cache"
	"github.com/jward/perlnav/internal/config"
	"github.com/jward/perlnav/internal/runtime"
	"github.com/jward/perlnav/internal/workspace"
)

var log = logging.MustGetLogger("perlnav.diagnostics")

// Request describes one diagnostics run.
type Request struct {
	// Path is the document's file on disk.
	Path string
	// Text is the buffer content, used when Unsaved is set.
	Text    []byte
	Unsaved bool
	// Closing produces no diagnostics, which clears any published ones.
	Closing bool
}

// TreeSource supplies parsed trees for the scripted policies.
type TreeSource interface {
	Get(src cache.Source, opts cache.Options) (*cache.Document, error)
}

// Pipeline runs diagnostics. Close stops its lint worker.
type Pipeline struct {
	cfg          *config.Config
	runner       Runner
	includePaths []string
	policies     *runtime.Runtime
	trees        TreeSource
	sem          *semaphore.Weighted

	jobs       chan lintJob
	done       chan struct{}
	workerDone chan struct{}
	closeOnce  sync.Once
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner replaces ExecRunner.
func WithRunner(r Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithIncludePaths passes -I paths to perl -c.
func WithIncludePaths(paths []string) Option {
	return func(p *Pipeline) { p.includePaths = paths }
}

// WithPolicies enables the scripted lint policies, reading trees from
// trees.
func WithPolicies(rt *runtime.Runtime, trees TreeSource) Option {
	return func(p *Pipeline) {
		p.policies = rt
		p.trees = trees
	}
}

// New starts a pipeline and its lint worker.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		runner:     ExecRunner{},
		jobs:       make(chan lintJob),
		done:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	if n := cfg.Syntax.MaxConcurrent; n > 0 {
		p.sem = semaphore.NewWeighted(int64(n))
	}
	for _, o := range opts {
		o(p)
	}
	go p.lintWorker()
	return p
}

// Close stops the lint worker after its current job. Later lint requests
// yield no diagnostics.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	<-p.workerDone
}

// Diagnose runs the enabled checks and returns their merged diagnostics,
// syntax first. The error is non-nil only when ctx ends or an unsaved
// buffer cannot be materialized.
func (p *Pipeline) Diagnose(ctx context.Context, req Request) ([]protocol.Diagnostic, error) {
	if req.Closing {
		return []protocol.Diagnostic{}, nil
	}
	checkSyntax := p.cfg.Syntax.Enabled
	checkLint := p.cfg.Lint.Enabled
	if !checkSyntax && !checkLint {
		return []protocol.Diagnostic{}, nil
	}

	checkPath := req.Path
	if req.Unsaved {
		tmp, err := writeTemp(req.Path, req.Text)
		if err != nil {
			return nil, fmt.Errorf("diagnose %s: %w", req.Path, err)
		}
		defer func() {
			if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
				log.Warningf("removing %s: %v", tmp, err)
			}
		}()
		checkPath = tmp
	}

	var syntaxDiags, lintDiags []protocol.Diagnostic
	g, gctx := errgroup.WithContext(ctx)
	if checkSyntax {
		g.Go(func() error {
			d, err := p.syntaxCheck(gctx, checkPath, req.Path)
			syntaxDiags = d
			return err
		})
	}
	if checkLint {
		g.Go(func() error {
			d, err := p.submitLint(gctx, lintJob{
				checkPath:   checkPath,
				displayPath: req.Path,
				unsaved:     req.Unsaved,
				text:        req.Text,
			})
			lintDiags = d
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]protocol.Diagnostic, 0, len(syntaxDiags)+len(lintDiags))
	out = append(out, syntaxDiags...)
	out = append(out, lintDiags...)
	log.Debugf("diagnose %s: %d syntax, %d lint", req.Path, len(syntaxDiags), len(lintDiags))
	return out, nil
}

// TempName returns the hidden sibling used for an unsaved copy of path. It
// keeps the extension so tools treat it as the same kind of file;
// workspace.IsTempCopy recognizes the name so the index skips it.
func TempName(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), "."+base+workspace.TempCopyMarker+uuid.NewString()+ext)
}

func writeTemp(path string, text []byte) (string, error) {
	name := TempName(path)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temporary copy: %w", err)
	}
	if _, err := f.Write(text); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temporary copy: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temporary copy: %w", err)
	}
	return name, nil
}
