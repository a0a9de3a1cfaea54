package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/op/go-logging"

	"github.com/jward/perlnav/internal/metrics"
)

var log = logging.MustGetLogger("perlnav.workspace")

// ErrMalformedBatch rejects a change batch as a whole.
var ErrMalformedBatch = errors.New("malformed change batch")

// ChangeKind mirrors the protocol's FileChangeType values.
type ChangeKind int

const (
	Created ChangeKind = 1
	Changed ChangeKind = 2
	Deleted ChangeKind = 3
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// ChangeEvent is one watched-file notification.
type ChangeEvent struct {
	URI  string
	Kind ChangeKind
}

// Index is the part of the workspace index the processor drives.
type Index interface {
	// CleanupOldFiles drops every indexed file missing from disk.
	CleanupOldFiles() (int, error)
	IndexFiles(ctx context.Context, paths []string) error
}

// Result reports what a batch did.
type Result struct {
	Pruned  int
	Indexed []string
}

// Processor applies change batches to an Index.
type Processor struct {
	classifier *Classifier
	index      Index
}

// NewProcessor creates a Processor.
func NewProcessor(c *Classifier, index Index) *Processor {
	return &Processor{classifier: c, index: index}
}

// Process applies one batch. Events for non-file URIs and files without a
// recognized extension are skipped. Any deletion triggers a single sweep of
// every indexed file missing from disk, which runs before the surviving
// created and changed files are indexed in one call, so a file deleted and
// recreated in the same batch ends up indexed. A batch holding an empty or
// unparseable URI, or an unknown kind, is rejected before anything runs.
func (p *Processor) Process(ctx context.Context, changes []ChangeEvent) (Result, error) {
	type item struct {
		path string
		kind ChangeKind
	}
	items := make([]item, 0, len(changes))
	for _, ch := range changes {
		if ch.Kind < Created || ch.Kind > Deleted {
			return Result{}, fmt.Errorf("%w: %q has unknown change kind %d", ErrMalformedBatch, ch.URI, int(ch.Kind))
		}
		path, err := URIToPath(ch.URI)
		if errors.Is(err, ErrNotFileURI) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		items = append(items, item{path: path, kind: ch.Kind})
	}

	var (
		prune bool
		paths []string
		seen  = map[string]bool{}
	)
	for _, it := range items {
		f := p.classifier.Classify(it.path)
		if !f.Source {
			continue
		}
		metrics.ChangeEvents.WithLabelValues(it.kind.String()).Inc()
		if it.kind == Deleted {
			prune = true
			continue
		}
		if f.Ignored || seen[it.path] {
			continue
		}
		seen[it.path] = true
		paths = append(paths, it.path)
	}

	var res Result
	if prune {
		n, err := p.index.CleanupOldFiles()
		if err != nil {
			return res, fmt.Errorf("prune deleted files: %w", err)
		}
		res.Pruned = n
	}
	if len(paths) > 0 {
		if err := p.index.IndexFiles(ctx, paths); err != nil {
			return res, fmt.Errorf("reindex changed files: %w", err)
		}
		res.Indexed = paths
	}
	log.Debugf("change batch: %d events, pruned %d, indexed %d", len(changes), res.Pruned, len(res.Indexed))
	return res, nil
}
