package perlnav

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jward/perlnav/internal/cache"
	"github.com/jward/perlnav/internal/extract"
	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
	"github.com/jward/perlnav/internal/workspace"
)

// workItem holds everything an extraction worker needs.
type workItem struct {
	path    string
	content []byte
	hash    string
}

// IndexFiles indexes the given file paths. Each file's prior entries are
// replaced by what its current content declares.
//
// For each file:
//  1. Skip paths without a recognized source extension
//  2. Skip unchanged files (same content hash)
//  3. Parse through the parse cache and extract declarations
//  4. Replace the file's entries
//
// Unreadable and unparseable files are logged and skipped; a file that
// does not parse is left with no entries. The rest of the batch always
// proceeds. With Index.Parallel set, extraction runs on a worker pool and
// the results are committed in one transaction.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	if err := e.lockWrites(ctx); err != nil {
		return err
	}
	defer e.unlockWrites()

	start := time.Now()
	defer func() { metrics.IndexDuration.Observe(time.Since(start).Seconds()) }()

	var items []workItem
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		path = filepath.Clean(path)
		if seen[path] {
			continue
		}
		seen[path] = true
		item, skip, err := e.prepareFile(path)
		if err != nil {
			log.Warningf("index %s: %v", path, err)
			continue
		}
		if !skip {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}

	var err error
	if e.cfg.Index.Parallel && len(items) > 1 {
		err = e.indexParallel(ctx, items)
	} else {
		err = e.indexSerial(ctx, items)
	}
	e.updateIndexMetrics()
	log.Debugf("indexed %d file(s) in %s", len(items), time.Since(start))
	return err
}

// prepareFile reads path and reports whether it can be skipped.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	if !e.classifier.IsSource(path) {
		return workItem{}, true, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return workItem{}, true, nil
	}
	return workItem{path: path, content: content, hash: hash}, false, nil
}

// extractFile parses one file and hands its entries to ds.
func (e *Engine) extractFile(ds store.DataStore, item workItem) error {
	var entries []*store.Entry
	doc, err := e.cache.Get(cache.Text(item.path, item.content), cache.Options{})
	switch {
	case err == nil:
		entries = extract.Entries(doc.Tree)
	case isParseError(err):
		log.Warningf("index %s: %v", item.path, err)
	default:
		return err
	}
	return ds.ReplaceFile(&store.File{
		Path:        item.path,
		URI:         workspace.PathToURI(item.path),
		Hash:        item.hash,
		LastIndexed: time.Now(),
	}, entries)
}

func (e *Engine) indexSerial(ctx context.Context, items []workItem) error {
	var errs []error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.extractFile(e.store, item); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", item.path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// indexParallel runs extraction on a worker pool writing into a
// BatchedStore, then commits the batch serially.
func (e *Engine) indexParallel(ctx context.Context, items []workItem) error {
	numWorkers := min(e.cfg.Index.Workers, len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	batch := store.NewBatchedStore()
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if ctx.Err() != nil {
					return
				}
				if err := e.extractFile(batch, item); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("extract %s: %w", item.path, err))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.store.CommitBatch(batch); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func isParseError(err error) bool {
	var pe *syntax.ParseError
	return errors.As(err, &pe)
}
