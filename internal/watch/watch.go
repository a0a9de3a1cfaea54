// Package watch turns filesystem notifications under a workspace root into
// batches of change events. It recursively watches the root, filters out
// everything that is not a Perl source file, and coalesces the bursts of
// events editors produce on save into one batch per quiet period.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"

	"github.com/jward/perlnav/internal/workspace"
)

var log = logging.MustGetLogger("perlnav.watch")

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 200 * time.Millisecond

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher feeds change batches for one workspace root.
type Watcher struct {
	fw         *fsnotify.Watcher
	classifier *workspace.Classifier
	debounce   time.Duration

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher for the classifier's root. A debounce of zero or
// less selects DefaultDebounce.
func New(c *workspace.Classifier, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fw: fw, classifier: c, debounce: debounce}, nil
}

// Run watches until ctx is canceled or the watcher is closed, calling
// onBatch from the Run goroutine with each debounced batch. A cancelled
// context is a normal shutdown and returns nil.
func (w *Watcher) Run(ctx context.Context, onBatch func([]workspace.ChangeEvent)) error {
	if err := w.addTree(w.classifier.Root()); err != nil {
		return err
	}

	var (
		pending batch
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if events := pending.drain(); len(events) > 0 {
			log.Debugf("batch of %d change(s)", len(events))
			onBatch(events)
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				flush()
				return ErrClosed
			}
			kind, ok := w.translate(ev)
			if !ok {
				continue
			}
			pending.add(ev.Name, kind)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fw.Errors:
			if !ok {
				flush()
				return ErrClosed
			}
			log.Warningf("watch: %v", err)

		case <-fire:
			fire = nil
			flush()
		}
	}
}

// Close stops watching. Safe to call multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.fw.Close()
}

// translate maps a notification to a change kind, adding watches for new
// directories on the way. Non-source paths are dropped.
func (w *Watcher) translate(ev fsnotify.Event) (workspace.ChangeKind, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !workspace.SkipDir(info.Name()) {
				if err := w.addTree(ev.Name); err != nil {
					log.Warningf("watch %s: %v", ev.Name, err)
				}
			}
			return 0, false
		}
	}
	if !w.classifier.IsSource(ev.Name) {
		return 0, false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return workspace.Created, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return workspace.Deleted, true
	case ev.Has(fsnotify.Write):
		return workspace.Changed, true
	}
	return 0, false
}

// addTree watches root and every directory below it that is not skipped.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && workspace.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// batch coalesces events per path, keeping first-seen order.
type batch struct {
	order []string
	kinds map[string]workspace.ChangeKind
}

func (b *batch) add(path string, kind workspace.ChangeKind) {
	if b.kinds == nil {
		b.kinds = make(map[string]workspace.ChangeKind)
	}
	prev, seen := b.kinds[path]
	if !seen {
		b.order = append(b.order, path)
		b.kinds[path] = kind
		return
	}
	b.kinds[path] = coalesce(prev, kind)
}

// coalesce folds a later event into an earlier one for the same path.
// A file created and then written is still new. A file deleted and then
// recreated has changed.
func coalesce(prev, next workspace.ChangeKind) workspace.ChangeKind {
	switch {
	case prev == workspace.Created && next == workspace.Changed:
		return workspace.Created
	case prev == workspace.Deleted && next == workspace.Created:
		return workspace.Changed
	}
	return next
}

func (b *batch) drain() []workspace.ChangeEvent {
	if len(b.order) == 0 {
		return nil
	}
	events := make([]workspace.ChangeEvent, 0, len(b.order))
	for _, p := range b.order {
		events = append(events, workspace.ChangeEvent{URI: workspace.PathToURI(p), Kind: b.kinds[p]})
	}
	b.order = nil
	b.kinds = nil
	return events
}
