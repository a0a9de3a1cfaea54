// Package modules maps Perl package names to files on the include path.
package modules

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/sync/singleflight"
)

var log = logging.MustGetLogger("perlnav.modules")

// incTimeout bounds the perl invocation that lists @INC.
const incTimeout = 5 * time.Second

// ModulePath returns the relative file of a package: Foo::Bar -> Foo/Bar.pm.
func ModulePath(pkg string) string {
	return filepath.Join(strings.Split(pkg, "::")...) + ".pm"
}

// LocateModule returns the file implementing pkg in the first include path
// that has one.
func LocateModule(pkg string, incPaths []string) (string, bool) {
	if pkg == "" {
		return "", false
	}
	rel := ModulePath(pkg)
	for _, dir := range incPaths {
		p := filepath.Join(dir, rel)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Locator memoizes LocateModule over a fixed include path. Concurrent
// lookups of the same package share one filesystem search. Misses are
// memoized too until Reset.
type Locator struct {
	mu    sync.RWMutex
	paths []string
	found map[string]string // "" records a miss
	group singleflight.Group
}

// NewLocator creates a Locator searching paths in order.
func NewLocator(paths []string) *Locator {
	return &Locator{paths: paths, found: make(map[string]string)}
}

// Paths returns the include path.
func (l *Locator) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths...)
}

// SetPaths replaces the include path and forgets every memoized result.
func (l *Locator) SetPaths(paths []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = paths
	l.found = make(map[string]string)
}

// Reset forgets memoized results, for example after files were created.
func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.found = make(map[string]string)
}

// Locate returns the file implementing pkg.
func (l *Locator) Locate(ctx context.Context, pkg string) (string, bool) {
	l.mu.RLock()
	path, ok := l.found[pkg]
	paths := l.paths
	l.mu.RUnlock()
	if ok {
		return path, path != ""
	}
	if ctx.Err() != nil {
		return "", false
	}

	v, _, _ := l.group.Do(pkg, func() (any, error) {
		p, _ := LocateModule(pkg, paths)
		l.mu.Lock()
		l.found[pkg] = p
		l.mu.Unlock()
		log.Debugf("locate %s: %q", pkg, p)
		return p, nil
	})
	path = v.(string)
	return path, path != ""
}

// PerlIncPaths asks perl for its @INC.
func PerlIncPaths(ctx context.Context, perl string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, incTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, perl, "-e", `print join "\n", @INC`)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("modules: %s @INC: %w: %s", perl, err, strings.TrimSpace(stderr.String()))
	}
	var out []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" && line != "." {
			out = append(out, line)
		}
	}
	return out, nil
}

// IncludePaths assembles the include path: configured paths, then each
// root's lib/ directory, then perl's @INC. A failing perl is logged and
// skipped. Duplicates keep their first position.
func IncludePaths(ctx context.Context, configured, roots []string, perl string) []string {
	var all []string
	all = append(all, configured...)
	for _, root := range roots {
		lib := filepath.Join(root, "lib")
		if info, err := os.Stat(lib); err == nil && info.IsDir() {
			all = append(all, lib)
		}
	}
	if perl != "" {
		inc, err := PerlIncPaths(ctx, perl)
		if err != nil {
			log.Warningf("include paths: %v", err)
		}
		all = append(all, inc...)
	}

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, p := range all {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
