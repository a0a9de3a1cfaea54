// Package runtime embeds a Risor VM that runs scripted lint policies
// against a parsed syntax tree.
//
// Each policy is a .risor file under lint/ in the scripts directory or
// filesystem. A script sees the tree only through host functions, so it
// can neither modify the tree nor reach the index:
//
//	nodes(kind)          list of node ids of a kind, e.g. "statement::include"
//	node_text(id)        source text of a node
//	node_line(id)        1-indexed line of a node
//	node_col(id)         1-indexed column of a node
//	node_kind(id)        kind name of a node
//	lines()              source lines without terminators
//	include_modules()    modules named by use/no/require statements
//	declarations()       packages, subs, constants and variables of the file
//	violation(map)       reports {policy, severity, message, line, col}
//	log                  log.Info / log.Warn / log.Error
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/op/go-logging"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/perlnav/internal/syntax"
)

var log = logging.MustGetLogger("perlnav.runtime")

// LintDir is the directory holding policy scripts.
const LintDir = "lint"

// Runtime runs Risor scripts with the tree host functions. It holds no
// per-run state and is safe for concurrent use.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts from fsys instead of from disk. Risor import
// statements resolve against the same filesystem.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime creates a Runtime reading scripts from scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Violation is one finding reported by a policy script.
type Violation struct {
	Policy   string
	Severity int
	Message  string
	// Line and Col are 1-indexed.
	Line int
	Col  int
}

// RunScript loads and executes a script against tree. extraGlobals are
// added to the host functions.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, tree *syntax.Tree, extraGlobals map[string]any) ([]Violation, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, tree, extraGlobals)
}

// RunSource executes Risor source directly. Useful for testing without
// script files.
func (r *Runtime) RunSource(ctx context.Context, source string, tree *syntax.Tree, extraGlobals map[string]any) ([]Violation, error) {
	return r.eval(ctx, source, "<inline>", tree, extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, tree *syntax.Tree, extraGlobals map[string]any) ([]Violation, error) {
	if tree == nil {
		empty, err := syntax.Parse(nil)
		if err != nil {
			return nil, err
		}
		tree = empty
	}
	report := &collector{policy: policyName(label)}
	globals := buildGlobals(tree, report, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return report.violations, nil
}

// buildImporter returns a Risor importer for the configured script source,
// or nil when there is none.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file. With a filesystem configured the path is
// taken relative to its root; otherwise relative paths are joined to the
// scripts directory.
func (r *Runtime) LoadScript(p string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(p), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := p
	if !filepath.IsAbs(p) {
		fullPath = filepath.Join(r.scriptsDir, p)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// Policies lists the policy scripts in LintDir, sorted.
func (r *Runtime) Policies() ([]string, error) {
	var (
		matches []string
		err     error
	)
	switch {
	case r.fsys != nil:
		matches, err = fs.Glob(r.fsys, LintDir+"/*.risor")
	case r.scriptsDir != "":
		matches, err = filepath.Glob(filepath.Join(r.scriptsDir, LintDir, "*.risor"))
		for i, m := range matches {
			if rel, relErr := filepath.Rel(r.scriptsDir, m); relErr == nil {
				matches[i] = rel
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("runtime: listing policies: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Lint runs every policy against tree and returns their violations sorted
// by position. A failing policy aborts the run.
func (r *Runtime) Lint(ctx context.Context, tree *syntax.Tree) ([]Violation, error) {
	policies, err := r.Policies()
	if err != nil {
		return nil, err
	}
	var all []Violation
	for _, p := range policies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vs, err := r.RunScript(ctx, p, tree, nil)
		if err != nil {
			return nil, err
		}
		log.Debugf("policy %s: %d violations", p, len(vs))
		all = append(all, vs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Line != all[j].Line {
			return all[i].Line < all[j].Line
		}
		return all[i].Col < all[j].Col
	})
	return all, nil
}

// policyName derives the default policy name from a script path.
func policyName(label string) string {
	base := path.Base(filepath.ToSlash(label))
	return strings.TrimSuffix(base, path.Ext(base))
}

// buildGlobals constructs the globals exposed to a script run.
func buildGlobals(tree *syntax.Tree, report *collector, extra map[string]any) map[string]any {
	globals := map[string]any{
		"nodes":           makeNodesFn(tree),
		"node_text":       makeNodeFn("node_text", tree, func(id syntax.NodeID) object.Object { return object.NewString(tree.Text(id)) }),
		"node_line":       makeNodeFn("node_line", tree, func(id syntax.NodeID) object.Object { return object.NewInt(int64(tree.Line(id))) }),
		"node_col":        makeNodeFn("node_col", tree, func(id syntax.NodeID) object.Object { return object.NewInt(int64(tree.Col(id))) }),
		"node_kind":       makeNodeFn("node_kind", tree, func(id syntax.NodeID) object.Object { return object.NewString(tree.Kind(id).String()) }),
		"lines":           makeLinesFn(tree),
		"include_modules": makeIncludeModulesFn(tree),
		"declarations":    makeDeclarationsFn(tree),
		"violation":       makeViolationFn(report),
		"log":             mustProxy(&logObject{}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
