// Package resolve maps a cursor position to the declarations it refers to.
//
// Candidates under the cursor are tried closest first. For each candidate
// the rules run in a fixed order and the first rule producing a location
// wins:
//
//	a. package-qualified subroutine call: index, then the module's file
//	b. unqualified subroutine call: index by name
//	c. Class->method: index by package and name, then the module's file
//	d. $obj->method: index by name, SUPER:: stripped
//	e. package or imported symbol reference
//	f. variable: lexical scope walk within the document
//
// When no candidate resolves, a POD L<...> link under the cursor is looked
// up as a package or Package::symbol.
package resolve

import (
	"context"
	"strings"

	"github.com/jward/perlnav/internal/element"
	"github.com/jward/perlnav/internal/extract"
	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
	"github.com/jward/perlnav/internal/workspace"
	"github.com/op/go-logging"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = logging.MustGetLogger("perlnav.resolve")

// Index is the lookup side of the workspace index.
type Index interface {
	FindPackage(name string) ([]*store.Entry, error)
	FindSubroutine(name string) ([]*store.Entry, error)
	FindPackageSubroutine(pkg, name string) ([]*store.Entry, error)
	FindVariable(pkg, name string) ([]*store.Entry, error)
}

// ModuleLocator finds the file implementing a package on the include path.
type ModuleLocator interface {
	Locate(ctx context.Context, pkg string) (string, bool)
}

// ParseFunc returns the tree of a file outside the index.
type ParseFunc func(path string) (*syntax.Tree, error)

// Document is the file the cursor is in.
type Document struct {
	URI  protocol.DocumentUri
	Tree *syntax.Tree
}

// Resolver is safe for concurrent use when its collaborators are.
type Resolver struct {
	index   Index
	modules ModuleLocator
	parse   ParseFunc
}

// New creates a Resolver. modules and parse may be nil, which disables the
// external module fallback.
func New(index Index, modules ModuleLocator, parse ParseFunc) *Resolver {
	return &Resolver{index: index, modules: modules, parse: parse}
}

// Resolve returns the declarations for the protocol position pos. An empty
// result means nothing was found. The only error is ctx's.
func (r *Resolver) Resolve(ctx context.Context, doc Document, pos protocol.Position) ([]protocol.Location, error) {
	line, col := element.FromProtocol(pos)
	for _, el := range element.FindElementsAt(doc.Tree, line, col) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if locs, rule := r.resolveElement(ctx, doc, el, col); len(locs) > 0 {
			log.Debugf("%s:%d:%d resolved by %s (%d)", doc.URI, line, col, rule, len(locs))
			metrics.Resolutions.WithLabelValues(rule).Inc()
			return locs, nil
		}
	}

	if target, ok := element.DocumentationLink(doc.Tree, line, col); ok {
		if locs := r.resolveLink(target); len(locs) > 0 {
			metrics.Resolutions.WithLabelValues("pod_link").Inc()
			return locs, nil
		}
	}
	metrics.Resolutions.WithLabelValues("miss").Inc()
	return nil, nil
}

func (r *Resolver) resolveElement(ctx context.Context, doc Document, el element.Element, col int) ([]protocol.Location, string) {
	if name, ok := el.SubroutineCallName(); ok {
		if pkg, sub, qualified := splitQualified(name); qualified {
			if locs := r.packageSubroutine(ctx, pkg, sub); len(locs) > 0 {
				return locs, "qualified_call"
			}
		} else if locs := r.lookup(r.index.FindSubroutine(name)); len(locs) > 0 {
			return locs, "call"
		}
	}

	if class, method, ok := el.ClassMethodCall(); ok {
		if locs := r.packageSubroutine(ctx, class, method); len(locs) > 0 {
			return locs, "class_method"
		}
	}

	if method, ok := el.MethodCallName(); ok {
		method = strings.TrimPrefix(method, "SUPER::")
		if locs := r.lookup(r.index.FindSubroutine(method)); len(locs) > 0 {
			return locs, "method"
		}
	}

	if pkg, sym, ok := el.PackageReference(col); ok {
		if locs := r.packageReference(ctx, pkg, sym); len(locs) > 0 {
			return locs, "package"
		}
	}

	if name, ok := el.VariableName(); ok {
		if decl := FindVariableDeclaration(doc.Tree, el.ID, name); decl != syntax.NoNode {
			return []protocol.Location{{URI: doc.URI, Range: element.New(doc.Tree, decl).Range()}}, "variable"
		}
	}
	return nil, ""
}

// packageSubroutine looks pkg::name up in the index, then in the file
// implementing pkg on the include path.
func (r *Resolver) packageSubroutine(ctx context.Context, pkg, name string) []protocol.Location {
	if locs := r.lookup(r.index.FindPackageSubroutine(pkg, name)); len(locs) > 0 {
		return locs
	}
	return r.moduleSubroutine(ctx, pkg, name)
}

func (r *Resolver) packageReference(ctx context.Context, pkg, sym string) []protocol.Location {
	if sym == "" {
		if locs := r.lookup(r.index.FindPackage(pkg)); len(locs) > 0 {
			return locs
		}
		if path, ok := r.locate(ctx, pkg); ok {
			return []protocol.Location{{URI: protocol.DocumentUri(workspace.PathToURI(path))}}
		}
		return nil
	}

	switch sym[0] {
	case '$', '@', '%':
		if locs := r.lookup(r.index.FindVariable(pkg, sym)); len(locs) > 0 {
			return locs
		}
	default:
		if locs := r.packageSubroutine(ctx, pkg, sym); len(locs) > 0 {
			return locs
		}
	}
	// Foo::Bar with the cursor on Bar may name a package rather than a sub.
	return r.lookup(r.index.FindPackage(pkg + "::" + strings.TrimLeft(sym, "$@%")))
}

func (r *Resolver) resolveLink(target string) []protocol.Location {
	if locs := r.lookup(r.index.FindPackage(target)); len(locs) > 0 {
		return locs
	}
	if pkg, name, ok := splitQualified(target); ok {
		return r.lookup(r.index.FindPackageSubroutine(pkg, name))
	}
	return nil
}

func (r *Resolver) locate(ctx context.Context, pkg string) (string, bool) {
	if r.modules == nil {
		return "", false
	}
	return r.modules.Locate(ctx, pkg)
}

// moduleSubroutine scans the file implementing pkg for a subroutine or
// constant called name.
func (r *Resolver) moduleSubroutine(ctx context.Context, pkg, name string) []protocol.Location {
	if r.parse == nil {
		return nil
	}
	path, ok := r.locate(ctx, pkg)
	if !ok {
		return nil
	}
	tree, err := r.parse(path)
	if err != nil {
		log.Warningf("module %s (%s): %v", pkg, path, err)
		return nil
	}
	uri := protocol.DocumentUri(workspace.PathToURI(path))
	var locs []protocol.Location
	for _, e := range extract.Entries(tree) {
		if e.Name != name || (e.Kind != store.KindSubroutine && e.Kind != store.KindConstant) {
			continue
		}
		locs = append(locs, protocol.Location{URI: uri, Range: entryRange(e)})
	}
	return locs
}

func (r *Resolver) lookup(entries []*store.Entry, err error) []protocol.Location {
	if err != nil {
		log.Warningf("index lookup: %v", err)
		return nil
	}
	locs := make([]protocol.Location, 0, len(entries))
	for _, e := range entries {
		locs = append(locs, protocol.Location{URI: protocol.DocumentUri(e.URI), Range: entryRange(e)})
	}
	return locs
}

func entryRange(e *store.Entry) protocol.Range {
	return element.Range(e.StartLine, e.StartCol, e.EndLine, e.EndCol)
}

// splitQualified splits Foo::Bar::baz into Foo::Bar and baz.
func splitQualified(name string) (pkg, sub string, ok bool) {
	i := strings.LastIndex(name, "::")
	if i < 0 || i+2 >= len(name) {
		return "", name, false
	}
	return name[:i], name[i+2:], true
}
