// Package extract walks a syntax tree and produces the declarations the
// workspace index stores: packages, named subroutines, constants declared
// with `use constant`, and our/state/local variables.
//
// A `package NAME;` statement applies until the next package statement in
// the same block or the end of that block. `package NAME { ... }` applies
// to its block only.
package extract

import (
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
)

// Entries returns the declarations of t in source order. Ranges are
// 0-indexed and half-open; FileID is left for the store to fill.
func Entries(t *syntax.Tree) []*store.Entry {
	x := &extractor{t: t}
	x.scope(t.Root(), "")
	return x.out
}

type extractor struct {
	t   *syntax.Tree
	out []*store.Entry
}

// scope visits the children of a document or block. pkg is the package in
// effect on entry; a package statement changes it for later siblings.
func (x *extractor) scope(n syntax.NodeID, pkg string) {
	for _, c := range x.t.Children(n) {
		pkg = x.visit(c, pkg)
	}
}

// visit handles one node and returns the package in effect after it.
func (x *extractor) visit(n syntax.NodeID, pkg string) string {
	t := x.t
	switch t.Kind(n) {
	case syntax.StatementPackage:
		name := t.PackageName(n)
		if name == "" {
			return pkg
		}
		x.add(store.KindPackage, name, "", n)
		if block := t.BlockOf(n); block != syntax.NoNode {
			x.scope(block, name)
			return pkg
		}
		return name

	case syntax.StatementSub:
		if name := t.SubName(n); name != "" && !t.IsForwardSub(n) {
			x.add(store.KindSubroutine, name, pkg, n)
		}

	case syntax.StatementInclude:
		for _, tok := range t.ConstantNames(n) {
			if name := t.ConstantName(tok); name != "" {
				x.add(store.KindConstant, name, pkg, tok)
			}
		}
		return pkg

	case syntax.StatementVariable:
		switch t.DeclType(n) {
		case "our", "state", "local":
			for _, sym := range t.DeclaredSymbols(n) {
				x.add(store.KindVariable, t.Symbol(sym), pkg, sym)
			}
		}

	case syntax.StructureBlock:
		x.scope(n, pkg)
		return pkg
	}

	if !t.Kind(n).IsToken() {
		x.scope(n, pkg)
	}
	return pkg
}

func (x *extractor) add(kind, name, pkg string, n syntax.NodeID) {
	sl, sc := x.t.Line(n), x.t.Col(n)
	el, ec := x.t.EndPosition(n)
	x.out = append(x.out, &store.Entry{
		Kind:      kind,
		Name:      name,
		Package:   pkg,
		StartLine: sl - 1,
		StartCol:  sc - 1,
		EndLine:   el - 1,
		EndCol:    ec - 1,
	})
}
