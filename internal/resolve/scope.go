package resolve

import "github.com/jward/perlnav/internal/syntax"

// FindVariableDeclaration walks outward from the node at id looking for
// the declaration of the canonical variable name. It returns the declaring
// symbol token (or the `use vars` statement), or NoNode.
//
// The walk is lexical and best-effort. At each enclosing block it scans
// the statements before the one it came from, keeping the closest
// preceding declaration. A foreach statement offers its loop variable and
// other compound statements their condition. The first scope with a match
// wins. Package globals declared in other files are never found.
func FindVariableDeclaration(t *syntax.Tree, id syntax.NodeID, name string) syntax.NodeID {
	if st := t.StatementOf(id); t.Kind(st) == syntax.StatementVariable {
		for _, sym := range t.DeclaredSymbols(st) {
			if sym == id {
				return id
			}
		}
	}

	visited := id
	for p := t.Parent(id); p != syntax.NoNode; visited, p = p, t.Parent(p) {
		switch t.Kind(p) {
		case syntax.Document, syntax.StructureBlock:
			found := syntax.NoNode
			for _, c := range t.Children(p) {
				if c == visited {
					break
				}
				if d := declaration(t, c, name); d != syntax.NoNode {
					found = d
				}
			}
			if found != syntax.NoNode {
				return found
			}

		case syntax.StatementCompound:
			if d := compoundDeclaration(t, p, name); d != syntax.NoNode {
				return d
			}
		}
	}
	return syntax.NoNode
}

// declaration checks one statement for a binding of name.
func declaration(t *syntax.Tree, st syntax.NodeID, name string) syntax.NodeID {
	switch t.Kind(st) {
	case syntax.StatementVariable:
		return declaredIn(t, st, name)
	case syntax.StatementInclude:
		for _, v := range t.UseVars(st) {
			if v == name {
				return st
			}
		}
	}
	return syntax.NoNode
}

func declaredIn(t *syntax.Tree, st syntax.NodeID, name string) syntax.NodeID {
	for _, sym := range t.DeclaredSymbols(st) {
		if t.Symbol(sym) == name {
			return sym
		}
	}
	return syntax.NoNode
}

// compoundDeclaration checks the loop variable of a foreach, or the
// declarations inside the condition (or C-style for list) of any other
// compound statement.
func compoundDeclaration(t *syntax.Tree, st syntax.NodeID, name string) syntax.NodeID {
	if t.CompoundType(st) == "foreach" {
		if lv := t.LoopVariableNode(st); lv != syntax.NoNode && t.Symbol(lv) == name {
			return lv
		}
		return syntax.NoNode
	}
	for _, c := range t.Children(st) {
		switch t.Kind(c) {
		case syntax.StructureCondition, syntax.StructureList:
		default:
			continue
		}
		for _, inner := range t.Children(c) {
			if t.Kind(inner) != syntax.StatementVariable {
				continue
			}
			if d := declaredIn(t, inner, name); d != syntax.NoNode {
				return d
			}
		}
	}
	return syntax.NoNode
}
