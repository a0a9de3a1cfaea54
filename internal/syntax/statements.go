package syntax

// Statement accessors. Each takes the NodeID of a statement and returns a
// zero value when the statement is not of the expected kind.

// SubName returns the name of a `sub NAME ...` statement.
func (t *Tree) SubName(st NodeID) string {
	if t.Kind(st) != StatementSub {
		return ""
	}
	if w := t.SChild(st, 1); w != NoNode && t.Kind(w) == TokenWord {
		return t.Text(w)
	}
	return ""
}

// IsForwardSub reports whether a sub statement is a declaration without a
// body, such as `sub foo;`.
func (t *Tree) IsForwardSub(st NodeID) bool {
	return t.Kind(st) == StatementSub && t.BlockOf(st) == NoNode
}

// BlockOf returns the first block directly under n.
func (t *Tree) BlockOf(n NodeID) NodeID {
	for _, c := range t.nodes[n].Children {
		if t.nodes[c].Kind == StructureBlock {
			return c
		}
	}
	return NoNode
}

// PackageName returns the namespace declared by a package statement.
func (t *Tree) PackageName(st NodeID) string {
	if t.Kind(st) != StatementPackage {
		return ""
	}
	if w := t.SChild(st, 1); w != NoNode && t.Kind(w) == TokenWord {
		return t.Text(w)
	}
	return ""
}

// IncludeType returns "use", "no" or "require".
func (t *Tree) IncludeType(st NodeID) string {
	if t.Kind(st) != StatementInclude {
		return ""
	}
	return t.Text(t.SChild(st, 0))
}

// IncludeModuleNode returns the module word of an include statement, or
// NoNode for version requirements and dynamic requires.
func (t *Tree) IncludeModuleNode(st NodeID) NodeID {
	if t.Kind(st) != StatementInclude {
		return NoNode
	}
	w := t.SChild(st, 1)
	if w == NoNode || t.Kind(w) != TokenWord {
		return NoNode
	}
	return w
}

// IncludeModule returns the module name of an include statement.
func (t *Tree) IncludeModule(st NodeID) string {
	if w := t.IncludeModuleNode(st); w != NoNode {
		return t.Text(w)
	}
	return ""
}

// DeclType returns the declarator of a variable statement: my, our, local
// or state.
func (t *Tree) DeclType(st NodeID) string {
	if t.Kind(st) != StatementVariable {
		return ""
	}
	return t.Text(t.SChild(st, 0))
}

// DeclaredSymbols returns the symbol tokens bound by a variable statement,
// covering both `my $x` and `my ($x, @y)`.
func (t *Tree) DeclaredSymbols(st NodeID) []NodeID {
	if t.Kind(st) != StatementVariable {
		return nil
	}
	target := t.SChild(st, 1)
	switch t.Kind(target) {
	case TokenSymbol, TokenMagic:
		return []NodeID{target}
	case StructureList:
		var out []NodeID
		for _, expr := range t.nodes[target].Children {
			if !t.nodes[expr].Kind.IsStatement() {
				continue
			}
			for _, c := range t.nodes[expr].Children {
				if t.nodes[c].Kind == TokenSymbol {
					out = append(out, c)
				}
			}
		}
		return out
	}
	return nil
}

// DeclaredVariables returns the canonical names bound by a variable
// statement.
func (t *Tree) DeclaredVariables(st NodeID) []string {
	syms := t.DeclaredSymbols(st)
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, t.Symbol(s))
	}
	return out
}

// ConstantNames returns the tokens naming constants in a `use constant`
// statement, for both the `NAME => value` and `{ A => 1, B => 2 }` forms.
func (t *Tree) ConstantNames(st NodeID) []NodeID {
	mod := t.IncludeModuleNode(st)
	if mod == NoNode || t.Text(mod) != "constant" || t.IncludeType(st) != "use" {
		return nil
	}
	arg := t.SNextSibling(mod)
	if arg == NoNode {
		return nil
	}
	switch t.Kind(arg) {
	case TokenWord, TokenQuote:
		if next := t.SNextSibling(arg); next != NoNode && isPairOperator(t, next) {
			return []NodeID{arg}
		}
	case StructureConstructor:
		var out []NodeID
		for _, expr := range t.nodes[arg].Children {
			if !t.nodes[expr].Kind.IsStatement() {
				continue
			}
			for _, c := range t.nodes[expr].Children {
				k := t.nodes[c].Kind
				if k != TokenWord && k != TokenQuote {
					continue
				}
				if next := t.SNextSibling(c); next != NoNode && t.Kind(next) == TokenOperator && t.Text(next) == "=>" {
					out = append(out, c)
				}
			}
		}
		return out
	}
	return nil
}

func isPairOperator(t *Tree, n NodeID) bool {
	if t.Kind(n) != TokenOperator {
		return false
	}
	op := t.Text(n)
	return op == "=>" || op == ","
}

// ConstantName returns the name carried by a token from ConstantNames.
func (t *Tree) ConstantName(tok NodeID) string {
	if t.Kind(tok) == TokenQuote {
		return t.StringValue(tok)
	}
	return t.Text(tok)
}

// UseVars returns the variables named by a `use vars` pragma.
func (t *Tree) UseVars(st NodeID) []string {
	mod := t.IncludeModuleNode(st)
	if mod == NoNode || t.Text(mod) != "vars" {
		return nil
	}
	var out []string
	for a := t.SNextSibling(mod); a != NoNode; a = t.SNextSibling(a) {
		switch t.Kind(a) {
		case TokenQuoteLike:
			for _, w := range t.QWWords(a) {
				out = append(out, w.Text)
			}
		case TokenQuote:
			out = append(out, t.StringValue(a))
		}
	}
	return out
}

// Label returns the `LABEL:` prefix of a compound statement.
func (t *Tree) Label(st NodeID) string {
	first := t.SChild(st, 0)
	if first == NoNode || t.Kind(first) != TokenWord {
		return ""
	}
	if colon := t.SChild(st, 1); colon != NoNode && t.Kind(colon) == TokenOperator && t.Text(colon) == ":" {
		return t.Text(first)
	}
	return ""
}

func (t *Tree) compoundKeyword(st NodeID) NodeID {
	i := 0
	if t.Label(st) != "" {
		i = 2
	}
	return t.SChild(st, i)
}

// CompoundType returns if, unless, while, until, for (C-style), foreach,
// or "block" for a bare block.
func (t *Tree) CompoundType(st NodeID) string {
	if t.Kind(st) != StatementCompound {
		return ""
	}
	kw := t.compoundKeyword(st)
	if kw == NoNode || t.Kind(kw) != TokenWord {
		return "block"
	}
	switch w := t.Text(kw); w {
	case "for", "foreach":
		if list := t.firstChildOfKind(st, StructureList); list != NoNode && t.LoopVariableNode(st) == NoNode {
			for _, c := range t.nodes[list].Children {
				if t.nodes[c].Kind.IsStatement() && t.endsWithSemicolon(c) {
					return "for"
				}
			}
		}
		return "foreach"
	default:
		return w
	}
}

func (t *Tree) endsWithSemicolon(st NodeID) bool {
	c := t.nodes[st].Children
	if len(c) == 0 {
		return false
	}
	last := c[len(c)-1]
	return t.nodes[last].Kind == TokenStructure && t.Text(last) == ";"
}

func (t *Tree) firstChildOfKind(n NodeID, kind Kind) NodeID {
	for _, c := range t.nodes[n].Children {
		if t.nodes[c].Kind == kind {
			return c
		}
	}
	return NoNode
}

// LoopVariableNode returns the symbol token of a `foreach my $x (...)` or
// `for $x (...)` loop.
func (t *Tree) LoopVariableNode(st NodeID) NodeID {
	if t.Kind(st) != StatementCompound {
		return NoNode
	}
	kw := t.compoundKeyword(st)
	if kw == NoNode || t.Kind(kw) != TokenWord {
		return NoNode
	}
	if w := t.Text(kw); w != "for" && w != "foreach" {
		return NoNode
	}
	n := t.SNextSibling(kw)
	if n != NoNode && t.Kind(n) == TokenWord {
		switch t.Text(n) {
		case "my", "our", "state", "local":
			n = t.SNextSibling(n)
		}
	}
	if n != NoNode && t.Kind(n) == TokenSymbol {
		return n
	}
	return NoNode
}

// ConditionOf returns the condition structure of an if/unless/while/until
// statement.
func (t *Tree) ConditionOf(st NodeID) NodeID {
	return t.firstChildOfKind(st, StructureCondition)
}

// StatementOf returns the closest statement containing n, or n itself when
// it is a statement.
func (t *Tree) StatementOf(n NodeID) NodeID {
	for ; n != NoNode; n = t.nodes[n].Parent {
		if t.nodes[n].Kind.IsStatement() {
			return n
		}
	}
	return NoNode
}
