package syntax

// builder folds the token stream into statements and structures. It is
// tolerant of unbalanced brackets: an unclosed structure ends at the end
// of input and a stray closer becomes a statement of its own.
type builder struct {
	t    *Tree
	toks []token
	i    int
}

func (b *builder) newNode(kind Kind, parent NodeID) NodeID {
	id := NodeID(len(b.t.nodes))
	b.t.nodes = append(b.t.nodes, Node{Kind: kind, Parent: parent, leaf: -1})
	if parent != NoNode {
		p := &b.t.nodes[parent]
		b.t.nodes[id].Index = int32(len(p.Children))
		p.Children = append(p.Children, id)
	}
	return id
}

// take moves the current token under parent.
func (b *builder) take(parent NodeID) NodeID {
	tk := b.toks[b.i]
	id := b.newNode(tk.kind, parent)
	n := &b.t.nodes[id]
	n.Start, n.End = tk.start, tk.end
	n.leaf = int32(len(b.t.leaves))
	b.t.leaves = append(b.t.leaves, id)
	b.i++
	return id
}

// takeUntil moves tokens up to (not including) index j under parent.
func (b *builder) takeUntil(parent NodeID, j int) {
	for b.i < j {
		b.take(parent)
	}
}

func (b *builder) text(i int) string {
	tk := b.toks[i]
	return string(b.t.src[tk.start:tk.end])
}

func (b *builder) structChar(i int) byte {
	if i < 0 || i >= len(b.toks) || b.toks[i].kind != TokenStructure {
		return 0
	}
	return b.t.src[b.toks[i].start]
}

// nextSig returns the index of the first significant token at or after i,
// or len(toks).
func (b *builder) nextSig(i int) int {
	for i < len(b.toks) && !b.toks[i].kind.IsSignificant() {
		i++
	}
	return i
}

func (b *builder) isWord(i int, words ...string) bool {
	if i >= len(b.toks) || b.toks[i].kind != TokenWord {
		return false
	}
	if len(words) == 0 {
		return true
	}
	w := b.text(i)
	for _, x := range words {
		if w == x {
			return true
		}
	}
	return false
}

func (b *builder) isOperator(i int, op string) bool {
	return i < len(b.toks) && b.toks[i].kind == TokenOperator && b.text(i) == op
}

func (b *builder) build() {
	root := b.newNode(Document, NoNode)
	b.statements(root, 0, false)
}

// statements fills parent until closer (not consumed) or end of input.
// inner marks the contents of lists, conditions, constructors and
// subscripts, which hold expressions rather than full statements.
func (b *builder) statements(parent NodeID, closer byte, inner bool) {
	for b.i < len(b.toks) {
		if !b.toks[b.i].kind.IsSignificant() {
			b.take(parent)
			continue
		}
		if c := b.structChar(b.i); c == ')' || c == ']' || c == '}' {
			if closer != 0 {
				return
			}
			st := b.newNode(Statement, parent)
			b.take(st)
			continue
		}
		b.statement(parent, inner)
	}
}

var compoundWords = map[string]bool{
	"if": true, "unless": true, "while": true, "until": true, "for": true, "foreach": true,
}

var scheduledWords = map[string]bool{
	"BEGIN": true, "END": true, "INIT": true, "CHECK": true, "UNITCHECK": true,
}

func (b *builder) classify(inner bool) Kind {
	i := b.i
	tk := b.toks[i]
	if tk.kind == TokenSeparator {
		if b.text(i) == "__DATA__" {
			return StatementData
		}
		return StatementEnd
	}
	if b.structChar(i) == ';' {
		return StatementNull
	}
	if inner {
		if b.isWord(i, "my", "our", "local", "state") {
			return StatementVariable
		}
		return StatementExpression
	}
	if b.structChar(i) == '{' {
		return StatementCompound
	}
	if tk.kind != TokenWord {
		return Statement
	}
	next := b.nextSig(i + 1)
	switch w := b.text(i); {
	case w == "package":
		return StatementPackage
	case w == "sub" && b.isWord(next) && !b.isOperator(b.nextSig(next+1), "=>"):
		return StatementSub
	case scheduledWords[w] && b.structChar(next) == '{':
		return StatementScheduled
	case w == "my" || w == "our" || w == "local" || w == "state":
		return StatementVariable
	case w == "use" || w == "no" || w == "require":
		return StatementInclude
	case compoundWords[w]:
		return StatementCompound
	case w == "return" || w == "last" || w == "next" || w == "redo" || w == "goto":
		return StatementBreak
	}
	// LABEL: followed by a loop or a bare block
	if b.isOperator(next, ":") {
		after := b.nextSig(next + 1)
		if b.structChar(after) == '{' || (after < len(b.toks) && compoundWords[b.text(after)] && b.isWord(after)) {
			return StatementCompound
		}
	}
	return Statement
}

func (b *builder) statement(parent NodeID, inner bool) {
	kind := b.classify(inner)
	st := b.newNode(kind, parent)
	switch kind {
	case StatementNull:
		b.take(st)
		return
	case StatementEnd, StatementData:
		b.takeUntil(st, len(b.toks))
		return
	}

	blockEnds := kind == StatementSub || kind == StatementScheduled ||
		kind == StatementPackage || kind == StatementCompound
	var last NodeID = NoNode
	for {
		j := b.nextSig(b.i)
		if j >= len(b.toks) {
			return
		}
		c := b.structChar(j)
		if b.toks[j].kind == TokenSeparator || c == ')' || c == ']' || c == '}' {
			return
		}
		b.takeUntil(st, j)
		switch c {
		case ';':
			b.take(st)
			return
		case '{':
			sk := b.braceKind(st, kind, last)
			last = b.structure(st, sk)
			if sk == StructureBlock && blockEnds {
				n := b.nextSig(b.i)
				if kind == StatementCompound && b.isWord(n, "elsif", "else", "continue") {
					continue
				}
				return
			}
		case '(':
			sk := StructureList
			if kind == StatementCompound && last != NoNode && b.t.nodes[last].Kind == TokenWord {
				switch b.t.Text(last) {
				case "if", "elsif", "unless", "while", "until":
					sk = StructureCondition
				}
			}
			last = b.structure(st, sk)
		case '[':
			last = b.structure(st, b.bracketKind(last))
		default:
			last = b.take(st)
		}
	}
}

func (b *builder) structure(parent NodeID, kind Kind) NodeID {
	s := b.newNode(kind, parent)
	close, _ := closingDelimiter(b.t.src[b.toks[b.i].start])
	b.take(s)
	b.statements(s, close, kind != StructureBlock)
	if b.structChar(b.i) == close {
		b.take(s)
	}
	return s
}

var blockWords = map[string]bool{
	"sub": true, "do": true, "eval": true, "map": true, "grep": true, "sort": true,
	"else": true, "elsif": true, "continue": true, "try": true, "catch": true, "finally": true,
	"BEGIN": true, "END": true, "INIT": true, "CHECK": true, "UNITCHECK": true,
}

// braceKind decides what an opening brace starts from the significant
// node before it.
func (b *builder) braceKind(st NodeID, kind Kind, prev NodeID) Kind {
	switch kind {
	case StatementSub, StatementScheduled, StatementPackage, StatementCompound:
		return StructureBlock
	}
	if prev == NoNode {
		return StructureConstructor
	}
	switch pk := b.t.nodes[prev].Kind; pk {
	case TokenSymbol, TokenMagic, StructureSubscript:
		return StructureSubscript
	case TokenOperator:
		if b.t.Text(prev) == "->" {
			return StructureSubscript
		}
		return StructureConstructor
	case TokenCast, StructureList:
		return StructureBlock
	case StructureBlock:
		if b.afterCast(prev) {
			return StructureSubscript
		}
		return StructureConstructor
	case TokenWord:
		if blockWords[b.t.Text(prev)] {
			return StructureBlock
		}
		if b.looksLikeHash(b.i) {
			return StructureConstructor
		}
		return StructureBlock
	}
	return StructureConstructor
}

func (b *builder) bracketKind(prev NodeID) Kind {
	if prev == NoNode {
		return StructureConstructor
	}
	switch b.t.nodes[prev].Kind {
	case TokenSymbol, TokenMagic, StructureSubscript, StructureList, TokenQuoteLike:
		return StructureSubscript
	case TokenOperator:
		if b.t.Text(prev) == "->" {
			return StructureSubscript
		}
	case StructureBlock:
		if b.afterCast(prev) {
			return StructureSubscript
		}
	}
	return StructureConstructor
}

func (b *builder) afterCast(block NodeID) bool {
	p := b.t.SPrevSibling(block)
	return p != NoNode && b.t.nodes[p].Kind == TokenCast
}

// looksLikeHash peeks inside the brace at i: `{}` or a leading key followed
// by `=>` or `,` reads as an anonymous hash.
func (b *builder) looksLikeHash(i int) bool {
	j := b.nextSig(i + 1)
	if b.structChar(j) == '}' {
		return true
	}
	if j >= len(b.toks) {
		return false
	}
	switch b.toks[j].kind {
	case TokenWord, TokenQuote, TokenSymbol, TokenNumber:
		k := b.nextSig(j + 1)
		return b.isOperator(k, "=>") || b.isOperator(k, ",")
	}
	return false
}

// finish computes spans and positions for interior nodes. Children always
// come after their parent in the arena, so a reverse pass sees every child
// before its parent.
func (b *builder) finish() {
	nodes := b.t.nodes
	for id := len(nodes) - 1; id >= 0; id-- {
		n := &nodes[id]
		if !n.Kind.IsToken() && len(n.Children) > 0 {
			n.Start = nodes[n.Children[0]].Start
			n.End = nodes[n.Children[len(n.Children)-1]].End
		}
	}
	for id := range nodes {
		nodes[id].Line, nodes[id].Col = b.t.PositionOf(nodes[id].Start)
	}
}
