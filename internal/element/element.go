// Package element adapts syntax tree nodes for editor requests. It converts
// between tree and protocol coordinates and classifies tokens into the
// roles the definition resolver understands: subroutine calls, method
// calls, class-method calls, package references, variables and POD links.
package element

import (
	"sort"
	"strings"

	"github.com/jward/perlnav/internal/syntax"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Element is one node of a tree.
type Element struct {
	Tree *syntax.Tree
	ID   syntax.NodeID
}

// New wraps id.
func New(t *syntax.Tree, id syntax.NodeID) Element {
	return Element{Tree: t, ID: id}
}

func (e Element) Kind() syntax.Kind { return e.Tree.Kind(e.ID) }

func (e Element) Text() string { return e.Tree.Text(e.ID) }

// Line and Col are the 1-indexed tree position of the first character.
func (e Element) Line() int { return e.Tree.Line(e.ID) }

func (e Element) Col() int { return e.Tree.Col(e.ID) }

// Range returns the half-open protocol range covered by the element.
func (e Element) Range() protocol.Range {
	el, ec := e.Tree.EndPosition(e.ID)
	return protocol.Range{
		Start: ToProtocol(e.Line(), e.Col()),
		End:   ToProtocol(el, ec),
	}
}

// Statement returns the statement containing the element.
func (e Element) Statement() syntax.NodeID {
	return e.Tree.StatementOf(e.ID)
}

// FindElementsAt returns the tokens covering the 1-indexed column on a
// line, closest start column first. A token covers the columns from its
// first character through the column just past its last one, so a cursor
// placed right after a word still finds it. Tokens continuing from an
// earlier line start at column 1 for this purpose. Whitespace is skipped.
func FindElementsAt(t *syntax.Tree, line, col int) []Element {
	type hit struct {
		el    Element
		start int
	}
	var hits []hit
	for _, id := range t.LeavesOnLine(line) {
		if t.Kind(id) == syntax.TokenWhitespace {
			continue
		}
		start := 1
		if t.Line(id) == line {
			start = t.Col(id)
		}
		end := lineEndCol(t, line)
		if el, ec := t.EndPosition(id); el == line {
			end = ec
		}
		if start <= col && col <= end {
			hits = append(hits, hit{el: New(t, id), start: start})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return abs(hits[i].start-col) < abs(hits[j].start-col)
	})
	out := make([]Element, len(hits))
	for i, h := range hits {
		out[i] = h.el
	}
	return out
}

func lineEndCol(t *syntax.Tree, line int) int {
	_, end, ok := t.LineSpan(line)
	if !ok {
		return 0
	}
	_, col := t.PositionOf(end)
	return col
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// =============================================================================
// Classification
// =============================================================================

// nonCallWords never name a user subroutine.
var nonCallWords = map[string]bool{
	"my": true, "our": true, "local": true, "state": true, "sub": true,
	"package": true, "use": true, "no": true, "require": true,
	"if": true, "elsif": true, "else": true, "unless": true, "while": true,
	"until": true, "for": true, "foreach": true, "continue": true,
	"return": true, "last": true, "next": true, "redo": true, "goto": true,
	"do": true, "eval": true, "BEGIN": true, "END": true, "INIT": true,
	"CHECK": true, "UNITCHECK": true, "__PACKAGE__": true, "__FILE__": true,
	"__LINE__": true, "__SUB__": true, "SUPER": true,
}

func (e Element) prevSig() syntax.NodeID {
	if !e.Kind().IsToken() {
		return syntax.NoNode
	}
	return e.Tree.PrevToken(e.ID)
}

func (e Element) nextSig() syntax.NodeID {
	if !e.Kind().IsToken() {
		return syntax.NoNode
	}
	return e.Tree.NextToken(e.ID)
}

func (e Element) isOp(id syntax.NodeID, op string) bool {
	return e.Tree.Kind(id) == syntax.TokenOperator && e.Tree.Text(id) == op
}

func (e Element) afterArrow() bool { return e.isOp(e.prevSig(), "->") }

func (e Element) beforeArrow() bool { return e.isOp(e.nextSig(), "->") }

// nameWord reports whether a word sits in a declaring or module position
// rather than a call position.
func (e Element) nameWord() bool {
	t := e.Tree
	st := e.Statement()
	switch t.Kind(st) {
	case syntax.StatementSub, syntax.StatementPackage:
		return t.SChild(st, 1) == e.ID
	case syntax.StatementInclude:
		return t.IncludeModuleNode(st) == e.ID
	}
	if e.isOp(e.nextSig(), "=>") {
		return true
	}
	// {key}
	p, n := e.prevSig(), e.nextSig()
	return t.Kind(p) == syntax.TokenStructure && t.Text(p) == "{" &&
		t.Kind(t.Parent(p)) == syntax.StructureSubscript &&
		t.Kind(n) == syntax.TokenStructure && t.Text(n) == "}"
}

// SubroutineCallName returns the name of a plain function call: a bare or
// package-qualified word in call position, or an `&name` symbol.
func (e Element) SubroutineCallName() (string, bool) {
	switch e.Kind() {
	case syntax.TokenSymbol:
		if text := e.Text(); strings.HasPrefix(text, "&") && len(text) > 1 {
			return text[1:], true
		}
		return "", false
	case syntax.TokenWord:
	default:
		return "", false
	}
	text := e.Text()
	if nonCallWords[text] || strings.HasSuffix(text, "::") {
		return "", false
	}
	if e.afterArrow() || e.beforeArrow() || e.nameWord() {
		return "", false
	}
	return text, true
}

// MethodCallName returns the method of an `$obj->method` call. The name is
// returned as written, including any SUPER:: prefix.
func (e Element) MethodCallName() (string, bool) {
	if e.Kind() != syntax.TokenWord || !e.afterArrow() {
		return "", false
	}
	arrow := e.prevSig()
	invocant := e.Tree.PrevToken(arrow)
	if invocant == syntax.NoNode || e.Tree.Kind(invocant) == syntax.TokenWord {
		return "", false
	}
	return e.Text(), true
}

// ClassMethodCall returns the class and method of a `Class->method` call
// when the element is the method word.
func (e Element) ClassMethodCall() (class, method string, ok bool) {
	if e.Kind() != syntax.TokenWord || !e.afterArrow() {
		return "", "", false
	}
	invocant := e.Tree.PrevToken(e.prevSig())
	if invocant == syntax.NoNode || e.Tree.Kind(invocant) != syntax.TokenWord {
		return "", "", false
	}
	return strings.TrimSuffix(e.Tree.Text(invocant), "::"), e.Text(), true
}

// PackageReference returns the package named by the element and, when the
// column points into an imported name, that symbol. It recognizes the
// module of a use/no/require statement, a class name before `->`, words
// inside the import list of a use statement, and package-qualified words
// with the column past the final `::`.
func (e Element) PackageReference(col int) (pkg, symbol string, ok bool) {
	t := e.Tree
	st := e.Statement()
	switch e.Kind() {
	case syntax.TokenWord:
		text := e.Text()
		if t.Kind(st) == syntax.StatementInclude && t.IncludeModuleNode(st) == e.ID {
			return text, "", true
		}
		if e.beforeArrow() && !e.afterArrow() {
			return strings.TrimSuffix(text, "::"), "", true
		}
		if mod := importingModule(t, st); mod != "" && mod != text {
			return mod, text, true
		}
		if i := strings.LastIndex(text, "::"); i > 0 && i+2 < len(text) {
			if col-e.Col() >= i+2 {
				return text[:i], text[i+2:], true
			}
			return text[:i], "", true
		}
	case syntax.TokenQuoteLike, syntax.TokenQuote:
		mod := importingModule(t, st)
		if mod == "" {
			return "", "", false
		}
		word, ok := e.wordAt(col)
		if !ok {
			return mod, "", true
		}
		if superclassPragmas[mod] {
			return word, "", true
		}
		return mod, strings.TrimPrefix(word, "&"), true
	}
	return "", "", false
}

// wordAt returns the string under the column for quotes and qw() lists.
func (e Element) wordAt(col int) (string, bool) {
	t := e.Tree
	if e.Kind() == syntax.TokenQuote {
		return t.StringValue(e.ID), true
	}
	for _, w := range t.QWWords(e.ID) {
		_, wc := t.PositionOf(w.Start)
		_, we := t.PositionOf(w.End)
		if wc <= col && col <= we {
			return w.Text, true
		}
	}
	return "", false
}

// superclassPragmas take package names as arguments.
var superclassPragmas = map[string]bool{"parent": true, "base": true}

// importingModule returns the module of a `use` statement whose import
// list contains the element, or "".
func importingModule(t *syntax.Tree, st syntax.NodeID) string {
	if t.IncludeType(st) != "use" {
		return ""
	}
	switch mod := t.IncludeModule(st); mod {
	case "strict", "warnings", "constant", "vars", "lib", "utf8", "feature":
		return ""
	default:
		return mod
	}
}

// VariableName returns the canonical name of a variable token, with the
// sigil of the container it accesses.
func (e Element) VariableName() (string, bool) {
	switch e.Kind() {
	case syntax.TokenSymbol, syntax.TokenArrayIndex:
		name := e.Tree.Symbol(e.ID)
		if strings.HasPrefix(name, "&") || strings.HasPrefix(name, "*") {
			return "", false
		}
		return name, true
	case syntax.TokenMagic:
		return e.Tree.Symbol(e.ID), true
	}
	return "", false
}

// DocumentationLink returns the target of a POD L<...> link under the
// 1-indexed position, when the element is POD.
func (e Element) DocumentationLink(line, col int) (string, bool) {
	if e.Kind() != syntax.TokenPod {
		return "", false
	}
	return DocumentationLink(e.Tree, line, col)
}
