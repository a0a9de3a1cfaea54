package syntax

import (
	"sort"
	"unicode/utf8"
)

// NodeID addresses a node inside its Tree's arena.
type NodeID int32

// NoNode is returned by navigation methods when there is no such node.
const NoNode NodeID = -1

// Node is one arena slot. Parent, children and siblings are indices into
// the same arena, never pointers.
type Node struct {
	Kind     Kind
	Parent   NodeID
	Index    int32 // position inside the parent's Children
	Children []NodeID

	// Start and End are byte offsets into the source, half-open.
	Start int
	End   int

	// Line and Col are the 1-indexed position of Start. Columns count
	// runes, not bytes.
	Line int
	Col  int

	leaf int32 // position in Tree.leaves for tokens, -1 otherwise
}

// Tree is an immutable parse of one source text. Trees are built once by
// Parse and only read afterwards, so they are safe to share between
// goroutines.
type Tree struct {
	src        []byte
	nodes      []Node
	leaves     []NodeID
	lineStarts []int
}

// Root returns the Document node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Source returns the bytes the tree was parsed from.
func (t *Tree) Source() []byte { return t.src }

// Node returns the arena slot for id. The returned value must not be
// modified.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

func (t *Tree) Kind(id NodeID) Kind {
	if id == NoNode {
		return KindInvalid
	}
	return t.nodes[id].Kind
}

func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].Children }

// Text returns the raw source covered by id.
func (t *Tree) Text(id NodeID) string {
	n := &t.nodes[id]
	return string(t.src[n.Start:n.End])
}

// Line returns the 1-indexed line of the first character of id.
func (t *Tree) Line(id NodeID) int { return t.nodes[id].Line }

// Col returns the 1-indexed column of the first character of id.
func (t *Tree) Col(id NodeID) int { return t.nodes[id].Col }

// EndPosition returns the 1-indexed line and column just past the last
// character of id.
func (t *Tree) EndPosition(id NodeID) (line, col int) {
	return t.PositionOf(t.nodes[id].End)
}

// PositionOf converts a byte offset into a 1-indexed line and rune column.
func (t *Tree) PositionOf(off int) (line, col int) {
	if off > len(t.src) {
		off = len(t.src)
	}
	i := sort.Search(len(t.lineStarts), func(i int) bool { return t.lineStarts[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, utf8.RuneCount(t.src[t.lineStarts[i]:off]) + 1
}

// LineCount returns the number of lines in the source.
func (t *Tree) LineCount() int { return len(t.lineStarts) }

// LineSpan returns the byte offsets of a 1-indexed line, excluding its
// newline. ok is false when the line does not exist.
func (t *Tree) LineSpan(line int) (start, end int, ok bool) {
	if line < 1 || line > len(t.lineStarts) {
		return 0, 0, false
	}
	start = t.lineStarts[line-1]
	if line < len(t.lineStarts) {
		end = t.lineStarts[line] - 1
	} else {
		end = len(t.src)
	}
	if end > start && t.src[end-1] == '\r' {
		end--
	}
	return start, end, true
}

// Child returns the i-th child of id or NoNode.
func (t *Tree) Child(id NodeID, i int) NodeID {
	c := t.nodes[id].Children
	if i < 0 || i >= len(c) {
		return NoNode
	}
	return c[i]
}

// SChildren returns the significant children of id.
func (t *Tree) SChildren(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind.IsSignificant() {
			out = append(out, c)
		}
	}
	return out
}

// SChild returns the i-th significant child of id or NoNode.
func (t *Tree) SChild(id NodeID, i int) NodeID {
	for _, c := range t.nodes[id].Children {
		if !t.nodes[c].Kind.IsSignificant() {
			continue
		}
		if i == 0 {
			return c
		}
		i--
	}
	return NoNode
}

func (t *Tree) NextSibling(id NodeID) NodeID {
	n := &t.nodes[id]
	if n.Parent == NoNode {
		return NoNode
	}
	return t.Child(n.Parent, int(n.Index)+1)
}

func (t *Tree) PrevSibling(id NodeID) NodeID {
	n := &t.nodes[id]
	if n.Parent == NoNode {
		return NoNode
	}
	return t.Child(n.Parent, int(n.Index)-1)
}

// SNextSibling returns the next significant sibling of id.
func (t *Tree) SNextSibling(id NodeID) NodeID {
	for s := t.NextSibling(id); s != NoNode; s = t.NextSibling(s) {
		if t.nodes[s].Kind.IsSignificant() {
			return s
		}
	}
	return NoNode
}

// SPrevSibling returns the previous significant sibling of id.
func (t *Tree) SPrevSibling(id NodeID) NodeID {
	for s := t.PrevSibling(id); s != NoNode; s = t.PrevSibling(s) {
		if t.nodes[s].Kind.IsSignificant() {
			return s
		}
	}
	return NoNode
}

// NextToken returns the next significant token in source order, crossing
// node boundaries. id must be a token.
func (t *Tree) NextToken(id NodeID) NodeID {
	for i := int(t.nodes[id].leaf) + 1; i < len(t.leaves); i++ {
		if l := t.leaves[i]; t.nodes[l].Kind.IsSignificant() {
			return l
		}
	}
	return NoNode
}

// PrevToken returns the previous significant token in source order.
func (t *Tree) PrevToken(id NodeID) NodeID {
	for i := int(t.nodes[id].leaf) - 1; i >= 0; i-- {
		if l := t.leaves[i]; t.nodes[l].Kind.IsSignificant() {
			return l
		}
	}
	return NoNode
}

// Tokens returns every leaf in source order.
func (t *Tree) Tokens() []NodeID { return t.leaves }

// FirstToken returns the first leaf under id, or NoNode for an empty node.
func (t *Tree) FirstToken(id NodeID) NodeID {
	for t.nodes[id].Kind.IsToken() == false {
		c := t.nodes[id].Children
		if len(c) == 0 {
			return NoNode
		}
		id = c[0]
	}
	return id
}

// Ancestor reports whether a is a proper ancestor of id.
func (t *Tree) Ancestor(a, id NodeID) bool {
	for p := t.nodes[id].Parent; p != NoNode; p = t.nodes[p].Parent {
		if p == a {
			return true
		}
	}
	return false
}

// Walk visits id and its descendants depth-first in source order. Returning
// false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.Walk(c, fn)
	}
}

// Find returns every node under id (inclusive) of the given kind.
func (t *Tree) Find(id NodeID, kind Kind) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if t.nodes[n].Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// LeavesOnLine returns the tokens whose span intersects the given 1-indexed
// line, in source order.
func (t *Tree) LeavesOnLine(line int) []NodeID {
	start, end, ok := t.LineSpan(line)
	if !ok {
		return nil
	}
	i := sort.Search(len(t.leaves), func(i int) bool { return t.nodes[t.leaves[i]].End > start })
	var out []NodeID
	for ; i < len(t.leaves); i++ {
		n := &t.nodes[t.leaves[i]]
		if n.Start > end || (n.Start == end && n.End > end) {
			break
		}
		out = append(out, t.leaves[i])
	}
	return out
}
