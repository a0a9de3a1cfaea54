// Package syntax parses Perl source into an immutable, navigable tree.
//
// The parser works the way PPI does: it does not try to understand Perl
// fully, it tokenizes with enough context to get quoting right and then
// groups tokens into statements and bracketed structures. Every node
// lives in one arena inside the Tree and refers to its parent and
// children by NodeID.
package syntax

import "fmt"

// ParseError reports source the lexer could not tokenize, such as an
// unterminated string or heredoc.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// Parse builds a Tree from src. The returned tree keeps a reference to src,
// which must not be modified afterwards.
func Parse(src []byte) (*Tree, error) {
	t := &Tree{src: src, lineStarts: lineStarts(src)}
	lx := newLexer(t)
	if err := lx.run(); err != nil {
		return nil, err
	}
	b := &builder{t: t, toks: lx.toks}
	t.nodes = make([]Node, 0, len(lx.toks)+len(lx.toks)/2+1)
	t.leaves = make([]NodeID, 0, len(lx.toks))
	b.build()
	b.finish()
	return t, nil
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}
