package syntax

import (
	"strings"
	"unicode/utf8"
)

// Symbol returns the canonical name of a variable token: the sigil reflects
// the container actually accessed, so `$x[0]` is `@x`, `$h{k}` is `%h` and
// `$#x` is `@x`. Other tokens are returned unchanged.
func (t *Tree) Symbol(id NodeID) string {
	text := t.Text(id)
	switch t.Kind(id) {
	case TokenArrayIndex:
		return "@" + text[2:]
	case TokenSymbol, TokenMagic:
	default:
		return text
	}
	sigil := text[0]
	if sigil != '$' && sigil != '@' && sigil != '%' {
		return text
	}
	next := t.NextSibling(id)
	if next == NoNode || t.Kind(next) != StructureSubscript {
		return text
	}
	switch t.src[t.nodes[next].Start] {
	case '[':
		return "@" + text[1:]
	case '{':
		return "%" + text[1:]
	}
	return text
}

// StringValue returns the literal content of a quote token without its
// operator and delimiters. Escapes are left as written except in single
// quoted strings.
func (t *Tree) StringValue(id NodeID) string {
	text := t.Text(id)
	body, _, ok := quoteBody(text)
	if !ok {
		return text
	}
	if text[0] == '\'' {
		body = strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(body)
	}
	return body
}

// quoteBody strips a leading quote-like operator and the outer delimiters.
// at is the offset of the body inside text.
func quoteBody(text string) (body string, at int, ok bool) {
	i := 0
	for i < len(text) && isAlpha(text[i]) {
		i++
	}
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if len(text)-i < 2 {
		return "", 0, false
	}
	close, _ := closingDelimiter(text[i])
	end := strings.LastIndexByte(text, close)
	if end <= i {
		return "", 0, false
	}
	return text[i+1 : end], i + 1, true
}

// WordSpan is one word of a qw() list with its byte offsets in the source.
type WordSpan struct {
	Text  string
	Start int
	End   int
}

// QWWords splits a qw() token into its words.
func (t *Tree) QWWords(id NodeID) []WordSpan {
	text := t.Text(id)
	if !strings.HasPrefix(text, "qw") {
		return nil
	}
	body, at, ok := quoteBody(text)
	if !ok {
		return nil
	}
	base := t.nodes[id].Start + at
	var out []WordSpan
	i := 0
	for i < len(body) {
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		j := i
		for j < len(body) && !isSpace(body[j]) {
			j++
		}
		if j > i {
			out = append(out, WordSpan{Text: body[i:j], Start: base + i, End: base + j})
		}
		i = j
	}
	return out
}

// OffsetOf converts a 1-indexed line and rune column into a byte offset.
// Columns past the end of the line clamp to the line end.
func (t *Tree) OffsetOf(line, col int) (int, bool) {
	start, end, ok := t.LineSpan(line)
	if !ok || col < 1 {
		return 0, false
	}
	off := start
	for c := 1; c < col && off < end; c++ {
		_, size := utf8.DecodeRune(t.src[off:end])
		off += size
	}
	return off, true
}
