package syntax

import (
	"bytes"
	"strings"
)

type token struct {
	kind  Kind
	start int
	end   int
}

type pendingHeredoc struct {
	terminator string
	indented   bool
	at         int
}

// lexer splits Perl source into tokens. Perl cannot be tokenized without
// some knowledge of what came before, so the lexer tracks the last
// significant token and uses it to decide between ambiguous readings
// (regex or divide, hash sigil or modulus, heredoc or shift).
type lexer struct {
	src      []byte
	pos      int
	toks     []token
	last     int // index of the last significant token, -1 if none
	heredocs []pendingHeredoc
	tree     *Tree
}

func newLexer(t *Tree) *lexer {
	return &lexer{src: t.src, last: -1, tree: t}
}

func (l *lexer) fail(off int, msg string) error {
	line, col := l.tree.PositionOf(off)
	return &ParseError{Line: line, Col: col, Msg: msg}
}

func (l *lexer) emit(kind Kind, end int) {
	l.toks = append(l.toks, token{kind: kind, start: l.pos, end: end})
	if kind.IsSignificant() {
		l.last = len(l.toks) - 1
	}
	l.pos = end
}

func (l *lexer) at(i int) byte {
	if i < 0 || i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func (l *lexer) text(t token) string { return string(l.src[t.start:t.end]) }

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		if l.atLineStart() && l.podStart() {
			l.lexPod()
			continue
		}
		c := l.src[l.pos]
		var err error
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\n':
			err = l.lexWhitespace()
		case c == '#':
			l.emit(TokenComment, l.lineEnd(l.pos))
		case c == '"' || c == '\'':
			err = l.lexQuote(TokenQuote)
		case c == '`':
			err = l.lexQuote(TokenQuoteLike)
		case c == '$' || c == '@':
			l.lexVariable()
		case c == '%' || c == '&' || c == '*':
			if l.sigilPosition() {
				l.lexVariable()
			} else {
				l.lexOperator()
			}
		case c == '/':
			if l.prevTerm() {
				l.lexOperator()
			} else {
				err = l.lexRegexp()
			}
		case c == '<':
			err = l.lexAngle()
		case c == '-':
			l.lexMinus()
		case c == '.' && isDigit(l.at(l.pos+1)) && !l.prevTerm():
			l.lexNumber()
		case isDigit(c):
			l.lexNumber()
		case isIdentStart(c):
			var done bool
			done, err = l.lexWord()
			if done {
				return nil
			}
		case strings.IndexByte("{}()[];", c) >= 0:
			l.emit(TokenStructure, l.pos+1)
		default:
			l.lexOperator()
		}
		if err != nil {
			return err
		}
	}
	if len(l.heredocs) > 0 {
		return l.fail(l.heredocs[0].at, "unterminated heredoc "+l.heredocs[0].terminator)
	}
	return nil
}

func (l *lexer) atLineStart() bool { return l.pos == 0 || l.src[l.pos-1] == '\n' }

func (l *lexer) podStart() bool {
	return l.at(l.pos) == '=' && isAlpha(l.at(l.pos+1))
}

// lineEnd returns the offset of the newline ending the line containing
// off, or len(src).
func (l *lexer) lineEnd(off int) int {
	if i := bytes.IndexByte(l.src[off:], '\n'); i >= 0 {
		return off + i
	}
	return len(l.src)
}

func (l *lexer) nextLine(off int) int {
	e := l.lineEnd(off)
	if e < len(l.src) {
		return e + 1
	}
	return e
}

func (l *lexer) lexPod() {
	p := l.nextLine(l.pos)
	for p < len(l.src) {
		if bytes.HasPrefix(l.src[p:], []byte("=cut")) && !isIdentChar(l.at(p+4)) {
			p = l.nextLine(p)
			break
		}
		p = l.nextLine(p)
	}
	l.emit(TokenPod, p)
}

func (l *lexer) lexWhitespace() error {
	p := l.pos
	for p < len(l.src) {
		c := l.src[p]
		if c == '\n' {
			p++
			break
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\f' {
			break
		}
		p++
	}
	l.emit(TokenWhitespace, p)
	if l.src[p-1] == '\n' && len(l.heredocs) > 0 {
		return l.lexHeredocBodies()
	}
	return nil
}

func (l *lexer) lexHeredocBodies() error {
	for _, h := range l.heredocs {
		start := l.pos
		p := l.pos
		for {
			if p >= len(l.src) {
				return l.fail(h.at, "unterminated heredoc "+h.terminator)
			}
			line := strings.TrimRight(string(l.src[p:l.lineEnd(p)]), "\r")
			if h.indented {
				line = strings.TrimLeft(line, " \t")
			}
			p = l.nextLine(p)
			if line == h.terminator {
				break
			}
		}
		l.pos = start
		l.emit(TokenHereDocBody, p)
	}
	l.heredocs = l.heredocs[:0]
	return nil
}

// prevTerm reports whether the previous significant token ends an operand,
// meaning the next character should be read as a binary operator.
func (l *lexer) prevTerm() bool {
	if l.last < 0 {
		return false
	}
	t := l.toks[l.last]
	switch t.kind {
	case TokenSymbol, TokenMagic, TokenArrayIndex, TokenNumber, TokenQuote,
		TokenQuoteLike, TokenRegexp, TokenHereDoc:
		return true
	case TokenStructure:
		c := l.src[t.start]
		return c == ')' || c == ']' || c == '}'
	case TokenWord:
		if l.afterArrow(l.last) {
			return true
		}
		return !operandWords[l.text(t)]
	}
	return false
}

func (l *lexer) afterArrow(i int) bool {
	for j := i - 1; j >= 0; j-- {
		if l.toks[j].kind.IsSignificant() {
			return l.toks[j].kind == TokenOperator && l.text(l.toks[j]) == "->"
		}
	}
	return false
}

// sigilPosition decides whether %, & or * starts a variable. After an
// operand they are operators, except that a function name followed by a
// glued sigil (`keys %h`, `defined &foo`) still takes a variable.
func (l *lexer) sigilPosition() bool {
	if l.last >= 0 && l.toks[l.last].kind == TokenOperator && l.text(l.toks[l.last]) == "->" {
		return l.at(l.pos+1) == '*'
	}
	if !l.prevTerm() {
		return true
	}
	t := l.toks[l.last]
	if t.kind != TokenWord || l.afterArrow(l.last) {
		return false
	}
	n := l.at(l.pos + 1)
	return isIdentStart(n) || n == '$' || n == '{' || n == ':'
}

const magicPunct = "&`'+!@/\\,;.<>]|?~=:-^%*"

func (l *lexer) lexVariable() {
	sigil := l.src[l.pos]
	p := l.pos + 1
	n := l.at(p)

	if n == '*' && l.last >= 0 && l.text(l.toks[l.last]) == "->" {
		l.emit(TokenCast, p+1)
		return
	}
	if sigil == '$' && n == '#' {
		q := p + 1
		switch c := l.at(q); {
		case c == '$' || c == '{':
			l.emit(TokenCast, q)
		case isIdentStart(c) || c == ':':
			l.emit(TokenArrayIndex, l.scanName(q))
		default:
			l.emit(TokenMagic, q)
		}
		return
	}
	if isIdentStart(n) || (n == ':' && l.at(p+1) == ':' && isIdentStart(l.at(p+2))) {
		end := l.scanName(p)
		kind := TokenSymbol
		if end == p+1 && n == '_' && (sigil == '$' || sigil == '@') {
			kind = TokenMagic
		}
		l.emit(kind, end)
		return
	}
	if sigil == '$' || sigil == '@' {
		switch {
		case isDigit(n) && sigil == '$':
			q := p
			for isDigit(l.at(q)) {
				q++
			}
			l.emit(TokenMagic, q)
			return
		case n == '{' && l.at(p+1) == '^':
			if e := bytes.IndexByte(l.src[p:], '}'); e > 0 {
				l.emit(TokenMagic, p+e+1)
				return
			}
		case n == '$':
			if c := l.at(p + 1); isIdentStart(c) || c == '$' || c == '{' || c == ':' {
				l.emit(TokenCast, p)
				return
			}
			if sigil == '$' {
				l.emit(TokenMagic, p+1)
				return
			}
		case sigil == '$' && n == '^' && isUpper(l.at(p+1)):
			l.emit(TokenMagic, p+2)
			return
		case sigil == '$' && n != 0 && strings.IndexByte(magicPunct, n) >= 0:
			l.emit(TokenMagic, p+1)
			return
		}
	}
	l.emit(TokenCast, p)
}

// scanName consumes an identifier with optional `::` package separators.
func (l *lexer) scanName(p int) int {
	for p < len(l.src) {
		c := l.src[p]
		switch {
		case isIdentChar(c):
			p++
		case c == ':' && l.at(p+1) == ':':
			p += 2
		default:
			return p
		}
	}
	return p
}

func (l *lexer) lexNumber() {
	p := l.pos
	if l.at(p) == '0' && (l.at(p+1) == 'x' || l.at(p+1) == 'X' || l.at(p+1) == 'b' || l.at(p+1) == 'B') {
		p += 2
		for isHex(l.at(p)) || l.at(p) == '_' {
			p++
		}
		l.emit(TokenNumber, p)
		return
	}
	for isDigit(l.at(p)) || l.at(p) == '_' {
		p++
	}
	if l.at(p) == '.' && l.at(p+1) != '.' {
		p++
		for isDigit(l.at(p)) || l.at(p) == '_' {
			p++
		}
	}
	if c := l.at(p); c == 'e' || c == 'E' {
		q := p + 1
		if l.at(q) == '+' || l.at(q) == '-' {
			q++
		}
		if isDigit(l.at(q)) {
			for isDigit(l.at(q)) {
				q++
			}
			p = q
		}
	}
	l.emit(TokenNumber, p)
}

// lexWord reads a bareword and the constructs introduced by one. done is
// true once __END__ or __DATA__ has consumed the rest of the input.
func (l *lexer) lexWord() (done bool, err error) {
	end := l.scanName(l.pos)
	w := string(l.src[l.pos:end])

	if w == "__END__" || w == "__DATA__" {
		l.emit(TokenSeparator, end)
		l.lexEndContent()
		return true, nil
	}

	prevArrow := l.last >= 0 && l.toks[l.last].kind == TokenOperator && l.text(l.toks[l.last]) == "->"
	switch {
	case prevArrow, l.fatComma(end), l.hashKey(end):
		l.emit(TokenWord, end)
		return false, nil
	case l.last >= 0 && l.toks[l.last].kind == TokenWord && l.text(l.toks[l.last]) == "sub":
		l.emit(TokenWord, end)
		return false, nil
	}

	if _, ok := quoteLikeOps[w]; ok {
		if d, ok := l.delimiterAfter(end); ok {
			return false, l.lexQuoteLike(w, d)
		}
	}
	if len(w) > 1 && w[0] == 'v' && isAllDigits(w[1:]) && l.at(end) == '.' && isDigit(l.at(end+1)) {
		p := end
		for l.at(p) == '.' && isDigit(l.at(p+1)) {
			p++
			for isDigit(l.at(p)) {
				p++
			}
		}
		l.emit(TokenNumber, p)
		return false, nil
	}
	if wordOperators[w] || (w == "x" && l.prevTerm()) {
		if w == "x" && l.at(end) == '=' && l.at(end+1) != '=' && l.at(end+1) != '~' {
			end++
		}
		l.emit(TokenOperator, end)
		return false, nil
	}
	l.emit(TokenWord, end)
	return false, nil
}

func (l *lexer) fatComma(p int) bool {
	for l.at(p) == ' ' || l.at(p) == '\t' {
		p++
	}
	return l.at(p) == '=' && l.at(p+1) == '>'
}

func (l *lexer) hashKey(p int) bool {
	if l.last < 0 {
		return false
	}
	t := l.toks[l.last]
	if t.kind != TokenStructure || l.src[t.start] != '{' {
		return false
	}
	for l.at(p) == ' ' || l.at(p) == '\t' {
		p++
	}
	return l.at(p) == '}'
}

// delimiterAfter returns the offset of a quote-like delimiter following an
// operator word ending at p.
func (l *lexer) delimiterAfter(p int) (int, bool) {
	q := p
	for l.at(q) == ' ' || l.at(q) == '\t' {
		q++
	}
	c := l.at(q)
	if c == 0 || c == '\n' || c == '\r' || isIdentChar(c) {
		return 0, false
	}
	if c == '=' && l.at(q+1) == '>' {
		return 0, false
	}
	if c == ',' || c == ';' || c == ')' {
		return 0, false
	}
	if q > p && strings.IndexByte("=#}]:", c) >= 0 {
		return 0, false
	}
	return q, true
}

func (l *lexer) lexEndContent() {
	for l.pos < len(l.src) {
		if l.atLineStart() && l.podStart() {
			l.lexPod()
			continue
		}
		p := l.pos
		for p < len(l.src) {
			p = l.nextLine(p)
			if l.at(p) == '=' && isAlpha(l.at(p+1)) {
				break
			}
		}
		l.emit(TokenEndContent, p)
	}
}

func (l *lexer) lexAngle() error {
	p := l.pos
	if l.at(p+1) == '<' && (!l.prevTerm() || l.toks[l.last].kind == TokenWord) {
		if ok, err := l.lexHeredoc(); ok || err != nil {
			return err
		}
	}
	if !l.prevTerm() {
		q := p + 1
		if l.at(q) == '$' {
			q++
		}
		for isIdentChar(l.at(q)) || l.at(q) == ':' {
			q++
		}
		if l.at(q) == '>' {
			l.emit(TokenQuoteLike, q+1)
			return nil
		}
		if l.at(q) == '<' && l.at(q+1) == '>' && l.at(q+2) == '>' && q == p+1 {
			l.emit(TokenQuoteLike, q+3)
			return nil
		}
	}
	l.lexOperator()
	return nil
}

func (l *lexer) lexHeredoc() (bool, error) {
	p := l.pos + 2
	indented := false
	if l.at(p) == '~' {
		indented = true
		p++
	}
	q := p
	for l.at(q) == ' ' || l.at(q) == '\t' {
		q++
	}
	var term string
	var end int
	switch c := l.at(q); {
	case c == '"' || c == '\'' || c == '`':
		e := bytes.IndexByte(l.src[q+1:l.lineEnd(q)], c)
		if e < 0 {
			return false, l.fail(q, "unterminated heredoc introducer")
		}
		term = string(l.src[q+1 : q+1+e])
		end = q + 1 + e + 1
	case q == p && (isAlpha(c) || c == '_'):
		end = p
		for isIdentChar(l.at(end)) {
			end++
		}
		term = string(l.src[p:end])
	default:
		return false, nil
	}
	l.heredocs = append(l.heredocs, pendingHeredoc{terminator: term, indented: indented, at: l.pos})
	l.emit(TokenHereDoc, end)
	return true, nil
}

func (l *lexer) lexMinus() {
	c := l.at(l.pos + 1)
	if !l.prevTerm() && strings.IndexByte(fileTests, c) >= 0 && c != 0 && !isIdentChar(l.at(l.pos+2)) && !l.fatComma(l.pos+2) {
		l.emit(TokenOperator, l.pos+2)
		return
	}
	l.lexOperator()
}

const fileTests = "erwxoRWXOzsfdlpSbcugktTBAMC"

var operators = []string{
	"<=>", "**=", "||=", "&&=", "//=", "<<=", ">>=", "...",
	"->", "++", "--", "**", "=~", "!~", "==", "!=", "<=", ">=", "&&", "||",
	"//", "..", "::", "=>", "+=", "-=", "*=", "/=", ".=", "%=", "&=", "|=",
	"^=", "<<", ">>",
}

func (l *lexer) lexOperator() {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if len(rest) >= len(op) && string(rest[:len(op)]) == op {
			l.emit(TokenOperator, l.pos+len(op))
			return
		}
	}
	if strings.IndexByte("+-*/%.=<>!~\\?:,^|&", rest[0]) >= 0 {
		l.emit(TokenOperator, l.pos+1)
		return
	}
	l.emit(TokenUnknown, l.pos+runeLen(rest))
}

// operandWords are barewords after which an operand is expected, so a
// following `/` starts a regex and `<<` a heredoc.
var operandWords = map[string]bool{
	"if": true, "elsif": true, "unless": true, "while": true, "until": true,
	"and": true, "or": true, "not": true, "xor": true, "return": true,
	"split": true, "grep": true, "map": true, "join": true, "push": true,
	"unshift": true, "print": true, "printf": true, "say": true, "when": true,
	"lt": true, "gt": true, "le": true, "ge": true, "eq": true, "ne": true,
	"cmp": true, "x": true, "die": true, "warn": true, "defined": true,
	"ref": true, "scalar": true, "keys": true, "values": true, "each": true,
	"delete": true, "exists": true, "local": true,
	"my": true, "our": true,
}

var wordOperators = map[string]bool{
	"lt": true, "gt": true, "le": true, "ge": true, "eq": true, "ne": true,
	"cmp": true, "and": true, "or": true, "not": true, "xor": true,
}

// quoteLikeOps maps quote-like operators to the number of delimited
// sections they take and the token kind they produce.
var quoteLikeOps = map[string]struct {
	sections  int
	kind      Kind
	modifiers bool
}{
	"q":  {1, TokenQuote, false},
	"qq": {1, TokenQuote, false},
	"qw": {1, TokenQuoteLike, false},
	"qx": {1, TokenQuoteLike, false},
	"qr": {1, TokenQuoteLike, true},
	"m":  {1, TokenRegexp, true},
	"s":  {2, TokenRegexp, true},
	"tr": {2, TokenRegexp, true},
	"y":  {2, TokenRegexp, true},
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool { return isAlpha(c) || c == '_' || c >= 0x80 }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

func runeLen(b []byte) int {
	if len(b) == 0 || b[0] < 0x80 {
		return 1
	}
	n := 1
	for n < len(b) && n < 4 && b[n]&0xC0 == 0x80 {
		n++
	}
	return n
}
