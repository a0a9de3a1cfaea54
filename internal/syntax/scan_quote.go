package syntax

func closingDelimiter(open byte) (byte, bool) {
	switch open {
	case '(':
		return ')', true
	case '[':
		return ']', true
	case '{':
		return '}', true
	case '<':
		return '>', true
	}
	return open, false
}

// scanTo returns the offset just past the first unescaped close at or
// after p.
func (l *lexer) scanTo(p int, close byte) (int, bool) {
	for p < len(l.src) {
		switch l.src[p] {
		case '\\':
			p += 2
			continue
		case close:
			return p + 1, true
		}
		p++
	}
	return 0, false
}

// scanBracketed returns the offset just past the bracket closing the one at
// p, honoring nesting and escapes.
func (l *lexer) scanBracketed(p int) (int, bool) {
	open := l.src[p]
	close, _ := closingDelimiter(open)
	depth := 0
	for p < len(l.src) {
		switch l.src[p] {
		case '\\':
			p += 2
			continue
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return p + 1, true
			}
		}
		p++
	}
	return 0, false
}

func (l *lexer) scanSection(p int) (int, bool) {
	if _, bracket := closingDelimiter(l.src[p]); bracket {
		return l.scanBracketed(p)
	}
	return l.scanTo(p+1, l.src[p])
}

func (l *lexer) scanModifiers(p int) int {
	for isAlpha(l.at(p)) {
		p++
	}
	return p
}

func (l *lexer) lexQuote(kind Kind) error {
	end, ok := l.scanTo(l.pos+1, l.src[l.pos])
	if !ok {
		return l.fail(l.pos, "unterminated string")
	}
	l.emit(kind, end)
	return nil
}

func (l *lexer) lexRegexp() error {
	end, ok := l.scanTo(l.pos+1, '/')
	if !ok {
		return l.fail(l.pos, "unterminated regular expression")
	}
	l.emit(TokenRegexp, l.scanModifiers(end))
	return nil
}

// lexQuoteLike reads q, qq, qw, qx, qr, m, s, tr and y with the delimiter
// found at d.
func (l *lexer) lexQuoteLike(op string, d int) error {
	spec := quoteLikeOps[op]
	end, ok := l.scanSection(d)
	if !ok {
		return l.fail(l.pos, "unterminated "+op+" operator")
	}
	if spec.sections == 2 {
		if _, bracket := closingDelimiter(l.src[d]); bracket {
			p := end
			for p < len(l.src) && isSpace(l.src[p]) {
				p++
			}
			if p >= len(l.src) {
				return l.fail(l.pos, "unterminated "+op+" operator")
			}
			end, ok = l.scanSection(p)
		} else {
			end, ok = l.scanTo(end, l.src[d])
		}
		if !ok {
			return l.fail(l.pos, "unterminated "+op+" operator")
		}
	}
	if spec.modifiers {
		end = l.scanModifiers(end)
	}
	l.emit(spec.kind, end)
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
