package element

import (
	"regexp"
	"strings"

	"github.com/jward/perlnav/internal/syntax"
)

// podLink matches L<...> with single angle brackets. Multi-bracket forms
// such as L<< ... >> are matched with their inner spaces trimmed.
var podLink = regexp.MustCompile(`L<+\s*([^<>]+?)\s*>+`)

// DocumentationLink finds a POD L<...> link covering the 1-indexed position
// and returns its target as `Package` or `Package::symbol`. Link text
// (`text|target`) is dropped and a `/section` becomes `::section`. URLs
// and links without a package part are ignored, as is L<...> text in code,
// comments or strings.
func DocumentationLink(t *syntax.Tree, line, col int) (string, bool) {
	if !podLine(t, line) {
		return "", false
	}
	start, end, ok := t.LineSpan(line)
	if !ok {
		return "", false
	}
	text := string(t.Source()[start:end])
	for _, m := range podLink.FindAllStringSubmatchIndex(text, -1) {
		_, from := t.PositionOf(start + m[0])
		_, to := t.PositionOf(start + m[1])
		if col < from || col > to {
			continue
		}
		return linkTarget(text[m[2]:m[3]])
	}
	return "", false
}

// podLine reports whether line lies inside a POD block. POD always covers
// whole lines.
func podLine(t *syntax.Tree, line int) bool {
	for _, id := range t.LeavesOnLine(line) {
		if t.Kind(id) == syntax.TokenPod {
			return true
		}
	}
	return false
}

func linkTarget(link string) (string, bool) {
	if i := strings.IndexByte(link, '|'); i >= 0 {
		link = link[i+1:]
	}
	if strings.Contains(link, "://") {
		return "", false
	}
	name, section, _ := strings.Cut(link, "/")
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", false
	}
	section = strings.Trim(strings.TrimSpace(section), `"`)
	if section != "" && isIdentifier(section) {
		return name + "::" + section, true
	}
	return name, true
}

func isIdentifier(s string) bool {
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}
