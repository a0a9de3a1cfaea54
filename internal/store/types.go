package store

import "time"

// Entry kinds held by the workspace index.
const (
	KindPackage    = "package"
	KindSubroutine = "subroutine"
	KindConstant   = "constant"
	KindVariable   = "variable"
)

// AllKinds lists every entry kind in display order.
var AllKinds = []string{KindPackage, KindSubroutine, KindConstant, KindVariable}

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	URI         string
	Hash        string
	LastIndexed time.Time
}

// Entry is one declaration site. Ranges are 0-indexed and half-open, in
// rune columns. Package is the enclosing package for subroutines,
// constants and variables, and empty outside any package statement.
type Entry struct {
	ID        int64
	FileID    int64
	Kind      string
	Name      string
	Package   string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int

	// Filled by queries from the owning file.
	Path string
	URI  string
}

// QualifiedName returns Package::Name, or Name when there is no package
// or the entry is a package itself. Variables keep their sigil in front:
// $Package::name.
func (e *Entry) QualifiedName() string {
	if e.Package == "" || e.Kind == KindPackage {
		return e.Name
	}
	if e.Kind == KindVariable && len(e.Name) > 1 {
		return e.Name[:1] + e.Package + "::" + e.Name[1:]
	}
	return e.Package + "::" + e.Name
}
