// Package workspace decides which files belong to the index and turns
// watched-file notifications into index updates.
package workspace

import (
	"path/filepath"
	"strings"
)

// SourceFile is a classified path.
type SourceFile struct {
	Path string
	URI  string
	// Source reports a recognized extension on a file other than an
	// unsaved-buffer copy.
	Source bool
	// Ignored reports a match against an ignore glob.
	Ignored bool
}

// Indexable reports whether the file belongs in the index.
func (f SourceFile) Indexable() bool { return f.Source && !f.Ignored }

// Classifier classifies paths under one workspace root. It is immutable;
// a configuration change builds a new one.
type Classifier struct {
	root   string
	exts   map[string]bool
	ignore []string
}

// NewClassifier creates a Classifier. Extensions include the dot. Ignore
// globs use filepath.Match syntax against the root-relative path, and also
// match when they name any leading directory of it or its base name.
func NewClassifier(root string, extensions, ignoreGlobs []string) *Classifier {
	c := &Classifier{
		root:   root,
		exts:   make(map[string]bool, len(extensions)),
		ignore: ignoreGlobs,
	}
	for _, ext := range extensions {
		c.exts[strings.ToLower(ext)] = true
	}
	return c
}

// TempCopyMarker separates the base name from the unique suffix of the
// hidden sibling written for an unsaved buffer, as in .Foo.perlnav-<id>.pm.
const TempCopyMarker = ".perlnav-"

// IsTempCopy reports whether path names an unsaved-buffer copy. Such files
// exist only for one diagnostics run and never enter the index.
func IsTempCopy(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.Contains(base[1:], TempCopyMarker)
}

// Root returns the workspace root.
func (c *Classifier) Root() string { return c.root }

// Classify classifies an absolute path.
func (c *Classifier) Classify(path string) SourceFile {
	return SourceFile{
		Path:    path,
		URI:     PathToURI(path),
		Source:  c.IsSource(path),
		Ignored: c.IsIgnored(path),
	}
}

// IsSource reports whether path has a recognized extension and is not an
// unsaved-buffer copy.
func (c *Classifier) IsSource(path string) bool {
	return c.exts[strings.ToLower(filepath.Ext(path))] && !IsTempCopy(path)
}

// IsIgnored reports whether an ignore glob matches path. Paths outside the
// root are matched as given.
func (c *Classifier) IsIgnored(path string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	rel := path
	if c.root != "" {
		if r, err := filepath.Rel(c.root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, g := range c.ignore {
		g = filepath.ToSlash(g)
		if ok, _ := filepath.Match(g, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(g, parts[len(parts)-1]); ok {
			return true
		}
		for i := 1; i < len(parts); i++ {
			if ok, _ := filepath.Match(g, strings.Join(parts[:i], "/")); ok {
				return true
			}
		}
	}
	return false
}
