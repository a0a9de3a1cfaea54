package workspace

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
)

// ErrNotFileURI is returned for URIs with a scheme other than file.
var ErrNotFileURI = errors.New("not a file URI")

// PathToURI returns the file:// URI of an absolute path.
func PathToURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// URIToPath returns the local path of a file:// URI. Unparseable and
// empty URIs are errors; other schemes return ErrNotFileURI.
func URIToPath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("empty URI")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse URI %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%q: %w", uri, ErrNotFileURI)
	}
	path := u.Path
	if path == "" && u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("URI %q has no path", uri)
	}
	return filepath.FromSlash(path), nil
}
