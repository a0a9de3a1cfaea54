package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
)

// skipDirs are never descended into by the filesystem walk.
var skipDirs = map[string]bool{
	"blib":         true,
	"local":        true,
	"node_modules": true,
	"_build":       true,
}

// SkipDir reports whether a directory name is never descended into: hidden
// directories and build or dependency output.
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// Discover lists the indexable files under the classifier's root. Inside a
// git repository it uses git ls-files so .gitignore is respected; otherwise
// it walks the tree, skipping hidden directories and build output.
func (c *Classifier) Discover(ctx context.Context) ([]string, error) {
	paths, err := c.gitListFiles(ctx)
	if err != nil {
		log.Debugf("discover %s: %v; walking instead", c.root, err)
		paths, err = c.walkListFiles()
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// gitListFiles returns tracked and untracked, non-ignored files.
func (c *Classifier) gitListFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = c.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(c.root, line)
		if c.Classify(abs).Indexable() {
			paths = append(paths, abs)
		}
	}
	return paths, nil
}

func (c *Classifier) walkListFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != c.root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.Classify(path).Indexable() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
