package handler

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// FileNotFoundBody is the 404 body of handlers that serve files.
const FileNotFoundBody = "404 Error: File not found"

var errOutsideRoot = errors.New("path escapes root")

// fsRoot confines file lookups to one directory tree.
type fsRoot struct {
	dir string // absolute, symlinks resolved
}

func newFSRoot(dir string) (fsRoot, error) {
	if dir == "" {
		return fsRoot{}, errors.New("root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fsRoot{}, fmt.Errorf("failed to resolve root %q: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fsRoot{}, fmt.Errorf("failed to resolve root %q: %w", dir, err)
	}
	fi, err := os.Stat(real)
	if err != nil {
		return fsRoot{}, fmt.Errorf("failed to stat root %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return fsRoot{}, fmt.Errorf("root %q is not a directory", dir)
	}
	return fsRoot{dir: real}, nil
}

// resolve maps an escaped URL remainder to a path under the root.
func (r fsRoot) resolve(escaped string) (string, error) {
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return "", err
	}
	return r.join(name)
}

// join resolves name, a slash-separated path relative to the root, following
// symlinks without ever leaving the root: ".." segments and link targets that
// point outside are clamped at the root, as if it were "/". Paths that do not
// exist are returned as is.
func (r fsRoot) join(name string) (string, error) {
	if strings.IndexByte(name, 0) >= 0 || strings.IndexByte(name, '\\') >= 0 {
		return "", errOutsideRoot
	}
	full, err := securejoin.SecureJoin(r.dir, filepath.FromSlash(name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", name, err)
	}
	return full, nil
}

// rel returns full, a path from join, relative to the root.
func (r fsRoot) rel(full string) (string, error) {
	rel, err := filepath.Rel(r.dir, full)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return filepath.ToSlash(rel), nil
}
