package snapvault

import (
	"path/filepath"
	"strings"
)

// SafeRelPath accepts the relative, forward-slashed paths that appear
// in manifests: non-empty, not absolute, no NUL, and no "." or ".."
// components.  Manifests always carry "/" separators; backslashes are
// treated as ordinary name characters on Unix but a leading one still
// never escapes the root because the path must be relative and free of
// dot-dot components.
func SafeRelPath(p string) error {
	if p == "" {
		return &TraversalError{Path: p}
	}
	if strings.ContainsRune(p, 0) {
		return &TraversalError{Path: p}
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(filepath.FromSlash(p)) {
		return &TraversalError{Path: p}
	}
	for _, part := range strings.Split(p, "/") {
		if part == "." || part == ".." {
			return &TraversalError{Path: p}
		}
	}
	return nil
}
