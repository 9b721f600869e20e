//go:build !windows

package execx

import "path/filepath"

// shortAlias canonicalizes the path by resolving symlinks. There is no
// short-name scheme outside Windows; a symlink-free absolute path is the
// closest equivalent.
func shortAlias(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}
