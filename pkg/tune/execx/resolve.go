package execx

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoCandidate is returned when none of the resolution candidates exist.
var ErrNoCandidate = errors.New("no runnable candidate found")

// Resolve finds the first usable binary among the candidates, in order.
// A candidate containing a path separator is checked on disk; a bare name
// is searched on PATH. Callers list candidates from most to least
// preferred, e.g. a configured absolute path, then the modern tool name,
// then the legacy one. Resolve fails only when every candidate is missing.
func Resolve(candidates ...string) (string, error) {
	var tried []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		tried = append(tried, c)

		if strings.ContainsAny(c, `/\`) {
			info, err := os.Stat(c)
			if err == nil && !info.IsDir() {
				return c, nil
			}
			continue
		}

		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoCandidate, strings.Join(tried, ", "))
}
