package execx

import (
	"path/filepath"
	"strings"
)

// hostileChars are characters that are legal in file names but routinely
// break argument handling in downstream tooling.
var hostileChars = "&^%!()'`\"$;<>|"

// syncDirMarkers are path components managed by file-sync tools whose
// reparse points and lock behavior make long paths unreliable targets for
// subprocess arguments.
var syncDirMarkers = []string{
	"OneDrive",
	"Dropbox",
	"Google Drive",
	"GoogleDrive",
	"iCloud Drive",
	"iCloudDrive",
}

// SafePath returns a canonical alias for paths that are risky to hand to a
// subprocess: ones containing hostile characters or living under a
// sync-managed directory. When no alias can be resolved the original path
// is returned unchanged; callers always get something usable.
func SafePath(path string) string {
	if path == "" {
		return path
	}
	if !needsAlias(path) {
		return path
	}
	if alias, err := shortAlias(path); err == nil && alias != "" {
		return alias
	}
	return path
}

// needsAlias reports whether the path warrants short-alias substitution.
func needsAlias(path string) bool {
	if strings.ContainsAny(path, hostileChars) {
		return true
	}
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		for _, marker := range syncDirMarkers {
			if strings.EqualFold(part, marker) {
				return true
			}
		}
	}
	return false
}
