// Package resolve implements the pure @loader_path / @executable_path
// substitution rules used to turn a raw Mach-O dependency reference into
// a candidate filesystem path. @rpath substitution is handled by the
// caller, which knows the effective rpath stack; this package resolves
// one already-@rpath-substituted candidate at a time.
package resolve

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	loaderPathToken     = "@loader_path"
	executablePathToken = "@executable_path"
)

// Context carries the parent node fields this package's substitution
// rules need: the directory containing the referencing binary, and the
// directory of the nearest ancestor executable, if one has been seen.
type Context struct {
	LoaderPath        string
	ExecutablePath    string
	HasExecutablePath bool
}

// Resolve substitutes @loader_path and (if available) @executable_path
// in raw, normalizes the result to an absolute path, and reports whether
// that path exists on disk.
//
// Normalization canonicalizes "." / ".." segments only; symlinks are
// not resolved, so a library reachable only through a symlinked install
// prefix keeps the prefix spelling the referencing binary used.
func Resolve(ctx Context, raw string) (exists bool, absPath string) {
	path := raw

	if strings.Contains(path, loaderPathToken) {
		path = strings.ReplaceAll(path, loaderPathToken, ctx.LoaderPath)
	}

	if ctx.HasExecutablePath && strings.Contains(path, executablePathToken) {
		path = strings.ReplaceAll(path, executablePathToken, ctx.ExecutablePath)
	}

	absPath = normalize(path)

	if _, err := os.Stat(absPath); err == nil {
		exists = true
	}

	return exists, absPath
}

// normalize canonicalizes "." / ".." segments without touching symlinks.
// A string still carrying an unsubstituted token (an @executable_path
// reference seen before any ancestor executable, say) is returned
// verbatim: cleaning it would let ".." segments swallow the token, and
// the caller needs the literal form to report back to the user.
func normalize(path string) string {
	if strings.Contains(path, executablePathToken) || strings.Contains(path, loaderPathToken) {
		return path
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return filepath.Clean(path)
		}
		return abs
	}
	return filepath.Clean(path)
}
