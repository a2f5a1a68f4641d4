// Package match holds the stateless matching primitives used by the policy
// evaluator: path globs, bounded regex scanning and structured key lookup.
//
// Glob semantics (doublestar):
//   - paths are compared with forward slashes
//   - '*' matches any run of characters except '/'
//   - '**' as a whole path segment matches zero or more directories
//   - dot-files get no special treatment: '*' matches '.env' and '*.pem' matches '.hidden.pem'
//   - a pattern without '/' is tried against the base name and the full
//     path, so '*.pem' matches 'a/b/server.pem'
//   - matching is case-sensitive except on Windows, where both sides are
//     lower-cased
package match

import (
	"path"
	"runtime"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

var foldCase = runtime.GOOS == "windows"

// MatchFilename reports whether rel matches pattern under the platform's
// case convention.
func MatchFilename(rel, pattern string) bool {
	return MatchFilenameFold(rel, pattern, foldCase)
}

// MatchFilenameFold is MatchFilename with an explicit case rule.
func MatchFilenameFold(rel, pattern string, fold bool) bool {
	rel = NormalizePath(rel)
	pattern = strings.TrimPrefix(pattern, "./")
	if fold {
		rel = strings.ToLower(rel)
		pattern = strings.ToLower(pattern)
	}
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, path.Base(rel))
		return ok
	}
	// "**/x" should also match "x" at the root.
	if trimmed := trimGlobPrefix(pattern); trimmed != pattern {
		ok, _ := doublestar.Match(trimmed, rel)
		return ok
	}
	return false
}

// MatchAny reports whether rel matches any of the patterns.
func MatchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if MatchFilename(rel, p) {
			return true
		}
	}
	return false
}

// Included applies include/exclude lists: excludes win, and an empty
// include list admits everything.
func Included(rel string, include, exclude []string) bool {
	if len(exclude) > 0 && MatchAny(rel, exclude) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return MatchAny(rel, include)
}

// ValidGlob reports whether pattern is syntactically valid.
func ValidGlob(pattern string) bool {
	return doublestar.ValidatePattern(pattern)
}

// NormalizePath converts separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}
