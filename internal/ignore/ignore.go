// Package ignore reads .scoutignore files. The syntax is gitignore's,
// including negation and directory-only patterns.
package ignore

import (
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the ignore file looked up at a target root.
const FileName = ".scoutignore"

type Matcher struct {
	m gitignore.Matcher
	n int
}

// Load reads path. A missing file yields an empty matcher and no error.
func Load(path string) (Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Matcher{}, nil
		}
		return Matcher{}, err
	}
	return Parse(string(data)), nil
}

// Parse builds a matcher from ignore file content.
func Parse(content string) Matcher {
	var ps []gitignore.Pattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, nil))
	}
	if len(ps) == 0 {
		return Matcher{}
	}
	return Matcher{m: gitignore.NewMatcher(ps), n: len(ps)}
}

// Len is the number of patterns loaded.
func (m Matcher) Len() int { return m.n }

// Match reports whether the slash-separated relative path p is ignored.
func (m Matcher) Match(p string) bool {
	return m.MatchDir(p, false)
}

// MatchDir is Match with an explicit directory flag, so walkers can prune
// whole trees.
func (m Matcher) MatchDir(p string, isDir bool) bool {
	if m.m == nil || p == "" {
		return false
	}
	return m.m.Match(strings.Split(p, "/"), isDir)
}
