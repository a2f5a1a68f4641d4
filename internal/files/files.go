// Package files holds the candidate filters shared by the filesystem and
// git enumerators: skip directories, ignore globs, the size cutoff and the
// binary sniff.
package files

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"github.com/redactyl/scout/internal/ignore"
	"github.com/redactyl/scout/internal/match"
	"github.com/redactyl/scout/internal/types"
)

// SniffBytes is how much of a file the binary heuristic inspects.
const SniffBytes = 8 << 10

// DefaultSkipDirs are directory names never descended into.
func DefaultSkipDirs() []string {
	return []string{
		".git", ".hg", ".svn",
		"node_modules", "vendor", "target", "dist", "build", "out",
		".venv", "venv", "__pycache__", ".tox", ".terraform",
		"coverage", "bin", "obj",
	}
}

// StateGlobs match scout's own state files. They stay ignored even when
// the default excludes are turned off.
func StateGlobs() []string {
	return []string{"**/.scoutcache.json", "**/.scout_last_scan.json", "**/.scout_audit.jsonl"}
}

// DefaultIgnoreGlobs are noisy generated files plus StateGlobs.
func DefaultIgnoreGlobs() []string {
	return append(StateGlobs(),
		"**/*.min.js", "**/*.map",
		"**/yarn.lock", "**/package-lock.json", "**/pnpm-lock.yaml",
		"**/composer.lock", "**/poetry.lock", "**/Cargo.lock", "**/go.sum",
		"**/.DS_Store",
	)
}

// Filter decides which paths become candidates.
type Filter struct {
	SkipDirs    []string
	IgnoreGlobs []string
	Ignore      ignore.Matcher
	// MaxBytes is the size cutoff; files above it are yielded with
	// SkipTooLarge and never read. Zero disables the cutoff.
	MaxBytes int64

	skip map[string]bool
}

func (f *Filter) skipSet() map[string]bool {
	if f.skip == nil {
		f.skip = make(map[string]bool, len(f.SkipDirs))
		for _, d := range f.SkipDirs {
			f.skip[d] = true
		}
	}
	return f.skip
}

// SkipDir reports whether the directory at rel (base name name) is pruned.
func (f *Filter) SkipDir(name, rel string) bool {
	if f.skipSet()[name] {
		return true
	}
	return f.Ignore.MatchDir(rel, true)
}

// SkipFile reports whether the file at rel is dropped before stat.
func (f *Filter) SkipFile(rel string) bool {
	if len(f.IgnoreGlobs) > 0 && match.MatchAny(rel, f.IgnoreGlobs) {
		return true
	}
	return f.Ignore.Match(rel)
}

// Candidate builds the candidate for a regular file of the given size.
// Oversize files are marked and never opened; the rest get a binary sniff.
func (f *Filter) Candidate(abs, rel string, size int64) (types.FileCandidate, error) {
	c := types.FileCandidate{Path: rel, AbsPath: abs, Size: size}
	if f.MaxBytes > 0 && size > f.MaxBytes {
		c.Skip = types.SkipTooLarge
		return c, nil
	}
	bin, err := Sniff(abs)
	if err != nil {
		return c, err
	}
	c.Binary = bin
	return c, nil
}

// Sniff reads the head of the file at path and applies IsBinary.
func Sniff(path string) (bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer fh.Close()
	buf := make([]byte, SniffBytes)
	n, err := io.ReadFull(fh, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return IsBinary(buf[:n], n == SniffBytes), nil
}

// IsBinary is true when prefix holds a NUL byte or is not valid UTF-8.
// When truncated, a rune cut at the end of prefix is tolerated.
func IsBinary(prefix []byte, truncated bool) bool {
	if bytes.IndexByte(prefix, 0) >= 0 {
		return true
	}
	if truncated {
		// drop at most one incomplete trailing rune
		for i := 0; i < utf8.UTFMax && len(prefix) > 0; i++ {
			r, size := utf8.DecodeLastRune(prefix)
			if r != utf8.RuneError || size != 1 {
				break
			}
			if utf8.RuneStart(prefix[len(prefix)-1]) {
				prefix = prefix[:len(prefix)-1]
				break
			}
			prefix = prefix[:len(prefix)-1]
		}
	}
	return !utf8.Valid(prefix)
}
