// Package git enumerates scan candidates from a git working tree and reads
// best-effort repository metadata. It uses go-git and never shells out.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// validateRoot validates and normalizes a repository path.
func validateRoot(root string) (string, error) {
	if strings.ContainsRune(root, 0) {
		return "", fmt.Errorf("invalid path: contains null byte")
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access path %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", root)
	}
	return abs, nil
}

func open(root string) (*gogit.Repository, error) {
	validRoot, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	return gogit.PlainOpenWithOptions(validRoot, &gogit.PlainOpenOptions{DetectDotGit: true})
}

// IsRepo reports whether root is inside a git working tree.
func IsRepo(root string) bool {
	r, err := open(root)
	if err != nil {
		return false
	}
	_, err = r.Worktree()
	return err == nil
}

// RepoMetadata returns (repo, commit, branch) best-effort for the given root.
// Empty strings are returned on failure. repo is the origin URL shortened
// to owner/name when possible.
func RepoMetadata(root string) (string, string, string) {
	r, err := open(root)
	if err != nil {
		return "", "", ""
	}
	repo := ""
	if rem, err := r.Remote("origin"); err == nil && len(rem.Config().URLs) > 0 {
		repo = shortRemote(rem.Config().URLs[0])
	}
	commit, branch := "", ""
	if head, err := r.Head(); err == nil {
		commit = head.Hash().String()
		if head.Name().IsBranch() {
			branch = head.Name().Short()
		} else {
			branch = "HEAD"
		}
	}
	return repo, commit, branch
}

func shortRemote(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".git")
	if i := strings.Index(s, "github.com/"); i >= 0 {
		return s[i+len("github.com/"):]
	}
	if strings.Contains(s, "://") {
		return s
	}
	// scp-like git@host:owner/name
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
