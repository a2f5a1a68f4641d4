package rules

import (
	"os"
	"path/filepath"
)

// RepoPackNames are checked, in order, under a repository root.
var RepoPackNames = []string{
	filepath.Join(".scout", "rules.yaml"),
	filepath.Join(".scout", "rules.yml"),
}

// FindRepoPack looks for a repo rule pack in dir and its parents, stopping
// at the first directory that contains .git.
func FindRepoPack(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		for _, name := range RepoPackNames {
			p := filepath.Join(abs, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, true
			}
		}
		if _, err := os.Stat(filepath.Join(abs, ".git")); err == nil {
			return "", false
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// FindGlobalPack returns the user's global rule pack if one exists.
func FindGlobalPack() (string, bool) {
	var candidates []string
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		candidates = append(candidates, filepath.Join(base, "scout", "rules.yaml"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".config", "scout", "rules.yaml"),
			filepath.Join(home, ".scout", "rules.yaml"),
		)
	}
	for _, p := range candidates {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// DefaultSources assembles the standard tier stack for a scan rooted at
// root: the named builtin packs, the global pack, the repo pack and any
// extra CLI-supplied files.
func DefaultSources(root string, builtin []string, extra []string) []Source {
	var out []Source
	for _, name := range builtin {
		out = append(out, BuiltinSource(name))
	}
	if p, ok := FindGlobalPack(); ok {
		out = append(out, FileSource(p, TierGlobal))
	}
	if root != "" {
		if p, ok := FindRepoPack(root); ok {
			out = append(out, FileSource(p, TierRepo))
		}
	}
	for _, p := range extra {
		out = append(out, FileSource(p, TierCLI))
	}
	return out
}
