package github

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// RepoFilter narrows a listing. Globs match the lower-cased full name
// ("owner/repo"); '*' stops at '/', '**' does not.
type RepoFilter struct {
	Include []string
	Exclude []string
	// Allow, when set, is the only set of full names kept.
	Allow []string
	// Deny always wins.
	Deny []string

	IncludeArchived bool
	IncludeForks    bool
	IncludeDisabled bool
	ExcludePrivate  bool

	// MaxRepos truncates the sorted result. Zero means unlimited.
	MaxRepos int
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '/')
		if err != nil {
			return nil, fmt.Errorf("repo filter glob %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func anyGlob(gs []glob.Glob, s string) bool {
	for _, g := range gs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

func nameSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return out
}

// Apply returns the repositories that pass the filter, sorted by full name.
func (f RepoFilter) Apply(repos []Repo) ([]Repo, error) {
	include, err := compileGlobs(f.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs(f.Exclude)
	if err != nil {
		return nil, err
	}
	allow, deny := nameSet(f.Allow), nameSet(f.Deny)

	var out []Repo
	for _, r := range repos {
		key := strings.ToLower(r.Key())
		switch {
		case allow != nil && !allow[key]:
		case deny[key]:
		case r.Archived && !f.IncludeArchived:
		case r.Fork && !f.IncludeForks:
		case r.Disabled && !f.IncludeDisabled:
		case r.Private && f.ExcludePrivate:
		case anyGlob(exclude, key):
		case len(include) > 0 && !anyGlob(include, key):
		default:
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key() != out[j].Key() {
			return out[i].Key() < out[j].Key()
		}
		return out[i].ID < out[j].ID
	})
	// the same repository can be listed under several owners
	uniq := out[:0]
	for i, r := range out {
		if i > 0 && r.Key() == out[i-1].Key() {
			continue
		}
		uniq = append(uniq, r)
	}
	out = uniq
	if f.MaxRepos > 0 && len(out) > f.MaxRepos {
		out = out[:f.MaxRepos]
	}
	return out, nil
}
