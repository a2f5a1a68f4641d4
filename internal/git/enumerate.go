package git

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/types"
)

// Options select which working-tree files become candidates. Tracked files
// are always included.
type Options struct {
	IncludeUntracked bool
	// IncludeIgnored admits files matched by .gitignore. Off by default.
	IncludeIgnored bool
	Filter         files.Filter
}

// Enumerator lists the candidates of one repository, or of one directory
// inside it. Candidate paths are relative to the directory given to
// NewEnumerator. It holds no iteration state, so Enumerate can be called
// again to restart.
type Enumerator struct {
	root  string
	start string
	opts  Options
}

// NewEnumerator opens the repository containing dir.
func NewEnumerator(dir string, opts Options) (*Enumerator, error) {
	start, err := validateRoot(dir)
	if err != nil {
		return nil, err
	}
	r, err := open(dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository %s has no working tree: %w", dir, err)
	}
	root := wt.Filesystem.Root()
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	if real, err := filepath.EvalSymlinks(start); err == nil {
		start = real
	}
	return &Enumerator{root: root, start: start, opts: opts}, nil
}

// Root is the top of the working tree.
func (e *Enumerator) Root() string { return e.root }

// Root finds the top of the working tree containing dir.
func Root(dir string) (string, error) {
	r, err := open(dir)
	if err != nil {
		return "", err
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", err
	}
	return wt.Filesystem.Root(), nil
}

type treeState struct {
	tracked     map[string]bool
	trackedDirs map[string]bool
	submodules  map[string]bool
	ignore      gitignore.Matcher
}

func (e *Enumerator) load() (*treeState, error) {
	r, err := open(e.root)
	if err != nil {
		return nil, err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	st := &treeState{
		tracked:     make(map[string]bool, len(idx.Entries)),
		trackedDirs: map[string]bool{},
		submodules:  map[string]bool{},
	}
	for _, ent := range idx.Entries {
		if ent.Mode == filemode.Submodule {
			st.submodules[ent.Name] = true
			continue
		}
		st.tracked[ent.Name] = true
		for d := parentDir(ent.Name); d != ""; d = parentDir(d) {
			if st.trackedDirs[d] {
				break
			}
			st.trackedDirs[d] = true
		}
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, err
	}
	ps, err := gitignore.ReadPatterns(wt.Filesystem, nil)
	if err != nil {
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	st.ignore = gitignore.NewMatcher(ps)
	return st, nil
}

func parentDir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// Enumerate walks the working tree in lexical order and calls visit for
// every admitted file. A visit error stops the walk and is returned.
func (e *Enumerator) Enumerate(ctx context.Context, visit func(types.FileCandidate) error) error {
	st, err := e.load()
	if err != nil {
		return err
	}
	filter := e.opts.Filter
	return filepath.WalkDir(e.start, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == e.start {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == e.start {
			return nil
		}
		// repoRel keys the index and .gitignore; rel is what candidates carry
		repoRel, err1 := filepath.Rel(e.root, p)
		rel, err2 := filepath.Rel(e.start, p)
		if err1 != nil || err2 != nil {
			return nil
		}
		repoRel, rel = filepath.ToSlash(repoRel), filepath.ToSlash(rel)
		parts := strings.Split(repoRel, "/")

		if d.IsDir() {
			switch {
			case d.Name() == ".git", st.submodules[repoRel]:
				return filepath.SkipDir
			case filter.SkipDir(d.Name(), rel):
				return filepath.SkipDir
			case !e.opts.IncludeIgnored && !st.trackedDirs[repoRel] && st.ignore.Match(parts, true):
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !st.tracked[repoRel] {
			ignored := st.ignore.Match(parts, false)
			if ignored && !e.opts.IncludeIgnored {
				return nil
			}
			if !ignored && !e.opts.IncludeUntracked {
				return nil
			}
		}
		if filter.SkipFile(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		// a failed sniff surfaces later as a read error on evaluation
		c, _ := filter.Candidate(p, rel, info.Size())
		return visit(c)
	})
}
