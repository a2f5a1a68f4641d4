package engine

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/types"
)

// Enumerator yields the candidates of one target. Enumerate may be called
// again to restart from the beginning.
type Enumerator interface {
	Enumerate(ctx context.Context, visit func(types.FileCandidate) error) error
}

// FSEnumerator walks a plain directory tree in lexical order. Symlinks are
// never followed.
type FSEnumerator struct {
	root   string
	filter files.Filter
}

func NewFSEnumerator(root string, filter files.Filter) *FSEnumerator {
	return &FSEnumerator{root: root, filter: filter}
}

// Enumerate calls visit for every admitted regular file. A visit error
// stops the walk and is returned.
func (e *FSEnumerator) Enumerate(ctx context.Context, visit func(types.FileCandidate) error) error {
	filter := e.filter
	return filepath.WalkDir(e.root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == e.root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(e.root, p)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p == e.root {
				return nil
			}
			if filter.SkipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if p == e.root {
			// a single file given as the target
			rel = filepath.Base(p)
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

// CountTargets reports how many candidates enum yields without evaluating them.
func CountTargets(ctx context.Context, enum Enumerator) (int, error) {
	n := 0
	err := enum.Enumerate(ctx, func(types.FileCandidate) error {
		n++
		return nil
	})
	return n, err
}
