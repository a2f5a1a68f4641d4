package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/redactyl/scout/internal/git"
	"github.com/redactyl/scout/internal/github"
	"github.com/redactyl/scout/internal/policy"
	"github.com/redactyl/scout/internal/rules"
	"github.com/redactyl/scout/internal/types"
)

// scanRemote scans every GitHub target. Each worker owns one repository
// from clone to release, so at most Concurrency workspaces exist at once.
func (s *Scanner) scanRemote(ctx context.Context, st *runState, targets []target) error {
	var idx []int
	for i, t := range targets {
		if t.repo != nil {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	cloner := s.cloner
	if cloner == nil {
		cloner = github.NewCloner("", s.cfg.Clone.Blobless)
	}
	mgr, err := github.NewManager(cloner, github.ManagerOptions{
		Dir:    s.cfg.Clone.Dir,
		Retain: s.cfg.Clone.Retain,
		Retry:  s.cfg.Clone.Retry,
		Logger: s.log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			s.log.Warnf("engine: workspace cleanup: %v", err)
		}
		s.log.WithField("peak_workspaces", mgr.Peak()).Debug("engine: clones released")
	}()

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, ti := range idx {
		if ctx.Err() != nil {
			break
		}
		t := targets[ti]
		g.Go(func() error {
			if ctx.Err() == nil {
				s.scanRepo(ctx, mgr, st, ti, t)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Scanner) scanRepo(ctx context.Context, mgr *github.Manager, st *runState, ti int, t target) {
	name := t.Name()
	s.emit(Event{Kind: EventCloneStart, Target: name})
	found, kind, err := s.scanWorkspace(ctx, mgr, st, ti, t)
	switch {
	case err == nil:
		s.emit(Event{Kind: EventScanDone, Target: name, Findings: found})
	case ctx.Err() != nil:
	default:
		s.log.WithField("repo", name).Warnf("engine: %v", err)
		p := targetError(ti, name, kind, err)
		p.stats.ReposFailed = 1
		st.out <- p
		s.emit(Event{Kind: EventRepoError, Target: name, Err: err})
	}
}

func (s *Scanner) scanWorkspace(ctx context.Context, mgr *github.Manager, st *runState, ti int, t target) (int, types.ErrorKind, error) {
	name := t.Name()
	ws, err := mgr.Acquire(ctx, *t.repo)
	if err != nil {
		return 0, types.ErrClone, err
	}
	defer func() {
		if err := ws.Release(); err != nil {
			s.log.WithField("repo", name).Warnf("engine: release workspace: %v", err)
		}
	}()
	s.emit(Event{Kind: EventCloneDone, Target: name})

	eval := st.eval
	if s.cfg.RepoRules {
		if p, ok := rules.FindRepoPack(ws.Dir); ok {
			sources := append(append([]rules.Source(nil), st.sources...), rules.FileSource(p, rules.TierRepo))
			set, err := rules.Load(sources...)
			if err != nil {
				return 0, types.ErrRules, fmt.Errorf("repository rule pack: %w", err)
			}
			eval = policy.New(set, s.policyOptions())
			s.log.WithField("repo", name).Debug("engine: repository rule pack merged")
		}
	}

	meta := t.Target
	_, meta.Commit, _ = git.RepoMetadata(ws.Dir)

	s.emit(Event{Kind: EventScanStart, Target: name})
	enum, err := s.enumerator(ws.Dir, true)
	if err != nil {
		return 0, types.ErrEnumerate, err
	}
	seq, found := 0, 0
	err = enum.Enumerate(ctx, func(c types.FileCandidate) error {
		p := s.evaluate(eval, nil, name, c)
		p.target, p.seq = ti, seq
		seq++
		found += len(p.findings)
		st.out <- p
		return nil
	})
	if err != nil {
		return found, types.ErrEnumerate, err
	}
	st.out <- partial{target: ti, seq: seq, stats: types.Stats{ReposScanned: 1}, meta: &meta}
	return found, "", nil
}
