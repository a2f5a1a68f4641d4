package engine

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/redactyl/scout/internal/cache"
	"github.com/redactyl/scout/internal/policy"
	"github.com/redactyl/scout/internal/types"
)

type indexed struct {
	seq int
	c   types.FileCandidate
}

// scanLocal runs one local target: a single enumerator feeds a bounded
// channel drained by Concurrency evaluators.
func (s *Scanner) scanLocal(ctx context.Context, st *runState, ti int, t target) {
	name := t.Name()
	log := s.log.WithField("target", name)
	s.emit(Event{Kind: EventScanStart, Target: name})

	enum, err := s.enumerator(t.Root, t.useGit)
	if err != nil {
		log.Warnf("engine: %v", err)
		st.out <- targetError(ti, name, types.ErrEnumerate, err)
		s.emit(Event{Kind: EventRepoError, Target: name, Err: err})
		return
	}
	db := s.openCache(t, st.fingerprint)

	cands := make(chan indexed, s.cfg.Concurrency*2)
	counts := make(chan int, s.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(cands)
		seq := 0
		return enum.Enumerate(gctx, func(c types.FileCandidate) error {
			select {
			case cands <- indexed{seq: seq, c: c}:
				seq++
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	for i := 0; i < s.cfg.Concurrency; i++ {
		g.Go(func() error {
			n := 0
			for ic := range cands {
				if ctx.Err() != nil {
					continue
				}
				p := s.evaluate(st.eval, db, name, ic.c)
				p.target, p.seq = ti, ic.seq
				n += len(p.findings)
				st.out <- p
			}
			counts <- n
			return nil
		})
	}
	err = g.Wait()
	close(counts)
	found := 0
	for n := range counts {
		found += n
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warnf("engine: enumeration failed: %v", err)
		st.out <- targetError(ti, name, types.ErrEnumerate, err)
		s.emit(Event{Kind: EventRepoError, Target: name, Err: err})
		return
	}
	if db != nil {
		if err := cache.Save(t.Root, db); err != nil {
			log.Debugf("engine: cache not saved: %v", err)
		}
		log.WithField("hits", db.Hits()).Debug("engine: cache")
	}
	s.emit(Event{Kind: EventScanDone, Target: name, Findings: found})
}

func (s *Scanner) openCache(t target, fingerprint string) *cache.DB {
	if !s.cfg.Cache {
		return nil
	}
	if st, err := os.Stat(t.Root); err != nil || !st.IsDir() {
		return nil
	}
	db, err := cache.Load(t.Root, fingerprint)
	if err != nil && !os.IsNotExist(err) {
		s.log.WithField("target", t.Name()).Debugf("engine: starting with an empty cache: %v", err)
	}
	return db
}

// evaluate turns one candidate into a partial with its counters.
func (s *Scanner) evaluate(eval *policy.Evaluator, db *cache.DB, name string, c types.FileCandidate) partial {
	var p partial
	switch {
	case c.Skip == types.SkipTooLarge:
		p.stats.SkippedTooLarge = 1
	case c.Binary:
		p.stats.SkippedBinary = 1
	}
	fs, err := s.evaluateCached(eval, db, c)
	if err != nil {
		s.log.WithFields(logrus.Fields{"target": name, "path": c.Path}).Warnf("engine: %v", err)
		p.stats.FilesErrored = 1
		p.errs = []types.ScanError{{Target: name, Path: c.Path, Kind: types.ErrRead, Message: err.Error(), Err: err}}
	} else if c.Skip == types.SkipNone && !c.Binary {
		p.stats.FilesScanned = 1
	}
	for i := range fs {
		fs[i].Target = name
	}
	p.findings = fs
	return p
}

func (s *Scanner) evaluateCached(eval *policy.Evaluator, db *cache.DB, c types.FileCandidate) ([]types.Finding, error) {
	if db == nil || c.Skip != types.SkipNone || c.Binary {
		return eval.Evaluate(c)
	}
	data, err := os.ReadFile(c.AbsPath)
	if err != nil || (s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes) {
		return eval.Evaluate(c)
	}
	h := cache.ContentHash(data)
	if fs, ok := db.Lookup(c.Path, h); ok {
		return fs, nil
	}
	fs := eval.EvaluateContent(c.Path, data)
	db.Store(c.Path, h, fs)
	return fs, nil
}

func targetError(ti int, name string, kind types.ErrorKind, err error) partial {
	return partial{
		target: ti,
		seq:    -1,
		errs:   []types.ScanError{{Target: name, Kind: kind, Message: err.Error(), Err: err}},
	}
}
