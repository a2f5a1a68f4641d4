package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/git"
	"github.com/redactyl/scout/internal/github"
	"github.com/redactyl/scout/internal/ignore"
	"github.com/redactyl/scout/internal/policy"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/rules"
	"github.com/redactyl/scout/internal/types"
)

// ErrFailFast wraps the first error of a run stopped by Config.FailFast.
var ErrFailFast = errors.New("scan stopped at first error")

// Phase is a stage of Scanner.Run.
type Phase int

const (
	PhaseResolvingTargets Phase = iota
	PhaseLoadingRules
	PhaseEnumerating
	PhaseEvaluating
	PhaseAggregating
	PhaseBaselineFiltering
	PhaseDone
)

var phaseNames = [...]string{
	"resolving_targets", "loading_rules", "enumerating", "evaluating",
	"aggregating", "baseline_filtering", "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// EventKind names a progress notification.
type EventKind string

const (
	EventPhase      EventKind = "phase"
	EventCloneStart EventKind = "clone_start"
	EventCloneDone  EventKind = "clone_done"
	EventScanStart  EventKind = "scan_start"
	EventScanDone   EventKind = "scan_done"
	EventRepoError  EventKind = "repo_error"
)

// Event is delivered to the WithEvents hook. Deliveries are serialized.
type Event struct {
	Kind     EventKind
	Phase    Phase
	Target   string
	Findings int
	Err      error
}

// RepoLister lists the repositories of a GitHub owner.
type RepoLister interface {
	ListRepos(ctx context.Context, owner github.Owner) ([]github.Repo, error)
}

type Option func(*Scanner)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Scanner) { s.log = l } }

// WithLister is required for requests that name GitHub owners.
func WithLister(l RepoLister) Option { return func(s *Scanner) { s.lister = l } }

// WithCloner replaces the anonymous default cloner.
func WithCloner(c github.Cloner) Option { return func(s *Scanner) { s.cloner = c } }

func WithEvents(fn func(Event)) Option { return func(s *Scanner) { s.onEvent = fn } }

// Scanner runs scans. It keeps no state between runs.
type Scanner struct {
	cfg     Config
	log     logrus.FieldLogger
	lister  RepoLister
	cloner  github.Cloner
	onEvent func(Event)
	evMu    sync.Mutex
	// enumWrap, when set, decorates every enumerator built for dir.
	enumWrap func(dir string, e Enumerator) Enumerator
}

func New(cfg Config, opts ...Option) *Scanner {
	cfg.Concurrency = determineWorkers(cfg.Concurrency)
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = ignore.FileName
	}
	if cfg.GitMode == "" {
		cfg.GitMode = GitAuto
	}
	s := &Scanner{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = defaultLogger()
	}
	return s
}

func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Config is the effective configuration after defaults and clamping.
func (s *Scanner) Config() Config { return s.cfg }

// Request names what one Run scans.
type Request struct {
	Paths  []string
	Owners []github.Owner
	Rules  []rules.Source
	// Baseline, when set, is subtracted from the findings.
	Baseline *report.Baseline
}

// runState is shared read-only by every worker of one run.
type runState struct {
	eval        *policy.Evaluator
	sources     []rules.Source
	fingerprint string
	out         chan<- partial
}

type target struct {
	types.Target
	useGit bool
	repo   *github.Repo
}

func (s *Scanner) emit(ev Event) {
	if s.onEvent == nil {
		return
	}
	s.evMu.Lock()
	defer s.evMu.Unlock()
	s.onEvent(ev)
}

func (s *Scanner) phase(p Phase) {
	s.log.WithField("phase", p.String()).Debug("engine: phase")
	s.emit(Event{Kind: EventPhase, Phase: p})
}

// Run performs one scan. The result is complete only when err is nil; an
// aborted run returns its errors and counters but no findings.
func (s *Scanner) Run(ctx context.Context, req Request) (*types.ScanResult, error) {
	res := &types.ScanResult{StartedAt: time.Now().UTC()}
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.phase(PhaseResolvingTargets)
	targets, terrs, err := s.resolve(runCtx, req)
	if err != nil {
		return s.abort(res, err)
	}
	res.Errors = append(res.Errors, terrs...)
	if s.cfg.FailFast && len(terrs) > 0 {
		return s.abort(res, fmt.Errorf("%w: %w", ErrFailFast, terrs[0]))
	}

	s.phase(PhaseLoadingRules)
	set, err := rules.Load(req.Rules...)
	if err != nil {
		return s.abort(res, err)
	}
	eval := policy.New(set, s.policyOptions())
	s.log.WithFields(logrus.Fields{"rules": eval.RuleCount(), "targets": len(targets)}).Debug("engine: rules loaded")

	res.Targets = make([]types.Target, len(targets))
	for i, t := range targets {
		res.Targets[i] = t.Target
	}

	out := make(chan partial, s.cfg.Concurrency*2)
	agg := newAggregator(s.cfg.FailFast, cancel)
	aggDone := make(chan struct{})
	go func() {
		agg.run(out)
		close(aggDone)
	}()
	st := &runState{
		eval:        eval,
		sources:     req.Rules,
		fingerprint: s.cacheKey(set),
		out:         out,
	}

	// enumeration and evaluation overlap; both phases start together
	s.phase(PhaseEnumerating)
	s.phase(PhaseEvaluating)
	for i, t := range targets {
		if t.repo != nil || runCtx.Err() != nil {
			continue
		}
		s.scanLocal(runCtx, st, i, t)
	}
	remoteErr := s.scanRemote(runCtx, st, targets)
	close(out)
	<-aggDone
	if remoteErr != nil {
		return s.abort(res, remoteErr)
	}

	s.phase(PhaseAggregating)
	agg.assemble(res)

	if err := ctx.Err(); err != nil {
		return s.abort(res, err)
	}
	if agg.failed != nil {
		return s.abort(res, fmt.Errorf("%w: %w", ErrFailFast, agg.failed))
	}

	s.phase(PhaseBaselineFiltering)
	if req.Baseline != nil {
		res = report.Apply(res, *req.Baseline)
	}
	res.Complete = true
	res.FinishedAt = time.Now().UTC()
	s.phase(PhaseDone)
	return res, nil
}

func (s *Scanner) abort(res *types.ScanResult, err error) (*types.ScanResult, error) {
	res.Findings = []types.Finding{}
	res.Complete = false
	res.FinishedAt = time.Now().UTC()
	s.log.WithError(err).Debug("engine: run aborted")
	return res, err
}

func (s *Scanner) policyOptions() policy.Options {
	return policy.Options{
		FilenameShortCircuit: s.cfg.FilenameShortCircuit,
		MaxBytes:             s.cfg.MaxBytes,
		RegexWindow:          s.cfg.RegexWindow,
	}
}

// cacheKey covers everything besides file content that shapes findings.
func (s *Scanner) cacheKey(set rules.RuleSet) string {
	return fmt.Sprintf("%s/sc=%t/w=%d/max=%d", set.Fingerprint(), s.cfg.FilenameShortCircuit, s.cfg.RegexWindow, s.cfg.MaxBytes)
}

func (s *Scanner) resolve(ctx context.Context, req Request) ([]target, []types.ScanError, error) {
	var out []target
	var errs []types.ScanError
	for _, p := range req.Paths {
		t, err := s.resolvePath(p)
		if err != nil {
			s.log.WithField("target", p).Warnf("engine: %v", err)
			errs = append(errs, types.ScanError{Target: p, Kind: types.ErrEnumerate, Message: err.Error(), Err: err})
			continue
		}
		out = append(out, t)
	}
	if len(req.Owners) == 0 {
		return out, errs, nil
	}
	if s.lister == nil {
		return nil, nil, errors.New("GitHub owners requested but no lister configured")
	}
	var repos []github.Repo
	for _, o := range req.Owners {
		rs, err := s.lister.ListRepos(ctx, o)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			s.log.WithField("owner", o.String()).Warnf("engine: listing failed: %v", err)
			errs = append(errs, types.ScanError{Target: o.String(), Kind: types.ErrList, Message: err.Error(), Err: err})
			continue
		}
		repos = append(repos, rs...)
	}
	kept, err := s.cfg.Filter.Apply(repos)
	if err != nil {
		return nil, nil, fmt.Errorf("repository filter: %w", err)
	}
	s.log.WithFields(logrus.Fields{"listed": len(repos), "kept": len(kept)}).Info("engine: repositories resolved")
	for i := range kept {
		r := kept[i]
		out = append(out, target{
			Target: types.Target{Kind: types.TargetGitHub, Owner: r.Owner, Repo: r.Name, Remote: r.HTMLURL, Branch: r.DefaultBranch},
			repo:   &r,
		})
	}
	return out, errs, nil
}

func (s *Scanner) resolvePath(p string) (target, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return target{}, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return target{}, fmt.Errorf("cannot access %s: %w", p, err)
	}
	t := target{Target: types.Target{Kind: types.TargetPath, Root: abs}}
	switch s.cfg.GitMode {
	case GitAlways:
		if !st.IsDir() || !git.IsRepo(abs) {
			return target{}, fmt.Errorf("%s is not inside a git working tree", p)
		}
		t.useGit = true
	case GitAuto:
		// only the top of a working tree; subdirectories are walked plainly
		if st.IsDir() {
			if root, err := git.Root(abs); err == nil && samePath(root, abs) {
				t.useGit = true
			}
		}
	}
	if t.useGit {
		t.Kind = types.TargetGit
		t.Remote, t.Commit, t.Branch = git.RepoMetadata(abs)
	}
	return t, nil
}

func samePath(a, b string) bool {
	ra, err1 := filepath.EvalSymlinks(a)
	rb, err2 := filepath.EvalSymlinks(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}

func (s *Scanner) filter(root string) files.Filter {
	f := files.Filter{
		SkipDirs:    s.cfg.SkipDirs,
		IgnoreGlobs: s.cfg.IgnoreGlobs,
		MaxBytes:    s.cfg.MaxBytes,
	}
	if st, err := os.Stat(root); err == nil && st.IsDir() {
		m, err := ignore.Load(filepath.Join(root, s.cfg.IgnoreFile))
		if err != nil {
			s.log.WithField("target", root).Warnf("engine: ignore file unreadable: %v", err)
		}
		f.Ignore = m
	}
	return f
}

func (s *Scanner) enumerator(dir string, useGit bool) (Enumerator, error) {
	f := s.filter(dir)
	var e Enumerator = NewFSEnumerator(dir, f)
	if useGit {
		ge, err := git.NewEnumerator(dir, git.Options{
			IncludeUntracked: s.cfg.IncludeUntracked,
			IncludeIgnored:   s.cfg.IncludeIgnored,
			Filter:           f,
		})
		if err != nil {
			return nil, err
		}
		e = ge
	}
	if s.enumWrap != nil {
		e = s.enumWrap(dir, e)
	}
	return e, nil
}
