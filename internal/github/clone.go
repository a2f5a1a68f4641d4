package github

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cloner materializes a repository into an empty directory.
type Cloner interface {
	Clone(ctx context.Context, repo Repo, dest string) error
}

// CloneFunc adapts a function to Cloner.
type CloneFunc func(ctx context.Context, repo Repo, dest string) error

func (f CloneFunc) Clone(ctx context.Context, repo Repo, dest string) error { return f(ctx, repo, dest) }

// RetryPolicy bounds clone attempts. Delays double from BaseDelay up to
// MaxDelay; Timeout applies to each attempt on its own.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Timeout   time.Duration
}

// DefaultRetryPolicy is three attempts, 1s then 2s apart, five minutes each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Timeout: 5 * time.Minute}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// CloneError reports a repository that could not be cloned after all
// attempts. Its directory has been removed.
type CloneError struct {
	Repo     string
	Attempts int
	Err      error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone %s failed after %d attempt(s): %v", e.Repo, e.Attempts, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// Dir is the parent of the workspace root. Empty means os.TempDir().
	Dir string
	// Retain keeps clones on disk after Release and Close.
	Retain bool
	Retry  RetryPolicy
	Logger logrus.FieldLogger
}

// Manager owns a root temp directory and one workspace per repository.
// It is safe for concurrent use.
type Manager struct {
	cloner Cloner
	opts   ManagerOptions
	log    logrus.FieldLogger
	root   string
	sleep  func(context.Context, time.Duration) error

	mu     sync.Mutex
	active map[string]*Workspace
	peak   int
	closed bool
}

// NewManager creates the workspace root.
func NewManager(cloner Cloner, opts ManagerOptions) (*Manager, error) {
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	root, err := os.MkdirTemp(opts.Dir, "scout-clones-")
	if err != nil {
		return nil, fmt.Errorf("create clone workspace: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		cloner: cloner,
		opts:   opts,
		log:    log,
		root:   root,
		sleep:  sleepCtx,
		active: map[string]*Workspace{},
	}, nil
}

// Root is the directory all workspaces live under.
func (m *Manager) Root() string { return m.root }

// Active is the number of workspaces acquired and not yet released.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Peak is the highest Active value observed.
func (m *Manager) Peak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Workspace is one cloned repository. Release it when done.
type Workspace struct {
	Repo Repo
	Dir  string
	// Attempts is how many clone attempts were needed.
	Attempts int

	m    *Manager
	once sync.Once
	err  error
}

func dirName(repo Repo) string {
	r := strings.NewReplacer("/", "__", "\\", "__", "..", "_", ":", "_")
	return r.Replace(repo.Key())
}

// Acquire clones repo into a fresh workspace, retrying per the policy.
// Partial directories are removed between attempts and on failure.
func (m *Manager) Acquire(ctx context.Context, repo Repo) (*Workspace, error) {
	key := repo.Key()
	dir := filepath.Join(m.root, dirName(repo))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("clone manager is closed")
	}
	if _, busy := m.active[key]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("workspace for %s already acquired", key)
	}
	ws := &Workspace{Repo: repo, Dir: dir, m: m}
	m.active[key] = ws
	if len(m.active) > m.peak {
		m.peak = len(m.active)
	}
	m.mu.Unlock()

	pol := m.opts.Retry
	var lastErr error
	attempt := 0
	for attempt < pol.Attempts {
		attempt++
		_ = os.RemoveAll(dir)
		err := m.cloneOnce(ctx, repo, dir)
		if err == nil {
			ws.Attempts = attempt
			m.log.WithFields(logrus.Fields{"repo": key, "attempts": attempt}).Debug("github: cloned")
			return ws, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if attempt == pol.Attempts {
			break
		}
		wait := pol.delay(attempt)
		m.log.WithFields(logrus.Fields{"repo": key, "attempt": attempt, "wait": wait.String()}).Warnf("github: clone failed, retrying: %v", err)
		if err := m.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		m.log.WithField("repo", key).Warnf("github: remove failed clone: %v", err)
	}
	m.forget(key)
	return nil, &CloneError{Repo: key, Attempts: attempt, Err: lastErr}
}

func (m *Manager) cloneOnce(ctx context.Context, repo Repo, dir string) error {
	cctx := ctx
	if m.opts.Retry.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, m.opts.Retry.Timeout)
		defer cancel()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return m.cloner.Clone(cctx, repo, dir)
}

func (m *Manager) forget(key string) {
	m.mu.Lock()
	delete(m.active, key)
	m.mu.Unlock()
}

// Release removes the workspace directory unless clones are retained.
// It is idempotent.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if !w.m.opts.Retain {
			w.err = os.RemoveAll(w.Dir)
		}
		w.m.forget(w.Repo.Key())
	})
	return w.err
}

// Close releases every outstanding workspace and removes the root.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	left := make([]*Workspace, 0, len(m.active))
	for _, ws := range m.active {
		left = append(left, ws)
	}
	m.mu.Unlock()

	var errs []error
	for _, ws := range left {
		if err := ws.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.opts.Retain {
		m.log.WithField("dir", m.root).Info("github: clones retained")
	} else if err := os.RemoveAll(m.root); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
