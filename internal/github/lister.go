package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v30/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// ListerOptions configure paging, retries and timeouts.
type ListerOptions struct {
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string
	PerPage int
	// IncludePrivate lists a user's private repositories through
	// /user/repos when a token is present.
	IncludePrivate bool
	// MaxAttempts bounds the attempts per page.
	MaxAttempts int
	// Waits between attempts are clamped to [MinWait, MaxWait].
	MinWait time.Duration
	MaxWait time.Duration
	// CallTimeout bounds one API call. A timeout counts as a failed attempt.
	CallTimeout time.Duration
	// HTTPClient is the transport under the oauth2 client.
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// DefaultListerOptions are the settings used by the CLI.
func DefaultListerOptions() ListerOptions {
	return ListerOptions{
		PerPage:        100,
		IncludePrivate: true,
		MaxAttempts:    5,
		MinWait:        time.Second,
		MaxWait:        2 * time.Minute,
		CallTimeout:    30 * time.Second,
	}
}

// RateLimitExceededError is returned once the attempts for a page are used
// up while GitHub keeps rate limiting.
type RateLimitExceededError struct {
	Owner    string
	Attempts int
	Reset    time.Time
	Err      error
}

func (e *RateLimitExceededError) Error() string {
	msg := fmt.Sprintf("github rate limit exceeded listing %s after %d attempts", e.Owner, e.Attempts)
	if !e.Reset.IsZero() {
		msg += fmt.Sprintf(" (resets at %s)", e.Reset.UTC().Format(time.RFC3339))
	}
	return msg
}

func (e *RateLimitExceededError) Unwrap() error { return e.Err }

// Lister pages through the repositories of an owner.
type Lister struct {
	client   *gh.Client
	hasToken bool
	opts     ListerOptions
	log      logrus.FieldLogger
	sleep    func(context.Context, time.Duration) error
}

// NewLister builds a lister. An empty token lists public repositories
// anonymously.
func NewLister(token string, opts ListerOptions) (*Lister, error) {
	def := DefaultListerOptions()
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = def.PerPage
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.MinWait <= 0 {
		opts.MinWait = def.MinWait
	}
	if opts.MaxWait < opts.MinWait {
		opts.MaxWait = opts.MinWait
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	hc := opts.HTTPClient
	if token != "" {
		ctx := context.Background()
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := gh.NewClient(hc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		client.BaseURL = u
	}
	client.UserAgent = "scout"
	return &Lister{client: client, hasToken: token != "", opts: opts, log: log, sleep: sleepCtx}, nil
}

// ListRepos returns every repository of owner, in API order.
func (l *Lister) ListRepos(ctx context.Context, owner Owner) ([]Repo, error) {
	fetch, err := l.pageFunc(owner)
	if err != nil {
		return nil, err
	}
	var out []Repo
	page := 1
	for page != 0 {
		repos, next, err := l.fetchWithRetry(ctx, owner, page, fetch)
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			out = append(out, fromAPI(r))
		}
		page = next
	}
	if owner.Kind == OwnerUser && l.viaAuthenticatedUser() {
		out = keepOwner(out, owner.Name)
	}
	l.log.WithFields(logrus.Fields{"owner": owner.String(), "repos": len(out)}).Debug("github: listed repositories")
	return out, nil
}

type pageFunc func(ctx context.Context, page int) ([]*gh.Repository, *gh.Response, error)

func (l *Lister) viaAuthenticatedUser() bool {
	return l.hasToken && l.opts.IncludePrivate
}

func (l *Lister) pageFunc(owner Owner) (pageFunc, error) {
	lo := func(page int) gh.ListOptions { return gh.ListOptions{Page: page, PerPage: l.opts.PerPage} }
	switch owner.Kind {
	case OwnerOrg:
		return func(ctx context.Context, page int) ([]*gh.Repository, *gh.Response, error) {
			return l.client.Repositories.ListByOrg(ctx, owner.Name, &gh.RepositoryListByOrgOptions{Type: "all", ListOptions: lo(page)})
		}, nil
	case OwnerUser:
		if l.viaAuthenticatedUser() {
			return func(ctx context.Context, page int) ([]*gh.Repository, *gh.Response, error) {
				return l.client.Repositories.List(ctx, "", &gh.RepositoryListOptions{
					Visibility:  "all",
					Affiliation: "owner,collaborator,organization_member",
					ListOptions: lo(page),
				})
			}, nil
		}
		return func(ctx context.Context, page int) ([]*gh.Repository, *gh.Response, error) {
			return l.client.Repositories.List(ctx, owner.Name, &gh.RepositoryListOptions{Type: "all", ListOptions: lo(page)})
		}, nil
	}
	return nil, fmt.Errorf("unknown owner kind %q", owner.Kind)
}

func (l *Lister) fetchWithRetry(ctx context.Context, owner Owner, page int, fetch pageFunc) ([]*gh.Repository, int, error) {
	var lastErr error
	var reset time.Time
	rateLimited := false
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, l.opts.CallTimeout)
		repos, resp, err := fetch(callCtx, page)
		cancel()
		if err == nil {
			next := 0
			if resp != nil {
				next = resp.NextPage
			}
			return repos, next, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		lastErr = err
		wait, retryable := l.classify(err, attempt)
		var rle *gh.RateLimitError
		var abuse *gh.AbuseRateLimitError
		switch {
		case errors.As(err, &rle):
			rateLimited = true
			reset = rle.Rate.Reset.Time
		case errors.As(err, &abuse):
			rateLimited = true
		}
		if !retryable || attempt == l.opts.MaxAttempts {
			break
		}
		l.log.WithFields(logrus.Fields{
			"owner":   owner.String(),
			"page":    page,
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warnf("github: list failed, retrying: %v", err)
		if err := l.sleep(ctx, wait); err != nil {
			return nil, 0, err
		}
	}
	if rateLimited {
		return nil, 0, &RateLimitExceededError{Owner: owner.String(), Attempts: l.opts.MaxAttempts, Reset: reset, Err: lastErr}
	}
	return nil, 0, fmt.Errorf("list repositories of %s (page %d): %w", owner, page, lastErr)
}

// classify returns how long to wait before the next attempt and whether
// one should be made at all.
func (l *Lister) classify(err error, attempt int) (time.Duration, bool) {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return l.clamp(time.Until(rle.Rate.Reset.Time)), true
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return l.clamp(*abuse.RetryAfter), true
		}
		return l.backoff(attempt), true
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		code := er.Response.StatusCode
		if code >= 500 || code == http.StatusTooManyRequests {
			return l.backoff(attempt), true
		}
		return 0, false
	}
	// transport errors and per-call timeouts
	return l.backoff(attempt), true
}

func (l *Lister) backoff(attempt int) time.Duration {
	d := l.opts.MinWait
	for i := 1; i < attempt && d < l.opts.MaxWait; i++ {
		d *= 2
	}
	return l.clamp(d)
}

func (l *Lister) clamp(d time.Duration) time.Duration {
	if d < l.opts.MinWait {
		return l.opts.MinWait
	}
	if d > l.opts.MaxWait {
		return l.opts.MaxWait
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func fromAPI(r *gh.Repository) Repo {
	return Repo{
		ID:            r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		CloneURL:      r.GetCloneURL(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		Fork:          r.GetFork(),
		Archived:      r.GetArchived(),
		Disabled:      r.GetDisabled(),
		Size:          r.GetSize(),
	}
}

func keepOwner(repos []Repo, login string) []Repo {
	out := repos[:0]
	for _, r := range repos {
		if strings.EqualFold(r.Owner, login) {
			out = append(out, r)
		}
	}
	return out
}
