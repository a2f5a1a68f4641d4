package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v30/github"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoJSON(owner, name string) map[string]any {
	return map[string]any{
		"id":             len(name),
		"name":           name,
		"full_name":      owner + "/" + name,
		"clone_url":      "https://github.com/" + owner + "/" + name + ".git",
		"default_branch": "main",
		"owner":          map[string]any{"login": owner},
	}
}

func newTestLister(t *testing.T, srv *httptest.Server, token string) (*Lister, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	l, err := NewLister(token, ListerOptions{
		BaseURL:        srv.URL,
		IncludePrivate: true,
		MaxAttempts:    3,
		MinWait:        time.Millisecond,
		MaxWait:        5 * time.Millisecond,
		CallTimeout:    time.Second,
		HTTPClient:     srv.Client(),
		Logger:         logger,
	})
	require.NoError(t, err)
	return l, hook
}

func TestListRepos_OrgPaginates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orgs/acme/repos", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("type"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		if page <= 1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/orgs/acme/repos?page=2&per_page=100&type=all>; rel="next"`, srv.URL))
			_ = json.NewEncoder(w).Encode([]any{repoJSON("acme", "api"), repoJSON("acme", "web")})
			return
		}
		_ = json.NewEncoder(w).Encode([]any{repoJSON("acme", "infra")})
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "acme"})
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "acme/infra", repos[2].FullName)
	assert.Equal(t, "acme", repos[0].Owner)
	assert.Equal(t, "main", repos[0].DefaultBranch)
}

func TestListRepos_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]any{repoJSON("acme", "api")})
	}))
	defer srv.Close()

	l, hook := newTestLister(t, srv, "")
	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "acme"})
	require.NoError(t, err)
	assert.Len(t, repos, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestListRepos_RateLimitExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(-time.Second).Unix(), 10))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for 127.0.0.1."}`))
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	_, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "acme"})
	var rle *RateLimitExceededError
	require.True(t, errors.As(err, &rle), "got %v", err)
	assert.Equal(t, 3, rle.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestListRepos_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	_, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "nope"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestListRepos_AuthenticatedUserFiltersOwner(t *testing.T) {
	const token = "ghp_testtokenvalue"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/repos", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]any{repoJSON("octocat", "hello"), repoJSON("someorg", "shared")})
	}))
	defer srv.Close()

	l, hook := newTestLister(t, srv, token)
	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerUser, Name: "OctoCat"})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "octocat/hello", repos[0].FullName)

	for _, e := range hook.AllEntries() {
		s, _ := e.String()
		assert.NotContains(t, s, token)
	}
}

func TestListRepos_AnonymousUserEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat/repos", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]any{repoJSON("octocat", "hello")})
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerUser, Name: "octocat"})
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestListRepos_CallTimeoutCountsAsAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_ = json.NewEncoder(w).Encode([]any{repoJSON("acme", "api")})
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	l.opts.CallTimeout = 50 * time.Millisecond
	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "acme"})
	require.NoError(t, err)
	assert.Len(t, repos, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestListRepos_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l, _ := newTestLister(t, srv, "")
	ctx, cancel := context.WithCancel(context.Background())
	l.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	_, err := l.ListRepos(ctx, Owner{Kind: OwnerOrg, Name: "acme"})
	assert.ErrorIs(t, err, context.Canceled)
}

// recordWaits swaps the lister's sleep for one that only records durations.
func recordWaits(l *Lister) *[]time.Duration {
	var waits []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return &waits
}

func TestListRepos_RecoversFromRateLimits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("X-RateLimit-Limit", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(-time.Second).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
		case 2:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"You have triggered an abuse detection mechanism.","documentation_url":"https://developer.github.com/v3/#abuse-rate-limits"}`))
		default:
			_ = json.NewEncoder(w).Encode([]any{repoJSON("acme", "api")})
		}
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	l, err := NewLister("", ListerOptions{
		BaseURL:     srv.URL,
		MaxAttempts: 4,
		MinWait:     10 * time.Millisecond,
		MaxWait:     time.Minute,
		CallTimeout: time.Second,
		HTTPClient:  srv.Client(),
		Logger:      logger,
	})
	require.NoError(t, err)
	waits := recordWaits(l)

	repos, err := l.ListRepos(context.Background(), Owner{Kind: OwnerOrg, Name: "acme"})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	// an elapsed reset is clamped up to MinWait; Retry-After is honoured as given
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 3 * time.Second}, *waits)
}

func TestClassify_WaitsComeFromRateLimitHeaders(t *testing.T) {
	l, err := NewLister("", ListerOptions{MinWait: time.Second, MaxWait: time.Minute})
	require.NoError(t, err)

	reset := gh.Timestamp{Time: time.Now().Add(30 * time.Second)}
	wait, retry := l.classify(&gh.RateLimitError{Rate: gh.Rate{Reset: reset}}, 1)
	assert.True(t, retry)
	assert.InDelta(t, float64(30*time.Second), float64(wait), float64(2*time.Second))

	far := gh.Timestamp{Time: time.Now().Add(time.Hour)}
	wait, _ = l.classify(&gh.RateLimitError{Rate: gh.Rate{Reset: far}}, 1)
	assert.Equal(t, time.Minute, wait, "clamped to MaxWait")

	long := 10 * time.Minute
	wait, retry = l.classify(&gh.AbuseRateLimitError{RetryAfter: &long}, 1)
	assert.True(t, retry)
	assert.Equal(t, time.Minute, wait)

	short := time.Duration(0)
	wait, _ = l.classify(&gh.AbuseRateLimitError{RetryAfter: &short}, 1)
	assert.Equal(t, time.Second, wait, "clamped to MinWait")

	wait, _ = l.classify(&gh.AbuseRateLimitError{}, 3)
	assert.Equal(t, 4*time.Second, wait, "no Retry-After backs off")
}
