package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(rs []Repo) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.FullName)
	}
	return out
}

func TestRepoFilter(t *testing.T) {
	repos := []Repo{
		{ID: 5, FullName: "acme/web"},
		{ID: 4, FullName: "acme/api"},
		{ID: 3, FullName: "acme/old", Archived: true},
		{ID: 2, FullName: "acme/fork-of-x", Fork: true},
		{ID: 1, FullName: "acme/Infra-Secrets", Private: true},
		{ID: 6, FullName: "acme/gone", Disabled: true},
	}

	got, err := RepoFilter{}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/Infra-Secrets", "acme/api", "acme/web"}, names(got))

	got, err = RepoFilter{IncludeArchived: true, IncludeForks: true, IncludeDisabled: true, ExcludePrivate: true}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/api", "acme/fork-of-x", "acme/gone", "acme/old", "acme/web"}, names(got))

	got, err = RepoFilter{Include: []string{"acme/infra-*", "acme/a*"}}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/Infra-Secrets", "acme/api"}, names(got))

	got, err = RepoFilter{Exclude: []string{"*/web"}, Deny: []string{"ACME/api"}}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/Infra-Secrets"}, names(got))

	got, err = RepoFilter{Allow: []string{"acme/web", "acme/old"}}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/web"}, names(got), "toggles still apply to allowed repos")

	got, err = RepoFilter{MaxRepos: 2}.Apply(repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/Infra-Secrets", "acme/api"}, names(got))
}

func TestRepoFilter_StarStopsAtSlash(t *testing.T) {
	got, err := RepoFilter{Include: []string{"*"}}.Apply([]Repo{{FullName: "acme/web"}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = RepoFilter{Include: []string{"**"}}.Apply([]Repo{{FullName: "acme/web"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRepoFilter_InvalidGlob(t *testing.T) {
	_, err := RepoFilter{Include: []string{"acme/[web"}}.Apply(nil)
	assert.Error(t, err)
}

func TestParseOwner(t *testing.T) {
	o, err := ParseOwner("user:octocat")
	require.NoError(t, err)
	assert.Equal(t, Owner{Kind: OwnerUser, Name: "octocat"}, o)

	o, err = ParseOwner("acme")
	require.NoError(t, err)
	assert.Equal(t, OwnerOrg, o.Kind)

	_, err = ParseOwner("team:x")
	assert.Error(t, err)
	_, err = ParseOwner("org:")
	assert.Error(t, err)
}
