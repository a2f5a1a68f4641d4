package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePack(t *testing.T) {
	p, err := ParsePack([]byte(`
version: 1
name: team
rules:
  - id: internal-token
    kind: regex
    pattern: 'itk_[a-z0-9]{20}'
    severity: high
    scope: file
    max_matches: 3
  - id: jwt
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, "team", p.Name)
	require.Len(t, p.Rules, 2)
	assert.Equal(t, 3, p.Rules[0].MaxMatches)
	require.NotNil(t, p.Rules[1].Enabled)
	assert.False(t, *p.Rules[1].Enabled)
}

func TestParsePack_RejectsUnknownFields(t *testing.T) {
	_, err := ParsePack([]byte("rules:\n  - id: x\n    kind: regex\n    patern: typo\n"))
	require.Error(t, err)
}

func TestParsePack_Empty(t *testing.T) {
	p, err := ParsePack(nil)
	require.NoError(t, err)
	assert.Empty(t, p.Rules)
}

func TestParsePack_FutureVersion(t *testing.T) {
	_, err := ParsePack([]byte("version: 2\nrules: []\n"))
	require.Error(t, err)
}

func TestFindRepoPack(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".scout"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	packPath := filepath.Join(root, ".scout", "rules.yml")
	require.NoError(t, os.WriteFile(packPath, []byte("rules: []\n"), 0o644))

	got, ok := FindRepoPack(filepath.Join(root, "a", "b"))
	require.True(t, ok)
	assert.Equal(t, packPath, got)
}

func TestFindRepoPack_StopsAtRepoRoot(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outer, ".scout"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outer, ".scout", "rules.yaml"), []byte("rules: []\n"), 0o644))
	repo := filepath.Join(outer, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))

	_, ok := FindRepoPack(repo)
	assert.False(t, ok)
}

func TestFindGlobalPack_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scout"), 0o755))
	p := filepath.Join(dir, "scout", "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte("rules: []\n"), 0o644))

	got, ok := FindGlobalPack()
	require.True(t, ok)
	assert.Equal(t, p, got)

	srcs := DefaultSources("", []string{"default"}, []string{"extra.yaml"})
	require.Len(t, srcs, 3)
	assert.Equal(t, TierBuiltin, srcs[0].Tier)
	assert.Equal(t, TierGlobal, srcs[1].Tier)
	assert.Equal(t, TierCLI, srcs[2].Tier)
}
