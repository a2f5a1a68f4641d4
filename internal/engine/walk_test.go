package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/ignore"
	"github.com/redactyl/scout/internal/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func defaultFilter(maxBytes int64) files.Filter {
	return files.Filter{
		SkipDirs:    files.DefaultSkipDirs(),
		IgnoreGlobs: files.DefaultIgnoreGlobs(),
		Ignore:      ignore.Parse("ignored.txt\nsecret-dir/\n"),
		MaxBytes:    maxBytes,
	}
}

func TestFSEnumerator_FiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "b")
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "sub/c.txt", "c")
	writeFile(t, dir, "node_modules/dep/index.js", "x")
	writeFile(t, dir, "ignored.txt", "x")
	writeFile(t, dir, "secret-dir/x.txt", "x")
	writeFile(t, dir, "web/app.min.js", "x")
	writeFile(t, dir, ".github/workflows/ci.yml", "on: push\n")
	writeFile(t, dir, "big.log", strings.Repeat("z", 100))
	writeFile(t, dir, "blob.dat", "ab\x00cd")
	if err := os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Logf("symlinks unsupported: %v", err)
	}

	var got []types.FileCandidate
	err := NewFSEnumerator(dir, defaultFilter(64)).Enumerate(context.Background(), func(c types.FileCandidate) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)

	var paths []string
	for _, c := range got {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{".github/workflows/ci.yml", "a.txt", "b.txt", "big.log", "blob.dat", "sub/c.txt"}, paths)
	assert.Equal(t, types.SkipTooLarge, got[3].Skip)
	assert.False(t, got[3].Binary, "oversize files are never opened")
	assert.True(t, got[4].Binary)
	assert.Equal(t, filepath.Join(dir, "sub", "c.txt"), got[5].AbsPath)
}

func TestFSEnumerator_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "only.env", "A=1\n")
	n, err := CountTargets(context.Background(), NewFSEnumerator(filepath.Join(dir, "only.env"), files.Filter{}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var path string
	_ = NewFSEnumerator(filepath.Join(dir, "only.env"), files.Filter{}).Enumerate(context.Background(), func(c types.FileCandidate) error {
		path = c.Path
		return nil
	})
	assert.Equal(t, "only.env", path)
}

func TestFSEnumerator_StopsOnVisitErrorAndCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "b.txt", "b")

	stop := errors.New("stop")
	calls := 0
	err := NewFSEnumerator(dir, files.Filter{}).Enumerate(context.Background(), func(types.FileCandidate) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CountTargets(ctx, NewFSEnumerator(dir, files.Filter{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSEnumerator_MissingRoot(t *testing.T) {
	_, err := CountTargets(context.Background(), NewFSEnumerator(filepath.Join(t.TempDir(), "nope"), files.Filter{}))
	assert.Error(t, err)
}

func TestDetermineWorkers(t *testing.T) {
	assert.Equal(t, 4, determineWorkers(0))
	assert.Equal(t, 1, determineWorkers(1))
	assert.Equal(t, 32, determineWorkers(100))
}
