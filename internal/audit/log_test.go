package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/scout/internal/types"
)

func TestLogScanAndLoadHistory(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	assert.Equal(t, filepath.Join(dir, ".scout_audit.jsonl"), log.Path())

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &types.ScanResult{
		Targets:    []types.Target{{Kind: types.TargetPath, Root: dir}},
		Findings:   []types.Finding{{RuleID: "aws-access-key", Path: "a.txt", Line: 2, Sample: "AKIA…MNOP", Severity: types.SevHigh, MatchHash: "abc"}},
		Stats:      types.Stats{FilesScanned: 3, Baselined: 1},
		Complete:   true,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	}
	first := CreateScanRecord(res, "scout.baseline.json")
	assert.Equal(t, 1, first.ExitCode)
	assert.Equal(t, map[string]int{"high": 1}, first.SeverityCounts)
	assert.Equal(t, "2s", first.Duration)
	require.NoError(t, log.LogScan(first))

	res.Findings = nil
	res.FinishedAt = start.Add(time.Hour)
	require.NoError(t, log.LogScan(CreateScanRecord(res, "")))

	hist, err := log.LoadHistory()
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 0, hist[0].TotalFindings, "newest first")
	assert.Equal(t, []string{dir}, hist[1].Targets)
	assert.Equal(t, "abc", hist[1].TopFindings[0].MatchHash)

	raw, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ABCDEFGHIJKL")
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}

func TestNewAuditLog_PrefersGitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	assert.Equal(t, filepath.Join(dir, ".git", "scout_audit.jsonl"), NewAuditLog(dir).Path())
}

func TestLoadHistory_Missing(t *testing.T) {
	_, err := NewAuditLog(t.TempDir()).LoadHistory()
	assert.Error(t, err)
}
