package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/scout/internal/audit"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/types"
)

func sampleResult() *types.ScanResult {
	now := time.Now()
	return &types.ScanResult{
		Targets: []types.Target{{Kind: types.TargetPath, Root: "/repo"}},
		Findings: []types.Finding{
			{Path: "src/config.go", Line: 3, RuleID: "aws-access-key", Sample: "AKIA...CDEF", Severity: types.SevHigh, MatchHash: "h1"},
			{Path: "src/main.go", Line: 9, RuleID: "generic-password", Sample: "hunt...er22", Severity: types.SevMed, MatchHash: "h2"},
			{Path: "test/a.env", RuleID: "dotenv-file", Severity: types.SevLow, MatchHash: "h3"},
			{Path: "deploy/key.pem", RuleID: "private-key-file", Severity: types.SevCritical, MatchHash: "h4"},
		},
		Complete:   true,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
	}
}

func newTestModel(t *testing.T, res *types.ScanResult, opts Options) Model {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	m := NewModel(res, opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func key(m Model, k string) Model {
	var msg tea.KeyMsg
	switch k {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func displayedPaths(m Model) []string {
	var out []string
	for _, idx := range m.display {
		out = append(out, m.findings[idx].Path)
	}
	return out
}

func TestApplyFilters_SearchQuery(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})

	m.searchQuery = "config"
	m.applyFilters()
	if got := displayedPaths(m); len(got) != 1 || got[0] != "src/config.go" {
		t.Fatalf("search by path: got %v", got)
	}

	m.searchQuery = "PASSWORD"
	m.applyFilters()
	if got := displayedPaths(m); len(got) != 1 || got[0] != "src/main.go" {
		t.Fatalf("search by rule is case insensitive: got %v", got)
	}

	m.searchQuery = "akia"
	m.applyFilters()
	if len(m.display) != 1 {
		t.Fatalf("search by sample: got %d rows", len(m.display))
	}
}

func TestSeverityFilterToggles(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})
	m = key(m, "1")
	if got := displayedPaths(m); len(got) != 1 || got[0] != "src/config.go" {
		t.Fatalf("HIGH filter: got %v", got)
	}
	m = key(m, "1")
	if len(m.display) != 4 {
		t.Fatalf("second press should clear the filter, got %d rows", len(m.display))
	}
	m = key(m, "0")
	m = key(m, "esc")
	if m.severityFilter != "" || len(m.display) != 4 {
		t.Fatalf("esc should clear filters")
	}
}

func TestSortCycle(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})
	m = key(m, "s")
	if m.sortColumn != SortSeverity {
		t.Fatalf("expected severity sort, got %q", m.sortColumn)
	}
	if got := displayedPaths(m); got[0] != "deploy/key.pem" || got[3] != "test/a.env" {
		t.Fatalf("severity order wrong: %v", got)
	}
	m = key(m, "S")
	if got := displayedPaths(m); got[0] != "test/a.env" {
		t.Fatalf("reverse order wrong: %v", got)
	}
	m = key(m, "s")
	m = key(m, "s")
	m = key(m, "s")
	if m.sortColumn != SortDefault {
		t.Fatalf("sort should cycle back to default, got %q", m.sortColumn)
	}
}

func TestSearchMode(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})
	m = key(m, "/")
	if !m.searchMode {
		t.Fatal("expected search mode")
	}
	for _, r := range "main" {
		m = key(m, string(r))
	}
	if len(m.display) != 1 {
		t.Fatalf("expected live filtering, got %d rows", len(m.display))
	}
	m = key(m, "enter")
	if m.searchMode || m.searchQuery != "main" {
		t.Fatalf("enter should keep the query: %+v", m.searchQuery)
	}
}

func TestHideSamples(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})
	m = key(m, "h")
	if !m.prefs.HideSamples {
		t.Fatal("expected samples hidden")
	}
	detail := m.renderDetail(m.findings[0])
	if strings.Contains(detail, "AKIA...CDEF") {
		t.Fatal("hidden sample leaked into detail pane")
	}
}

func TestAddToBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.baseline.json")
	m := newTestModel(t, sampleResult(), Options{BaselinePath: path})

	cmd := m.addToBaseline()
	if msg, ok := cmd().(statusMsg); !ok || !strings.Contains(string(msg), "Added") {
		t.Fatalf("unexpected status %v", msg)
	}
	base, err := report.LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if !base.Contains(m.findings[0]) {
		t.Fatal("baseline file should accept the selected finding")
	}
	if !strings.HasPrefix(m.table.Rows()[0][0], "(b)") {
		t.Fatalf("row should be marked baselined: %v", m.table.Rows()[0])
	}
	if msg := m.addToBaseline()().(statusMsg); msg != "Already baselined" {
		t.Fatalf("unexpected status %q", msg)
	}
}

func TestAddToBaseline_NoPath(t *testing.T) {
	m := newTestModel(t, sampleResult(), Options{})
	if msg := m.addToBaseline()().(statusMsg); msg != "No baseline file configured" {
		t.Fatalf("unexpected status %q", msg)
	}
}

func TestRescan(t *testing.T) {
	fresh := sampleResult()
	fresh.Findings = fresh.Findings[:1]
	m := newTestModel(t, sampleResult(), Options{Rescan: func() (*types.ScanResult, error) { return fresh, nil }})
	m.opts.Cached = true

	next, _ := m.Update(m.rescan()())
	m = next.(Model)
	if len(m.findings) != 1 || m.opts.Cached {
		t.Fatalf("rescan result not applied: %d findings", len(m.findings))
	}

	failing := newTestModel(t, sampleResult(), Options{Rescan: func() (*types.ScanResult, error) { return nil, errors.New("boom") }})
	next, _ = failing.Update(failing.rescan()())
	failing = next.(Model)
	if len(failing.findings) != 4 || !strings.Contains(failing.status, "boom") {
		t.Fatalf("failed rescan should keep old findings, status %q", failing.status)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	m := newTestModel(t, sampleResult(), Options{Version: "test"})
	m = key(m, "2")
	if msg := m.export("sarif")().(statusMsg); !strings.Contains(string(msg), "Exported 1 findings") {
		t.Fatalf("unexpected status %q", msg)
	}
	b, err := os.ReadFile(filepath.Join(dir, "scout-export.sarif"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(b), "generic-password") || strings.Contains(string(b), "aws-access-key") {
		t.Fatal("export should contain only the visible findings")
	}
}

func TestHistory(t *testing.T) {
	root := t.TempDir()
	log := audit.NewAuditLog(root)
	if err := log.LogScan(audit.CreateScanRecord(sampleResult(), "")); err != nil {
		t.Fatalf("LogScan: %v", err)
	}
	m := newTestModel(t, sampleResult(), Options{AuditRoot: root})
	next, _ := m.Update(m.loadHistory()())
	m = next.(Model)
	if !m.showHistory || len(m.history) != 1 {
		t.Fatalf("expected one history record, got %d", len(m.history))
	}
	if !strings.Contains(m.View(), "Scan History") {
		t.Fatal("history popup not rendered")
	}
	m = key(m, "esc")
	if m.showHistory {
		t.Fatal("esc should close history")
	}
}
