package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redactyl/scout/internal/types"
)

func sampleResult() *types.ScanResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &types.ScanResult{
		Findings: []types.Finding{
			{RuleID: "github-token", Kind: types.KindContent, Target: "acme/api", Path: "a.go", Line: 1, Sample: "ghp_…abcd", Severity: types.SevHigh, MatchHash: "h1"},
			{RuleID: "config-plaintext-password", Kind: types.KindStructured, Path: "cfg.yaml", Line: 4, KeyPath: "db.password", Sample: "***REDACTED***", Severity: types.SevMed, MatchHash: "h2", Description: "Plaintext password"},
		},
		Stats:      types.Stats{FilesScanned: 10, SkippedTooLarge: 1},
		Complete:   true,
		StartedAt:  start,
		FinishedAt: start.Add(1200 * time.Millisecond),
	}
}

func TestPrintText_NoFindings_ShowsFooter(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult()
	res.Findings = nil
	PrintText(&buf, res, PrintOptions{})
	out := buf.String()
	if !strings.Contains(out, "No secrets found") {
		t.Fatalf("expected friendly no-findings message; got: %q", out)
	}
	if !strings.Contains(out, "Files scanned: 10") {
		t.Fatalf("expected footer with files scanned; got: %q", out)
	}
	if !strings.Contains(out, "Scan duration: 1.20s") {
		t.Fatalf("expected duration; got: %q", out)
	}
	if !strings.Contains(out, "1 too large") {
		t.Fatalf("expected skip counters; got: %q", out)
	}
}

func TestPrintText_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, sampleResult(), PrintOptions{NoColor: true, ShowTarget: true})
	out := buf.String()
	if !strings.Contains(out, "Findings: 2") {
		t.Fatalf("expected findings header; got: %q", out)
	}
	if !strings.Contains(out, "acme/api: a.go:1") {
		t.Fatalf("expected target and location; got: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes; got: %q", out)
	}
}

func TestPrintText_IncompleteAndErrors(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult()
	res.Complete = false
	res.Errors = []types.ScanError{{Target: "acme/web", Kind: types.ErrClone, Message: "timeout"}}
	PrintText(&buf, res, PrintOptions{NoColor: true})
	out := buf.String()
	if !strings.Contains(out, "clone acme/web: timeout") {
		t.Fatalf("expected error line; got: %q", out)
	}
	if !strings.Contains(out, "Scan incomplete") {
		t.Fatalf("expected incomplete marker; got: %q", out)
	}
}

func TestPrintTable_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintTable(&buf, sampleResult(), PrintOptions{NoColor: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "SEVERITY") {
		t.Fatalf("expected table header with SEVERITY; got: %q", out)
	}
	if !strings.Contains(out, "github-token") {
		t.Fatalf("expected rule in table; got: %q", out)
	}
	if !strings.Contains(out, "cfg.yaml:4") {
		t.Fatalf("expected location in table; got: %q", out)
	}
	if !strings.Contains(out, "│") {
		t.Fatalf("expected table borders; got: %q", out)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	var back types.ScanResult
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Findings) != 2 || back.Findings[1].KeyPath != "db.password" || !back.Complete {
		t.Fatalf("unexpected decoded result: %+v", back)
	}
}
