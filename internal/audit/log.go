// Package audit appends one JSON line per scan to a local history file.
// Only redacted samples and match hashes are written.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redactyl/scout/internal/types"
)

type ScanRecord struct {
	Timestamp      time.Time        `json:"timestamp"`
	ScanID         string           `json:"scan_id"`
	Targets        []string         `json:"targets"`
	Complete       bool             `json:"complete"`
	ExitCode       int              `json:"exit_code"`
	TotalFindings  int              `json:"total_findings"`
	BaselinedCount int              `json:"baselined_count"`
	ErrorCount     int              `json:"error_count"`
	SeverityCounts map[string]int   `json:"severity_counts"`
	Stats          types.Stats      `json:"stats"`
	Duration       string           `json:"duration"`
	BaselineFile   string           `json:"baseline_file,omitempty"`
	TopFindings    []FindingSummary `json:"top_findings,omitempty"`
}

type FindingSummary struct {
	Target    string `json:"target,omitempty"`
	Path      string `json:"path"`
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"`
	Line      int    `json:"line,omitempty"`
	MatchHash string `json:"match_hash"`
}

type AuditLog struct {
	logPath string
}

func NewAuditLog(root string) *AuditLog {
	gitDir := filepath.Join(root, ".git")
	logPath := filepath.Join(root, ".scout_audit.jsonl")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		logPath = filepath.Join(gitDir, "scout_audit.jsonl")
	}
	return &AuditLog{logPath: logPath}
}

// Path is where records are appended.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns the records newest first. Reading stops at the first
// record that does not decode.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ScanRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = fmt.Sprintf("scan_%d", record.Timestamp.UnixNano())
	}

	// owner-only; records carry finding locations
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// CreateScanRecord summarizes a finished (or aborted) run.
func CreateScanRecord(res *types.ScanResult, baselineFile string) ScanRecord {
	severityCounts := make(map[string]int)
	for _, f := range res.Findings {
		severityCounts[string(f.Severity)]++
	}

	topFindings := make([]FindingSummary, 0, 10)
	for i, f := range res.Findings {
		if i >= 10 {
			break
		}
		topFindings = append(topFindings, FindingSummary{
			Target:    f.Target,
			Path:      f.Path,
			RuleID:    f.RuleID,
			Severity:  string(f.Severity),
			Line:      f.Line,
			MatchHash: f.MatchHash,
		})
	}

	targets := make([]string, 0, len(res.Targets))
	for _, t := range res.Targets {
		targets = append(targets, t.Name())
	}

	ts := res.FinishedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ScanRecord{
		Timestamp:      ts,
		Targets:        targets,
		Complete:       res.Complete,
		ExitCode:       res.ExitCode(),
		TotalFindings:  len(res.Findings),
		BaselinedCount: res.Stats.Baselined,
		ErrorCount:     len(res.Errors),
		SeverityCounts: severityCounts,
		Stats:          res.Stats,
		Duration:       res.Duration().String(),
		BaselineFile:   baselineFile,
		TopFindings:    topFindings,
	}
}
