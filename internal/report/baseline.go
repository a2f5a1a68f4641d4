package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/redactyl/scout/internal/types"
)

const baselineVersion = 1

// Baseline is the set of accepted match hashes. It is read-only once loaded.
type Baseline struct {
	Version int             `json:"version"`
	Items   map[string]bool `json:"items"`
}

// NewBaseline builds a baseline accepting every given finding.
func NewBaseline(findings []types.Finding) Baseline {
	b := Baseline{Version: baselineVersion, Items: make(map[string]bool, len(findings))}
	for _, f := range findings {
		if f.MatchHash != "" {
			b.Items[f.MatchHash] = true
		}
	}
	return b
}

// Len is the number of accepted hashes.
func (b Baseline) Len() int { return len(b.Items) }

// Contains reports whether f was accepted.
func (b Baseline) Contains(f types.Finding) bool {
	return f.MatchHash != "" && b.Items[f.MatchHash]
}

// Hashes lists the accepted hashes in sorted order.
func (b Baseline) Hashes() []string {
	out := make([]string, 0, len(b.Items))
	for h, ok := range b.Items {
		if ok {
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}

// BaselineLoadError means the baseline file could not be used. The baseline
// returned with it is empty and safe to apply.
type BaselineLoadError struct {
	Path string
	Err  error
}

func (e *BaselineLoadError) Error() string {
	return fmt.Sprintf("baseline %s unusable, treating as empty: %v", e.Path, e.Err)
}

func (e *BaselineLoadError) Unwrap() error { return e.Err }

func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Version: baselineVersion, Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, &BaselineLoadError{Path: path, Err: err}
	}
	var parsed Baseline
	if err := json.Unmarshal(f, &parsed); err != nil {
		return b, &BaselineLoadError{Path: path, Err: err}
	}
	if parsed.Version > baselineVersion {
		return b, &BaselineLoadError{Path: path, Err: fmt.Errorf("unsupported version %d", parsed.Version)}
	}
	for h, ok := range parsed.Items {
		if ok {
			b.Items[h] = true
		}
	}
	return b, nil
}

// With returns a copy of b that also accepts findings.
func (b Baseline) With(findings ...types.Finding) Baseline {
	out := Baseline{Version: baselineVersion, Items: make(map[string]bool, len(b.Items)+len(findings))}
	for h, ok := range b.Items {
		if ok {
			out.Items[h] = true
		}
	}
	for _, f := range findings {
		if f.MatchHash != "" {
			out.Items[f.MatchHash] = true
		}
	}
	return out
}

// Write stores b at path as indented JSON.
func (b Baseline) Write(path string) error {
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	b.Version = baselineVersion
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(buf, '\n'), 0644)
}

func SaveBaseline(path string, findings []types.Finding) error {
	return NewBaseline(findings).Write(path)
}

// Apply removes baselined findings from res. The order of the remaining
// findings is preserved and applying the same baseline twice is a no-op.
func Apply(res *types.ScanResult, base Baseline) *types.ScanResult {
	if res == nil || len(base.Items) == 0 {
		return res
	}
	out := *res
	out.Findings = FilterNewFindings(res.Findings, base)
	out.Stats.Baselined += len(res.Findings) - len(out.Findings)
	return &out
}

func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	out := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !base.Contains(f) {
			out = append(out, f)
		}
	}
	return out
}

// ShouldFail reports whether any finding is at or above the failOn
// severity. An unknown threshold defaults to medium.
func ShouldFail(findings []types.Finding, failOn string) bool {
	th, ok := types.ParseSeverity(failOn)
	if !ok {
		th = types.SevMed
	}
	for _, f := range findings {
		if f.Severity.Rank() >= th.Rank() {
			return true
		}
	}
	return false
}
