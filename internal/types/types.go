package types

import (
	"fmt"
	"strings"
	"time"
)

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SevLow      Severity = "low"
	SevMed      Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SevLow:
		return 1
	case SevMed:
		return 2
	case SevHigh:
		return 3
	case SevCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverity accepts the canonical names plus "med" and "crit".
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SevLow, true
	case "medium", "med":
		return SevMed, true
	case "high":
		return SevHigh, true
	case "critical", "crit":
		return SevCritical, true
	}
	return "", false
}

// FindingKind records which family of rule produced a finding.
type FindingKind string

const (
	KindFilename   FindingKind = "filename"
	KindContent    FindingKind = "content"
	KindStructured FindingKind = "structured"
)

// Finding is a single rule match in a candidate file. Sample is always
// redacted; the raw matched bytes never leave the evaluator.
type Finding struct {
	RuleID      string      `json:"rule_id"`
	Kind        FindingKind `json:"kind"`
	Target      string      `json:"target,omitempty"`
	Path        string      `json:"path"`
	Line        int         `json:"line,omitempty"`
	Column      int         `json:"column,omitempty"`
	KeyPath     string      `json:"key_path,omitempty"`
	Sample      string      `json:"sample,omitempty"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description,omitempty"`
	MatchHash   string      `json:"match_hash"`
}

// Location renders path:line or path#key for humans.
func (f Finding) Location() string {
	switch {
	case f.Line > 0:
		return fmt.Sprintf("%s:%d", f.Path, f.Line)
	case f.KeyPath != "":
		return f.Path + "#" + f.KeyPath
	default:
		return f.Path
	}
}

// TargetKind distinguishes what a scan target points at.
type TargetKind string

const (
	TargetPath   TargetKind = "path"
	TargetGit    TargetKind = "git"
	TargetGitHub TargetKind = "github"
)

// Target is an immutable description of one thing to scan.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Root  string     `json:"root,omitempty"`
	Owner string     `json:"owner,omitempty"`
	Repo  string     `json:"repo,omitempty"`

	// Best-effort repository metadata, filled for git targets.
	Remote string `json:"remote,omitempty"`
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Name is the label findings and errors carry for this target.
func (t Target) Name() string {
	if t.Kind == TargetGitHub {
		return t.Owner + "/" + t.Repo
	}
	return t.Root
}

// SkipReason explains why a candidate was enumerated but not read.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipTooLarge SkipReason = "too_large"
)

// FileCandidate is a file under consideration. Path is relative to the
// target root with forward slashes.
type FileCandidate struct {
	Path    string
	AbsPath string
	Size    int64
	Binary  bool
	Skip    SkipReason
}

// ErrorKind classifies entries in ScanResult.Errors.
type ErrorKind string

const (
	ErrRead      ErrorKind = "read"
	ErrEnumerate ErrorKind = "enumerate"
	ErrClone     ErrorKind = "clone"
	ErrList      ErrorKind = "list"
	ErrRules     ErrorKind = "rules"
)

// ScanError is a failure isolated to one file or one target.
type ScanError struct {
	Target  string    `json:"target,omitempty"`
	Path    string    `json:"path,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e ScanError) Error() string {
	loc := e.Target
	if e.Path != "" {
		if loc != "" {
			loc += ":"
		}
		loc += e.Path
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, loc, e.Message)
}

func (e ScanError) Unwrap() error { return e.Err }

// TargetLevel reports whether the error means a whole target went unscanned.
func (e ScanError) TargetLevel() bool {
	return e.Kind != ErrRead
}

// Stats are the counters reported alongside findings.
type Stats struct {
	FilesScanned    int `json:"files_scanned"`
	SkippedTooLarge int `json:"skipped_too_large"`
	SkippedBinary   int `json:"skipped_binary"`
	FilesErrored    int `json:"files_errored"`
	ReposScanned    int `json:"repos_scanned,omitempty"`
	ReposFailed     int `json:"repos_failed,omitempty"`
	Baselined       int `json:"baselined,omitempty"`
}

// Skipped counts candidates that were enumerated but never read.
func (s Stats) Skipped() int { return s.SkippedTooLarge }

// Add folds o into s.
func (s *Stats) Add(o Stats) {
	s.FilesScanned += o.FilesScanned
	s.SkippedTooLarge += o.SkippedTooLarge
	s.SkippedBinary += o.SkippedBinary
	s.FilesErrored += o.FilesErrored
	s.ReposScanned += o.ReposScanned
	s.ReposFailed += o.ReposFailed
	s.Baselined += o.Baselined
}

// Process exit codes derived from a ScanResult.
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitError    = 2
)

// ScanResult is the single outcome of one scan invocation.
type ScanResult struct {
	Targets    []Target    `json:"targets"`
	Findings   []Finding   `json:"findings"`
	Errors     []ScanError `json:"errors,omitempty"`
	Stats      Stats       `json:"stats"`
	Complete   bool        `json:"complete"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *ScanResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TargetFailures counts errors that left a whole target unscanned.
func (r *ScanResult) TargetFailures() int {
	n := 0
	for _, e := range r.Errors {
		if e.TargetLevel() {
			n++
		}
	}
	return n
}

// ExitCode maps the result onto process exit semantics. An incomplete run,
// or one where every target failed to scan, is never reported as clean.
func (r *ScanResult) ExitCode() int {
	if r == nil || !r.Complete {
		return ExitError
	}
	if len(r.Findings) > 0 {
		return ExitFindings
	}
	if r.TargetFailures() > 0 {
		return ExitError
	}
	return ExitClean
}
