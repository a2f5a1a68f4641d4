package engine

import (
	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/github"
	"github.com/redactyl/scout/internal/ignore"
	"github.com/redactyl/scout/internal/match"
)

// GitMode decides when a local path is enumerated through git.
type GitMode string

const (
	GitAuto   GitMode = "auto"
	GitAlways GitMode = "always"
	GitNever  GitMode = "never"
)

// CloneConfig controls the clone workspaces of GitHub scans.
type CloneConfig struct {
	// Dir is the parent of the temporary workspace root.
	Dir string
	// Retain keeps clones on disk after the run.
	Retain bool
	// Blobless requests --filter=blob:none when the git binary is used.
	Blobless bool
	Retry    github.RetryPolicy
}

// Config controls scanning behavior including scope, performance, and filters.
type Config struct {
	SkipDirs    []string
	IgnoreGlobs []string
	// IgnoreFile is read from each local target root, gitignore syntax.
	IgnoreFile string
	// MaxBytes is the per-file size cutoff. Zero disables it.
	MaxBytes    int64
	RegexWindow int
	// Concurrency is the number of evaluator (local) or repository
	// (GitHub) workers.
	Concurrency int
	// FailFast aborts the run on the first file or target error.
	FailFast             bool
	FilenameShortCircuit bool

	GitMode          GitMode
	IncludeUntracked bool
	IncludeIgnored   bool

	// RepoRules merges each cloned repository's own .scout/rules.yaml.
	RepoRules bool
	Clone     CloneConfig
	Filter    github.RepoFilter

	// Cache reuses findings of unchanged files between local scans.
	Cache bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SkipDirs:         files.DefaultSkipDirs(),
		IgnoreGlobs:      files.DefaultIgnoreGlobs(),
		IgnoreFile:       ignore.FileName,
		MaxBytes:         1 << 20,
		RegexWindow:      match.DefaultWindow,
		Concurrency:      defaultConcurrency,
		GitMode:          GitAuto,
		IncludeUntracked: true,
		Clone: CloneConfig{
			Blobless: true,
			Retry:    github.DefaultRetryPolicy(),
		},
	}
}

const (
	defaultConcurrency = 4
	maxConcurrency     = 32
)

func determineWorkers(n int) int {
	if n <= 0 {
		n = defaultConcurrency
	}
	if n > maxConcurrency {
		n = maxConcurrency
	}
	return n
}
