package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/github"
)

// ErrNotFound is returned by LoadLocal and LoadGlobal when no file exists.
var ErrNotFound = errors.New("no config file")

// FileConfig is the on-disk YAML configuration shape for scout. Nil fields
// are unset and leave the layer below untouched.
type FileConfig struct {
	MaxBytes             *int64 `yaml:"max_bytes,omitempty"`
	Threads              *int   `yaml:"threads,omitempty"`
	RegexWindow          *int   `yaml:"regex_window,omitempty"`
	FailFast             *bool  `yaml:"fail_fast,omitempty"`
	FilenameShortCircuit *bool  `yaml:"filename_short_circuit,omitempty"`

	// DefaultExcludes=false drops the built-in skip dirs and ignore globs.
	DefaultExcludes *bool    `yaml:"default_excludes,omitempty"`
	SkipDirs        []string `yaml:"skip_dirs,omitempty"`
	Ignore          []string `yaml:"ignore,omitempty"`
	IgnoreFile      *string  `yaml:"ignore_file,omitempty"`

	Git              *string `yaml:"git,omitempty"`
	IncludeUntracked *bool   `yaml:"include_untracked,omitempty"`
	IncludeIgnored   *bool   `yaml:"include_ignored,omitempty"`
	Cache            *bool   `yaml:"cache,omitempty"`

	NoColor  *bool   `yaml:"no_color,omitempty"`
	Format   *string `yaml:"format,omitempty"`
	FailOn   *string `yaml:"fail_on,omitempty"`
	Baseline *string `yaml:"baseline,omitempty"`

	Rules  *RulesConfig  `yaml:"rules,omitempty"`
	GitHub *GitHubConfig `yaml:"github,omitempty"`
}

// RulesConfig selects the rule sources below the CLI tier.
type RulesConfig struct {
	// Packs names builtin packs; unset means "default".
	Packs []string `yaml:"packs,omitempty"`
	Files []string `yaml:"files,omitempty"`
	// Global loads the user's global pack. Defaults to true.
	Global *bool `yaml:"global,omitempty"`
}

// GitHubConfig holds listing, filtering and cloning settings.
type GitHubConfig struct {
	APIURL          *string  `yaml:"api_url,omitempty"`
	Owners          []string `yaml:"owners,omitempty"`
	Include         []string `yaml:"include,omitempty"`
	Exclude         []string `yaml:"exclude,omitempty"`
	Allow           []string `yaml:"allow,omitempty"`
	Deny            []string `yaml:"deny,omitempty"`
	IncludeArchived *bool    `yaml:"include_archived,omitempty"`
	IncludeForks    *bool    `yaml:"include_forks,omitempty"`
	IncludeDisabled *bool    `yaml:"include_disabled,omitempty"`
	ExcludePrivate  *bool    `yaml:"exclude_private,omitempty"`
	MaxRepos        *int     `yaml:"max_repos,omitempty"`
	RepoRules       *bool    `yaml:"repo_rules,omitempty"`
	MaxAttempts     *int     `yaml:"max_attempts,omitempty"`
	CallTimeout     *string  `yaml:"call_timeout,omitempty"`

	Clone *CloneConfig `yaml:"clone,omitempty"`
}

// CloneConfig mirrors engine.CloneConfig.
type CloneConfig struct {
	Dir      *string `yaml:"dir,omitempty"`
	Retain   *bool   `yaml:"retain,omitempty"`
	Blobless *bool   `yaml:"blobless,omitempty"`
	Attempts *int    `yaml:"attempts,omitempty"`
	Timeout  *string `yaml:"timeout,omitempty"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames are the repo-local config file names, in lookup order.
var LocalNames = []string{".scout.yml", ".scout.yaml", "scout.yml", "scout.yaml"}

// LoadLocal searches for a repo-local config file in the given root.
func LoadLocal(repoRoot string) (FileConfig, error) {
	for _, name := range LocalNames {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNotFound
}

// GlobalPath is $XDG_CONFIG_HOME/scout/config.yml, falling back to
// ~/.config. It is empty when neither can be determined.
func GlobalPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, "scout", "config.yml")
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	p := GlobalPath()
	if p == "" {
		return FileConfig{}, ErrNotFound
	}
	if _, err := os.Stat(p); err != nil {
		return FileConfig{}, ErrNotFound
	}
	return LoadFile(p)
}

func first[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

func firstSlice[T any](a, b []T) []T {
	if a != nil {
		return a
	}
	return b
}

// Merge layers over on top of base: every field set in over wins.
func Merge(over, base FileConfig) FileConfig {
	out := FileConfig{
		MaxBytes:             first(over.MaxBytes, base.MaxBytes),
		Threads:              first(over.Threads, base.Threads),
		RegexWindow:          first(over.RegexWindow, base.RegexWindow),
		FailFast:             first(over.FailFast, base.FailFast),
		FilenameShortCircuit: first(over.FilenameShortCircuit, base.FilenameShortCircuit),
		DefaultExcludes:      first(over.DefaultExcludes, base.DefaultExcludes),
		SkipDirs:             firstSlice(over.SkipDirs, base.SkipDirs),
		Ignore:               firstSlice(over.Ignore, base.Ignore),
		IgnoreFile:           first(over.IgnoreFile, base.IgnoreFile),
		Git:                  first(over.Git, base.Git),
		IncludeUntracked:     first(over.IncludeUntracked, base.IncludeUntracked),
		IncludeIgnored:       first(over.IncludeIgnored, base.IncludeIgnored),
		Cache:                first(over.Cache, base.Cache),
		NoColor:              first(over.NoColor, base.NoColor),
		Format:               first(over.Format, base.Format),
		FailOn:               first(over.FailOn, base.FailOn),
		Baseline:             first(over.Baseline, base.Baseline),
	}
	if over.Rules != nil || base.Rules != nil {
		o, b := deref(over.Rules), deref(base.Rules)
		out.Rules = &RulesConfig{
			Packs:  firstSlice(o.Packs, b.Packs),
			Files:  firstSlice(o.Files, b.Files),
			Global: first(o.Global, b.Global),
		}
	}
	if over.GitHub != nil || base.GitHub != nil {
		o, b := deref(over.GitHub), deref(base.GitHub)
		gh := &GitHubConfig{
			APIURL:          first(o.APIURL, b.APIURL),
			Owners:          firstSlice(o.Owners, b.Owners),
			Include:         firstSlice(o.Include, b.Include),
			Exclude:         firstSlice(o.Exclude, b.Exclude),
			Allow:           firstSlice(o.Allow, b.Allow),
			Deny:            firstSlice(o.Deny, b.Deny),
			IncludeArchived: first(o.IncludeArchived, b.IncludeArchived),
			IncludeForks:    first(o.IncludeForks, b.IncludeForks),
			IncludeDisabled: first(o.IncludeDisabled, b.IncludeDisabled),
			ExcludePrivate:  first(o.ExcludePrivate, b.ExcludePrivate),
			MaxRepos:        first(o.MaxRepos, b.MaxRepos),
			RepoRules:       first(o.RepoRules, b.RepoRules),
			MaxAttempts:     first(o.MaxAttempts, b.MaxAttempts),
			CallTimeout:     first(o.CallTimeout, b.CallTimeout),
		}
		if o.Clone != nil || b.Clone != nil {
			oc, bc := deref(o.Clone), deref(b.Clone)
			gh.Clone = &CloneConfig{
				Dir:      first(oc.Dir, bc.Dir),
				Retain:   first(oc.Retain, bc.Retain),
				Blobless: first(oc.Blobless, bc.Blobless),
				Attempts: first(oc.Attempts, bc.Attempts),
				Timeout:  first(oc.Timeout, bc.Timeout),
			}
		}
		out.GitHub = gh
	}
	return out
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func parseDuration(field string, s *string) (time.Duration, bool, error) {
	if s == nil || *s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", field, err)
	}
	return d, true, nil
}

// Apply writes every set field onto cfg.
func (fc FileConfig) Apply(cfg *engine.Config) error {
	if fc.DefaultExcludes != nil && !*fc.DefaultExcludes {
		cfg.SkipDirs = []string{".git"}
		cfg.IgnoreGlobs = files.StateGlobs()
	}
	cfg.SkipDirs = append(cfg.SkipDirs, fc.SkipDirs...)
	cfg.IgnoreGlobs = append(cfg.IgnoreGlobs, fc.Ignore...)
	setIf(&cfg.IgnoreFile, fc.IgnoreFile)
	setIf(&cfg.MaxBytes, fc.MaxBytes)
	setIf(&cfg.Concurrency, fc.Threads)
	setIf(&cfg.RegexWindow, fc.RegexWindow)
	setIf(&cfg.FailFast, fc.FailFast)
	setIf(&cfg.FilenameShortCircuit, fc.FilenameShortCircuit)
	setIf(&cfg.IncludeUntracked, fc.IncludeUntracked)
	setIf(&cfg.IncludeIgnored, fc.IncludeIgnored)
	setIf(&cfg.Cache, fc.Cache)
	if fc.Git != nil {
		mode, err := ParseGitMode(*fc.Git)
		if err != nil {
			return err
		}
		cfg.GitMode = mode
	}

	gh := fc.GitHub
	if gh == nil {
		return nil
	}
	f := &cfg.Filter
	f.Include = append(f.Include, gh.Include...)
	f.Exclude = append(f.Exclude, gh.Exclude...)
	f.Allow = append(f.Allow, gh.Allow...)
	f.Deny = append(f.Deny, gh.Deny...)
	setIf(&f.IncludeArchived, gh.IncludeArchived)
	setIf(&f.IncludeForks, gh.IncludeForks)
	setIf(&f.IncludeDisabled, gh.IncludeDisabled)
	setIf(&f.ExcludePrivate, gh.ExcludePrivate)
	setIf(&f.MaxRepos, gh.MaxRepos)
	setIf(&cfg.RepoRules, gh.RepoRules)

	if c := gh.Clone; c != nil {
		setIf(&cfg.Clone.Dir, c.Dir)
		setIf(&cfg.Clone.Retain, c.Retain)
		setIf(&cfg.Clone.Blobless, c.Blobless)
		setIf(&cfg.Clone.Retry.Attempts, c.Attempts)
		d, ok, err := parseDuration("github.clone.timeout", c.Timeout)
		if err != nil {
			return err
		}
		if ok {
			cfg.Clone.Retry.Timeout = d
		}
	}
	return nil
}

// ApplyLister writes the GitHub API settings onto opts.
func (fc FileConfig) ApplyLister(opts *github.ListerOptions) error {
	gh := fc.GitHub
	if gh == nil {
		return nil
	}
	setIf(&opts.BaseURL, gh.APIURL)
	setIf(&opts.MaxAttempts, gh.MaxAttempts)
	if gh.ExcludePrivate != nil {
		opts.IncludePrivate = !*gh.ExcludePrivate
	}
	d, ok, err := parseDuration("github.call_timeout", gh.CallTimeout)
	if err != nil {
		return err
	}
	if ok {
		opts.CallTimeout = d
	}
	return nil
}

// ParseGitMode accepts auto, always and never.
func ParseGitMode(s string) (engine.GitMode, error) {
	switch m := engine.GitMode(s); m {
	case engine.GitAuto, engine.GitAlways, engine.GitNever:
		return m, nil
	case "":
		return engine.GitAuto, nil
	}
	return "", fmt.Errorf("git mode %q: want auto, always or never", s)
}
