package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/github"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "scout.yaml", `threads: 4
max_bytes: 123
fail_fast: true
git: never
rules:
  packs: [default, strict]
github:
  include: ["acme/*"]
  clone:
    timeout: 2m
`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Threads == nil || *cfg.Threads != 4 {
		t.Fatalf("expected threads=4, got %#v", cfg.Threads)
	}
	if cfg.MaxBytes == nil || *cfg.MaxBytes != 123 {
		t.Fatalf("expected max_bytes=123, got %#v", cfg.MaxBytes)
	}
	if cfg.FailFast == nil || !*cfg.FailFast {
		t.Fatalf("expected fail_fast=true")
	}
	if cfg.Rules == nil || len(cfg.Rules.Packs) != 2 {
		t.Fatalf("expected two rule packs, got %#v", cfg.Rules)
	}
	if cfg.GitHub == nil || cfg.GitHub.Clone == nil || *cfg.GitHub.Clone.Timeout != "2m" {
		t.Fatalf("expected github.clone.timeout=2m, got %#v", cfg.GitHub)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	p := writeTemp(t, t.TempDir(), "scout.yaml", "threads: [\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	// place both, expect the dotfile to be picked first by search order
	writeTemp(t, dir, "scout.yaml", "threads: 1\n")
	writeTemp(t, dir, ".scout.yaml", "threads: 7\n")
	cfg, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if cfg.Threads == nil || *cfg.Threads != 7 {
		t.Fatalf("expected threads=7 from .scout.yaml, got %#v", cfg.Threads)
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLocal(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "scout")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTemp(t, cfgDir, "config.yml", "threads: 9\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Threads == nil || *cfg.Threads != 9 {
		t.Fatalf("expected threads=9 from global config, got %#v", cfg.Threads)
	}
}

func TestLoadGlobal_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := LoadGlobal(); err == nil {
		t.Fatal("expected error when no global config dir exists")
	}
}

func ptr[T any](v T) *T { return &v }

func TestMerge_LocalWins(t *testing.T) {
	global := FileConfig{
		Threads:  ptr(2),
		MaxBytes: ptr(int64(10)),
		Ignore:   []string{"*.global"},
		GitHub:   &GitHubConfig{Include: []string{"acme/*"}, Clone: &CloneConfig{Retain: ptr(true)}},
	}
	local := FileConfig{
		Threads: ptr(8),
		GitHub:  &GitHubConfig{Deny: []string{"acme/legacy"}},
	}
	m := Merge(local, global)
	if *m.Threads != 8 {
		t.Fatalf("expected local threads, got %d", *m.Threads)
	}
	if *m.MaxBytes != 10 {
		t.Fatalf("expected global max_bytes, got %d", *m.MaxBytes)
	}
	if len(m.Ignore) != 1 || m.Ignore[0] != "*.global" {
		t.Fatalf("unexpected ignore %v", m.Ignore)
	}
	if m.GitHub == nil || len(m.GitHub.Include) != 1 || len(m.GitHub.Deny) != 1 {
		t.Fatalf("github sections not merged: %#v", m.GitHub)
	}
	if m.GitHub.Clone == nil || !*m.GitHub.Clone.Retain {
		t.Fatalf("expected clone.retain from global")
	}
	if m.Rules != nil {
		t.Fatalf("expected no rules section")
	}
}

func TestApply(t *testing.T) {
	cfg := engine.DefaultConfig()
	fc := FileConfig{
		Threads:         ptr(6),
		FailFast:        ptr(true),
		Git:             ptr("always"),
		SkipDirs:        []string{"fixtures"},
		DefaultExcludes: ptr(false),
		GitHub: &GitHubConfig{
			Include:      []string{"acme/*"},
			IncludeForks: ptr(true),
			MaxRepos:     ptr(3),
			RepoRules:    ptr(true),
			Clone:        &CloneConfig{Attempts: ptr(5), Timeout: ptr("90s"), Blobless: ptr(false)},
		},
	}
	if err := fc.Apply(&cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Concurrency != 6 || !cfg.FailFast || cfg.GitMode != engine.GitAlways {
		t.Fatalf("scalar fields not applied: %+v", cfg)
	}
	if len(cfg.SkipDirs) != 2 || cfg.SkipDirs[0] != ".git" || cfg.SkipDirs[1] != "fixtures" {
		t.Fatalf("unexpected skip dirs %v", cfg.SkipDirs)
	}
	if len(cfg.IgnoreGlobs) != 3 {
		t.Fatalf("expected only state globs, got %v", cfg.IgnoreGlobs)
	}
	if !cfg.Filter.IncludeForks || cfg.Filter.MaxRepos != 3 || !cfg.RepoRules {
		t.Fatalf("filter not applied: %+v", cfg.Filter)
	}
	if cfg.Clone.Retry.Attempts != 5 || cfg.Clone.Retry.Timeout != 90*time.Second || cfg.Clone.Blobless {
		t.Fatalf("clone not applied: %+v", cfg.Clone)
	}
}

func TestApply_BadValues(t *testing.T) {
	cfg := engine.DefaultConfig()
	if err := (FileConfig{Git: ptr("sometimes")}).Apply(&cfg); err == nil {
		t.Fatal("expected git mode error")
	}
	bad := FileConfig{GitHub: &GitHubConfig{Clone: &CloneConfig{Timeout: ptr("soon")}}}
	if err := bad.Apply(&cfg); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestApplyLister(t *testing.T) {
	opts := github.DefaultListerOptions()
	fc := FileConfig{GitHub: &GitHubConfig{
		APIURL:         ptr("https://ghe.example.com/api/v3/"),
		MaxAttempts:    ptr(2),
		CallTimeout:    ptr("5s"),
		ExcludePrivate: ptr(true),
	}}
	if err := fc.ApplyLister(&opts); err != nil {
		t.Fatalf("ApplyLister: %v", err)
	}
	if opts.BaseURL != "https://ghe.example.com/api/v3/" || opts.MaxAttempts != 2 || opts.CallTimeout != 5*time.Second || opts.IncludePrivate {
		t.Fatalf("unexpected lister options %+v", opts)
	}
}
