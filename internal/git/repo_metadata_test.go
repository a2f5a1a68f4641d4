package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestRepoMetadata(t *testing.T) {
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:acme/api.git"}}); err != nil {
		t.Fatal(err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("init", &gogit.CommitOptions{Author: &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	repo, commit, branch := RepoMetadata(dir)
	if repo != "acme/api" {
		t.Fatalf("repo=%q want acme/api", repo)
	}
	if len(commit) != 40 {
		t.Fatalf("expected full commit hash, got %q", commit)
	}
	if branch == "" {
		t.Fatalf("expected non-empty branch")
	}

	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if !IsRepo(sub) {
		t.Fatal("expected nested directory to resolve to the repository")
	}
	if IsRepo(t.TempDir()) {
		t.Fatal("plain directory is not a repository")
	}
}

func TestShortRemote(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/api.git": "acme/api",
		"git@github.com:acme/api.git":     "acme/api",
		"git@gitlab.example:team/svc":     "team/svc",
		"https://git.example/x/y.git":     "https://git.example/x/y",
	}
	for in, want := range cases {
		if got := shortRemote(in); got != want {
			t.Errorf("shortRemote(%q)=%q want %q", in, got, want)
		}
	}
}
