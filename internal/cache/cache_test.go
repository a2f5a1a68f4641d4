package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redactyl/scout/internal/types"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	// initial load should return empty DB and error
	db, err := Load(dir, "rules-a")
	if err == nil {
		t.Fatalf("expected error for missing cache")
	}
	if db.Entries == nil {
		t.Fatalf("expected entries map initialized")
	}
	f := types.Finding{RuleID: "r", Path: "a.txt", MatchHash: "h"}
	db.Store("a.txt", ContentHash([]byte("x")), []types.Finding{f})
	if err := Save(dir, db); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".scoutcache.json")); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	db2, err := Load(dir, "rules-a")
	if err != nil {
		t.Fatalf("load after save: %v", err)
	}
	got, ok := db2.Lookup("a.txt", ContentHash([]byte("x")))
	if !ok || len(got) != 1 || got[0].RuleID != "r" {
		t.Fatalf("unexpected lookup: %v %v", got, ok)
	}
	if _, ok := db2.Lookup("a.txt", ContentHash([]byte("changed"))); ok {
		t.Fatalf("changed content must miss")
	}
	if db2.Hits() != 1 {
		t.Fatalf("hits=%d want 1", db2.Hits())
	}

	// a different rule set invalidates everything
	db3, err := Load(dir, "rules-b")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(db3.Entries) != 0 {
		t.Fatalf("expected stale cache to be dropped")
	}
}

func TestSaveUnderGitDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	db := New("r")
	db.Store("x", "h", nil)
	if err := Save(dir, db); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "scoutcache.json")); err != nil {
		t.Fatalf("expected cache under .git: %v", err)
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash(nil) != "0000000000000000" {
		t.Fatal("empty input hash")
	}
	a, b := ContentHash([]byte("a")), ContentHash([]byte("b"))
	if len(a) != 16 || a == b {
		t.Fatalf("unexpected hashes %q %q", a, b)
	}
	// XXH64("a") with seed 0
	if a != "d24ec4f1a98c6e5b" {
		t.Fatalf("ContentHash(a) = %q", a)
	}
}

func TestResultsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	res := &types.ScanResult{
		Findings:  []types.Finding{{RuleID: "r", Path: "p", MatchHash: "h"}},
		Complete:  true,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := SaveResults(dir, res); err != nil {
		t.Fatal(err)
	}
	got, err := LoadResults(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Complete || len(got.Findings) != 1 || !got.StartedAt.Equal(res.StartedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
