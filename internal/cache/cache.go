// Package cache keeps per-file findings between runs of a local scan. An
// entry is reused only when both the file content hash and the rule set
// fingerprint are unchanged.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/redactyl/scout/internal/types"
)

const version = 1

type Entry struct {
	Hash     string          `json:"hash"`
	Findings []types.Finding `json:"findings,omitempty"`
}

type DB struct {
	Version int `json:"version"`
	// Rules is the fingerprint of the rule set the entries were made with.
	Rules string `json:"rules"`
	// Path relative to the target root -> entry
	Entries map[string]Entry `json:"entries"`

	mu    sync.Mutex
	dirty bool
	hits  int
}

func defaultPath(root string) string {
	// Prefer storing cache under .git to avoid accidental commits
	gitDir := filepath.Join(root, ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return filepath.Join(gitDir, "scoutcache.json")
	}
	return filepath.Join(root, ".scoutcache.json")
}

// New returns an empty cache bound to a rule set fingerprint.
func New(rules string) *DB {
	return &DB{Version: version, Rules: rules, Entries: map[string]Entry{}}
}

// Load reads the cache for root. A missing, corrupt or stale cache yields
// an empty DB; the error is informational.
func Load(root, rules string) (*DB, error) {
	b, err := os.ReadFile(defaultPath(root))
	if err != nil {
		return New(rules), err
	}
	var db DB
	if err := json.Unmarshal(b, &db); err != nil {
		return New(rules), err
	}
	if db.Version != version || db.Rules != rules || db.Entries == nil {
		return New(rules), nil
	}
	return &db, nil
}

// Save writes the cache if anything changed.
func Save(root string, db *DB) error {
	if db == nil || db.Entries == nil {
		return errors.New("empty cache")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.dirty {
		return nil
	}
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(defaultPath(root), b, 0o644); err != nil {
		return err
	}
	db.dirty = false
	return nil
}

// Lookup returns the cached findings for path when hash still matches.
func (db *DB) Lookup(path, hash string) ([]types.Finding, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.Entries[path]
	if !ok || e.Hash != hash {
		return nil, false
	}
	db.hits++
	return append([]types.Finding(nil), e.Findings...), true
}

// Store records the findings for path.
func (db *DB) Store(path, hash string, findings []types.Finding) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Entries[path] = Entry{Hash: hash, Findings: append([]types.Finding(nil), findings...)}
	db.dirty = true
}

// Hits counts successful lookups since load.
func (db *DB) Hits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.hits
}

// ContentHash is a fast non-cryptographic digest of file content.
func ContentHash(b []byte) string {
	if len(b) == 0 {
		return "0000000000000000"
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
