package core

import (
	"context"
	"sort"

	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/github"
	"github.com/redactyl/scout/internal/rules"
	"github.com/redactyl/scout/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type (
	Config  = engine.Config
	Finding = types.Finding
	Result  = types.ScanResult
	Target  = types.Target
)

// DefaultConfig returns the settings the CLI starts from.
func DefaultConfig() Config { return engine.DefaultConfig() }

// Scan scans local paths with the builtin "default" pack plus the global
// and repository packs found for the first path. err is non-nil exactly
// when the result is incomplete.
func Scan(ctx context.Context, cfg Config, paths ...string) (*Result, error) {
	root := ""
	if len(paths) > 0 {
		root = paths[0]
	}
	req := engine.Request{
		Paths: paths,
		Rules: rules.DefaultSources(root, []string{"default"}, nil),
	}
	return engine.New(cfg).Run(ctx, req)
}

// ScanGitHub lists, clones and scans the repositories of the given owners
// ("org:NAME" or "user:NAME"). token may be empty for public repositories.
func ScanGitHub(ctx context.Context, cfg Config, token string, owners ...string) (*Result, error) {
	req := engine.Request{Rules: rules.DefaultSources("", []string{"default"}, nil)}
	for _, s := range owners {
		o, err := github.ParseOwner(s)
		if err != nil {
			return nil, err
		}
		req.Owners = append(req.Owners, o)
	}
	lister, err := github.NewLister(token, github.DefaultListerOptions())
	if err != nil {
		return nil, err
	}
	s := engine.New(cfg,
		engine.WithLister(lister),
		engine.WithCloner(github.NewCloner(token, cfg.Clone.Blobless)),
	)
	return s.Run(ctx, req)
}

// RuleIDs returns the enabled rule ids of the builtin "default" pack.
func RuleIDs() []string {
	set, err := rules.Load(rules.BuiltinSource("default"))
	if err != nil {
		return nil
	}
	var ids []string
	for _, r := range set.Enabled() {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}
