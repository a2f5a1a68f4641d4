package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redactyl/scout/internal/match"
	"github.com/redactyl/scout/internal/validate"
)

// Tier is a precedence level. Higher tiers override lower ones.
type Tier int

const (
	TierBuiltin Tier = iota
	TierGlobal
	TierRepo
	TierCLI
)

func (t Tier) String() string {
	switch t {
	case TierBuiltin:
		return "builtin"
	case TierGlobal:
		return "global"
	case TierRepo:
		return "repo"
	case TierCLI:
		return "cli"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Source yields the raw records of one rule pack.
type Source struct {
	Name string
	Tier Tier
	Load func() ([]RawRule, error)
}

// StaticSource wraps in-memory records.
func StaticSource(name string, tier Tier, raws ...RawRule) Source {
	return Source{Name: name, Tier: tier, Load: func() ([]RawRule, error) { return raws, nil }}
}

// FileSource reads a YAML rule pack from path.
func FileSource(path string, tier Tier) Source {
	return Source{
		Name: path,
		Tier: tier,
		Load: func() ([]RawRule, error) {
			p, err := LoadPackFile(path)
			if err != nil {
				return nil, err
			}
			return p.Rules, nil
		},
	}
}

// Load merges sources in tier order (stable within a tier) and validates the
// result. All problems are collected into one *ValidationError.
func Load(sources ...Source) (RuleSet, error) {
	ordered := append([]Source(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tier < ordered[j].Tier })

	var errs []RuleError
	var set RuleSet
	for _, src := range ordered {
		raws, err := src.Load()
		if err != nil {
			errs = append(errs, RuleError{Source: src.Name, Err: err})
			continue
		}
		patch := Patch{Source: src.Name, Tier: src.Tier}
		seen := make(map[string]bool, len(raws))
		for _, raw := range raws {
			r := FromRaw(raw, src.Name)
			if r.ID == "" {
				errs = append(errs, RuleError{Source: src.Name, Field: "id", Err: errors.New("missing id")})
				continue
			}
			if seen[r.ID] {
				errs = append(errs, RuleError{Source: src.Name, RuleID: r.ID, Field: "id", Err: errors.New("duplicate id within pack")})
				continue
			}
			seen[r.ID] = true
			patch.Rules = append(patch.Rules, r)
		}
		set = set.Apply(patch)
	}

	// Compile in place; the map entries are private to this freshly built set.
	for id, r := range set.rules {
		rerrs := Validate(&r)
		errs = append(errs, rerrs...)
		set.rules[id] = r
	}
	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].RuleID < errs[j].RuleID })
		return RuleSet{}, &ValidationError{Errors: errs}
	}
	return set, nil
}

// Validate checks one merged rule and compiles its patterns. Tombstones are
// exempt from everything but the kind check.
func Validate(r *Rule) []RuleError {
	var errs []RuleError
	add := func(field string, err error) {
		errs = append(errs, RuleError{Source: r.Source, RuleID: r.ID, Field: field, Err: err})
	}
	switch r.Kind {
	case KindFilename, KindRegex, KindStructured:
	case "":
		if r.Enabled {
			add("kind", errors.New("missing kind"))
		}
	default:
		add("kind", fmt.Errorf("unknown kind %q", r.Kind))
	}
	if !r.Enabled {
		return errs
	}
	if r.Severity.Rank() == 0 {
		add("severity", fmt.Errorf("unknown severity %q", r.Severity))
	}
	switch r.Kind {
	case KindFilename:
		if strings.TrimSpace(r.Pattern) == "" {
			add("pattern", errors.New("filename rule needs a pattern"))
		}
		if r.PatternType != PatternGlob && r.PatternType != PatternRegex {
			add("pattern_type", fmt.Errorf("unknown pattern type %q", r.PatternType))
		}
		if r.PatternType == PatternGlob && !match.ValidGlob(r.Pattern) {
			add("pattern", fmt.Errorf("invalid glob %q", r.Pattern))
		}
	case KindRegex:
		if strings.TrimSpace(r.Pattern) == "" {
			add("pattern", errors.New("regex rule needs a pattern"))
		}
		if r.Scope != ScopeLine && r.Scope != ScopeFile {
			add("scope", fmt.Errorf("unknown scope %q", r.Scope))
		}
		if r.Validator != "" && !validate.Known(r.Validator) {
			add("validator", fmt.Errorf("unknown validator %q (known: %s)", r.Validator, strings.Join(validate.Names(), ", ")))
		}
	case KindStructured:
		if len(r.Keys) == 0 {
			add("keys", errors.New("structured rule must name at least one key"))
		}
		switch r.ValuePolicy {
		case PolicyAny, PolicyNonEmpty, PolicyPlaintext, PolicyMustReferenceEnv, PolicyMustReferenceVault:
		default:
			add("value_policy", fmt.Errorf("unknown value policy %q", r.ValuePolicy))
		}
		if k := overlap(r.Keys, r.AllowedKeys, r.CaseInsensitiveKeys); k != "" {
			add("allowed_keys", fmt.Errorf("key %q is both forbidden and allowed", k))
		}
	}
	for _, fg := range []struct {
		field string
		globs []string
	}{{"include", r.Include}, {"exclude", r.Exclude}, {"allow_paths", r.AllowPaths}} {
		for _, g := range fg.globs {
			if !match.ValidGlob(g) {
				add(fg.field, fmt.Errorf("invalid glob %q", g))
			}
		}
	}
	if len(errs) == 0 {
		if err := r.Compile(); err != nil {
			add("pattern", err)
		}
	}
	return errs
}

func overlap(a, b []string, fold bool) string {
	norm := func(s string) string {
		if fold {
			return strings.ToUpper(s)
		}
		return s
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[norm(k)] = true
	}
	for _, k := range b {
		if set[norm(k)] {
			return k
		}
	}
	return ""
}

// Disable builds a tombstone record for id.
func Disable(id string) RawRule {
	f := false
	return RawRule{ID: id, Enabled: &f}
}

