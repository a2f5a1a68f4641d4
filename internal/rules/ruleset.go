package rules

import (
	"encoding/json"
	"fmt"
	"sort"

	xxhash "github.com/cespare/xxhash/v2"
)

// Patch is one tier's contribution to a RuleSet.
type Patch struct {
	Source string
	Tier   Tier
	Rules  []Rule
}

// RuleSet maps rule ids to merged rules. The zero value is empty and usable.
// A RuleSet is never mutated after Apply returns it.
type RuleSet struct {
	rules   map[string]Rule
	sources []string
}

// Apply returns a new RuleSet with every rule in p inserted or replacing
// the existing entry of the same id. Disabled rules replace too, which is
// how a higher tier turns off a lower tier's rule.
func (s RuleSet) Apply(p Patch) RuleSet {
	out := RuleSet{
		rules:   make(map[string]Rule, len(s.rules)+len(p.Rules)),
		sources: append(append([]string(nil), s.sources...), p.Source),
	}
	for id, r := range s.rules {
		out.rules[id] = r
	}
	for _, r := range p.Rules {
		out.rules[r.ID] = r
	}
	return out
}

// Get returns the rule with the given id, tombstones included.
func (s RuleSet) Get(id string) (Rule, bool) {
	r, ok := s.rules[id]
	return r, ok
}

// Len counts every id, tombstones included.
func (s RuleSet) Len() int { return len(s.rules) }

// Sources lists the packs applied, in application order.
func (s RuleSet) Sources() []string { return append([]string(nil), s.sources...) }

// All returns every rule sorted by id.
func (s RuleSet) All() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns the rules that take part in evaluation, sorted by id.
func (s RuleSet) Enabled() []Rule {
	all := s.All()
	out := all[:0]
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Fingerprint identifies the enabled rule content. Cached findings are only
// reused when it matches.
func (s RuleSet) Fingerprint() string {
	h := xxhash.New()
	for _, r := range s.Enabled() {
		b, _ := json.Marshal(r)
		_, _ = h.Write(b)
		_, _ = h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
