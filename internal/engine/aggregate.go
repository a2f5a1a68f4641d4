package engine

import (
	"context"
	"sort"

	"github.com/redactyl/scout/internal/types"
)

// partial is what a worker reports for one candidate, or for one target
// when it carries only errors, counters or refreshed metadata.
type partial struct {
	target   int
	seq      int
	findings []types.Finding
	errs     []types.ScanError
	stats    types.Stats
	meta     *types.Target
}

// aggregator is the only writer of run results. It runs on its own
// goroutine until the partial channel is closed.
type aggregator struct {
	failFast bool
	cancel   context.CancelCauseFunc

	parts  []partial
	stats  types.Stats
	failed error
}

func newAggregator(failFast bool, cancel context.CancelCauseFunc) *aggregator {
	return &aggregator{failFast: failFast, cancel: cancel}
}

func (a *aggregator) run(in <-chan partial) {
	for p := range in {
		a.stats.Add(p.stats)
		if len(p.errs) > 0 && a.failFast && a.failed == nil {
			a.failed = p.errs[0]
			a.cancel(ErrFailFast)
		}
		if len(p.findings) == 0 && len(p.errs) == 0 && p.meta == nil {
			continue
		}
		a.parts = append(a.parts, p)
	}
}

// assemble writes everything collected into res in (target, candidate)
// order, independent of worker scheduling. A target that failed keeps its
// errors and counters but contributes no findings.
func (a *aggregator) assemble(res *types.ScanResult) {
	failed := make(map[int]bool)
	for _, p := range a.parts {
		for _, e := range p.errs {
			if e.TargetLevel() {
				failed[p.target] = true
			}
		}
	}
	sort.SliceStable(a.parts, func(i, j int) bool {
		if a.parts[i].target != a.parts[j].target {
			return a.parts[i].target < a.parts[j].target
		}
		return a.parts[i].seq < a.parts[j].seq
	})
	res.Findings = []types.Finding{}
	for _, p := range a.parts {
		if !failed[p.target] {
			res.Findings = append(res.Findings, p.findings...)
		}
		res.Errors = append(res.Errors, p.errs...)
		if p.meta != nil && p.target >= 0 && p.target < len(res.Targets) {
			res.Targets[p.target] = *p.meta
		}
	}
	res.Stats.Add(a.stats)
}
