// Package core provides a small, stable facade over scout's internal engine
// for external integrations. It re-exports a narrow API surface so other
// tools can depend on a stable import path without reaching into internal
// packages.
//
// Example:
//
//	res, err := core.Scan(ctx, core.DefaultConfig(), ".")
//	if err != nil { /* incomplete: do not treat as clean */ }
//	_ = core.WriteFindings(os.Stdout, res.Findings)
package core
