// Package engine orchestrates a scan: it resolves targets, loads the rule
// set, enumerates candidates, evaluates them on a bounded worker pool and
// assembles one ScanResult. This package is internal; external consumers
// should use the stable facade in pkg/core.
package engine
