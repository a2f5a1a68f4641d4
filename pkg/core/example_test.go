package core_test

import (
	"context"
	"fmt"
	"os"

	"github.com/redactyl/scout/pkg/core"
)

// ExampleScan demonstrates how to scan a directory and act on the result.
func ExampleScan() {
	cfg := core.DefaultConfig()
	cfg.Concurrency = 4
	cfg.MaxBytes = 1 << 20

	res, err := core.Scan(context.Background(), cfg, ".")
	if err != nil {
		// an incomplete scan must never be treated as clean
		fmt.Fprintf(os.Stderr, "scan incomplete: %v\n", err)
		os.Exit(res.ExitCode())
	}
	if len(res.Findings) == 0 {
		fmt.Println("No secrets found.")
		return
	}
	fmt.Printf("Found %d findings in %d files.\n", len(res.Findings), res.Stats.FilesScanned)
	_ = core.WriteFindings(os.Stdout, res.Findings)
}
