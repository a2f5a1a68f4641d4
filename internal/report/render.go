package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/redactyl/scout/internal/types"
)

type PrintOptions struct {
	NoColor bool
	// ShowTarget adds the target column; useful for multi-repository runs.
	ShowTarget bool
}

// PrintText writes one line per finding followed by a summary footer.
func PrintText(w io.Writer, res *types.ScanResult, opts PrintOptions) {
	findings := res.Findings
	if len(findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		maxRule := 8
		for _, f := range findings {
			if l := len(f.RuleID); l > maxRule {
				maxRule = l
			}
		}
		fmt.Fprintf(w, "Findings: %d\n", len(findings))
		for _, f := range findings {
			sev := string(f.Severity)
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			loc := f.Location()
			if opts.ShowTarget && f.Target != "" {
				loc = f.Target + ": " + loc
			}
			fmt.Fprintf(w, "%-8s %-*s %s  %s\n", sev, maxRule, f.RuleID, loc, f.Sample)
		}
	}
	printErrors(w, res)
	printFooter(w, res)
}

// PrintTable renders findings in a bordered table.
func PrintTable(w io.Writer, res *types.ScanResult, opts PrintOptions) error {
	if len(res.Findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		header := []any{"SEVERITY", "RULE", "LOCATION", "SAMPLE"}
		if opts.ShowTarget {
			header = append([]any{"TARGET"}, header...)
		}
		table.Header(header...)
		for _, f := range res.Findings {
			sev := string(f.Severity)
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			row := []any{sev, f.RuleID, f.Location(), f.Sample}
			if opts.ShowTarget {
				row = append([]any{f.Target}, row...)
			}
			if err := table.Append(row...); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printErrors(w, res)
	printFooter(w, res)
	return nil
}

// WriteJSON writes the whole result as indented JSON.
func WriteJSON(w io.Writer, res *types.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func printErrors(w io.Writer, res *types.ScanResult) {
	if len(res.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\nErrors: %d\n", len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

// SeverityCounts tallies findings per severity name.
func SeverityCounts(findings []types.Finding) map[string]int {
	out := map[string]int{}
	for _, f := range findings {
		out[string(f.Severity)]++
	}
	return out
}

func printFooter(w io.Writer, res *types.ScanResult) {
	c := SeverityCounts(res.Findings)
	st := res.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (critical: %d, high: %d, medium: %d, low: %d)\n",
		len(res.Findings), c["critical"], c["high"], c["medium"], c["low"])
	if d := res.Duration(); d > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", d.Seconds())
	}
	fmt.Fprintf(w, "Files scanned: %d\n", st.FilesScanned)
	if st.SkippedTooLarge > 0 || st.SkippedBinary > 0 {
		fmt.Fprintf(w, "Skipped: %d too large, %d binary\n", st.SkippedTooLarge, st.SkippedBinary)
	}
	if st.ReposScanned > 0 || st.ReposFailed > 0 {
		fmt.Fprintf(w, "Repositories: %d scanned, %d failed\n", st.ReposScanned, st.ReposFailed)
	}
	if st.Baselined > 0 {
		fmt.Fprintf(w, "Baselined: %d\n", st.Baselined)
	}
	if !res.Complete {
		fmt.Fprintln(w, "Scan incomplete: results are not reliable")
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "\x1b[1;35mcritical\x1b[0m" // bold magenta
	case types.SevHigh:
		return "\x1b[31mhigh\x1b[0m" // red
	case types.SevMed:
		return "\x1b[33mmedium\x1b[0m" // yellow
	default:
		return "\x1b[36mlow\x1b[0m" // cyan
	}
}
