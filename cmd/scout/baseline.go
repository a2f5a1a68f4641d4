package scout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/scout/internal/report"
)

func newBaselineCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	var sf scanFlags
	update := &cobra.Command{
		Use:   "update [paths...]",
		Short: "Accept every current finding into the baseline file",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{"."}
			}
			j, err := o.scanJob(cmd, paths, sf)
			if err != nil {
				return err
			}
			path := o.baselinePath(j.layers)
			if path == "" {
				return usageError("--no-baseline leaves nothing to update")
			}
			findings, err := o.baselineOf(cmd.Context(), j)
			if err != nil {
				return err
			}
			if err := report.SaveBaseline(path, findings); err != nil {
				return &exitError{code: 2, err: err}
			}
			fmt.Fprintf(o.stdout, "Baseline updated: %d findings in %s\n", len(findings), path)
			return nil
		},
	}
	update.Flags().StringVar(&sf.git, "git", "", "git enumeration: auto|always|never (default auto)")
	update.Flags().StringSliceVar(&sf.skipDirs, "skip-dir", nil, "directory names to skip")
	update.Flags().StringSliceVar(&sf.ignore, "ignore", nil, "extra ignore globs")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the match hashes accepted by the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := o.loadLayers(".")
			if err != nil {
				return usageError("config: %w", err)
			}
			path := o.baselinePath(l)
			if path == "" {
				path = defaultBaseline
			}
			b, err := report.LoadBaseline(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(o.stdout, "No baseline at %s\n", path)
					return nil
				}
				return &exitError{code: 2, err: err}
			}
			if o.flagJSON {
				enc := json.NewEncoder(o.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}
			fmt.Fprintf(o.stdout, "%s: %d accepted findings\n", path, b.Len())
			for _, h := range b.Hashes() {
				fmt.Fprintln(o.stdout, h)
			}
			return nil
		},
	}

	cmd.AddCommand(update, show)
	return cmd
}
