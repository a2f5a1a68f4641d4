package scout

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/scout/internal/cache"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/tui"
)

func newViewCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view [path]",
		Short: "Reopen the last scan of a directory without rescanning",
		Long: `View loads the result saved by the last "scout scan" of path (default: the
current directory). On a terminal it opens the interactive viewer; otherwise
the result is printed in the selected output format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			res, err := cache.LoadResults(root)
			if errors.Is(err, os.ErrNotExist) {
				return usageError("no saved scan for %s; run scout scan first", root)
			}
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			l, err := o.loadLayers(root)
			if err != nil {
				return usageError("config: %w", err)
			}
			interactive := isTerminal(o.stdout) && !o.flagJSON && !o.flagSARIF && !o.flagTable
			if !interactive {
				if err := o.validateOutput(l); err != nil {
					return err
				}
				return o.render(res, o.format(l))
			}
			opts := tui.Options{
				BaselinePath: o.baselinePath(l),
				Cached:       true,
				AuditRoot:    root,
				Version:      version,
			}
			if b := o.loadBaseline(opts.BaselinePath); b != nil {
				opts.Baseline = *b
			} else {
				opts.Baseline = report.NewBaseline(nil)
			}
			return tui.Run(res, opts)
		},
	}
}
