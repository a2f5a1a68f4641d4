package scout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/scout/internal/rules"
)

func newRulesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule packs",
	}

	// load merges the tier stack for dir plus extra CLI-tier files.
	load := func(dir string, extra []string) (rules.RuleSet, error) {
		l, err := o.loadLayers(dir)
		if err != nil {
			return rules.RuleSet{}, usageError("config: %w", err)
		}
		sources := o.ruleSources(l, dir)
		for _, f := range extra {
			sources = append(sources, rules.FileSource(f, rules.TierCLI))
		}
		return rules.Load(sources...)
	}

	var showAll bool
	var dir string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the merged rules in effect for a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := load(dir, nil)
			if err != nil {
				return validationExit(o, err)
			}
			rs := set.Enabled()
			if showAll {
				rs = set.All()
			}
			if o.flagJSON {
				enc := json.NewEncoder(o.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rs)
			}
			table := tablewriter.NewWriter(o.stdout)
			table.Header("ID", "KIND", "SEVERITY", "ENABLED", "SOURCE")
			for _, r := range rs {
				if err := table.Append(r.ID, string(r.Kind), string(r.Severity), fmt.Sprint(r.Enabled), r.Source); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(o.stdout, "%d rules from %s\n", len(rs), strings.Join(set.Sources(), ", "))
			return nil
		},
	}
	list.Flags().BoolVar(&showAll, "all", false, "include disabled rules")
	list.Flags().StringVar(&dir, "dir", ".", "directory whose repo pack and config apply")

	validate := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Merge and validate the rule stack plus the given pack files",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := load(dir, args)
			if err != nil {
				return validationExit(o, err)
			}
			fmt.Fprintf(o.stdout, "OK: %d enabled rules from %d packs\n", len(set.Enabled()), len(set.Sources()))
			return nil
		},
	}
	validate.Flags().StringVar(&dir, "dir", ".", "directory whose repo pack and config apply")

	packs := &cobra.Command{
		Use:   "packs",
		Short: "List the builtin rule packs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, p := range rules.BuiltinPacks() {
				fmt.Fprintln(o.stdout, p)
			}
		},
	}

	cmd.AddCommand(list, validate, packs)
	return cmd
}

// validationExit prints every rule problem on its own line and exits 2.
func validationExit(o *rootOptions, err error) error {
	var ve *rules.ValidationError
	if !errors.As(err, &ve) {
		return &exitError{code: 2, err: err}
	}
	for _, e := range ve.Errors {
		fmt.Fprintln(o.stderr, e.Error())
	}
	return &exitError{code: 2, err: fmt.Errorf("%d rule problems", len(ve.Errors))}
}
