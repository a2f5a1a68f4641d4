package scout

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/redactyl/scout/internal/config"
)

const configTemplate = `# scout configuration. Flags override this file, which overrides the
# global config at %s.
threads: 4
max_bytes: 1048576
fail_fast: false
filename_short_circuit: false
git: auto
include_untracked: true
cache: false
# skip_dirs: [fixtures]
# ignore: ["**/*.golden"]
format: text
fail_on: low
baseline: scout.baseline.json
rules:
  packs: [default]
  # files: [.scout/extra-rules.yaml]
github:
  # owners: ["org:acme", "user:octocat"]
  include_archived: false
  include_forks: false
  max_repos: 0
  clone:
    blobless: true
    attempts: 3
    timeout: 5m
`

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented " + config.LocalNames[0] + " with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return usageError("%s already exists (use --force to overwrite)", output)
			}
			body := fmt.Sprintf(configTemplate, config.GlobalPath())
			if err := os.WriteFile(output, []byte(body), 0644); err != nil {
				return &exitError{code: 2, err: err}
			}
			fmt.Fprintf(o.stdout, "Wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVar(&output, "output", config.LocalNames[0], "output file path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var dir string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged local and global configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := o.loadLayers(dir)
			if err != nil {
				return usageError("config: %w", err)
			}
			b, err := yaml.Marshal(l.merged)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.stdout, "# global: %s\n", config.GlobalPath())
			_, err = o.stdout.Write(b)
			return err
		},
	}
	show.Flags().StringVar(&dir, "dir", ".", "directory whose local config applies")

	cmd.AddCommand(initCmd, show)
	return cmd
}
