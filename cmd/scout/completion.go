package scout

import "github.com/spf13/cobra"

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return usageError("unsupported shell: %s", args[0])
			}
		},
		Example: `
# Bash
scout completion bash > /etc/bash_completion.d/scout

# Zsh
scout completion zsh > "${fpath[1]}/_scout"

# Fish
scout completion fish > ~/.config/fish/completions/scout.fish

# PowerShell
scout completion powershell > $PROFILE\scout.ps1
`,
	}
}

