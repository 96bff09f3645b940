package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/permission"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for mmdesk. Menu keys are completed
for the can command.`,
	Example: `  source <(mmdesk completion bash)
  mmdesk completion zsh > "${fpath[1]}/_mmdesk"
  mmdesk completion fish | source
  mmdesk completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(completionCmd)
	completionCmd.GroupID = "config"
}

// completeMenuKeys offers the known menu keys with their display names.
func completeMenuKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, key := range permission.MenuKeys() {
		if strings.HasPrefix(key, toComplete) {
			name, _ := permission.MenuName(key)
			out = append(out, key+"\t"+name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
