package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/output"
	"github.com/mudamudi/mmdesk/internal/version"
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Show the mmdesk version, commit, build date and platform.`,
	Example: `  mmdesk version
  mmdesk version -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.GroupID = "config"
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := version.Get()
	f := output.NewFormatter(formatter.Format(), cmd.OutOrStdout())
	return f.Render(info, func(w io.Writer) error {
		outln(w, info.String())
		return nil
	})
}
