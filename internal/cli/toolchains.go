package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sonarherd/internal/toolchain"
)

var toolchainsCmd = &cobra.Command{
	Use:   "toolchains",
	Short: "Inspect detectable build toolchains",
	Long: `Inspect the build toolchains sonarherd can detect.

Detection decides how the scanner is invoked for a cloned repository.

Examples:
  # List all detectable toolchains
  sonarherd toolchains list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var toolchainsListQuiet bool
var toolchainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detectable toolchains",
	Long: `List the build toolchains this build can detect, in detection order.

The first matching marker wins; a repository with no marker scans with the
generic scanner.

Examples:
  sonarherd toolchains list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, info := range toolchain.Variants() {
			if toolchainsListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), info.Variant)
			} else {
				printToolchain(cmd.OutOrStdout(), info)
			}
		}
		return nil
	},
}

func printToolchain(w io.Writer, info toolchain.Info) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s\n", info.Variant)
	fmt.Fprintf(w, "  detected by: %s\n", info.Marker)
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(toolchainsCmd)
	toolchainsCmd.AddCommand(toolchainsListCmd)
	toolchainsListCmd.Flags().BoolVarP(&toolchainsListQuiet, "quiet", "q", false, "Only print toolchain names")
}
