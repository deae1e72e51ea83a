package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/josephlewis42/jobsh/core"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the commands the shell runs itself
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 8, 8, 2, ' ', 0)
		defer tw.Flush()

		for _, entry := range core.AllBuiltins() {
			fmt.Fprintf(tw, "%s\t%s\n", strings.Join(entry.Names, ", "), entry.Short)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
