package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the smacross CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "smacross version %s\n", version)
		fmt.Fprintln(out, "SMA crossover backtester for spot crypto candles")
		fmt.Fprintln(out, "https://github.com/rustyeddy/smacross")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
