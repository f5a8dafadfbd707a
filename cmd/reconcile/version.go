package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graaaaa/reconcile/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.Long())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
