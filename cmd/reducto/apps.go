package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gxo-labs/reducto/internal/registry"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List registered applications",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range registry.Default().List() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
}
