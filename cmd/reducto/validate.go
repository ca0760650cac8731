package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gxo-labs/reducto/internal/config"
	"github.com/gxo-labs/reducto/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a reducto configuration without opening a store: JSON schema,
strict decoding, schema version, logical checks, and that the application
is registered.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	if _, err := registry.Default().Get(cfg.App); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Store:       %s\n", cfg.Name)
	fmt.Fprintf(out, "  App:         %s\n", cfg.App)
	fmt.Fprintf(out, "  Persistence: %s\n", cfg.GetDriver())
	fmt.Fprintf(out, "  Actions:     %d\n", len(cfg.Actions))
	return nil
}
