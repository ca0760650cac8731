// Package main is the reducto CLI. It runs a registered application store
// from a YAML configuration.
//
// Usage:
//
//	reducto replay -c shop.yaml     # dispatch the scripted actions, print the state
//	reducto serve -c shop.yaml      # HTTP API, NATS consumer and snapshots until signalled
//	reducto validate -c shop.yaml   # check a configuration
//	reducto apps                    # list registered applications
//	reducto version
package main

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/gxo-labs/reducto/internal/apps/counter"
	_ "github.com/gxo-labs/reducto/internal/apps/shop"
)

const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitSigIntBase = 128
	ExitSigInt     = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm    = ExitSigIntBase + int(syscall.SIGTERM)

	DefaultEventBusSize = 256
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reducto",
	Short: "Run predictable state containers",
	Long: `reducto hosts a single-state-tree application store: every change is an
action applied by a pure reducer, observers are notified after each change.

The store can be driven from a scripted action list (replay), over HTTP or
from a NATS Streaming subject (serve), and persisted to Postgres or DynamoDB.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reducto version %s\n", version)
		fmt.Fprintf(out, "commit: %s\n", commit)
		fmt.Fprintf(out, "built: %s\n", buildDate)
		fmt.Fprintf(out, "go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitError); ok {
			os.Exit(int(code))
		}
		os.Exit(ExitFailure)
	}
}

// exitError lets a command pick the process exit code.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
