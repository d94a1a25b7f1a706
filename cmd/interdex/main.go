// Package main provides the entry point for the interdex CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/interdex-project/interdex/cmd/interdex/commands"
	"github.com/interdex-project/interdex/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "interdex",
		Short: "Interdex - cross-dex reference-aware class packer",
		Long: `Interdex packs a class universe into ordered dex-style containers under
reference-capacity limits, honoring a prescribed interdex order and
minimizing cross-container reference churn.

Commands:
  pack            Pack a class universe into a container manifest
  mcp             Start an MCP server exposing pack as a tool
  manifest-diff   Diff two container manifests
  serve           Start the diagnostics HTTP server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewPackCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(commands.NewManifestDiffCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
