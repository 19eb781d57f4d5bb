// Package main is the vsmodel command-line entry point, a thin cobra
// wrapper around the library packages: it does not implement argument
// catalogs, file-format decoding, or visualization — it loads
// configuration, wires observability, and drives one harness run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "vsmodel",
		Short:         "Vector space model analysis",
		Long:          "vsmodel streams a collection of numeric vectors through a chunked harness, fitting a per-dimension distribution model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	version = "dev"
	commit  = "none"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "vsmodel %s (commit: %s)\n", version, commit)
		},
	}
}
