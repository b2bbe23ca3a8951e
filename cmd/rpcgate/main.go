// Package main is the rpcgate provider entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rpcgate",
	Short: "Multi-protocol RPC service publication",
	Long: `rpcgate exports services over multiple protocols and registries.

Typed services are exported by embedding the bootstrap package; the
standalone binary serves generic services declared in the config file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "rpcgate.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rpcgate %s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
