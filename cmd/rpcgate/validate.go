package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/rpcgate/config"
	"github.com/artpar/rpcgate/domain/address"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the rpcgate configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Registry and monitor addresses parse

Examples:
  rpcgate validate
  rpcgate validate --config /etc/rpcgate/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

const (
	checkMark = "✓"
	crossMark = "✗"
)

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	for _, rc := range cfg.Registries {
		if _, err := address.Parse(rc.Address); err != nil {
			fmt.Printf("  %s Registry address %s\n", crossMark, rc.Address)
			return fmt.Errorf("registry address: %w", err)
		}
	}
	if len(cfg.Registries) > 0 {
		fmt.Printf("  %s Registry addresses parse\n", checkMark)
	}
	if cfg.Application.Monitor != "" {
		if _, err := address.Parse(cfg.Application.Monitor); err != nil {
			fmt.Printf("  %s Monitor address\n", crossMark)
			return fmt.Errorf("monitor address: %w", err)
		}
		fmt.Printf("  %s Monitor address parses\n", checkMark)
	}

	fmt.Printf("\nConfiguration valid\n")
	fmt.Printf("  Application: %s\n", cfg.Application.Name)
	fmt.Printf("  Protocols:   %d\n", len(cfg.Protocols))
	fmt.Printf("  Registries:  %d\n", len(cfg.Registries))
	fmt.Printf("  Services:    %d\n", len(cfg.Services))
	return nil
}
