package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/rpcgate/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Export the configured services and run until interrupted",
	Long: `Start the provider: every service in the config file is exported over
its configured protocols and registries.

The standalone binary only serves services declared generic: true, backed
by a built-in echo implementation. Typed services need a custom binary
embedding the bootstrap package.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// echoGeneric answers any call with its own inputs. It backs generic
// services in the standalone binary.
type echoGeneric struct{}

func (echoGeneric) Invoke(ctx context.Context, method string, args []any) (any, error) {
	return map[string]any{"method": method, "args": args}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return err
	}
	defer app.Stop()

	var typed []string
	for _, sc := range app.Config.Get().Services {
		if sc.Generic {
			app.ProvideGeneric(sc.Name, echoGeneric{})
		} else {
			typed = append(typed, sc.Name)
		}
	}
	if len(typed) > 0 {
		return fmt.Errorf("services %s are not generic; embed the bootstrap package to serve typed services",
			strings.Join(typed, ", "))
	}

	if err := app.Config.WatchFile(); err != nil {
		app.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	app.Config.WatchSignals()

	if err := app.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	app.Logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	return nil
}
