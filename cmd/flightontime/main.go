package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flightontime",
		Short:         "Flight delay prediction service",
		Long:          "flightontime encodes flight queries into feature vectors, scores them and serves the results over HTTP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "TOML config file (env vars override it)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newFitCmd())
	root.AddCommand(newEncodeCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errViolations) {
			root.PrintErrln("error:", err)
		}
		os.Exit(1)
	}
}
