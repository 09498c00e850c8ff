package main

import (
	"github.com/spf13/cobra"
)

// exitCode is set by requestCmd's RunE when the request succeeded but the
// caller asked --exit-status to reflect the response's HTTP status
// (spec.md §6: exit 2 when --exit-status is set and status >= 400). It is
// read by main() only after rootCmd.Execute() returns a nil error, since a
// non-nil error already drives lib.Exit's own exit(1).
var exitCode int

// version is overridable at link time via -ldflags "-X main.version=...";
// it becomes the User-Agent's version component (spec.md §4.6).
var version = "dev"

var (
	flagCollectionFile string
	flagConfigPath     string
)

var rootCmd = &cobra.Command{
	Use:   "slumber",
	Short: "Render and send HTTP request recipes from a declarative collection",
	Long: "slumber loads a declarative collection of HTTP request recipes, renders " +
		"one against a profile and session overrides, sends it, and records the " +
		"exchange in the collection's local history.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagCollectionFile, "file", "f", "", "path to the collection YAML file (required)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a config file, overriding $SLUMBER_CONFIG_PATH")
	rootCmd.AddCommand(requestCmd)
}
