// Command slumber is the non-interactive CLI surface of spec.md §6: a
// single `request` subcommand that loads a collection, builds and sends one
// recipe, and prints the resulting exchange. Grounded on the teacher's
// cmd/devshell entrypoint shape (a cobra root command plus Execute()), but
// with a fixed one-subcommand surface rather than devshell's dynamic
// recipe tree navigation, since this core's CLI scope per spec.md §1 is
// "the one sub-command that exercises the pipeline".
package main

import (
	"os"

	"slumber/pkg/lib"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		lib.Exit(err)
	}
	os.Exit(exitCode)
}
