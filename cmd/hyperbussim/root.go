package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hyperbussim",
	Short: "hyperbussim simulates a HyperBus read controller.",
	Long: `hyperbussim simulates a HyperBus read controller cycle by cycle. ` +
		`The run command drives the controller with a stream of word reads ` +
		`and reports the fresh starts, continuations and latencies. ` +
		`The ca command shows the command-address packet of a read.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File that provides HYPERBUS_* defaults, ignored if missing")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Recorders are flushed before the process exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
