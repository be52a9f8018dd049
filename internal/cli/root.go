package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "loadshape",
	Short:   "A load generator with dynamic throughput shaping",
	Version: version,
	Long: `Loadshape is a multi-worker load generator whose target throughput
follows a configurable waveform over time: constant, linear, step,
sine-wave, exponential, or an explicit phase table. Workers pace
operation issuance against the moving target with no shared lock on
the hot path.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	RootCmd.AddCommand(runCmd)
}
