// Flowdeck is an operator console for racks of mass-flow controllers.
//
// It talks to a controller service over HTTP, shows all channels in a
// terminal grid, and dispatches setpoint, valve, ramp and gas commands.
// A built-in simulator (`flowdeck sim`) serves the same API for
// development without instruments.
//
// Usage:
//
//	flowdeck [command] [flags]
//
// Running without arguments launches the interactive console.
// See 'flowdeck --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmraffin/flowdeck/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowdeck",
	Short: "Mass-flow controller operator console",
	Long: `An operator console for racks of mass-flow controllers.

Connects to a controller service over HTTP, shows every channel in a
terminal grid, and dispatches setpoint, valve, ramp and gas commands.

If no command is specified, the interactive console will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the console when no subcommand provided
		return runConsole(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowdeck %s (commit: %s)\n", version.Version, version.Commit)
	},
}
