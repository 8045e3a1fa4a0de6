// Bdsc-client is the button-driven client for the bdsc register server.
//
// It brings the device up, resolves the server once, and then turns every
// button press into one short TCP exchange: connect, send one command
// frame, wait briefly for a fixed-length reply, close.
//
// Usage:
//
//	bdsc-client [command] [flags]
//
// See 'bdsc-client --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/siotlab/bdsc/internal/config"
	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	simulate   bool
)

// cfg is loaded before every command except the config subcommands
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bdsc-client",
	Short: "BDSC Button Client",
	Long: `A client that maps button presses to register commands.

Each configured source (a button on a GPIO pin) runs its own worker.
Pressing the button sends one command to the server: a toggle source
writes alternating values, an inquiry source reads a register. Every
exchange is echoed to the console.

Without a configuration file the built-in defaults are used: update
on MB1 toggles register 0x10, inquiry on MB0 reads it back.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		return logging.Initialize(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/bdsc/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use a simulated platform instead of host GPIO")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String("bdsc-client"))
	},
}
