package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulseboard",
	Short: "Pulseboard - crypto account engagement tracker",
	Long: `Pulseboard CLI

Tracks follower counts and engagement for a set of crypto project
accounts, computes growth rates over nine time horizons and publishes
a scored leaderboard.

Usage:
  go run ./cmd/pulseboard [command]

Examples:
  go run ./cmd/pulseboard serve
  go run ./cmd/pulseboard collect
  go run ./cmd/pulseboard history ethereum
  go run ./cmd/pulseboard test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
