// Package cli implements the secmon command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "secmon",
	Short: "Security event monitoring and audit pipeline",
	Long: `secmon runs the security event monitoring service and manages its
durable security log: serving the ingestion and query APIs, rotating
aged log files into the archive, and exporting filtered events as CSV.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, /etc/secmon/config.yaml)")
}
