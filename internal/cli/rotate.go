package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/logstore"
)

var rotateMaxAge time.Duration

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Archive security log files older than the maximum age",
	Long: `Moves aged security log files into the archive subdirectory,
renaming them with their original modification date. Rotation never
deletes data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := logstore.New(logstore.Options{
			Dir:        cfg.Security.LogDir,
			BaseDir:    cfg.Security.BaseDir,
			LineFormat: cfg.Security.LineFormat,
		})
		if err != nil {
			return fmt.Errorf("failed to open log store: %w", err)
		}

		maxAge := rotateMaxAge
		if maxAge == 0 {
			maxAge = cfg.Security.RotationMaxAge
		}

		if err := store.Rotate(maxAge); err != nil {
			return fmt.Errorf("rotation failed: %w", err)
		}
		fmt.Printf("Rotation complete (max age %s)\n", maxAge)
		return nil
	},
}

func init() {
	rotateCmd.Flags().DurationVar(&rotateMaxAge, "max-age", 0, "archive files older than this (default: config rotation_max_age)")
	rootCmd.AddCommand(rotateCmd)
}
