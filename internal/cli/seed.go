package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/logstore"
	"github.com/sentinel-systems/secmon/internal/recorder"
	"github.com/sentinel-systems/secmon/internal/seeder"
)

var (
	seedCount int
	seedValue uint64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write synthetic security events to the durable log",
	Long: `Generates fake security events through the normal recording path,
for demos and for exercising the query and export endpoints locally.`,
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

		rec := recorder.New(store, cache.New(cfg.Security.CacheCapacity), nil)
		n, err := seeder.New(rec, seedValue).Run(seedCount)
		if err != nil {
			return fmt.Errorf("seeding stopped after %d events: %w", n, err)
		}
		fmt.Printf("Seeded %d security events into %s\n", n, store.Dir())
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 100, "number of events to generate")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 0, "random seed (0 = non-deterministic)")
	rootCmd.AddCommand(seedCmd)
}
