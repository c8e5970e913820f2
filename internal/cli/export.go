package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/logstore"
	"github.com/sentinel-systems/secmon/internal/models"
	"github.com/sentinel-systems/secmon/internal/query"
)

var (
	exportStart    string
	exportEnd      string
	exportKind     string
	exportSeverity string
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export security events from the durable log as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := logstore.New(logstore.Options{
			Dir:     cfg.Security.LogDir,
			BaseDir: cfg.Security.BaseDir,
		})
		if err != nil {
			return fmt.Errorf("failed to open log store: %w", err)
		}

		params := query.Params{Kind: exportKind}
		if exportSeverity != "" {
			sev, ok := models.ParseSeverity(exportSeverity)
			if !ok {
				return fmt.Errorf("invalid severity: %s", exportSeverity)
			}
			params.Severity = sev
		}
		if exportStart != "" {
			t, err := time.Parse("2006-01-02", exportStart)
			if err != nil {
				return fmt.Errorf("invalid --start date: %w", err)
			}
			params.Start = t.UTC()
		}
		if exportEnd != "" {
			t, err := time.Parse("2006-01-02", exportEnd)
			if err != nil {
				return fmt.Errorf("invalid --end date: %w", err)
			}
			params.End = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := query.New(store).ExportCSV(out, params); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		if exportOut != "" {
			fmt.Printf("Exported security events to %s\n", exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStart, "start", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "end date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportKind, "event-type", "", "filter by event kind")
	exportCmd.Flags().StringVar(&exportSeverity, "severity", "", "filter by severity")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
