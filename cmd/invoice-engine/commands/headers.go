package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlens-ai/invoice-engine/cmd/invoice-engine/ui"
)

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Write header rows into empty target tabs",
	Long: `Ensures the Invoices and Invoice Line Items tabs carry their header rows.
Tabs that already have a first row are left untouched.`,
	RunE: runHeaders,
}

func init() {
	rootCmd.AddCommand(headersCmd)
}

func runHeaders(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, closeStore, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := newReconciler(cfg, store, logger).EnsureHeaders(ctx); err != nil {
		return err
	}
	ui.Success("Headers ensured in target sheet %s", cfg.Sheets.TargetSheetID)
	return nil
}
