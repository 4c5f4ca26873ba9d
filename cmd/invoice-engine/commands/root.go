package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/finlens-ai/invoice-engine/cmd/invoice-engine/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "invoice-engine",
	Short: "Invoice ingestion pipeline - Drive documents to reconciled sheet rows",
	Long: `invoice-engine reads Google Drive links from a source sheet, parses each
document through the external parsing service, extracts structured invoice
records with an LLM, and upserts them into the target spreadsheet keyed by
invoice_key.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; explicit env vars and flags still apply.
		_ = godotenv.Load()
		ui.Init(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
