package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlens-ai/invoice-engine/cmd/invoice-engine/ui"
	"github.com/finlens-ai/invoice-engine/internal/drive"
	"github.com/finlens-ai/invoice-engine/internal/sheets"
)

var sourcesAdd string

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect or extend the source link sheet",
	Long: `Lists the Drive links currently queued in the source sheet, flagging any
that cannot be resolved to a file id. With --add, appends a new link instead.`,
	RunE: runSources,
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesAdd, "add", "", "append a Drive link to the source sheet")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
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

	if sourcesAdd != "" {
		if _, err := drive.ExtractFileID(sourcesAdd); err != nil {
			return err
		}
		if err := sheets.AppendSourceLink(ctx, store, cfg.Sheets.SourceSheetID, cfg.Sheets.SourceTab, sourcesAdd); err != nil {
			return err
		}
		ui.Success("Added link to source sheet")
		return nil
	}

	links, err := sheets.ReadSourceLinks(ctx, store,
		cfg.Sheets.SourceSheetID, cfg.Sheets.SourceTab, cfg.Sheets.SourceLinkColumn, logger)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		ui.Info("Source sheet has no links")
		return nil
	}

	rows := make([][]string, 0, len(links))
	for _, link := range links {
		fileID, err := drive.ExtractFileID(link)
		if err != nil {
			rows = append(rows, []string{link, "unrecognized"})
			continue
		}
		rows = append(rows, []string{link, fileID})
	}
	ui.Table([]string{"link", "file id"}, rows)
	return nil
}
