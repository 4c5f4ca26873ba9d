package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlens-ai/invoice-engine/cmd/invoice-engine/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ingestion runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RunLog.Path == "" {
		return fmt.Errorf("run history is disabled; set runlog.path or RUNLOG_PATH")
	}

	recorder, err := newRecorder(cfg)
	if err != nil {
		return err
	}
	defer recorder.Close()

	runs, err := recorder.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No recorded runs")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			strconv.Itoa(r.FilesProcessed) + "/" + strconv.Itoa(r.FilesTotal),
			strconv.Itoa(r.InvoicesUpdated),
			strconv.Itoa(r.InvoicesAppended),
			strconv.Itoa(r.LineItemsAppended),
		})
	}
	ui.Table(
		[]string{"run", "started", "status", "files", "updated", "appended", "lines"},
		rows,
	)
	return nil
}
