package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlens-ai/invoice-engine/cmd/invoice-engine/ui"
	"github.com/finlens-ai/invoice-engine/internal/core"
	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/drive"
	"github.com/finlens-ai/invoice-engine/internal/llm"
	"github.com/finlens-ai/invoice-engine/internal/parse"
	"github.com/finlens-ai/invoice-engine/internal/sheets"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one ingestion run",
	Long: `Reads Drive links from the source sheet, parses and extracts every new
document, and reconciles the results into the target spreadsheet. Files that
fail are skipped; the run only aborts on sheet-level errors.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract but skip all sheet writes")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	tracker, closeTracker, err := newTracker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("tracking backend: %w", err)
	}
	defer closeTracker()

	recorder, err := newRecorder(cfg)
	if err != nil {
		return fmt.Errorf("run history: %w", err)
	}
	var runRecorder core.RunRecorder
	if recorder != nil {
		defer recorder.Close()
		runRecorder = recorder
	}

	completer := llm.NewClient(llm.ClientConfig{
		BaseURL:    cfg.Completion.BaseURL,
		APIKey:     cfg.Completion.APIKey,
		Model:      cfg.Completion.Model,
		MaxRetries: cfg.Completion.MaxRetries,
		RetryBase:  cfg.Completion.RetryBase,
	}, logger)

	var sheet core.SheetWriter = newReconciler(cfg, store, logger)
	if runDryRun {
		sheet = &dryRunSheet{}
	}

	runner := core.NewRunner(
		core.RunnerConfig{
			TargetSheetID: cfg.Sheets.TargetSheetID,
			PollAttempts:  cfg.Ingest.PollAttempts,
			PollInterval:  cfg.Ingest.PollInterval,
			FetchDelay:    cfg.Ingest.FetchDelay,
		},
		drive.NewClient(drive.ClientConfig{BaseURL: cfg.Drive.BaseURL, Token: cfg.Drive.Token}, logger),
		parse.NewClient(parse.ClientConfig{
			BaseURL:   cfg.Parser.BaseURL,
			APIKey:    cfg.Parser.APIKey,
			ProjectID: cfg.Parser.ProjectID,
		}, logger),
		llm.NewNormalizer(completer, cfg.Completion.BatchSize, logger),
		sheet,
		&sourceLinks{store: store, cfg: cfg, logger: logger},
		tracker,
		runRecorder,
		logger,
	)

	ui.Section("Invoice Ingestion")
	if runDryRun {
		ui.Warn("Dry run: no sheet writes will be performed")
	}

	var bar *ui.ProgressBar
	runner.OnRunStart = func(totalFiles int) {
		if totalFiles > 0 {
			bar = ui.NewProgressBar(totalFiles, "processing files")
		}
	}
	runner.OnFileDone = func(link string) {
		if bar != nil {
			bar.Add(1)
		}
	}

	result, err := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	printRunSummary(result)
	return err
}

func printRunSummary(result *core.RunResult) {
	if result == nil {
		return
	}

	ui.Section("Run Summary")
	ui.Table(
		[]string{"metric", "count"},
		[][]string{
			{"files total", strconv.Itoa(result.FilesTotal)},
			{"files processed", strconv.Itoa(result.FilesProcessed)},
			{"files skipped", strconv.Itoa(result.FilesSkipped)},
			{"files failed", strconv.Itoa(result.FilesFailed)},
			{"invoices updated", strconv.Itoa(result.InvoicesUpdated)},
			{"invoices appended", strconv.Itoa(result.InvoicesAppended)},
			{"line items appended", strconv.Itoa(result.LineItemsAppended)},
		},
	)

	if result.MissingKey > 0 {
		ui.Warn("%d invoice(s) had no invoice_key and were appended without upsert identity", result.MissingKey)
	}
	for _, fe := range result.FileErrors {
		ui.Error("%s: %v", fe.Link, fe.Err)
	}
	duration := result.FinishedAt.Sub(result.StartedAt).Round(time.Second)
	if result.FilesFailed == 0 {
		ui.Success("Run %s finished in %s", result.RunID, duration)
	} else {
		ui.Warn("Run %s finished with %d failed file(s) in %s", result.RunID, result.FilesFailed, duration)
	}
}

// dryRunSheet counts what a real run would write without touching the sheet.
type dryRunSheet struct{}

func (d *dryRunSheet) EnsureHeaders(context.Context) error { return nil }

func (d *dryRunSheet) UpsertInvoices(_ context.Context, invoices []domain.Record) (sheets.UpsertResult, error) {
	ui.Info("dry-run: would upsert %d invoice(s)", len(invoices))
	return sheets.UpsertResult{}, nil
}

func (d *dryRunSheet) AppendLineItems(_ context.Context, lines []domain.Record) error {
	ui.Info("dry-run: would append %d line item(s)", len(lines))
	return nil
}
