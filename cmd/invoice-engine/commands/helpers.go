package commands

import (
	"context"

	"github.com/finlens-ai/invoice-engine/internal/config"
	"github.com/finlens-ai/invoice-engine/internal/observability"
	"github.com/finlens-ai/invoice-engine/internal/runlog"
	"github.com/finlens-ai/invoice-engine/internal/sheets"
	"github.com/finlens-ai/invoice-engine/internal/tracking"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
		cfg.Observability.LogFormat = "console"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "invoice-engine",
	})
}

// newStore picks the sheet backend: a local workbook when configured, the
// Sheets API otherwise. The returned closer is a no-op for the API client.
func newStore(cfg *config.Config, logger *observability.Logger) (sheets.Store, func() error, error) {
	if cfg.Sheets.WorkbookPath != "" {
		wb, err := sheets.OpenWorkbook(cfg.Sheets.WorkbookPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return wb, wb.Close, nil
	}
	client := sheets.NewClient(sheets.ClientConfig{
		BaseURL: cfg.Sheets.BaseURL,
		Token:   cfg.Sheets.Token,
	}, logger)
	return client, func() error { return nil }, nil
}

func newReconciler(cfg *config.Config, store sheets.Store, logger *observability.Logger) *sheets.Reconciler {
	return sheets.NewReconciler(store, sheets.ReconcilerConfig{
		SpreadsheetID: cfg.Sheets.TargetSheetID,
		InvoicesTab:   cfg.Sheets.InvoicesTab,
		LinesTab:      cfg.Sheets.LinesTab,
	}, logger)
}

func newTracker(ctx context.Context, cfg *config.Config) (tracking.Tracker, func() error, error) {
	if cfg.Tracking.Driver == "redis" {
		r := tracking.NewRedis(tracking.RedisConfig{
			Addr:     cfg.Tracking.Redis.Addr,
			Password: cfg.Tracking.Redis.Password,
			DB:       cfg.Tracking.Redis.DB,
		})
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return tracking.NewMemory(), func() error { return nil }, nil
}

// newRecorder returns nil when run history is disabled.
func newRecorder(cfg *config.Config) (*runlog.Store, error) {
	if cfg.RunLog.Path == "" {
		return nil, nil
	}
	return runlog.Open(cfg.RunLog.Path)
}

// sourceLinks adapts the source sheet to the runner's LinkSource.
type sourceLinks struct {
	store  sheets.Store
	cfg    *config.Config
	logger *observability.Logger
}

func (s *sourceLinks) ReadSourceLinks(ctx context.Context) ([]string, error) {
	return sheets.ReadSourceLinks(ctx, s.store,
		s.cfg.Sheets.SourceSheetID, s.cfg.Sheets.SourceTab, s.cfg.Sheets.SourceLinkColumn, s.logger)
}
