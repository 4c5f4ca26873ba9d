package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finlens-ai/invoice-engine/internal/archive"
	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/drive"
	"github.com/finlens-ai/invoice-engine/internal/llm"
	"github.com/finlens-ai/invoice-engine/internal/observability"
	"github.com/finlens-ai/invoice-engine/internal/parse"
	"github.com/finlens-ai/invoice-engine/internal/runlog"
	"github.com/finlens-ai/invoice-engine/internal/sheets"
	"github.com/finlens-ai/invoice-engine/internal/tracking"
)

// Defaults for the parse-job polling loop.
const (
	DefaultPollAttempts = 60
	DefaultPollInterval = 2 * time.Second
	DefaultFetchDelay   = 1500 * time.Millisecond
)

// FileDownloader fetches one Drive file by id.
type FileDownloader interface {
	Download(ctx context.Context, fileID string) (*drive.File, error)
}

// DocumentParser is the external parsing service.
type DocumentParser interface {
	Upload(ctx context.Context, content []byte, filename string) (string, error)
	PollStatus(ctx context.Context, jobID string) (parse.JobStatus, error)
	FetchResult(ctx context.Context, jobID string) (string, error)
}

// BatchNormalizer turns parsed markdown into validated records.
type BatchNormalizer interface {
	NormalizeBatch(ctx context.Context, markdowns []string) ([]llm.NormalizedInvoice, error)
}

// SheetWriter is the target-sheet side of a run.
type SheetWriter interface {
	EnsureHeaders(ctx context.Context) error
	UpsertInvoices(ctx context.Context, invoices []domain.Record) (sheets.UpsertResult, error)
	AppendLineItems(ctx context.Context, lines []domain.Record) error
}

// LinkSource yields the Drive links to ingest this run.
type LinkSource interface {
	ReadSourceLinks(ctx context.Context) ([]string, error)
}

// RunRecorder persists run history. runlog.Store implements it.
type RunRecorder interface {
	RecordStart(ctx context.Context, id string, startedAt time.Time, filesTotal int) error
	RecordFinish(ctx context.Context, run runlog.Run) error
}

// RunnerConfig tunes one run. Zero values take the defaults above.
type RunnerConfig struct {
	TargetSheetID string
	PollAttempts  int
	PollInterval  time.Duration
	FetchDelay    time.Duration
}

// FileError is one skipped file and why.
type FileError struct {
	Link string
	Err  error
}

// RunResult summarizes a completed (or aborted) run.
type RunResult struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	FilesTotal        int
	FilesProcessed    int
	FilesSkipped      int
	FilesFailed       int
	InvoicesUpdated   int
	InvoicesAppended  int
	MissingKey        int
	LineItemsAppended int
	FileErrors        []FileError
}

// Runner executes the ingestion pipeline: read links, download, parse,
// normalize, reconcile. Files are processed sequentially; a failing file is
// logged and skipped, while sheet read/write failures abort the run.
type Runner struct {
	cfg        RunnerConfig
	downloader FileDownloader
	parser     DocumentParser
	normalizer BatchNormalizer
	sheet      SheetWriter
	links      LinkSource
	tracker    tracking.Tracker
	recorder   RunRecorder
	logger     *observability.Logger

	// OnRunStart and OnFileDone, when set, are called once the link count is
	// known and after each link is resolved. The CLI uses them to drive its
	// progress bar.
	OnRunStart func(totalFiles int)
	OnFileDone func(link string)
}

// NewRunner wires a Runner. tracker and recorder may be nil, disabling
// skip-on-rerun and run history respectively.
func NewRunner(
	cfg RunnerConfig,
	downloader FileDownloader,
	parser DocumentParser,
	normalizer BatchNormalizer,
	sheet SheetWriter,
	links LinkSource,
	tracker tracking.Tracker,
	recorder RunRecorder,
	logger *observability.Logger,
) *Runner {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchDelay < 0 {
		cfg.FetchDelay = DefaultFetchDelay
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Runner{
		cfg:        cfg,
		downloader: downloader,
		parser:     parser,
		normalizer: normalizer,
		sheet:      sheet,
		links:      links,
		tracker:    tracker,
		recorder:   recorder,
		logger:     logger,
	}
}

// Run executes one full pass. The returned result is valid even when err is
// non-nil; it reflects whatever progress was made.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.WithOperation("run").WithField("run_id", result.RunID)

	if err := r.sheet.EnsureHeaders(ctx); err != nil {
		return r.finish(ctx, result, err)
	}

	links, err := r.links.ReadSourceLinks(ctx)
	if err != nil {
		return r.finish(ctx, result, err)
	}
	result.FilesTotal = len(links)
	logger.Info().Int("links", len(links)).Msg("Starting ingestion run")
	if r.OnRunStart != nil {
		r.OnRunStart(len(links))
	}

	if r.recorder != nil {
		if err := r.recorder.RecordStart(ctx, result.RunID, result.StartedAt, len(links)); err != nil {
			logger.Warn().Err(err).Msg("Could not record run start")
		}
	}

	acc := NewAccumulator()
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, result, err)
		}
		r.processLink(ctx, link, acc, result, logger)
		if r.OnFileDone != nil {
			r.OnFileDone(link)
		}
	}

	if !acc.Empty() {
		upsert, err := r.sheet.UpsertInvoices(ctx, acc.Invoices())
		result.InvoicesUpdated = upsert.Updated
		result.InvoicesAppended = upsert.Appended
		result.MissingKey = upsert.MissingKey
		if err != nil {
			return r.finish(ctx, result, err)
		}
		if err := r.sheet.AppendLineItems(ctx, acc.Lines()); err != nil {
			return r.finish(ctx, result, err)
		}
		result.LineItemsAppended = len(acc.Lines())
	}

	return r.finish(ctx, result, nil)
}

// processLink runs the per-file pipeline, recording rather than returning
// failures.
func (r *Runner) processLink(ctx context.Context, link string, acc *Accumulator, result *RunResult, logger *observability.Logger) {
	fileID, err := drive.ExtractFileID(link)
	if err != nil {
		logger.Warn().Str("link", link).Err(err).Msg("Skipping unrecognized link")
		r.recordFileError(result, link, err)
		return
	}

	if r.tracker != nil {
		processed, err := r.tracker.IsProcessed(ctx, fileID, r.cfg.TargetSheetID)
		if err != nil {
			logger.Warn().Err(err).Msg("Tracker check failed; processing anyway")
		} else if processed {
			logger.Info().Str("file_id", fileID).Msg("Already processed; skipping")
			result.FilesSkipped++
			return
		}
	}

	normalized, err := r.processFile(ctx, fileID, link, logger)
	if err != nil {
		logger.Error().Str("file_id", fileID).Err(err).Msg("File failed; continuing with next")
		r.recordFileError(result, link, err)
		if r.tracker != nil {
			if terr := r.tracker.MarkFailed(ctx, fileID, r.cfg.TargetSheetID, err.Error()); terr != nil {
				logger.Warn().Err(terr).Msg("Could not mark file failed")
			}
		}
		return
	}

	for _, n := range normalized {
		acc.AddInvoice(n.Invoice)
		acc.AddLines(n.LineItems)
	}
	result.FilesProcessed++

	if r.tracker != nil {
		if err := r.tracker.MarkCompleted(ctx, fileID, r.cfg.TargetSheetID); err != nil {
			logger.Warn().Err(err).Msg("Could not mark file completed")
		}
	}
}

// processFile downloads one Drive file, parses its documents and normalizes
// the results.
func (r *Runner) processFile(ctx context.Context, fileID, link string, logger *observability.Logger) ([]llm.NormalizedInvoice, error) {
	if r.tracker != nil {
		if err := r.tracker.MarkProcessing(ctx, tracking.Entry{
			FileID:  fileID,
			FileURL: link,
			SheetID: r.cfg.TargetSheetID,
		}); err != nil {
			logger.Warn().Err(err).Msg("Could not mark file processing")
		}
	}

	file, err := r.downloader.Download(ctx, fileID)
	if err != nil {
		return nil, err
	}

	documents, err := r.expand(file)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, domain.IOError("archive contained no parseable documents", nil)
	}

	jobIDs := make([]string, 0, len(documents))
	for _, doc := range documents {
		jobID, err := r.parser.Upload(ctx, doc.Content, doc.Name)
		if err != nil {
			return nil, err
		}
		jobIDs = append(jobIDs, jobID)
	}

	succeeded := make([]string, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		status, err := r.awaitJob(ctx, jobID, logger)
		if err != nil {
			return nil, err
		}
		if status == parse.StatusSuccess {
			succeeded = append(succeeded, jobID)
		} else {
			logger.Warn().Str("job_id", jobID).Str("status", string(status)).Msg("Parse job did not succeed")
		}
	}
	if len(succeeded) == 0 {
		return nil, domain.APIError("no parse jobs succeeded for file "+fileID, nil)
	}

	// Results are not always immediately downloadable after SUCCESS.
	if err := sleepCtx(ctx, r.cfg.FetchDelay); err != nil {
		return nil, err
	}

	var markdowns []string
	for _, jobID := range succeeded {
		md, err := r.parser.FetchResult(ctx, jobID)
		if err != nil {
			logger.Warn().Str("job_id", jobID).Err(err).Msg("Result fetch failed; skipping document")
			continue
		}
		markdowns = append(markdowns, md)
	}
	if len(markdowns) == 0 {
		return nil, domain.APIError("no parse results retrievable for file "+fileID, nil)
	}

	return r.normalizer.NormalizeBatch(ctx, markdowns)
}

// expand unpacks zip bundles into their documents; other files pass through.
func (r *Runner) expand(file *drive.File) ([]archive.Entry, error) {
	if archive.IsZip(file.Name) {
		return archive.ExtractDocuments(file.Content)
	}
	return []archive.Entry{{Name: file.Name, Content: file.Content}}, nil
}

// awaitJob polls one parse job until it settles or the attempt budget runs
// out. A job still pending after the last attempt is reported as-is.
func (r *Runner) awaitJob(ctx context.Context, jobID string, logger *observability.Logger) (parse.JobStatus, error) {
	status := parse.StatusPending
	for attempt := 0; attempt < r.cfg.PollAttempts; attempt++ {
		var err error
		status, err = r.parser.PollStatus(ctx, jobID)
		if err != nil {
			return "", err
		}
		logger.Debug().Str("job_id", jobID).Str("status", string(status)).Msg("Polled parse job")
		if status == parse.StatusSuccess || status == parse.StatusError {
			return status, nil
		}
		if err := sleepCtx(ctx, r.cfg.PollInterval); err != nil {
			return "", err
		}
	}
	return status, nil
}

func (r *Runner) recordFileError(result *RunResult, link string, err error) {
	result.FilesFailed++
	result.FileErrors = append(result.FileErrors, FileError{Link: link, Err: err})
}

// finish stamps the result, records it, and passes the terminal error back.
func (r *Runner) finish(ctx context.Context, result *RunResult, runErr error) (*RunResult, error) {
	result.FinishedAt = time.Now().UTC()

	if r.recorder != nil {
		entry := runlog.Run{
			ID:                result.RunID,
			FinishedAt:        result.FinishedAt,
			Status:            runlog.StatusCompleted,
			FilesTotal:        result.FilesTotal,
			FilesProcessed:    result.FilesProcessed,
			FilesSkipped:      result.FilesSkipped,
			FilesFailed:       result.FilesFailed,
			InvoicesUpdated:   result.InvoicesUpdated,
			InvoicesAppended:  result.InvoicesAppended,
			LineItemsAppended: result.LineItemsAppended,
		}
		if runErr != nil {
			entry.Status = runlog.StatusFailed
			entry.Error = runErr.Error()
		}
		if err := r.recorder.RecordFinish(context.WithoutCancel(ctx), entry); err != nil {
			r.logger.Warn().Err(err).Msg("Could not record run finish")
		}
	}

	if runErr != nil {
		return result, fmt.Errorf("ingestion run %s failed: %w", result.RunID, runErr)
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
