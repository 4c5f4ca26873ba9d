// Package tracking remembers which source files have already been ingested
// into which target sheet, so reruns skip completed work.
package tracking

import (
	"context"
	"time"
)

// Status is a file's processing state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Entry is one tracked file. Files are identified per target sheet: the same
// Drive file ingested into a different sheet counts as unprocessed.
type Entry struct {
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	FileURL     string    `json:"file_url"`
	SheetID     string    `json:"sheet_id"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Tracker is the processed-file store. IsProcessed is only true for files
// that reached completed: a crash mid-run leaves the file in processing and
// it is retried next run.
type Tracker interface {
	IsProcessed(ctx context.Context, fileID, sheetID string) (bool, error)
	MarkProcessing(ctx context.Context, entry Entry) error
	MarkCompleted(ctx context.Context, fileID, sheetID string) error
	MarkFailed(ctx context.Context, fileID, sheetID, reason string) error
}
