// Package sheets reconciles extracted invoice records into a spreadsheet,
// updating existing invoice rows by key and appending the rest.
package sheets

import "context"

// RangeUpdate is one contiguous write starting at the range's top-left cell.
type RangeUpdate struct {
	Range  string
	Values [][]string
}

// Store is the spreadsheet backend. The Google Sheets API client and the
// local workbook both implement it; the reconciler only sees this surface.
type Store interface {
	// Tabs lists the sheet tab titles in order.
	Tabs(ctx context.Context, spreadsheetID string) ([]string, error)

	// ReadRange returns the cell grid for an A1 range. Trailing empty rows
	// and cells may be omitted, matching Sheets API behavior.
	ReadRange(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error)

	// UpdateRange overwrites cells starting at the range's top-left corner.
	UpdateRange(ctx context.Context, spreadsheetID, a1Range string, values [][]string) error

	// BatchUpdate applies several range updates in one call.
	BatchUpdate(ctx context.Context, spreadsheetID string, updates []RangeUpdate) error

	// AppendRows appends rows after the last non-empty row of the table
	// containing the given range.
	AppendRows(ctx context.Context, spreadsheetID, a1Range string, values [][]string) error
}
