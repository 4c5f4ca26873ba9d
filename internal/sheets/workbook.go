package sheets

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// Workbook implements Store against a local .xlsx file. It exists for
// offline runs and dry-runs where no Sheets credentials are available; the
// spreadsheet id argument is ignored since the file is the spreadsheet.
//
// Only the A1 forms the reconciler emits are supported: whole-row ranges
// like "Tab!1:999999" for reads and cell anchors like "Tab!A5" for writes.
type Workbook struct {
	path   string
	file   *excelize.File
	logger *observability.Logger
}

var _ Store = (*Workbook)(nil)

// OpenWorkbook opens an existing .xlsx file or creates a new one at path.
func OpenWorkbook(path string, logger *observability.Logger) (*Workbook, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	var file *excelize.File
	if _, err := os.Stat(path); err == nil {
		file, err = excelize.OpenFile(path)
		if err != nil {
			return nil, domain.SheetError("failed to open workbook "+path, err)
		}
	} else {
		file = excelize.NewFile()
	}
	return &Workbook{path: path, file: file, logger: logger}, nil
}

// Close flushes and releases the underlying file.
func (w *Workbook) Close() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return domain.SheetError("failed to save workbook "+w.path, err)
	}
	return w.file.Close()
}

func (w *Workbook) Tabs(_ context.Context, _ string) ([]string, error) {
	return w.file.GetSheetList(), nil
}

func (w *Workbook) ReadRange(_ context.Context, _ string, a1Range string) ([][]string, error) {
	tab, ref, err := splitRange(a1Range)
	if err != nil {
		return nil, err
	}

	rows, err := w.readTab(tab)
	if err != nil {
		return nil, err
	}

	first, last, ok := parseRowSpan(ref)
	if !ok {
		return nil, domain.SheetError("unsupported read range "+a1Range, nil)
	}
	if first > len(rows) {
		return nil, nil
	}
	if last > len(rows) {
		last = len(rows)
	}
	return rows[first-1 : last], nil
}

func (w *Workbook) UpdateRange(_ context.Context, _ string, a1Range string, values [][]string) error {
	tab, ref, err := splitRange(a1Range)
	if err != nil {
		return err
	}
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return domain.SheetError("unsupported write range "+a1Range, err)
	}
	return w.writeRows(tab, col, row, values)
}

func (w *Workbook) BatchUpdate(ctx context.Context, spreadsheetID string, updates []RangeUpdate) error {
	for _, u := range updates {
		if err := w.UpdateRange(ctx, spreadsheetID, u.Range, u.Values); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) AppendRows(_ context.Context, _ string, a1Range string, values [][]string) error {
	tab, _, err := splitRange(a1Range)
	if err != nil {
		return err
	}
	rows, err := w.readTab(tab)
	if err != nil {
		return err
	}
	return w.writeRows(tab, 1, len(rows)+1, values)
}

// readTab returns the tab's rows, treating a missing tab as empty.
func (w *Workbook) readTab(tab string) ([][]string, error) {
	if idx, _ := w.file.GetSheetIndex(tab); idx < 0 {
		return nil, nil
	}
	rows, err := w.file.GetRows(tab)
	if err != nil {
		return nil, domain.SheetError("failed to read tab "+tab, err)
	}
	return rows, nil
}

func (w *Workbook) writeRows(tab string, col, row int, values [][]string) error {
	if idx, _ := w.file.GetSheetIndex(tab); idx < 0 {
		if _, err := w.file.NewSheet(tab); err != nil {
			return domain.SheetError("failed to create tab "+tab, err)
		}
	}
	for i, rowValues := range values {
		cell, err := excelize.CoordinatesToCellName(col, row+i)
		if err != nil {
			return domain.SheetError("invalid cell coordinates", err)
		}
		cells := make([]interface{}, len(rowValues))
		for j, v := range rowValues {
			cells[j] = v
		}
		if err := w.file.SetSheetRow(tab, cell, &cells); err != nil {
			return domain.SheetError(fmt.Sprintf("failed to write row at %s!%s", tab, cell), err)
		}
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return domain.SheetError("failed to save workbook "+w.path, err)
	}
	return nil
}

// splitRange separates "Tab!ref" into its tab and cell reference parts.
func splitRange(a1Range string) (tab, ref string, err error) {
	idx := strings.LastIndex(a1Range, "!")
	if idx < 0 {
		return "", "", domain.SheetError("range missing tab qualifier: "+a1Range, nil)
	}
	return strings.Trim(a1Range[:idx], "'"), a1Range[idx+1:], nil
}

// parseRowSpan handles whole-row references like "1:1" or "1:999999".
func parseRowSpan(ref string) (first, last int, ok bool) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(parts[0])
	last, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || first < 1 || last < first {
		return 0, 0, false
	}
	return first, last, true
}
