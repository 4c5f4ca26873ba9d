package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// wholeTabSpan is wide enough to cover any realistic sheet in one read.
const wholeTabSpan = "1:999999"

// ReconcilerConfig names the target spreadsheet and its tabs.
type ReconcilerConfig struct {
	SpreadsheetID string
	InvoicesTab   string
	LinesTab      string
}

// UpsertResult summarizes one reconciliation pass.
type UpsertResult struct {
	Updated    int
	Appended   int
	MissingKey int
}

// Reconciler writes invoice records into the target spreadsheet. Invoice rows
// are keyed by invoice_key and updated in place when the key already exists;
// line items are always appended.
type Reconciler struct {
	store  Store
	cfg    ReconcilerConfig
	logger *observability.Logger
}

func NewReconciler(store Store, cfg ReconcilerConfig, logger *observability.Logger) *Reconciler {
	if logger == nil {
		logger = observability.Nop()
	}
	if cfg.InvoicesTab == "" {
		cfg.InvoicesTab = "Invoices"
	}
	if cfg.LinesTab == "" {
		cfg.LinesTab = "Invoice Line Items"
	}
	return &Reconciler{store: store, cfg: cfg, logger: logger}
}

// EnsureHeaders writes the header row into each target tab that is still
// empty. Existing headers are left untouched, whatever their content.
func (r *Reconciler) EnsureHeaders(ctx context.Context) error {
	invoicesTab, linesTab := r.resolveTabs(ctx)

	if err := r.ensureHeaderRow(ctx, invoicesTab, domain.InvoiceHeaders); err != nil {
		return err
	}
	if linesTab != invoicesTab {
		if err := r.ensureHeaderRow(ctx, linesTab, domain.LineHeaders); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) ensureHeaderRow(ctx context.Context, tab string, headers []string) error {
	rows, err := r.store.ReadRange(ctx, r.cfg.SpreadsheetID, tab+"!1:1")
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	r.logger.Info().Str("tab", tab).Msg("Writing header row")
	return r.store.UpdateRange(ctx, r.cfg.SpreadsheetID, tab+"!A1", [][]string{headers})
}

// UpsertInvoices writes invoice rows, reading the tab once to index existing
// keys. Rows whose key matches an existing row overwrite it; everything else
// is appended, including records with an empty invoice_key, which are counted
// separately since they can never be updated on a later run.
func (r *Reconciler) UpsertInvoices(ctx context.Context, invoices []domain.Record) (UpsertResult, error) {
	var result UpsertResult
	if len(invoices) == 0 {
		return result, nil
	}

	tab := r.resolveInvoicesTab(ctx)

	rows, err := r.store.ReadRange(ctx, r.cfg.SpreadsheetID, tab+"!"+wholeTabSpan)
	if err != nil {
		return result, err
	}

	header := domain.InvoiceHeaders
	if len(rows) > 0 && len(rows[0]) > 0 {
		header = rows[0]
	}
	keyIdx := indexOf(header, domain.KeyField)

	// Existing key -> 1-based row number. Later duplicates win, matching
	// how a manual scan of the sheet would resolve them.
	index := make(map[string]int)
	if keyIdx >= 0 {
		for i := 1; i < len(rows); i++ {
			if keyIdx < len(rows[i]) && rows[i][keyIdx] != "" {
				index[rows[i][keyIdx]] = i + 1
			}
		}
	}

	var updates []RangeUpdate
	var appends [][]string
	for _, inv := range invoices {
		row := inv.Row(header)
		key := inv.Key()
		if key == "" {
			r.logger.Warn().
				Str("invoice_number", inv["invoice_number"]).
				Msg("Invoice record has no key; appending without upsert identity")
			result.MissingKey++
			appends = append(appends, row)
			continue
		}
		if rowNum, ok := index[key]; ok {
			updates = append(updates, RangeUpdate{
				Range:  fmt.Sprintf("%s!A%d", tab, rowNum),
				Values: [][]string{row},
			})
		} else {
			appends = append(appends, row)
		}
	}

	if len(updates) > 0 {
		if err := r.store.BatchUpdate(ctx, r.cfg.SpreadsheetID, updates); err != nil {
			return result, err
		}
		result.Updated = len(updates)
	}
	if len(appends) > 0 {
		if err := r.store.AppendRows(ctx, r.cfg.SpreadsheetID, tab+"!A1", appends); err != nil {
			return result, err
		}
		result.Appended = len(appends)
	}

	r.logger.Info().
		Str("tab", tab).
		Int("updated", result.Updated).
		Int("appended", result.Appended).
		Int("missing_key", result.MissingKey).
		Msg("Upserted invoices")
	return result, nil
}

// AppendLineItems appends line item rows. Line items carry no row identity,
// so reruns of the same file produce duplicate rows by design.
func (r *Reconciler) AppendLineItems(ctx context.Context, lines []domain.Record) error {
	if len(lines) == 0 {
		return nil
	}

	tab := r.resolveLinesTab(ctx)

	values := make([][]string, 0, len(lines))
	for _, line := range lines {
		values = append(values, line.Row(domain.LineHeaders))
	}
	if err := r.store.AppendRows(ctx, r.cfg.SpreadsheetID, tab+"!A1", values); err != nil {
		return err
	}

	r.logger.Info().
		Str("tab", tab).
		Int("rows", len(values)).
		Msg("Appended line items")
	return nil
}

// resolveTabs picks both target tabs from the spreadsheet's actual tab list,
// falling back to the configured names when the list cannot be read.
func (r *Reconciler) resolveTabs(ctx context.Context) (invoicesTab, linesTab string) {
	tabs, err := r.store.Tabs(ctx, r.cfg.SpreadsheetID)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Could not list tabs; using configured names")
		return r.cfg.InvoicesTab, r.cfg.LinesTab
	}
	return pickTab(tabs, []string{r.cfg.InvoicesTab, "Invoices", "Sheet1"}, 0, r.cfg.InvoicesTab),
		pickTab(tabs, []string{r.cfg.LinesTab, "Invoice Line Items", "Sheet2"}, 1, r.cfg.LinesTab)
}

func (r *Reconciler) resolveInvoicesTab(ctx context.Context) string {
	tab, _ := r.resolveTabs(ctx)
	return tab
}

func (r *Reconciler) resolveLinesTab(ctx context.Context) string {
	_, tab := r.resolveTabs(ctx)
	return tab
}

// pickTab returns the first candidate present in tabs, then the positional
// fallback, then the configured default.
func pickTab(tabs, candidates []string, position int, fallback string) string {
	for _, candidate := range candidates {
		for _, tab := range tabs {
			if tab == candidate {
				return candidate
			}
		}
	}
	if position < len(tabs) {
		return tabs[position]
	}
	return fallback
}

// ReadSourceLinks reads the source spreadsheet and returns the non-empty
// values of the named link column, in row order. A missing column is not an
// error; there is simply nothing to process.
func ReadSourceLinks(ctx context.Context, store Store, spreadsheetID, tab, linkColumn string, logger *observability.Logger) ([]string, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	rows, err := store.ReadRange(ctx, spreadsheetID, tab+"!"+wholeTabSpan)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	colIdx := -1
	for i, h := range rows[0] {
		if strings.TrimSpace(h) == linkColumn {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		logger.Error().
			Str("column", linkColumn).
			Strs("header", rows[0]).
			Msg("Link column not found in source sheet")
		return nil, nil
	}

	var links []string
	for _, row := range rows[1:] {
		if colIdx < len(row) {
			if link := strings.TrimSpace(row[colIdx]); link != "" {
				links = append(links, link)
			}
		}
	}

	logger.Info().Int("links", len(links)).Msg("Read source links")
	return links, nil
}

// AppendSourceLink records a newly uploaded file URL in the source sheet.
func AppendSourceLink(ctx context.Context, store Store, spreadsheetID, tab, fileURL string) error {
	return store.AppendRows(ctx, spreadsheetID, tab+"!A1", [][]string{{fileURL}})
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
