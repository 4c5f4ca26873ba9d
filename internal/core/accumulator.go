// Package core orchestrates one ingestion run: source links in, reconciled
// sheet rows out.
package core

import "github.com/finlens-ai/invoice-engine/internal/domain"

// Accumulator collects extracted records across all files of a run so the
// sheet is written once at the end. Append-only; order follows processing
// order.
type Accumulator struct {
	invoices []domain.Record
	lines    []domain.Record
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) AddInvoice(inv domain.Record) {
	a.invoices = append(a.invoices, inv)
}

func (a *Accumulator) AddLines(items []domain.Record) {
	a.lines = append(a.lines, items...)
}

func (a *Accumulator) Invoices() []domain.Record {
	return a.invoices
}

func (a *Accumulator) Lines() []domain.Record {
	return a.lines
}

// Empty reports whether the run produced nothing to write.
func (a *Accumulator) Empty() bool {
	return len(a.invoices) == 0 && len(a.lines) == 0
}

// Clear drops everything accumulated so far.
func (a *Accumulator) Clear() {
	a.invoices = nil
	a.lines = nil
}
