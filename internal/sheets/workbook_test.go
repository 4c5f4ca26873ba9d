package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens-ai/invoice-engine/internal/domain"
)

func tempWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb, err := OpenWorkbook(filepath.Join(t.TempDir(), "target.xlsx"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb
}

func TestWorkbook_UpdateAndRead(t *testing.T) {
	wb := tempWorkbook(t)
	ctx := context.Background()

	require.NoError(t, wb.UpdateRange(ctx, "", "Sheet1!A1", [][]string{
		{"invoice_key", "invoice_total"},
		{"g|1", "118"},
	}))

	rows, err := wb.ReadRange(ctx, "", "Sheet1!1:999999")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"invoice_key", "invoice_total"}, rows[0])
	assert.Equal(t, []string{"g|1", "118"}, rows[1])
}

func TestWorkbook_ReadHeaderRowOnly(t *testing.T) {
	wb := tempWorkbook(t)
	ctx := context.Background()

	require.NoError(t, wb.UpdateRange(ctx, "", "Sheet1!A1", [][]string{
		{"h1", "h2"},
		{"a", "b"},
	}))

	rows, err := wb.ReadRange(ctx, "", "Sheet1!1:1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"h1", "h2"}, rows[0])
}

func TestWorkbook_AppendRows(t *testing.T) {
	wb := tempWorkbook(t)
	ctx := context.Background()

	require.NoError(t, wb.UpdateRange(ctx, "", "Sheet1!A1", [][]string{{"header"}}))
	require.NoError(t, wb.AppendRows(ctx, "", "Sheet1!A1", [][]string{{"row1"}, {"row2"}}))
	require.NoError(t, wb.AppendRows(ctx, "", "Sheet1!A1", [][]string{{"row3"}}))

	rows, err := wb.ReadRange(ctx, "", "Sheet1!1:999999")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"row3"}, rows[3])
}

func TestWorkbook_CreatesMissingTab(t *testing.T) {
	wb := tempWorkbook(t)
	ctx := context.Background()

	require.NoError(t, wb.UpdateRange(ctx, "", "Invoice Line Items!A1", [][]string{{"header"}}))

	tabs, err := wb.Tabs(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, tabs, "Invoice Line Items")
}

func TestWorkbook_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.xlsx")
	ctx := context.Background()

	wb, err := OpenWorkbook(path, nil)
	require.NoError(t, err)
	require.NoError(t, wb.UpdateRange(ctx, "", "Sheet1!A1", [][]string{{"kept"}}))
	require.NoError(t, wb.Close())

	reopened, err := OpenWorkbook(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.ReadRange(ctx, "", "Sheet1!1:1")
	require.NoError(t, err)
	assert.Equal(t, "kept", rows[0][0])
}

func TestWorkbook_BacksTheReconciler(t *testing.T) {
	wb := tempWorkbook(t)
	r := NewReconciler(wb, ReconcilerConfig{InvoicesTab: "Sheet1", LinesTab: "Lines"}, nil)
	ctx := context.Background()

	require.NoError(t, r.EnsureHeaders(ctx))

	_, err := r.UpsertInvoices(ctx, []domain.Record{{
		"invoice_key":    "g|1",
		"invoice_number": "INV-1",
		"invoice_total":  "118",
	}})
	require.NoError(t, err)

	result, err := r.UpsertInvoices(ctx, []domain.Record{{
		"invoice_key":    "g|1",
		"invoice_number": "INV-1",
		"invoice_total":  "200",
	}})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1}, result)

	rows, err := wb.ReadRange(ctx, "", "Sheet1!1:999999")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
