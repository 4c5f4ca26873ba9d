// Package domain holds the invoice and line-item record model shared by the
// normalization pipeline and the sheet reconciler.
package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// Record is a flat mapping from sheet header names to cell values. Absent or
// unknown fields serialize as "" (never null) so spreadsheet cells stay
// well-typed.
type Record map[string]string

// KeyField is the natural idempotency key column for invoices:
// supplier_gstin + "|" + invoice_number.
const KeyField = "invoice_key"

// Key returns the record's invoice_key, or "" when missing.
func (r Record) Key() string {
	return r[KeyField]
}

// Row projects the record onto the given header columns, in order. Missing
// fields become empty strings.
func (r Record) Row(header []string) []string {
	row := make([]string, len(header))
	for i, h := range header {
		row[i] = r[h]
	}
	return row
}

// ToRecord converts a decoded JSON object into a Record, stringifying every
// value. Nulls become "", numbers keep their JSON rendering, booleans become
// "true"/"false".
func ToRecord(obj map[string]interface{}) Record {
	rec := make(Record, len(obj))
	for k, v := range obj {
		rec[k] = Stringify(v)
	}
	return rec
}

// Stringify renders a permissively-typed JSON value as a cell string.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Shortest exact rendering, never exponent notation: "1000000", "123.45".
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Fields returns the record's populated field names, sorted.
func (r Record) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
