package llm

import (
	"fmt"
	"strings"
)

// Extraction is one validated {invoice, line_items} pair as decoded JSON.
type Extraction struct {
	Invoice   map[string]interface{}
	LineItems []map[string]interface{}
}

// Violation names one violated schema constraint.
type Violation struct {
	Field      string
	Constraint string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Constraint)
}

// SchemaError reports the specific constraints an extraction violated.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// Required field subsets. Types stay permissive because model output mixes
// strings and numbers for the same field.
var (
	requiredInvoiceFields = []string{
		"invoice_key", "supplier_name", "supplier_gstin", "buyer_name",
		"buyer_gstin", "invoice_number", "invoice_date", "invoice_total",
	}

	requiredLineFields = []string{
		"invoice_key", "invoice_number", "description", "line_no", "line_amount",
	}

	// Fields that may arrive as string, null, or number.
	numericInvoiceFields = map[string]bool{
		"taxable_value": true, "cgst_rate_pct": true, "cgst_amount": true,
		"sgst_rate_pct": true, "sgst_amount": true, "igst_rate_pct": true,
		"igst_amount": true, "rounding": true, "invoice_total": true,
		"balance_due": true,
	}

	numericLineFields = map[string]bool{
		"line_no": true, "quantity": true, "unit_price": true,
		"line_amount": true, "cgst_rate_pct": true, "cgst_amount": true,
		"sgst_rate_pct": true, "sgst_amount": true, "igst_rate_pct": true,
		"igst_amount": true,
	}

	stringInvoiceFields = []string{
		"invoice_key", "supplier_name", "supplier_gstin", "buyer_name",
		"buyer_gstin", "invoice_number", "invoice_date", "due_date",
		"payment_terms", "invoice_month", "place_of_supply_state",
		"place_of_supply_code", "currency", "hsn_list", "line_items_json",
		"excel_mis_link", "irn", "ack_no", "ack_date", "bank_beneficiary",
		"bank_name", "bank_account_last4", "bank_ifsc", "po_number",
	}

	stringLineFields = []string{
		"line_key", "invoice_key", "invoice_number", "invoice_date",
		"supplier_name", "description", "hsn_sac", "po_number",
	}
)

// ValidateExtraction checks that a repaired JSON value is an object with the
// two required top-level keys and that known fields carry one of their
// declared permissive types. Unknown fields pass through untouched.
func ValidateExtraction(v interface{}) (*Extraction, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &SchemaError{Violations: []Violation{
			{Field: "$", Constraint: "expected a JSON object"},
		}}
	}

	var violations []Violation

	invoice, ok := obj["invoice"].(map[string]interface{})
	if !ok {
		violations = append(violations, Violation{
			Field: "invoice", Constraint: "required object is missing or not an object",
		})
	}

	rawLines, present := obj["line_items"]
	lines, ok := rawLines.([]interface{})
	if !present || !ok {
		violations = append(violations, Violation{
			Field: "line_items", Constraint: "required array is missing or not an array",
		})
	}

	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}

	violations = append(violations, checkObject("invoice", invoice,
		requiredInvoiceFields, stringInvoiceFields, numericInvoiceFields)...)

	items := make([]map[string]interface{}, 0, len(lines))
	for i, raw := range lines {
		item, ok := raw.(map[string]interface{})
		if !ok {
			violations = append(violations, Violation{
				Field:      fmt.Sprintf("line_items[%d]", i),
				Constraint: "expected an object",
			})
			continue
		}
		violations = append(violations, checkObject(fmt.Sprintf("line_items[%d]", i),
			item, requiredLineFields, stringLineFields, numericLineFields)...)
		items = append(items, item)
	}

	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}

	return &Extraction{Invoice: invoice, LineItems: items}, nil
}

func checkObject(prefix string, obj map[string]interface{}, required, stringFields []string, numericFields map[string]bool) []Violation {
	var violations []Violation

	for _, f := range required {
		if _, ok := obj[f]; !ok {
			violations = append(violations, Violation{
				Field: prefix + "." + f, Constraint: "required field is missing",
			})
		}
	}

	for _, f := range stringFields {
		if v, ok := obj[f]; ok && !isStringOrNull(v) {
			violations = append(violations, Violation{
				Field: prefix + "." + f, Constraint: "expected string or null",
			})
		}
	}

	for f, numeric := range numericFields {
		if !numeric {
			continue
		}
		if v, ok := obj[f]; ok && !isScalarOrNull(v) {
			violations = append(violations, Violation{
				Field: prefix + "." + f, Constraint: "expected string, number, or null",
			})
		}
	}

	return violations
}

func isStringOrNull(v interface{}) bool {
	if v == nil {
		return true
	}
	_, ok := v.(string)
	return ok
}

func isScalarOrNull(v interface{}) bool {
	switch v.(type) {
	case nil, string, float64:
		return true
	default:
		return false
	}
}
