package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

const validExtraction = `{
  "invoice": {
    "invoice_key": "29ABCDE1234F1Z5|INV-42",
    "supplier_name": "Acme Traders",
    "supplier_gstin": "29ABCDE1234F1Z5",
    "buyer_name": "Widget Corp",
    "buyer_gstin": "27FGHIJ5678K2Z9",
    "invoice_number": "INV-42",
    "invoice_date": "2024-12-01",
    "invoice_total": 118.00,
    "taxable_value": "100.00",
    "currency": "INR"
  },
  "line_items": [
    {
      "invoice_key": "29ABCDE1234F1Z5|INV-42",
      "invoice_number": "INV-42",
      "description": "Consulting services",
      "line_no": 1,
      "line_amount": "100.00",
      "quantity": null
    }
  ]
}`

func TestValidateExtraction_Valid(t *testing.T) {
	extraction, err := ValidateExtraction(decode(t, validExtraction))

	require.NoError(t, err)
	assert.Equal(t, "Acme Traders", extraction.Invoice["supplier_name"])
	require.Len(t, extraction.LineItems, 1)
	assert.Equal(t, 1.0, extraction.LineItems[0]["line_no"])
}

func TestValidateExtraction_MixedNumberAndStringTypes(t *testing.T) {
	// Model output mixes numbers and strings for amount fields; both pass.
	_, err := ValidateExtraction(decode(t, validExtraction))
	require.NoError(t, err)
}

func TestValidateExtraction_MissingTopLevelKeys(t *testing.T) {
	_, err := ValidateExtraction(decode(t, `{"invoice": {}}`))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "line_items", schemaErr.Violations[0].Field)
}

func TestValidateExtraction_NotAnObject(t *testing.T) {
	_, err := ValidateExtraction(decode(t, `[1, 2]`))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "$", schemaErr.Violations[0].Field)
}

func TestValidateExtraction_MissingRequiredInvoiceField(t *testing.T) {
	_, err := ValidateExtraction(decode(t, `{
	  "invoice": {
	    "invoice_key": "k", "supplier_name": "s", "supplier_gstin": "g",
	    "buyer_name": "b", "buyer_gstin": "bg", "invoice_number": "n",
	    "invoice_date": "2024-01-01"
	  },
	  "line_items": []
	}`))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "invoice.invoice_total", schemaErr.Violations[0].Field)
	assert.Contains(t, schemaErr.Violations[0].Constraint, "required")
}

func TestValidateExtraction_WrongFieldType(t *testing.T) {
	_, err := ValidateExtraction(decode(t, `{
	  "invoice": {
	    "invoice_key": "k", "supplier_name": true, "supplier_gstin": "g",
	    "buyer_name": "b", "buyer_gstin": "bg", "invoice_number": "n",
	    "invoice_date": "2024-01-01", "invoice_total": {"nested": 1}
	  },
	  "line_items": []
	}`))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)

	fields := make(map[string]string)
	for _, v := range schemaErr.Violations {
		fields[v.Field] = v.Constraint
	}
	assert.Contains(t, fields, "invoice.supplier_name")
	assert.Contains(t, fields, "invoice.invoice_total")
}

func TestValidateExtraction_LineItemViolationsNameTheIndex(t *testing.T) {
	_, err := ValidateExtraction(decode(t, `{
	  "invoice": {
	    "invoice_key": "k", "supplier_name": "s", "supplier_gstin": "g",
	    "buyer_name": "b", "buyer_gstin": "bg", "invoice_number": "n",
	    "invoice_date": "2024-01-01", "invoice_total": "118.00"
	  },
	  "line_items": [
	    {"invoice_key": "k", "invoice_number": "n", "description": "d", "line_no": 1, "line_amount": "10"},
	    {"invoice_key": "k", "invoice_number": "n", "description": "d"}
	  ]
	}`))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)

	var fields []string
	for _, v := range schemaErr.Violations {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "line_items[1].line_no")
	assert.Contains(t, fields, "line_items[1].line_amount")
}

func TestValidateExtraction_UnknownFieldsPassThrough(t *testing.T) {
	extraction, err := ValidateExtraction(decode(t, `{
	  "invoice": {
	    "invoice_key": "k", "supplier_name": "s", "supplier_gstin": "g",
	    "buyer_name": "b", "buyer_gstin": "bg", "invoice_number": "n",
	    "invoice_date": "2024-01-01", "invoice_total": "118.00",
	    "surprise_field": "kept"
	  },
	  "line_items": []
	}`))

	require.NoError(t, err)
	assert.Equal(t, "kept", extraction.Invoice["surprise_field"])
}
