package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON_DirectObject(t *testing.T) {
	v, err := RepairJSON(`{"invoice":{"invoice_number":"INV-1"},"line_items":[]}`)

	require.NoError(t, err)
	obj := v.(map[string]interface{})
	assert.Contains(t, obj, "invoice")
}

func TestRepairJSON_FencedWithTrailingProse(t *testing.T) {
	text := "```json\n{\"invoice\":{\"invoice_number\":\"INV-1\"},\"line_items\":[]}\n```\nHope this helps!"

	v, err := RepairJSON(text)

	require.NoError(t, err)
	obj := v.(map[string]interface{})
	inv := obj["invoice"].(map[string]interface{})
	assert.Equal(t, "INV-1", inv["invoice_number"])
}

func TestRepairJSON_FencedWholeResponse(t *testing.T) {
	text := "```json\n{\"a\": 1}\n```"

	v, err := RepairJSON(text)

	require.NoError(t, err)
	assert.Equal(t, 1.0, v.(map[string]interface{})["a"])
}

func TestRepairJSON_LeadingProse(t *testing.T) {
	text := `Sure, here is the extracted data: {"invoice":{"x":"y"},"line_items":[{"n":1}]} as requested.`

	v, err := RepairJSON(text)

	require.NoError(t, err)
	obj := v.(map[string]interface{})
	assert.Len(t, obj["line_items"], 1)
}

func TestRepairJSON_ArrayBeforeObject(t *testing.T) {
	text := `The results [1, 2, 3] follow {"ignored": true}`

	v, err := RepairJSON(text)

	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, v)
}

func TestRepairJSON_NestedBraces(t *testing.T) {
	text := `prefix {"outer":{"inner":{"deep":"value"}}} suffix`

	v, err := RepairJSON(text)

	require.NoError(t, err)
	outer := v.(map[string]interface{})["outer"].(map[string]interface{})
	inner := outer["inner"].(map[string]interface{})
	assert.Equal(t, "value", inner["deep"])
}

func TestRepairJSON_MatchesDirectParse(t *testing.T) {
	clean := `{"invoice":{"invoice_total":"118.00","rounding":0.5},"line_items":[{"line_no":1}]}`

	var direct interface{}
	require.NoError(t, json.Unmarshal([]byte(clean), &direct))

	wrappings := []string{
		clean,
		"```\n" + clean + "\n```",
		"```json\n" + clean + "\n```",
		"Here you go:\n" + clean,
		clean + "\nLet me know if you need anything else.",
		"Answer: " + clean + " Done.",
	}

	for _, text := range wrappings {
		v, err := RepairJSON(text)
		require.NoError(t, err, "input: %q", text)
		assert.Equal(t, direct, v, "input: %q", text)
	}
}

func TestRepairJSON_NoDelimiters(t *testing.T) {
	for _, text := range []string{"", "   ", "I could not find any invoice data in the document."} {
		_, err := RepairJSON(text)
		assert.ErrorIs(t, err, ErrNoJSON, "input: %q", text)
	}
}

func TestRepairJSON_TruncatedOutput(t *testing.T) {
	_, err := RepairJSON(`{"invoice":{"supplier_name":"Acme`)

	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestRepairJSON_BraceInsideStringLiteral(t *testing.T) {
	// The naive depth counter sees the '}' inside the string first; the scan
	// must keep going until a parseable candidate appears.
	text := `note {"description":"width } height","ok":true} end`

	v, err := RepairJSON(text)

	require.NoError(t, err)
	assert.Equal(t, true, v.(map[string]interface{})["ok"])
}
