package llm

import (
	"encoding/json"
	"strings"
)

// systemPrompt is the extraction contract sent with every completion call.
// The numeric and date rules here are enforced by the model, not re-checked
// programmatically afterwards.
const systemPrompt = `You are a finance data extraction agent. Input is JSON that contains a ` + "`markdown`" + ` field (sometimes the whole input is an array; use the first element). The markdown is an Indian GST invoice rendered as plain text with tables.

Output ONLY the JSON below (no prose, no explanations, no code fences):

{
  "invoice": { /* keys exactly match the 'Invoices' sheet headers */ },
  "line_items": [ /* array of objects exactly matching the 'Invoice Line Items' headers */ ]
}

CRITICAL JSON RULES:
- Must be valid JSON syntax
- Use double quotes for all strings
- Escape special characters (\n, \", \\)
- No trailing commas
- No comments in the actual output
- If description contains quotes, escape them as \"

Data Rules:
- Numbers: strip currency symbols and commas; keep 2 decimals.
- Dates -> YYYY-MM-DD; ack_date -> YYYY-MM-DDTHH:mm:ss if present.
- invoice_key = supplier_gstin + "|" + invoice_number (idempotent).
- Invoice month like "Dec.24" -> 2024-12.
- Parse CGST/SGST/IGST rates/amounts. Totals check within 0.10.
- Place of supply: extract state + code in parentheses.
- HSN list: unique codes joined by commas.
- Bank last4: last 4 digits of account number.
- Line items: include only charge rows (ignore subtotal/tax/rounding/total/balance rows). If qty/unit missing, use "".
- Allocate taxes to lines proportionally to line_amount; round to 2 decimals; adjust the LAST line so column sums match the invoice totals.

Headers to match exactly:

Invoices:
invoice_key,supplier_name,supplier_gstin,buyer_name,buyer_gstin,invoice_number,invoice_date,due_date,payment_terms,invoice_month,place_of_supply_state,place_of_supply_code,currency,taxable_value,cgst_rate_pct,cgst_amount,sgst_rate_pct,sgst_amount,igst_rate_pct,igst_amount,rounding,invoice_total,balance_due,hsn_list,line_items_json,excel_mis_link,irn,ack_no,ack_date,bank_beneficiary,bank_name,bank_account_last4,bank_ifsc,po_number

Invoice Line Items:
line_key,invoice_key,invoice_number,invoice_date,supplier_name,description,hsn_sac,line_no,quantity,unit_price,line_amount,cgst_rate_pct,cgst_amount,sgst_rate_pct,sgst_amount,igst_rate_pct,igst_amount,po_number

If a field is unknown, return an empty string "" (not null).

For problematic content, simplify descriptions and avoid special characters that could break JSON.`

// onlyJSONAddendum is appended on the one repair retry after non-JSON output.
const onlyJSONAddendum = "\n\nIMPORTANT: Respond with ONLY minified JSON. No prose, no code fences."

// buildPrompt wraps one document's markdown for a single-invoice call.
func buildPrompt(markdown string) string {
	input, _ := json.MarshalIndent(map[string]string{"markdown": markdown}, "", "  ")

	var b strings.Builder
	b.WriteString("You will receive invoice markdown in the incoming JSON.\n\n")
	b.WriteString("Parse and normalize per the System message.\n")
	b.WriteString("Return ONLY the JSON object with \"invoice\" and \"line_items\" (no extra text).\n\n")
	b.WriteString("Return only valid minified JSON. No code fences, no comments, no explanations.\n\n")
	b.WriteString("Input JSON:\n")
	b.Write(input)
	return b.String()
}

// buildBatchPrompt wraps one chunk of markdowns for a batch call that must
// return a JSON array of {invoice, line_items} pairs.
func buildBatchPrompt(markdowns []string) string {
	input, _ := json.MarshalIndent(map[string][]string{"markdown": markdowns}, "", "  ")

	var b strings.Builder
	b.WriteString("You will receive multiple invoice markdowns in the incoming JSON array.\n\n")
	b.WriteString("Each element is one invoice's markdown. Parse and normalize each per the System message.\n")
	b.WriteString("Return ONLY a JSON array where each element is an object with keys \"invoice\" and \"line_items\". No extra text.\n\n")
	b.WriteString("Return only valid minified JSON. No code fences, no comments, no explanations.\n\n")
	b.WriteString("Input JSON:\n")
	b.Write(input)
	return b.String()
}
