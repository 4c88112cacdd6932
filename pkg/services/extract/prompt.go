package extract

import (
	"fmt"
	"strconv"
	"strings"

	"soa-extract/pkg/models"
)

// FallbackRule is used when the caller supplied no transformation rules
const FallbackRule = "Extract text exactly as it appears."

const preamble = `I am acting as a strict spatial data extractor and transformer.

STEP 1: SPATIAL EXTRACTION
Scan the document for a table. Extract data based strictly on these vertical column definitions:
`

const spatialNote = `* CRITICAL: Ignore column headers text. Trust the box location implicitly. If box is on 'Balance' column, extract 'Balance'.

STEP 2: APPLY TRANSFORMATION RULES
After extraction, clean/format the data using these specific rules:
`

const outputFormat = `

OUTPUT FORMAT:
Return ONLY a raw JSON object with a key "rows".
{
    "rows": [
        { "invoiceNo": "...", "dueDate": "...", "dueAmount": "..." }
    ]
}
`

// BuildSpatialPrompt describes each box as a vertical column, one line per
// box in input order. Only the horizontal band (left, width) is described.
func BuildSpatialPrompt(boxes []models.BoundingBox) string {
	var b strings.Builder
	for _, box := range boxes {
		fmt.Fprintf(&b, "- COLUMN '%s': Vertical column located at Left: %s, Width: %s.\n",
			box.Label, formatCoord(box.Left), formatCoord(box.Width))
	}
	return b.String()
}

// BuildTransformPrompt lists the non-empty field rules in fixed field order,
// or the fallback instruction when there are none.
func BuildTransformPrompt(rules models.FieldPrompts) string {
	if rules.Empty() {
		return FallbackRule
	}

	var b strings.Builder
	if rules.InvoiceNo != "" {
		fmt.Fprintf(&b, "- INVOICE NO RULE: %s\n", rules.InvoiceNo)
	}
	if rules.DueDate != "" {
		fmt.Fprintf(&b, "- DUE DATE RULE: %s\n", rules.DueDate)
	}
	if rules.DueAmount != "" {
		fmt.Fprintf(&b, "- DUE AMOUNT RULE: %s\n", rules.DueAmount)
	}
	return b.String()
}

// BuildPrompt assembles the full instruction sent alongside the image
func BuildPrompt(req models.ExtractionRequest) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(BuildSpatialPrompt(req.UserBoxes))
	b.WriteString(spatialNote)
	b.WriteString(BuildTransformPrompt(req.FieldPrompts))
	b.WriteString(outputFormat)
	return b.String()
}

// formatCoord prints whole numbers with a trailing .0 so 10 reads as 10.0
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") && !strings.ContainsAny(s, "IN") {
		s += ".0"
	}
	return s
}
