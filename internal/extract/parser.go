package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clarivue/claimpilot/internal/service"
)

// extractionPayload is the JSON shape the collaborator is prompted to
// return for document extraction.
type extractionPayload struct {
	Fields map[string]struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"fields"`
	LineItems []struct {
		ItemName     string `json:"item_name"`
		Amount       string `json:"amount"`
		PerDayRate   string `json:"per_day_rate"`
		Days         string `json:"days"`
		CopayPercent string `json:"item_specific_copay"`
	} `json:"line_items"`
}

// estimatePayload is the JSON shape for price estimation responses.
type estimatePayload struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Notes    string  `json:"notes"`
}

// cleanMarkdownWrapper strips ```json fences that models wrap around JSON
// despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// parseExtraction decodes a model response into a RawExtraction.
func parseExtraction(content string) (*service.RawExtraction, error) {
	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response as JSON: %w", err)
	}

	raw := &service.RawExtraction{
		Fields: make(map[string]service.RawField, len(payload.Fields)),
	}
	for name, f := range payload.Fields {
		raw.Fields[name] = service.RawField{Value: f.Value, Confidence: f.Confidence}
	}
	for _, li := range payload.LineItems {
		raw.LineItems = append(raw.LineItems, service.RawLineItem{
			Name:         li.ItemName,
			Amount:       li.Amount,
			PerDayRate:   li.PerDayRate,
			Days:         li.Days,
			CopayPercent: li.CopayPercent,
		})
	}
	return raw, nil
}

// parseEstimate decodes a price-estimate response. A zero price means the
// model could not find a reliable figure.
func parseEstimate(content string) (float64, error) {
	var payload estimatePayload
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &payload); err != nil {
		return 0, fmt.Errorf("failed to parse estimate response as JSON: %w", err)
	}
	if payload.Price <= 0 {
		return 0, fmt.Errorf("no reliable price estimate: %s", payload.Notes)
	}
	return payload.Price, nil
}

// extractionPrompt builds the instruction for one document type from its
// keyword hints.
func extractionPrompt(docType string, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the following fields from this %s document.\n\n", docType)
	b.WriteString("Fields to extract (canonical name | synonyms seen on documents):\n")
	for _, hint := range hints {
		b.WriteString("- ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString(`
Return a JSON object with this exact structure:
{
  "fields": {"<canonical_name>": {"value": "<as printed>", "confidence": <0.0-1.0>}},
  "line_items": [{"item_name": "...", "amount": "...", "per_day_rate": "...", "days": "...", "item_specific_copay": "..."}]
}

Use "N/A" for fields not present in the document. Populate line_items only
for hospital bills; when a bill has both a summary section and a detailed
breakup, extract from the detailed breakup only, never both.
Return ONLY valid JSON, no explanations.`)
	return b.String()
}

// estimatePrompt asks for a market-price estimate for a procedure.
func estimatePrompt(procedureName string) string {
	return fmt.Sprintf(`Find the current market price for the medical procedure '%s' in India.

Return ONLY a JSON object:
{"price": <estimated price in INR as a number>, "currency": "INR", "notes": "<short note>"}

If you cannot find a reliable price, return {"price": 0, "notes": "not found"}.`, procedureName)
}
