package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/clarivue/claimpilot/internal/model"
)

// Raw values the extraction collaborator uses for "nothing found". These
// normalize to an unresolved field, not to zero.
var sentinelValues = map[string]bool{
	"N/A":       true,
	"NA":        true,
	"NONE":      true,
	"NIL":       true,
	"NOT FOUND": true,
	"NULL":      true,
	"":          true,
}

// dateLayouts are the input formats accepted for date fields, tried in
// order. Indian documents mostly print day-first.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// fieldKind decides the normalized type of a field from its canonical name.
func fieldKind(name string) model.FieldKind {
	switch {
	case strings.HasSuffix(name, "_percentage") || strings.HasSuffix(name, "_percent"):
		return model.KindPercentage
	case strings.Contains(name, "date"):
		return model.KindDate
	case currencyFields[name]:
		return model.KindCurrency
	default:
		return model.KindText
	}
}

var currencyFields = map[string]bool{
	"sum_insured":             true,
	"total_amount":            true,
	"discount":                true,
	"deductible":              true,
	"room_rent_limit_per_day": true,
	"amount":                  true,
	"price":                   true,
}

// isSentinel reports whether a raw value is a "nothing found" marker.
func isSentinel(raw string) bool {
	return sentinelValues[strings.ToUpper(strings.TrimSpace(raw))]
}

// parseCurrency converts a currency string like "1,85,000", "₹10,000" or
// "Rs. 2500.50" to a float. The boolean is false when the value cannot be
// parsed deterministically.
func parseCurrency(raw string) (float64, bool) {
	if isSentinel(raw) {
		return 0, false
	}

	clean := strings.TrimSpace(raw)
	for _, token := range []string{`"`, ",", "₹", "Rs.", "Rs", "INR", "$", "%"} {
		clean = strings.ReplaceAll(clean, token, "")
	}
	clean = strings.TrimSpace(clean)

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parsePercentage converts values like "10%", "10 %" or "10" to a float.
func parsePercentage(raw string) (float64, bool) {
	if isSentinel(raw) {
		return 0, false
	}

	clean := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// parseDate tries the accepted layouts and normalizes to UTC midnight.
func parseDate(raw string) (time.Time, bool) {
	if isSentinel(raw) {
		return time.Time{}, false
	}

	clean := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseCount converts a day/unit count like "3" or "3 days" to an int.
func parseCount(raw string) (int, bool) {
	if isSentinel(raw) {
		return 0, false
	}

	clean := strings.TrimSpace(raw)
	if i := strings.IndexByte(clean, ' '); i > 0 {
		clean = clean[:i]
	}
	n, err := strconv.Atoi(clean)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// normalizeField turns a raw collaborator field into a typed ExtractedField.
// Fields that fail normalization come back marked unresolved, never dropped.
func normalizeField(name, raw string, confidence float64) model.ExtractedField {
	field := model.ExtractedField{
		Name:       name,
		RawValue:   raw,
		Confidence: confidence,
		Source:     model.SourceAIExtraction,
		Kind:       fieldKind(name),
	}

	switch field.Kind {
	case model.KindCurrency:
		if v, ok := parseCurrency(raw); ok {
			field.Number = v
		} else {
			field.Unresolved = true
		}
	case model.KindPercentage:
		if v, ok := parsePercentage(raw); ok {
			field.Number = v
		} else {
			field.Unresolved = true
		}
	case model.KindDate:
		if t, ok := parseDate(raw); ok {
			field.Date = t
		} else {
			field.Unresolved = true
		}
	default:
		if isSentinel(raw) {
			field.Unresolved = true
		} else {
			field.Text = strings.TrimSpace(raw)
		}
	}

	return field
}
