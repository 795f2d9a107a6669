package model

import "time"

// DocumentType identifies which kind of claim document a file is.
type DocumentType string

// Document type constants.
const (
	DocumentPolicy       DocumentType = "policy"
	DocumentBill         DocumentType = "bill"
	DocumentPrescription DocumentType = "prescription"
)

// Document is an uploaded file as received from the transport layer.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FieldKind is the normalized type of an extracted field value.
type FieldKind string

// Field kind constants.
const (
	KindCurrency   FieldKind = "currency"
	KindDate       FieldKind = "date"
	KindPercentage FieldKind = "percentage"
	KindText       FieldKind = "text"
)

// SourceAIExtraction marks fields produced by the AI document collaborator.
const SourceAIExtraction = "ai-extraction"

// ExtractedField is one field pulled out of a document. RawValue is kept as
// returned by the extraction collaborator; the normalized value lives in
// Number, Date or Text depending on Kind. A field whose raw value could not
// be normalized deterministically is marked Unresolved rather than dropped,
// so callers can report "could not read X" instead of treating it as zero.
type ExtractedField struct {
	Date       time.Time `json:"date,omitempty"`
	Name       string    `json:"name"`
	RawValue   string    `json:"raw_value"`
	Text       string    `json:"text,omitempty"`
	Source     string    `json:"source"`
	Kind       FieldKind `json:"kind"`
	Number     float64   `json:"number,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Unresolved bool      `json:"unresolved,omitempty"`
}

// LineItem is one billed charge from a hospital bill.
type LineItem struct {
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	PerDayRate   float64 `json:"per_day_rate,omitempty"`
	Days         int     `json:"days,omitempty"`
	CopayPercent float64 `json:"copay_percent,omitempty"`
	HasCopay     bool    `json:"has_copay,omitempty"`
}

// DocumentData holds everything extracted from one document. Fields maps the
// canonical field name to its extracted value; LineItems is populated for
// bills only.
type DocumentData struct {
	ExtractedAt       time.Time                 `json:"extracted_at"`
	Fields            map[string]ExtractedField `json:"fields"`
	Type              DocumentType              `json:"type"`
	Filename          string                    `json:"filename,omitempty"`
	LineItems         []LineItem                `json:"line_items,omitempty"`
	DuplicatesDropped int                       `json:"duplicates_dropped,omitempty"`
}

// Field returns the named field and whether it is present.
func (d *DocumentData) Field(name string) (ExtractedField, bool) {
	f, ok := d.Fields[name]
	return f, ok
}

// Number returns the normalized numeric value of a field, or 0 if the field
// is absent or unresolved.
func (d *DocumentData) Number(name string) float64 {
	f, ok := d.Fields[name]
	if !ok || f.Unresolved {
		return 0
	}
	return f.Number
}

// Text returns the normalized text value of a field, or "" if absent.
func (d *DocumentData) Text(name string) string {
	f, ok := d.Fields[name]
	if !ok || f.Unresolved {
		return ""
	}
	return f.Text
}

// UnresolvedFields lists the names of fields that failed normalization.
func (d *DocumentData) UnresolvedFields() []string {
	var names []string
	for name, f := range d.Fields {
		if f.Unresolved {
			names = append(names, name)
		}
	}
	return names
}
