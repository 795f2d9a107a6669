// Package extract turns unstructured claim documents into typed field data
// using an external AI document-understanding collaborator.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/keywords"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// mandatoryFields lists the fields a document must resolve before the
// session state machine will accept it.
var mandatoryFields = map[model.DocumentType][]string{
	model.DocumentPolicy:       {"sum_insured"},
	model.DocumentBill:         {"total_amount"},
	model.DocumentPrescription: {"procedure_name"},
}

// IncompleteError reports which mandatory fields were missing or failed
// normalization. It unwraps to common.ErrExtractionIncomplete.
type IncompleteError struct {
	DocType model.DocumentType
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s extraction incomplete: could not read %s",
		e.DocType, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Unwrap() error {
	return common.ErrExtractionIncomplete
}

// FieldExtractor invokes the AI collaborator with the keyword catalog for a
// document type and normalizes the returned fields.
type FieldExtractor struct {
	ai        service.DocumentAI
	catalog   *keywords.Catalog
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// NewFieldExtractor creates a field extractor backed by the given AI
// collaborator. Collaborator calls are retried once with backoff before the
// extraction fails wholesale.
func NewFieldExtractor(ai service.DocumentAI, catalog *keywords.Catalog, logger *slog.Logger) *FieldExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldExtractor{
		ai:      ai,
		catalog: catalog,
		logger:  logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 500 * time.Millisecond,
		},
	}
}

// Extract reads one document. The returned DocumentData carries every field
// the collaborator reported, with failed normalizations marked unresolved.
// An error is returned when the collaborator call fails (wraps
// common.ErrTransport) or a mandatory field is missing or unresolved
// (wraps common.ErrExtractionIncomplete).
func (e *FieldExtractor) Extract(ctx context.Context, doc model.Document, docType model.DocumentType) (*model.DocumentData, error) {
	hints := e.catalog.Hints(docType)
	if len(hints) == 0 {
		return nil, fmt.Errorf("%w: no keyword hints for document type %s", common.ErrInvalidConfig, docType)
	}

	var raw *service.RawExtraction
	err := common.WithRetry(ctx, func() error {
		var callErr error
		raw, callErr = e.ai.ExtractFields(ctx, doc, docType, hints)
		return callErr
	}, e.retryOpts)
	if err != nil {
		e.logger.Error("document extraction failed",
			"document_type", docType,
			"filename", doc.Filename,
			"error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	data := &model.DocumentData{
		Type:        docType,
		Filename:    doc.Filename,
		Fields:      make(map[string]model.ExtractedField, len(raw.Fields)),
		ExtractedAt: time.Now().UTC(),
	}

	for name, rf := range raw.Fields {
		canonical := canonicalFieldName(name)
		data.Fields[canonical] = normalizeField(canonical, rf.Value, rf.Confidence)
	}

	if docType == model.DocumentBill {
		data.LineItems, data.DuplicatesDropped = normalizeLineItems(raw.LineItems)
	}

	if missing := e.missingMandatory(data); len(missing) > 0 {
		return nil, &IncompleteError{DocType: docType, Missing: missing}
	}

	e.logger.Info("document extracted",
		"document_type", docType,
		"fields", len(data.Fields),
		"line_items", len(data.LineItems),
		"unresolved", len(data.UnresolvedFields()))

	return data, nil
}

// missingMandatory returns the mandatory fields that are absent or
// unresolved, plus the bill-specific requirement of at least one line item.
func (e *FieldExtractor) missingMandatory(data *model.DocumentData) []string {
	var missing []string
	for _, name := range mandatoryFields[data.Type] {
		f, ok := data.Fields[name]
		if !ok || f.Unresolved {
			missing = append(missing, name)
		}
	}
	if data.Type == model.DocumentBill && len(data.LineItems) == 0 {
		missing = append(missing, "line_items")
	}
	sort.Strings(missing)
	return missing
}

// canonicalFieldName lowercases and underscores a collaborator field name so
// "Sum Insured" and "sum_insured" land on the same key.
func canonicalFieldName(name string) string {
	clean := strings.ToLower(strings.TrimSpace(name))
	clean = strings.ReplaceAll(clean, " ", "_")
	clean = strings.ReplaceAll(clean, "-", "_")
	return clean
}

// normalizeLineItems parses raw line items and drops repeated item names,
// keeping the first occurrence of each.
func normalizeLineItems(raw []service.RawLineItem) ([]model.LineItem, int) {
	var items []model.LineItem
	seen := make(map[string]bool, len(raw))
	dropped := 0

	for _, ri := range raw {
		name := strings.TrimSpace(ri.Name)
		if name == "" {
			continue
		}
		key := strings.ToUpper(name)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true

		item := model.LineItem{Name: name}
		if v, ok := parseCurrency(ri.Amount); ok {
			item.Amount = v
		}
		if v, ok := parseCurrency(ri.PerDayRate); ok {
			item.PerDayRate = v
		}
		if n, ok := parseCount(ri.Days); ok {
			item.Days = n
		}
		if v, ok := parsePercentage(ri.CopayPercent); ok {
			item.CopayPercent = v
			item.HasCopay = true
		}
		items = append(items, item)
	}

	return items, dropped
}

// IsIncomplete reports whether err is an extraction-incomplete failure.
func IsIncomplete(err error) bool {
	return errors.Is(err, common.ErrExtractionIncomplete)
}
