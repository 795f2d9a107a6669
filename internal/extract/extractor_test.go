package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/keywords"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// fakeAI is a deterministic DocumentAI for extractor tests.
type fakeAI struct {
	extraction *service.RawExtraction
	err        error
	calls      int
}

func (f *fakeAI) ExtractFields(_ context.Context, _ model.Document, _ model.DocumentType, _ []string) (*service.RawExtraction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

func (f *fakeAI) EstimatePrice(_ context.Context, _ string) (float64, error) {
	return 0, errors.New("not used")
}

func testDoc() model.Document {
	return model.Document{Filename: "policy.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
}

func TestExtract_NormalizesFields(t *testing.T) {
	ai := &fakeAI{extraction: &service.RawExtraction{
		Fields: map[string]service.RawField{
			"Sum Insured":       {Value: "₹5,00,000", Confidence: 0.95},
			"co_pay_percentage": {Value: "10%", Confidence: 0.9},
			"insured_name":      {Value: "A. Sharma", Confidence: 0.8},
		},
	}}
	extractor := NewFieldExtractor(ai, keywords.NewCatalog(), nil)

	data, err := extractor.Extract(context.Background(), testDoc(), model.DocumentPolicy)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if got := data.Number("sum_insured"); got != 500000 {
		t.Errorf("sum_insured = %v, want 500000", got)
	}
	if got := data.Number("co_pay_percentage"); got != 10 {
		t.Errorf("co_pay_percentage = %v, want 10", got)
	}
	if got := data.Text("insured_name"); got != "A. Sharma" {
		t.Errorf("insured_name = %q", got)
	}
}

func TestExtract_UnresolvedMandatoryFailsIncomplete(t *testing.T) {
	ai := &fakeAI{extraction: &service.RawExtraction{
		Fields: map[string]service.RawField{
			"sum_insured": {Value: "N/A"},
		},
	}}
	extractor := NewFieldExtractor(ai, keywords.NewCatalog(), nil)

	_, err := extractor.Extract(context.Background(), testDoc(), model.DocumentPolicy)
	if !errors.Is(err, common.ErrExtractionIncomplete) {
		t.Fatalf("expected ErrExtractionIncomplete, got %v", err)
	}

	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatal("error is not an IncompleteError")
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "sum_insured" {
		t.Errorf("missing = %v, want [sum_insured]", incomplete.Missing)
	}
}

func TestExtract_BillRequiresLineItems(t *testing.T) {
	ai := &fakeAI{extraction: &service.RawExtraction{
		Fields: map[string]service.RawField{
			"total_amount": {Value: "50000"},
		},
	}}
	extractor := NewFieldExtractor(ai, keywords.NewCatalog(), nil)

	_, err := extractor.Extract(context.Background(), testDoc(), model.DocumentBill)
	if !errors.Is(err, common.ErrExtractionIncomplete) {
		t.Fatalf("expected ErrExtractionIncomplete, got %v", err)
	}
}

func TestExtract_CollaboratorFailureIsTransport(t *testing.T) {
	ai := &fakeAI{err: errors.New("connection refused")}
	extractor := NewFieldExtractor(ai, keywords.NewCatalog(), nil)

	_, err := extractor.Extract(context.Background(), testDoc(), model.DocumentPolicy)
	if !errors.Is(err, common.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if ai.calls != 2 {
		t.Errorf("collaborator called %d times, want 2 (one retry)", ai.calls)
	}
}

func TestExtract_DeduplicatesLineItems(t *testing.T) {
	ai := &fakeAI{extraction: &service.RawExtraction{
		Fields: map[string]service.RawField{
			"total_amount": {Value: "3000"},
		},
		LineItems: []service.RawLineItem{
			{Name: "Room Charges", Amount: "1,000", Days: "2", PerDayRate: "500"},
			{Name: "ROOM CHARGES", Amount: "1000"},
			{Name: "Pharmacy", Amount: "2000"},
		},
	}}
	extractor := NewFieldExtractor(ai, keywords.NewCatalog(), nil)

	data, err := extractor.Extract(context.Background(), testDoc(), model.DocumentBill)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if len(data.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(data.LineItems))
	}
	if data.DuplicatesDropped != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", data.DuplicatesDropped)
	}
	first := data.LineItems[0]
	if first.Amount != 1000 || first.Days != 2 || first.PerDayRate != 500 {
		t.Errorf("first line item not normalized: %+v", first)
	}
}
