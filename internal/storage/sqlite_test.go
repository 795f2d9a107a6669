package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return storage
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	session := model.NewSession("abc-123")
	session.SetDocument(&model.DocumentData{
		Type: model.DocumentPolicy,
		Fields: map[string]model.ExtractedField{
			"sum_insured": {Name: "sum_insured", Kind: model.KindCurrency, Number: 500000, RawValue: "₹5,00,000"},
		},
	})
	session.Factors = &model.PolicyFactors{
		SumInsured:   500000,
		CopayPercent: 10,
		SubLimits: []model.SubLimit{
			{Category: "cataract surgery", Type: model.LimitAbsolute, Value: 30000},
		},
		Exclusions: []model.Exclusion{{Item: "cosmetic surgery", Reason: "not covered"}},
	}
	session.Status = model.StatusAwaitingDocumentChoice

	if err := storage.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	loaded, err := storage.GetSession(ctx, "abc-123")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if loaded.Status != model.StatusAwaitingDocumentChoice {
		t.Errorf("status = %s, want %s", loaded.Status, model.StatusAwaitingDocumentChoice)
	}
	policy := loaded.Document(model.DocumentPolicy)
	if policy == nil {
		t.Fatal("expected the policy document to round-trip")
	}
	if got := policy.Number("sum_insured"); got != 500000 {
		t.Errorf("sum_insured = %.2f, want 500000", got)
	}
	if loaded.Factors == nil || len(loaded.Factors.SubLimits) != 1 {
		t.Fatalf("factors did not round-trip: %+v", loaded.Factors)
	}
	if loaded.Factors.SubLimits[0].Category != "cataract surgery" {
		t.Errorf("sub-limit category = %q", loaded.Factors.SubLimits[0].Category)
	}

	// Completing the session persists the claim.
	loaded.Status = model.StatusCompleted
	loaded.Claim = &model.ClaimResult{
		ComputedAt:     time.Now().UTC(),
		TotalBilled:    50000,
		InsurerPayable: 27000,
		PatientPayable: 23000,
		Lines: []model.BreakdownEntry{
			{Item: "Cataract Surgery", Billed: 50000, Eligible: 30000, Reasons: []model.ReasonCode{model.ReasonSubLimit}},
		},
	}
	if err := storage.SaveSession(ctx, loaded); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	reloaded, err := storage.GetSession(ctx, "abc-123")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if reloaded.Claim == nil || reloaded.Claim.InsurerPayable != 27000 {
		t.Errorf("claim did not round-trip: %+v", reloaded.Claim)
	}
	if len(reloaded.Claim.Lines) != 1 || reloaded.Claim.Lines[0].Reasons[0] != model.ReasonSubLimit {
		t.Errorf("breakdown did not round-trip: %+v", reloaded.Claim.Lines)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.GetSession(context.Background(), "missing")
	if !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSaveSessionNotFound(t *testing.T) {
	storage := setupTestStorage(t)

	session := model.NewSession("never-created")
	err := storage.SaveSession(context.Background(), session)
	if !errors.Is(err, common.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessionsFilter(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	for _, id := range []string{"s1", "s2", "s3"} {
		session := model.NewSession(id)
		if id == "s3" {
			session.Status = model.StatusCompleted
		}
		if err := storage.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", id, err)
		}
	}

	all, err := storage.ListSessions(ctx, service.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("sessions = %d, want 3", len(all))
	}

	completed, err := storage.ListSessions(ctx, service.SessionFilter{Status: model.StatusCompleted})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "s3" {
		t.Errorf("completed sessions = %+v, want just s3", completed)
	}

	limited, err := storage.ListSessions(ctx, service.SessionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited sessions = %d, want 2", len(limited))
	}
}

func TestPriceEntriesUpsert(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	record := &model.PriceRecord{
		Source: model.SourceInternal,
		Name:   "Total Knee Replacement",
		Price:  180000,
		Origin: model.SourceAIEstimate,
	}
	if err := storage.SavePriceEntry(ctx, record); err != nil {
		t.Fatalf("SavePriceEntry() error = %v", err)
	}

	// Saving the same name again replaces the price instead of piling up.
	record.Price = 195000
	if err := storage.SavePriceEntry(ctx, record); err != nil {
		t.Fatalf("SavePriceEntry() upsert error = %v", err)
	}

	entries, err := storage.PriceEntries(ctx, model.SourceInternal)
	if err != nil {
		t.Fatalf("PriceEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Price != 195000 {
		t.Errorf("price = %.2f, want 195000", entries[0].Price)
	}

	records, err := storage.ListPriceRecords(ctx, model.SourceInternal)
	if err != nil {
		t.Fatalf("ListPriceRecords() error = %v", err)
	}
	if len(records) != 1 || records[0].Origin != model.SourceAIEstimate {
		t.Errorf("records = %+v", records)
	}

	// Sources are isolated.
	other, err := storage.PriceEntries(ctx, model.SourceReference)
	if err != nil {
		t.Fatalf("PriceEntries() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("reference entries = %d, want 0", len(other))
	}
}

func TestPriceEntriesOrderedByName(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	for _, name := range []string{"Zoledronic Infusion", "Appendectomy", "MRI Brain Scan"} {
		err := storage.SavePriceEntry(ctx, &model.PriceRecord{
			Source: model.SourceReference,
			Name:   name,
			Price:  1000,
		})
		if err != nil {
			t.Fatalf("SavePriceEntry(%s) error = %v", name, err)
		}
	}

	entries, err := storage.PriceEntries(ctx, model.SourceReference)
	if err != nil {
		t.Fatalf("PriceEntries() error = %v", err)
	}
	want := []string{"Appendectomy", "MRI Brain Scan", "Zoledronic Infusion"}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Name, name)
		}
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	if err := storage.CreateSession(ctx, nil); err == nil {
		t.Error("CreateSession(nil) should fail")
	}
	if err := storage.CreateSession(ctx, &model.Session{}); err == nil {
		t.Error("CreateSession with empty id should fail")
	}
	if _, err := storage.GetSession(ctx, "  "); err == nil {
		t.Error("GetSession with blank id should fail")
	}
	if err := storage.SavePriceEntry(ctx, &model.PriceRecord{Source: "x", Name: "y"}); err == nil {
		t.Error("SavePriceEntry with zero price should fail")
	}
	if err := storage.SavePriceEntry(ctx, &model.PriceRecord{Name: "y", Price: 10}); err == nil {
		t.Error("SavePriceEntry without source should fail")
	}
	if _, err := storage.PriceEntries(ctx, ""); err == nil {
		t.Error("PriceEntries without source should fail")
	}
}
