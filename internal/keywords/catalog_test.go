package keywords

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clarivue/claimpilot/internal/model"
)

func TestNewCatalog_HasHintsForAllDocumentTypes(t *testing.T) {
	c := NewCatalog()

	for _, docType := range []model.DocumentType{
		model.DocumentPolicy,
		model.DocumentBill,
		model.DocumentPrescription,
	} {
		hints := c.Hints(docType)
		if len(hints) == 0 {
			t.Errorf("no hints for document type %q", docType)
		}
	}
}

func TestNewCatalog_PolicyHintsCoverMandatoryFields(t *testing.T) {
	c := NewCatalog()
	joined := strings.Join(c.Hints(model.DocumentPolicy), "\n")

	for _, want := range []string{"sum_insured", "co_pay_percentage", "exclusions"} {
		if !strings.Contains(joined, want) {
			t.Errorf("policy hints missing %q", want)
		}
	}
}

func TestLoad_OverridesFromFiles(t *testing.T) {
	dir := t.TempDir()
	content := "procedure_name | Procedure\n\n# comment line\nhospital_name | Hospital\n"
	if err := os.WriteFile(filepath.Join(dir, "prescription.txt"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write hint file: %v", err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	hints := c.Hints(model.DocumentPrescription)
	if len(hints) != 2 {
		t.Fatalf("expected 2 hints after override, got %d: %v", len(hints), hints)
	}

	// Types without an override file keep built-in hints.
	if len(c.Hints(model.DocumentBill)) == 0 {
		t.Error("bill hints lost after partial override")
	}
}

func TestLoad_EmptyFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bill.txt"), []byte("\n# only a comment\n"), 0o600); err != nil {
		t.Fatalf("failed to write hint file: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected error for empty keyword file, got nil")
	}
}
