// Package keywords holds the per-document-type field labels and synonyms
// that guide AI extraction. The catalog is built once at startup and read
// concurrently without locking; it is never mutated at runtime.
package keywords

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clarivue/claimpilot/internal/model"
)

// Catalog maps a document type to the extraction hints passed to the AI
// collaborator.
type Catalog struct {
	hints map[model.DocumentType][]string
}

// Default hint lists. Each line is a field label with the synonyms a real
// document is likely to print for it.
var defaults = map[model.DocumentType][]string{
	model.DocumentPolicy: {
		"sum_insured | Sum Insured | Sum Assured | Coverage Amount | Basic Sum Insured",
		"co_pay_percentage | Co-pay | Copayment | Co-payment Percentage",
		"deductible | Deductible | Aggregate Deductible",
		"room_rent_limit_per_day | Room Rent Limit | Room Rent Capping | Daily Room Rent",
		"ncb_bonus_percentage | No Claim Bonus | NCB | Cumulative Bonus",
		"loyalty_bonus_percentage | Loyalty Bonus | Loyalty Addition",
		"policy_number | Policy Number | Policy No",
		"policy_start_date | Policy Start Date | Period of Insurance From",
		"policy_end_date | Policy End Date | Period of Insurance To",
		"insured_name | Insured Name | Name of Insured | Proposer",
		"sub_limits | Sub-limits | Specific Limits | Capping | Category Limits",
		"exclusions | Exclusions | Not Covered | Permanent Exclusions",
	},
	model.DocumentBill: {
		"total_amount | Total Amount | Grand Total | Net Amount | Bill Amount",
		"discount | Discount | Concession | Rebate",
		"hospital_name | Hospital Name | Hospital | Provider",
		"bill_date | Bill Date | Invoice Date | Date of Discharge",
		"patient_name | Patient Name | Name of Patient",
		"line_items | Line Items | Charges | Particulars | Bill Breakup",
	},
	model.DocumentPrescription: {
		"procedure_name | Procedure | Advised Procedure | Surgery Advised | Treatment",
		"hospital_name | Hospital Name | Hospital | Clinic",
		"doctor_name | Doctor | Consultant | Physician",
		"prescription_date | Date | Prescription Date",
		"diagnosis | Diagnosis | Provisional Diagnosis | Complaint",
	},
}

// NewCatalog returns the catalog with the built-in hint lists.
func NewCatalog() *Catalog {
	hints := make(map[model.DocumentType][]string, len(defaults))
	for t, list := range defaults {
		hints[t] = append([]string(nil), list...)
	}
	return &Catalog{hints: hints}
}

// Load reads hint files from dir, one per document type (policy.txt,
// bill.txt, prescription.txt), overriding the built-in lists for any file
// present. Blank lines and lines starting with # are skipped.
func Load(dir string) (*Catalog, error) {
	c := NewCatalog()
	for _, t := range []model.DocumentType{model.DocumentPolicy, model.DocumentBill, model.DocumentPrescription} {
		path := filepath.Join(dir, string(t)+".txt")
		lines, err := readHintFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load keyword file %s: %w", path, err)
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("keyword file %s is empty", path)
		}
		c.hints[t] = lines
	}
	return c, nil
}

// Hints returns the extraction hints for a document type.
func (c *Catalog) Hints(t model.DocumentType) []string {
	return c.hints[t]
}

func readHintFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
