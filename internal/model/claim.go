package model

import "time"

// ReasonCode explains why a line item's payable differs from its billed
// amount.
type ReasonCode string

// Reason code constants.
const (
	ReasonSubLimit    ReasonCode = "sub_limit"
	ReasonRoomRentCap ReasonCode = "room_rent_cap"
	ReasonCopay       ReasonCode = "copay"
	ReasonExcluded    ReasonCode = "excluded"
	ReasonAIEstimated ReasonCode = "ai_estimated_price"
	ReasonUnresolved  ReasonCode = "price_unresolved"
	ReasonDeductible  ReasonCode = "deductible"
	ReasonSumInsured  ReasonCode = "sum_insured_cap"
)

// ReconciliationStatus classifies how well the extracted line items account
// for the bill total.
type ReconciliationStatus string

// Reconciliation status constants.
const (
	ReconAccurate       ReconciliationStatus = "accurate"
	ReconMinor          ReconciliationStatus = "minor_discrepancy"
	ReconOverExtracted  ReconciliationStatus = "over_extracted"
	ReconUnderExtracted ReconciliationStatus = "under_extracted"
)

// BreakdownEntry is the settlement detail for one billed line item. Every
// bill item appears in the breakdown, possibly with a zero payable and a
// reason code; items are never silently dropped.
type BreakdownEntry struct {
	Item            string       `json:"item"`
	ExclusionReason string       `json:"exclusion_reason,omitempty"`
	Reasons         []ReasonCode `json:"reasons,omitempty"`
	Billed          float64      `json:"billed"`
	AppliedCap      float64      `json:"applied_cap,omitempty"`
	Eligible        float64      `json:"eligible"`
	CopayPercent    float64      `json:"copay_percent,omitempty"`
	CopayAmount     float64      `json:"copay_amount,omitempty"`
	InsurerPays     float64      `json:"insurer_pays"`
	PatientPays     float64      `json:"patient_pays"`
	Excluded        bool         `json:"excluded,omitempty"`
	PriceEstimated  bool         `json:"price_estimated,omitempty"`
}

// ClaimResult is the settlement computed from a bill and policy factors.
// TotalBilled always equals InsurerPayable plus PatientPayable exactly:
// rounding happens once at the end of the calculation, never per line item.
type ClaimResult struct {
	ComputedAt          time.Time            `json:"computed_at"`
	Lines               []BreakdownEntry     `json:"lines"`
	Warning             string               `json:"warning,omitempty"`
	Reconciliation      ReconciliationStatus `json:"reconciliation"`
	SumInsured          SumInsuredBreakdown  `json:"sum_insured"`
	GrossBilled         float64              `json:"gross_billed"`
	Discount            float64              `json:"discount,omitempty"`
	TotalBilled         float64              `json:"total_billed"`
	TotalEligible       float64              `json:"total_eligible"`
	TotalCopay          float64              `json:"total_copay,omitempty"`
	DeductibleApplied   float64              `json:"deductible_applied,omitempty"`
	ExtractedItemsTotal float64              `json:"extracted_items_total"`
	Discrepancy         float64              `json:"discrepancy,omitempty"`
	InsurerPayable      float64              `json:"insurer_payable"`
	PatientPayable      float64              `json:"patient_payable"`
}
