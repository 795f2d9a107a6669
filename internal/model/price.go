package model

import "time"

// Price source names in rank order of trust.
const (
	SourceReference  = "reference"
	SourceInternal   = "internal"
	SourceAIEstimate = "ai-estimate"
)

// PriceCandidate is the result of resolving a free-text procedure or item
// name against the ranked reference sources. Estimated is true when no
// reference source cleared the similarity threshold and the price came from
// the AI fallback; callers surface that flag to the end user.
type PriceCandidate struct {
	QueryText       string  `json:"query_text"`
	MatchedName     string  `json:"matched_name"`
	Source          string  `json:"source"`
	Price           float64 `json:"price"`
	SourceRank      int     `json:"source_rank"`
	SimilarityScore float64 `json:"similarity_score"`
	Estimated       bool    `json:"estimated,omitempty"`
}

// PriceEntry is one row of a reference price table.
type PriceEntry struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// PriceRecord is a stored reference price with provenance.
type PriceRecord struct {
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	HospitalName string    `json:"hospital_name,omitempty"`
	Origin       string    `json:"origin,omitempty"`
	Source       string    `json:"source"`
	Price        float64   `json:"price"`
	ID           int64     `json:"id"`
}

// PriceLookup is the outcome of the prescription path: the extracted
// procedure, the resolved price and where it came from.
type PriceLookup struct {
	ProcedureName string         `json:"procedure_name"`
	HospitalName  string         `json:"hospital_name,omitempty"`
	Candidate     PriceCandidate `json:"candidate"`
}
