// Package model defines the core domain models used throughout the application.
package model

import "time"

// Status tracks where a session is in the claim assessment flow.
type Status string

// Session status constants. The flow is policy-first: billing documents are
// refused until the policy bond has been parsed, because coverage factors are
// required to interpret any bill.
const (
	StatusAwaitingPolicy           Status = "awaiting_policy"
	StatusAwaitingDocumentChoice   Status = "awaiting_document_choice"
	StatusAwaitingBill             Status = "awaiting_bill"
	StatusAwaitingPrescription     Status = "awaiting_prescription"
	StatusAwaitingBothBill         Status = "awaiting_both_bill"
	StatusAwaitingBothPrescription Status = "awaiting_both_prescription"
	StatusCompleted                Status = "completed"
)

// DocumentChoice is the user's selection of what to process after the policy
// bond has been parsed.
type DocumentChoice string

// Document choice constants.
const (
	ChoiceBill         DocumentChoice = "bill"
	ChoicePrescription DocumentChoice = "prescription"
	ChoiceBoth         DocumentChoice = "both"
)

// Session is the persisted state of one claim assessment conversation. It is
// reconstructed from storage on every turn; no execution state survives
// between turns.
type Session struct {
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
	Documents   map[DocumentType]*DocumentData `json:"documents,omitempty"`
	Factors     *PolicyFactors                 `json:"factors,omitempty"`
	Claim       *ClaimResult                   `json:"claim,omitempty"`
	PriceLookup *PriceLookup                   `json:"price_lookup,omitempty"`
	ID          string                         `json:"id"`
	Status      Status                         `json:"status"`
	Choice      DocumentChoice                 `json:"choice,omitempty"`
}

// NewSession returns a session in the initial state with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Status:    StatusAwaitingPolicy,
		Documents: make(map[DocumentType]*DocumentData),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Document returns the extracted data for a document type, or nil.
func (s *Session) Document(t DocumentType) *DocumentData {
	if s.Documents == nil {
		return nil
	}
	return s.Documents[t]
}

// SetDocument stores extracted data for a document type. Data for a type is
// immutable once set; repeated extraction for the same type within a session
// only happens through an explicit reset.
func (s *Session) SetDocument(d *DocumentData) {
	if s.Documents == nil {
		s.Documents = make(map[DocumentType]*DocumentData)
	}
	s.Documents[d.Type] = d
}

// Reset clears accumulated data and returns the session to the initial state.
func (s *Session) Reset() {
	s.Status = StatusAwaitingPolicy
	s.Choice = ""
	s.Documents = make(map[DocumentType]*DocumentData)
	s.Factors = nil
	s.Claim = nil
	s.PriceLookup = nil
	s.UpdatedAt = time.Now().UTC()
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
