// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/clarivue/claimpilot/internal/model"
)

// SessionFilter defines filtering options for session queries.
type SessionFilter struct {
	Status model.Status
	Limit  int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Session operations
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)

	// Reference price operations
	PriceEntries(ctx context.Context, source string) ([]model.PriceEntry, error)
	SavePriceEntry(ctx context.Context, record *model.PriceRecord) error
	ListPriceRecords(ctx context.Context, source string) ([]model.PriceRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RawField is one field as returned by the AI extraction collaborator,
// before normalization. Confidence is 0 when the collaborator did not
// report one.
type RawField struct {
	Value      string
	Confidence float64
}

// RawLineItem is one billed charge as returned by the AI extraction
// collaborator for hospital bills. Values are kept as strings so a single
// normalization path handles currency and count parsing.
type RawLineItem struct {
	Name         string
	Amount       string
	PerDayRate   string
	Days         string
	CopayPercent string
}

// RawExtraction is the unnormalized output of one AI extraction call.
type RawExtraction struct {
	Fields    map[string]RawField
	LineItems []RawLineItem
}

// DocumentAI is the external AI document-understanding collaborator. It is
// a black box to the core: implementations call a hosted model, tests
// substitute a deterministic fake.
type DocumentAI interface {
	// ExtractFields reads a document and returns field values guided by the
	// keyword hints for the document type.
	ExtractFields(ctx context.Context, doc model.Document, docType model.DocumentType, keywordHints []string) (*RawExtraction, error)
	// EstimatePrice estimates the market price of a medical procedure when no
	// reference source has it.
	EstimatePrice(ctx context.Context, procedureName string) (float64, error)
}

// PriceSource is one ranked reference source of procedure prices. Sources
// are read-only at runtime and safe for concurrent use.
type PriceSource interface {
	Name() string
	Entries(ctx context.Context) ([]model.PriceEntry, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
