package engine

import (
	"context"

	"github.com/clarivue/claimpilot/internal/model"
)

// Extractor turns an uploaded document into normalized field data.
type Extractor interface {
	Extract(ctx context.Context, doc model.Document, docType model.DocumentType) (*model.DocumentData, error)
}

// Calculator computes a claim settlement from an extracted bill and policy
// factors.
type Calculator interface {
	Calculate(ctx context.Context, bill *model.DocumentData, factors *model.PolicyFactors) (*model.ClaimResult, error)
}

// PriceResolver resolves a free-text procedure name to a priced candidate.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, queryText string) (model.PriceCandidate, error)
}
