// Package match resolves free-text procedure and item names to canonical
// priced entries across ranked reference sources.
package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// DefaultThreshold is the acceptance threshold for a similarity score. It is
// a starting point, not a constant of nature: deployments tune it through
// configuration.
const DefaultThreshold = 0.75

// PriceEstimator is the AI fallback used when no reference source clears
// the threshold.
type PriceEstimator interface {
	EstimatePrice(ctx context.Context, procedureName string) (float64, error)
}

// Config holds configuration options for the matcher.
type Config struct {
	Threshold float64
}

// Matcher iterates price sources in rank order and returns the first best
// match that clears the acceptance threshold. Resolution is deterministic:
// for fixed inputs and fixed reference data the same candidate always wins.
type Matcher struct {
	estimator PriceEstimator
	logger    *slog.Logger
	sources   []service.PriceSource
	threshold float64
}

// New creates a matcher over the given sources, ordered most-trusted first.
// estimator may be nil, in which case unresolved queries fail instead of
// falling back.
func New(cfg Config, sources []service.PriceSource, estimator PriceEstimator, logger *slog.Logger) *Matcher {
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		sources:   sources,
		estimator: estimator,
		threshold: threshold,
		logger:    logger,
	}
}

// ResolvePrice resolves a free-text name to a priced candidate. Sources are
// consulted in rank order; the first whose best match clears the threshold
// wins. When none does, the price comes from the AI estimator with the
// Estimated flag set, so callers can surface "AI-estimated" to the user.
func (m *Matcher) ResolvePrice(ctx context.Context, queryText string) (model.PriceCandidate, error) {
	if queryText == "" {
		return model.PriceCandidate{}, fmt.Errorf("query text cannot be empty")
	}

	for rank, source := range m.sources {
		entries, err := source.Entries(ctx)
		if err != nil {
			m.logger.Warn("price source unavailable, trying next",
				"source", source.Name(),
				"error", err)
			continue
		}

		best, score, ok := bestMatch(queryText, entries)
		if !ok {
			continue
		}

		m.logger.Debug("price source best match",
			"source", source.Name(),
			"query", queryText,
			"matched", best.Name,
			"score", score)

		if score >= m.threshold {
			return model.PriceCandidate{
				QueryText:       queryText,
				MatchedName:     best.Name,
				Price:           best.Price,
				Source:          source.Name(),
				SourceRank:      rank + 1,
				SimilarityScore: score,
			}, nil
		}
	}

	if m.estimator == nil {
		return model.PriceCandidate{}, fmt.Errorf("no reference source matched %q and no estimator configured", queryText)
	}

	price, err := m.estimator.EstimatePrice(ctx, queryText)
	if err != nil {
		return model.PriceCandidate{}, fmt.Errorf("price estimate for %q failed: %w", queryText, err)
	}

	m.logger.Info("price resolved via AI estimate",
		"query", queryText,
		"price", price)

	return model.PriceCandidate{
		QueryText:   queryText,
		MatchedName: queryText,
		Price:       price,
		Source:      model.SourceAIEstimate,
		SourceRank:  len(m.sources) + 1,
		Estimated:   true,
	}, nil
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// bestMatch scans one source's entries for the highest-scoring candidate.
// Ties break by shorter matched name, then alphabetically, so resolution
// never depends on entry order.
func bestMatch(query string, entries []model.PriceEntry) (model.PriceEntry, float64, bool) {
	var best model.PriceEntry
	bestScore := -1.0
	found := false

	for _, entry := range entries {
		score := Similarity(query, entry.Name)
		if !found || betterCandidate(score, entry, bestScore, best) {
			best = entry
			bestScore = score
			found = true
		}
	}

	return best, bestScore, found
}

func betterCandidate(score float64, entry model.PriceEntry, bestScore float64, best model.PriceEntry) bool {
	if score != bestScore {
		return score > bestScore
	}
	if len(entry.Name) != len(best.Name) {
		return len(entry.Name) < len(best.Name)
	}
	return entry.Name < best.Name
}
