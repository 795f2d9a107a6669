// Package claim applies policy coverage factors to billed line items and
// produces a settlement breakdown.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/clarivue/claimpilot/internal/match"
	"github.com/clarivue/claimpilot/internal/model"
)

// Reconciliation tolerances, as percentages of the net bill amount.
const (
	reconAccuratePct = 1.0
	reconMinorPct    = 5.0
)

// Config holds configuration options for the calculator.
type Config struct {
	// CategoryMatchThreshold is the similarity score a sub-limit category or
	// exclusion entry needs to attach to a bill item.
	CategoryMatchThreshold float64
}

// Calculator computes claim settlements. Prices for items the bill lists
// without an amount are resolved through the fuzzy matcher.
type Calculator struct {
	matcher   *match.Matcher
	logger    *slog.Logger
	threshold float64
}

// New creates a calculator. matcher may be nil when every line item carries
// an explicit billed amount.
func New(matcher *match.Matcher, cfg Config, logger *slog.Logger) *Calculator {
	threshold := cfg.CategoryMatchThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = match.DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		matcher:   matcher,
		threshold: threshold,
		logger:    logger,
	}
}

// Calculate produces the settlement for an extracted bill under the given
// policy factors. Every line item appears in the breakdown; no error class
// drops an item. All arithmetic is unrounded until the single rounding pass
// at the end, so TotalBilled always equals InsurerPayable plus
// PatientPayable to the paisa.
func (c *Calculator) Calculate(ctx context.Context, bill *model.DocumentData, factors *model.PolicyFactors) (*model.ClaimResult, error) {
	if bill == nil || bill.Type != model.DocumentBill {
		return nil, fmt.Errorf("calculate requires an extracted bill document")
	}
	if factors == nil {
		return nil, fmt.Errorf("calculate requires policy factors")
	}
	if len(bill.LineItems) == 0 {
		return nil, fmt.Errorf("bill has no line items")
	}

	si := factors.EffectiveSumInsured()
	gross := bill.Number("total_amount")
	discount := bill.Number("discount")
	net := gross - discount

	roomFactor := roomRentFactor(bill.LineItems, factors.RoomRentCapPerDay)

	result := &model.ClaimResult{
		ComputedAt: time.Now().UTC(),
		SumInsured: si,
		Discount:   discount,
	}

	var totalEligible, totalCopay, itemsTotal float64

	for _, item := range bill.LineItems {
		entry, err := c.settleItem(ctx, item, factors, si.Effective, roomFactor)
		if err != nil {
			return nil, err
		}
		itemsTotal += entry.Billed
		totalEligible += entry.Eligible
		totalCopay += entry.CopayAmount
		result.Lines = append(result.Lines, entry)
	}

	if net <= 0 {
		net = itemsTotal
	}

	insurer := totalEligible - totalCopay

	deductible := math.Min(factors.Deductible, insurer)
	if deductible > 0 {
		insurer -= deductible
	}

	var warnings []string

	// Reconcile extracted items against the printed bill total. Missing
	// amounts land on the patient side via the final subtraction; doubled-up
	// extraction scales the insurer share down proportionally.
	discrepancy := itemsTotal - net
	discrepancyPct := 0.0
	if net > 0 {
		discrepancyPct = math.Abs(discrepancy) / net * 100
	}
	switch {
	case discrepancyPct <= reconAccuratePct:
		result.Reconciliation = model.ReconAccurate
	case discrepancyPct <= reconMinorPct:
		result.Reconciliation = model.ReconMinor
		warnings = append(warnings, fmt.Sprintf(
			"extracted items total %.2f differs from bill total %.2f by %.1f%%",
			itemsTotal, net, discrepancyPct))
	case discrepancy > 0:
		result.Reconciliation = model.ReconOverExtracted
		scale := net / itemsTotal
		insurer *= scale
		warnings = append(warnings, fmt.Sprintf(
			"possible double counting: items total %.2f exceeds bill total %.2f, payable scaled by %.3f",
			itemsTotal, net, scale))
	default:
		result.Reconciliation = model.ReconUnderExtracted
		warnings = append(warnings, fmt.Sprintf(
			"incomplete extraction: items total %.2f but bill total is %.2f, missing amount shifted to patient",
			itemsTotal, net))
	}

	if insurer > si.Effective {
		insurer = si.Effective
		warnings = append(warnings, fmt.Sprintf(
			"insurer payable capped at effective sum insured %.2f", si.Effective))
	}
	if insurer > net {
		insurer = net
	}
	if insurer < 0 {
		insurer = 0
	}

	// Single rounding pass. Working in integer paise keeps the split exact:
	// patient payable is defined as the remainder, never rounded separately.
	netPaise := math.Round(net * 100)
	insurerPaise := math.Round(insurer * 100)

	result.GrossBilled = gross
	result.TotalBilled = netPaise / 100
	result.InsurerPayable = insurerPaise / 100
	result.PatientPayable = (netPaise - insurerPaise) / 100
	result.TotalEligible = totalEligible
	result.TotalCopay = totalCopay
	result.DeductibleApplied = deductible
	result.ExtractedItemsTotal = itemsTotal
	result.Discrepancy = discrepancy
	result.Warning = strings.Join(warnings, "; ")

	c.logger.Info("claim calculated",
		"total_billed", result.TotalBilled,
		"insurer_payable", result.InsurerPayable,
		"patient_payable", result.PatientPayable,
		"line_items", len(result.Lines),
		"reconciliation", result.Reconciliation)

	return result, nil
}

// resolvePrice looks up a reference price for a line item billed without an
// amount.
func (c *Calculator) resolvePrice(ctx context.Context, name string) (model.PriceCandidate, error) {
	if c.matcher == nil {
		return model.PriceCandidate{}, errors.New("no price sources configured")
	}
	return c.matcher.ResolvePrice(ctx, name)
}

// settleItem produces the breakdown entry for one line item.
func (c *Calculator) settleItem(ctx context.Context, item model.LineItem, factors *model.PolicyFactors, effectiveSI, roomFactor float64) (model.BreakdownEntry, error) {
	entry := model.BreakdownEntry{Item: item.Name}

	amount := item.Amount
	if amount == 0 {
		candidate, err := c.resolvePrice(ctx, item.Name)
		if err != nil {
			entry.Reasons = append(entry.Reasons, model.ReasonUnresolved)
			c.logger.Warn("could not price line item, keeping it at zero",
				"item", item.Name,
				"error", err)
		} else {
			amount = candidate.Price
			if candidate.Estimated {
				entry.PriceEstimated = true
				entry.Reasons = append(entry.Reasons, model.ReasonAIEstimated)
			}
		}
	}
	entry.Billed = amount

	if reason, excluded := c.exclusionFor(item.Name, factors.Exclusions); excluded {
		entry.Excluded = true
		entry.ExclusionReason = reason
		entry.Reasons = append(entry.Reasons, model.ReasonExcluded)
		entry.PatientPays = amount
		return entry, nil
	}

	eligible := amount

	if roomFactor < 1 && !proportionateExempt(item.Name) {
		eligible *= roomFactor
		entry.Reasons = append(entry.Reasons, model.ReasonRoomRentCap)
	}

	if limit, ok := c.subLimitFor(item.Name, factors.SubLimits); ok {
		absolute := limit.Resolve(item.Days, effectiveSI)
		if eligible > absolute {
			eligible = absolute
			entry.AppliedCap = absolute
			entry.Reasons = append(entry.Reasons, model.ReasonSubLimit)
		}
	}

	copayPct := factors.CopayPercent
	if item.HasCopay && item.CopayPercent > copayPct {
		copayPct = item.CopayPercent
	}
	copayAmount := eligible * copayPct / 100
	if copayAmount > 0 {
		entry.Reasons = append(entry.Reasons, model.ReasonCopay)
	}

	entry.Eligible = eligible
	entry.CopayPercent = copayPct
	entry.CopayAmount = copayAmount
	entry.InsurerPays = eligible - copayAmount
	entry.PatientPays = amount - eligible + copayAmount

	return entry, nil
}

// subLimitFor finds the best-matching sub-limit category for an item name.
func (c *Calculator) subLimitFor(name string, limits []model.SubLimit) (model.SubLimit, bool) {
	var best model.SubLimit
	bestScore := 0.0
	found := false

	for _, limit := range limits {
		score := match.Similarity(name, limit.Category)
		if score >= c.threshold && (score > bestScore || !found) {
			best = limit
			bestScore = score
			found = true
		}
	}

	return best, found
}

// exclusionFor finds a policy exclusion matching an item name.
func (c *Calculator) exclusionFor(name string, exclusions []model.Exclusion) (string, bool) {
	for _, ex := range exclusions {
		if match.Similarity(name, ex.Item) >= c.threshold {
			return ex.Reason, true
		}
	}
	return "", false
}

// roomRentFactor computes the proportionate-deduction factor
// (cappedRate / actualRate) when the billed room rate exceeds the policy's
// per-day cap. A factor of 1 means no deduction applies.
func roomRentFactor(items []model.LineItem, capPerDay float64) float64 {
	if capPerDay <= 0 {
		return 1
	}
	for _, item := range items {
		if !isRoomItem(item.Name) {
			continue
		}
		rate := item.PerDayRate
		if rate == 0 && item.Days > 0 {
			rate = item.Amount / float64(item.Days)
		}
		if rate > capPerDay {
			return capPerDay / rate
		}
	}
	return 1
}

// isRoomItem reports whether a line item is the room/bed charge.
func isRoomItem(name string) bool {
	for _, t := range strings.Fields(strings.ToLower(name)) {
		if t == "room" || t == "bed" {
			return true
		}
	}
	return false
}

// proportionateExempt lists the charge kinds the proportionate deduction
// does not scale. Medicines and consumables are billed at MRP regardless of
// room category, so the standard rule leaves them untouched.
func proportionateExempt(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range []string{"pharmacy", "medicine", "medicines", "drug", "drugs", "consumable", "consumables", "implant", "implants"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
