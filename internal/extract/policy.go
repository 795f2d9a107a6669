package extract

import (
	"strings"

	"github.com/clarivue/claimpilot/internal/model"
)

// ParsePolicyFactors derives the coverage factors from an extracted policy
// document. It is called once per session and the result is cached on the
// Session. Optional fields that are absent or unresolved simply contribute
// their zero value; sum_insured is mandatory and validated at extraction
// time.
func ParsePolicyFactors(data *model.DocumentData) *model.PolicyFactors {
	factors := &model.PolicyFactors{
		SumInsured:          data.Number("sum_insured"),
		CopayPercent:        data.Number("co_pay_percentage"),
		Deductible:          data.Number("deductible"),
		RoomRentCapPerDay:   data.Number("room_rent_limit_per_day"),
		NCBBonusPercent:     data.Number("ncb_bonus_percentage"),
		LoyaltyBonusPercent: data.Number("loyalty_bonus_percentage"),
	}

	if raw := data.Text("sub_limits"); raw != "" {
		factors.SubLimits = parseSubLimits(raw, factors.SumInsured)
	}
	if raw := data.Text("exclusions"); raw != "" {
		factors.Exclusions = parseExclusions(raw)
	}

	return factors
}

// parseSubLimits reads the collaborator's compact sub-limit notation: one
// "category: limit" pair per semicolon, where the limit is an amount
// ("40000"), a daily amount ("2000 per day", "2000/day"), a percentage of
// sum insured ("2%"), or "up to sum insured".
func parseSubLimits(raw string, sumInsured float64) []model.SubLimit {
	var limits []model.SubLimit

	for _, part := range strings.Split(raw, ";") {
		category, spec, ok := splitPair(part)
		if !ok {
			continue
		}

		limit := model.SubLimit{Category: category}
		lower := strings.ToLower(spec)

		switch {
		case strings.Contains(lower, "sum insured"):
			limit.Type = model.LimitSumInsured
			limit.Value = sumInsured
		case strings.HasSuffix(lower, "%") || strings.Contains(lower, "percent"):
			if v, ok := parsePercentage(strings.TrimSuffix(lower, "percent")); ok {
				limit.Type = model.LimitPercentage
				limit.Value = v
			} else {
				continue
			}
		case strings.Contains(lower, "per day") || strings.Contains(lower, "/day") || strings.Contains(lower, "per-day"):
			amount := lower
			for _, suffix := range []string{"per day", "/day", "per-day"} {
				amount = strings.ReplaceAll(amount, suffix, "")
			}
			if v, ok := parseCurrency(amount); ok {
				limit.Type = model.LimitPerDay
				limit.Value = v
				limit.PerDayMax = v
			} else {
				continue
			}
		default:
			if v, ok := parseCurrency(spec); ok {
				limit.Type = model.LimitAbsolute
				limit.Value = v
			} else {
				continue
			}
		}

		limits = append(limits, limit)
	}

	return limits
}

// parseExclusions reads "item: reason" pairs separated by semicolons. A bare
// item with no reason is kept with a generic reason.
func parseExclusions(raw string) []model.Exclusion {
	var exclusions []model.Exclusion

	for _, part := range strings.Split(raw, ";") {
		item, reason, ok := splitPair(part)
		if !ok {
			item = strings.TrimSpace(part)
			if item == "" {
				continue
			}
			reason = "listed as a policy exclusion"
		}
		exclusions = append(exclusions, model.Exclusion{Item: item, Reason: reason})
	}

	return exclusions
}

// splitPair splits "key: value" on the first colon.
func splitPair(part string) (string, string, bool) {
	key, value, found := strings.Cut(part, ":")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !found || key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
