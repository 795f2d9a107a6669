package model

// LimitType says how a sub-limit value converts to an absolute amount.
type LimitType string

// Limit type constants.
const (
	LimitAbsolute   LimitType = "absolute"
	LimitPercentage LimitType = "percentage"
	LimitPerDay     LimitType = "per_day"
	LimitSumInsured LimitType = "sum_insured"
)

// SubLimit caps the payable amount for one expense category.
type SubLimit struct {
	Category  string    `json:"category"`
	Type      LimitType `json:"type"`
	Value     float64   `json:"value"`
	PerDayMax float64   `json:"per_day_max,omitempty"`
}

// Resolve converts the sub-limit to an absolute amount. days is taken from
// the bill for per-day limits; sumInsured is the effective sum insured for
// percentage and sum-insured limits.
func (l SubLimit) Resolve(days int, sumInsured float64) float64 {
	switch l.Type {
	case LimitPercentage:
		return sumInsured * l.Value / 100
	case LimitPerDay:
		daily := l.PerDayMax
		if daily == 0 {
			daily = l.Value
		}
		if days < 1 {
			days = 1
		}
		return daily * float64(days)
	case LimitSumInsured:
		return sumInsured
	default:
		return l.Value
	}
}

// Exclusion is a policy exclusion: matching bill items are shifted entirely
// to the patient.
type Exclusion struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// PolicyFactors are the coverage terms parsed once per session from the
// policy bond document.
type PolicyFactors struct {
	SubLimits           []SubLimit  `json:"sub_limits,omitempty"`
	Exclusions          []Exclusion `json:"exclusions,omitempty"`
	SumInsured          float64     `json:"sum_insured"`
	NCBBonusPercent     float64     `json:"ncb_bonus_percent,omitempty"`
	LoyaltyBonusPercent float64     `json:"loyalty_bonus_percent,omitempty"`
	CopayPercent        float64     `json:"copay_percent,omitempty"`
	Deductible          float64     `json:"deductible,omitempty"`
	RoomRentCapPerDay   float64     `json:"room_rent_cap_per_day,omitempty"`
}

// SumInsuredBreakdown reports how bonuses raise the base sum insured.
type SumInsuredBreakdown struct {
	Base      float64 `json:"base"`
	NCBBonus  float64 `json:"ncb_bonus,omitempty"`
	Loyalty   float64 `json:"loyalty_bonus,omitempty"`
	Effective float64 `json:"effective"`
}

// EffectiveSumInsured applies NCB and loyalty bonus percentages to the base
// sum insured.
func (p *PolicyFactors) EffectiveSumInsured() SumInsuredBreakdown {
	ncb := p.SumInsured * p.NCBBonusPercent / 100
	loyalty := p.SumInsured * p.LoyaltyBonusPercent / 100
	return SumInsuredBreakdown{
		Base:      p.SumInsured,
		NCBBonus:  ncb,
		Loyalty:   loyalty,
		Effective: p.SumInsured + ncb + loyalty,
	}
}
