package claim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarivue/claimpilot/internal/match"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

type fixedEstimator struct {
	price float64
	err   error
	calls int
}

func (f *fixedEstimator) EstimatePrice(_ context.Context, _ string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func billDoc(total float64, items ...model.LineItem) *model.DocumentData {
	return &model.DocumentData{
		Type: model.DocumentBill,
		Fields: map[string]model.ExtractedField{
			"total_amount": {Name: "total_amount", Kind: model.KindCurrency, Number: total},
		},
		LineItems: items,
	}
}

func assertExactSplit(t *testing.T, result *model.ClaimResult) {
	t.Helper()
	totalPaise := math.Round(result.TotalBilled * 100)
	splitPaise := math.Round(result.InsurerPayable*100) + math.Round(result.PatientPayable*100)
	assert.Equal(t, totalPaise, splitPaise,
		"total %.2f must split exactly into insurer %.2f + patient %.2f",
		result.TotalBilled, result.InsurerPayable, result.PatientPayable)
	assert.InDelta(t, result.TotalBilled, result.InsurerPayable+result.PatientPayable, 1e-9)
}

func TestCalculateSubLimitAndCopay(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(50000, model.LineItem{Name: "Cataract Surgery", Amount: 50000})
	factors := &model.PolicyFactors{
		SumInsured:   500000,
		CopayPercent: 10,
		SubLimits: []model.SubLimit{
			{Category: "cataract surgery", Type: model.LimitAbsolute, Value: 30000},
		},
	}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, 30000.0, line.Eligible)
	assert.Equal(t, 30000.0, line.AppliedCap)
	assert.Equal(t, 3000.0, line.CopayAmount)
	assert.Contains(t, line.Reasons, model.ReasonSubLimit)
	assert.Contains(t, line.Reasons, model.ReasonCopay)

	assert.Equal(t, 27000.0, result.InsurerPayable)
	assert.Equal(t, 23000.0, result.PatientPayable)
	assert.Equal(t, model.ReconAccurate, result.Reconciliation)
	assertExactSplit(t, result)
}

func TestCalculateRoomRentProportionateDeduction(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(74000,
		model.LineItem{Name: "Room Charges", Amount: 24000, PerDayRate: 8000, Days: 3},
		model.LineItem{Name: "Surgeon Fee", Amount: 40000},
		model.LineItem{Name: "Pharmacy", Amount: 10000},
	)
	factors := &model.PolicyFactors{
		SumInsured:        500000,
		RoomRentCapPerDay: 5000,
	}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)

	// Factor is 5000/8000 = 0.625 on everything except pharmacy.
	assert.InDelta(t, 15000, result.Lines[0].Eligible, 1e-9)
	assert.Contains(t, result.Lines[0].Reasons, model.ReasonRoomRentCap)
	assert.InDelta(t, 25000, result.Lines[1].Eligible, 1e-9)
	assert.Contains(t, result.Lines[1].Reasons, model.ReasonRoomRentCap)
	assert.InDelta(t, 10000, result.Lines[2].Eligible, 1e-9)
	assert.NotContains(t, result.Lines[2].Reasons, model.ReasonRoomRentCap)

	assert.InDelta(t, 50000, result.InsurerPayable, 1e-9)
	assert.InDelta(t, 24000, result.PatientPayable, 1e-9)
	assertExactSplit(t, result)
}

func TestCalculateExclusionShiftsToPatient(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(70000,
		model.LineItem{Name: "Cosmetic Surgery", Amount: 20000},
		model.LineItem{Name: "Appendectomy", Amount: 50000},
	)
	factors := &model.PolicyFactors{
		SumInsured: 500000,
		Exclusions: []model.Exclusion{
			{Item: "cosmetic surgery", Reason: "not covered under base plan"},
		},
	}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)

	excluded := result.Lines[0]
	assert.True(t, excluded.Excluded)
	assert.Equal(t, "not covered under base plan", excluded.ExclusionReason)
	assert.Contains(t, excluded.Reasons, model.ReasonExcluded)
	assert.Zero(t, excluded.Eligible)
	assert.Equal(t, 20000.0, excluded.PatientPays)

	assert.Equal(t, 50000.0, result.InsurerPayable)
	assert.Equal(t, 20000.0, result.PatientPayable)
	assertExactSplit(t, result)
}

func TestCalculateSumInsuredClamp(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(150000, model.LineItem{Name: "Cardiac Surgery", Amount: 150000})
	factors := &model.PolicyFactors{SumInsured: 100000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	assert.Equal(t, 100000.0, result.InsurerPayable)
	assert.Equal(t, 50000.0, result.PatientPayable)
	assert.Contains(t, result.Warning, "sum insured")
	assertExactSplit(t, result)
}

func TestCalculateBonusesRaiseSumInsured(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(600000, model.LineItem{Name: "Transplant Surgery", Amount: 600000})
	factors := &model.PolicyFactors{
		SumInsured:          500000,
		NCBBonusPercent:     20,
		LoyaltyBonusPercent: 5,
	}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	// Effective sum insured is 625000, so the full bill is payable.
	assert.Equal(t, 625000.0, result.SumInsured.Effective)
	assert.Equal(t, 600000.0, result.InsurerPayable)
	assert.Zero(t, result.PatientPayable)
	assertExactSplit(t, result)
}

func TestCalculateDeductible(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(50000, model.LineItem{Name: "Surgery", Amount: 50000})
	factors := &model.PolicyFactors{SumInsured: 500000, Deductible: 5000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	assert.Equal(t, 5000.0, result.DeductibleApplied)
	assert.Equal(t, 45000.0, result.InsurerPayable)
	assert.Equal(t, 5000.0, result.PatientPayable)
	assertExactSplit(t, result)
}

func TestCalculateItemCopayOverridesWeakerGeneral(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(40000,
		model.LineItem{Name: "Dialysis", Amount: 20000, CopayPercent: 25, HasCopay: true},
		model.LineItem{Name: "Consultation", Amount: 20000},
	)
	factors := &model.PolicyFactors{SumInsured: 500000, CopayPercent: 10}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	assert.Equal(t, 25.0, result.Lines[0].CopayPercent)
	assert.Equal(t, 5000.0, result.Lines[0].CopayAmount)
	assert.Equal(t, 10.0, result.Lines[1].CopayPercent)
	assert.Equal(t, 2000.0, result.Lines[1].CopayAmount)
	assert.Equal(t, 33000.0, result.InsurerPayable)
	assertExactSplit(t, result)
}

func TestCalculateUnpricedItemResolvedFromReference(t *testing.T) {
	reference := &match.StaticSource{
		SourceName: "reference",
		Table:      []model.PriceEntry{{Name: "MRI Brain Scan", Price: 5000}},
	}
	estimator := &fixedEstimator{price: 9999}
	m := match.New(match.Config{}, []service.PriceSource{reference}, estimator, nil)
	calc := New(m, Config{}, nil)
	bill := billDoc(5000, model.LineItem{Name: "MRI Brain Scann"})
	factors := &model.PolicyFactors{SumInsured: 500000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, 5000.0, result.Lines[0].Billed)
	assert.False(t, result.Lines[0].PriceEstimated)
	assert.Zero(t, estimator.calls)
	assertExactSplit(t, result)
}

func TestCalculateEstimatedPriceFlagged(t *testing.T) {
	estimator := &fixedEstimator{price: 7500}
	m := match.New(match.Config{}, nil, estimator, nil)
	calc := New(m, Config{}, nil)
	bill := billDoc(7500, model.LineItem{Name: "Robotic Navigation Charges"})
	factors := &model.PolicyFactors{SumInsured: 500000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, 7500.0, result.Lines[0].Billed)
	assert.True(t, result.Lines[0].PriceEstimated)
	assert.Contains(t, result.Lines[0].Reasons, model.ReasonAIEstimated)
	assert.Equal(t, 1, estimator.calls)
	assertExactSplit(t, result)
}

func TestCalculateUnresolvedPriceKeptWithReason(t *testing.T) {
	estimator := &fixedEstimator{err: errors.New("estimate unavailable")}
	m := match.New(match.Config{}, nil, estimator, nil)
	calc := New(m, Config{}, nil)
	bill := billDoc(2000, model.LineItem{Name: "Surgical Charges", Amount: 2000}, model.LineItem{Name: "Unknown Sundries"})
	factors := &model.PolicyFactors{SumInsured: 500000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	// The unpriceable item stays in the breakdown at zero with a reason.
	require.Len(t, result.Lines, 2)
	unresolved := result.Lines[1]
	assert.Equal(t, "Unknown Sundries", unresolved.Item)
	assert.Zero(t, unresolved.Billed)
	assert.Contains(t, unresolved.Reasons, model.ReasonUnresolved)
	assertExactSplit(t, result)
}

func TestCalculateNoMatcherMarksZeroItemsUnresolved(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(0, model.LineItem{Name: "Ward Charges"})
	factors := &model.PolicyFactors{SumInsured: 500000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Contains(t, result.Lines[0].Reasons, model.ReasonUnresolved)
	assertExactSplit(t, result)
}

func TestCalculateReconciliation(t *testing.T) {
	tests := []struct {
		name        string
		billTotal   float64
		items       []model.LineItem
		wantStatus  model.ReconciliationStatus
		wantInsurer float64
		wantPatient float64
	}{
		{
			name:        "accurate within one percent",
			billTotal:   100000,
			items:       []model.LineItem{{Name: "Surgery", Amount: 99500}},
			wantStatus:  model.ReconAccurate,
			wantInsurer: 99500,
			wantPatient: 500,
		},
		{
			name:        "minor discrepancy shifts missing to patient",
			billTotal:   100000,
			items:       []model.LineItem{{Name: "Surgery", Amount: 97000}},
			wantStatus:  model.ReconMinor,
			wantInsurer: 97000,
			wantPatient: 3000,
		},
		{
			name:      "over extraction scales insurer down",
			billTotal: 100000,
			items: []model.LineItem{
				{Name: "Surgery", Amount: 70000},
				{Name: "Surgery Charges", Amount: 50000},
			},
			wantStatus: model.ReconOverExtracted,
			// 120000 payable scaled by 100000/120000.
			wantInsurer: 100000,
			wantPatient: 0,
		},
		{
			name:        "under extraction leaves gap with patient",
			billTotal:   100000,
			items:       []model.LineItem{{Name: "Surgery", Amount: 80000}},
			wantStatus:  model.ReconUnderExtracted,
			wantInsurer: 80000,
			wantPatient: 20000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := New(nil, Config{}, nil)
			factors := &model.PolicyFactors{SumInsured: 500000}

			result, err := calc.Calculate(context.Background(), billDoc(tt.billTotal, tt.items...), factors)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, result.Reconciliation)
			assert.InDelta(t, tt.wantInsurer, result.InsurerPayable, 0.01)
			assert.InDelta(t, tt.wantPatient, result.PatientPayable, 0.01)
			assert.Equal(t, tt.billTotal, result.TotalBilled)
			if tt.wantStatus != model.ReconAccurate {
				assert.NotEmpty(t, result.Warning)
			}
			assertExactSplit(t, result)
		})
	}
}

func TestCalculateDiscountReducesNetBill(t *testing.T) {
	calc := New(nil, Config{}, nil)
	bill := billDoc(100000, model.LineItem{Name: "Surgery", Amount: 90000})
	bill.Fields["discount"] = model.ExtractedField{Name: "discount", Kind: model.KindCurrency, Number: 10000}
	factors := &model.PolicyFactors{SumInsured: 500000}

	result, err := calc.Calculate(context.Background(), bill, factors)
	require.NoError(t, err)

	assert.Equal(t, 100000.0, result.GrossBilled)
	assert.Equal(t, 90000.0, result.TotalBilled)
	assert.Equal(t, model.ReconAccurate, result.Reconciliation)
	assert.Equal(t, 90000.0, result.InsurerPayable)
	assertExactSplit(t, result)
}

func TestCalculateSplitIsExactAcrossRandomFixtures(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	calc := New(nil, Config{}, nil)

	for i := 0; i < 200; i++ {
		var items []model.LineItem
		var total float64
		for j := 0; j < 1+rng.Intn(8); j++ {
			amount := math.Round(rng.Float64()*5000000) / 100
			items = append(items, model.LineItem{
				Name:   fmt.Sprintf("Item %d", j),
				Amount: amount,
			})
			total += amount
		}
		factors := &model.PolicyFactors{
			SumInsured:   math.Round(rng.Float64()*20000000) / 100,
			CopayPercent: float64(rng.Intn(40)),
			Deductible:   math.Round(rng.Float64()*500000) / 100,
		}

		result, err := calc.Calculate(context.Background(), billDoc(total, items...), factors)
		require.NoError(t, err)
		assertExactSplit(t, result)
		assert.GreaterOrEqual(t, result.InsurerPayable, 0.0)
		assert.LessOrEqual(t, result.InsurerPayable, result.TotalBilled+0.01)
	}
}

func TestCalculateValidation(t *testing.T) {
	calc := New(nil, Config{}, nil)
	factors := &model.PolicyFactors{SumInsured: 500000}

	_, err := calc.Calculate(context.Background(), nil, factors)
	assert.Error(t, err)

	_, err = calc.Calculate(context.Background(), &model.DocumentData{Type: model.DocumentPolicy}, factors)
	assert.Error(t, err)

	_, err = calc.Calculate(context.Background(), billDoc(1000), factors)
	assert.Error(t, err)

	_, err = calc.Calculate(context.Background(), billDoc(1000, model.LineItem{Name: "x", Amount: 1000}), nil)
	assert.Error(t, err)
}
