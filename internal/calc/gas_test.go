package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gasFixture() (Project, []GasAvoidedCost) {
	p := Project{
		ID: "g1", Utility: "PGE", StartYear: 2021, StartQuarter: 1, EUL: 1,
		ThermsSavings: 40, ThermsProfile: "annual", Units: 2, NTG: 0.5, DiscountRate: 0.08,
	}
	rows := []GasAvoidedCost{
		{Year: 2021, Month: 1, Costs: GasComponents{Market: 1, TD: 3, Total: 2}},
		{Year: 2021, Month: 2, Costs: GasComponents{Market: 2, TD: 3, Total: 4}},
		{Year: 2021, Month: 3, Costs: GasComponents{Market: 3, TD: 3, Total: 6}},
		{Year: 2021, Month: 4, Costs: GasComponents{Market: 5, Total: 8}},
	}
	return p, TagGasQuarters(rows, p)
}

func TestAverageGasQuartersIsMean(t *testing.T) {
	_, rows := gasFixture()
	qs := AverageGasQuarters(rows)
	require.Len(t, qs, 2)

	assert.Equal(t, 1, qs[0].Quarter)
	assert.Equal(t, 3, qs[0].Months)
	assert.InDelta(t, 2, qs[0].Costs.Market, 1e-12)
	assert.InDelta(t, 3, qs[0].Costs.TD, 1e-12)
	assert.InDelta(t, 4, qs[0].Costs.Total, 1e-12)

	assert.Equal(t, 2, qs[1].Quarter)
	assert.Equal(t, 1, qs[1].Months)
	assert.InDelta(t, 8, qs[1].Costs.Total, 1e-12)
}

func TestGasBenefits(t *testing.T) {
	p, rows := gasFixture()
	out, err := GasBenefits(p, rows, NewDiscountSchedule(p.EUL, p.DiscountRate), DefaultThermsAdjustments())
	require.NoError(t, err)
	require.Len(t, out, 2)

	q1 := out[0]
	assert.Equal(t, "g1", q1.ID)
	assert.InDelta(t, 10, q1.ThermsSavings, 1e-12)
	assert.Equal(t, 0.9427, q1.Adjustment)
	assert.InDelta(t, 0.5*2*10*1*4*0.9427, q1.Benefits.Total, 1e-9)
	assert.InDelta(t, 0.5*2*10*1*2*0.9427, q1.Benefits.Market, 1e-9)
	assert.InDelta(t, 4, q1.Levelized, 1e-12)

	q2 := out[1]
	assert.InDelta(t, 0.5*2*10*(1/1.02)*8*0.9427, q2.Benefits.Total, 1e-9)
	assert.InDelta(t, 8/1.02, q2.Levelized, 1e-9)
}

func TestGasBenefitsProfiles(t *testing.T) {
	p, rows := gasFixture()
	sched := NewDiscountSchedule(p.EUL, p.DiscountRate)

	p.ThermsProfile = "Winter"
	out, err := GasBenefits(p, rows, sched, DefaultThermsAdjustments())
	require.NoError(t, err)
	assert.Equal(t, 1.0558, out[0].Adjustment)

	p.ThermsProfile = "spring"
	_, err = GasBenefits(p, nil, sched, DefaultThermsAdjustments())
	assert.ErrorIs(t, err, ErrUnknownThermsProfile)
	assert.Contains(t, err.Error(), "project g1")

	p.ThermsProfile = "annual"
	p.Utility = "XYZ"
	_, err = GasBenefits(p, rows, sched, DefaultThermsAdjustments())
	assert.ErrorIs(t, err, ErrNoThermsAdjustment)

	p.ThermsSavings = 0
	_, err = GasBenefits(p, nil, sched, DefaultThermsAdjustments())
	assert.ErrorIs(t, err, ErrNoThermsAdjustment)
}

func TestThermsAdjustmentsMerge(t *testing.T) {
	merged := DefaultThermsAdjustments().Merge(ThermsAdjustments{
		"pge":   {"Annual": 1.0},
		"SOCAL": {"annual": 0.9, "summer": 0.8, "winter": 1.1},
	})
	f, err := merged.Factor("PGE", "annual")
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = merged.Factor("PGE", "summer")
	require.NoError(t, err)
	assert.Equal(t, 0.8293, f)

	f, err = merged.Factor("socal", "winter")
	require.NoError(t, err)
	assert.Equal(t, 1.1, f)
}
