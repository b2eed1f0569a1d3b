package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoHourShape() *LoadShape {
	w := make([]float64, HoursPerYear)
	w[0], w[1] = 0.5, 0.5
	return &LoadShape{Name: "TWO_HOURS", Weights: w}
}

func electricFixture() (Project, []ElecAvoidedCost) {
	p := Project{
		ID: "p1", StartYear: 2021, StartQuarter: 1, EUL: 1,
		MWhSavings: 10, Units: 2, NTG: 0.5, DiscountRate: 0.08,
	}
	costs := []ElecAvoidedCost{
		{Year: 2021, Month: 4, HourOfDay: 1, HourOfYear: 2, MarginalGHG: 0.2,
			Costs: ElecComponents{Energy: 2, Capacity: 1, Total: 3}},
		{Year: 2021, Month: 1, HourOfDay: 0, HourOfYear: 1, MarginalGHG: 0.4,
			Costs: ElecComponents{Energy: 1, Losses: 1, Total: 2}},
	}
	return p, TagElecQuarters(costs, p)
}

func TestHourlySavings(t *testing.T) {
	p, _ := electricFixture()
	hs := HourlySavings(p, twoHourShape())
	require.Len(t, hs, HoursPerYear)
	assert.InDelta(t, 5, hs[0], 1e-12)
	assert.InDelta(t, 5, hs[1], 1e-12)
	assert.Zero(t, hs[2])

	for _, v := range HourlySavings(p, nil) {
		require.Zero(t, v)
	}
}

func TestElectricBenefits(t *testing.T) {
	p, costs := electricFixture()
	rows := ElectricBenefits(p, twoHourShape(), costs, NewDiscountSchedule(p.EUL, p.DiscountRate))
	require.Len(t, rows, HoursPerYear)

	first := rows[0]
	assert.True(t, first.Matched)
	assert.Equal(t, "p1", first.ID)
	assert.Equal(t, 1, first.HourOfYear)
	assert.Equal(t, 1, first.Quarter)
	assert.Equal(t, 1.0, first.Discount)
	assert.InDelta(t, 10, first.Benefits.Total, 1e-9)
	assert.InDelta(t, 5, first.Benefits.Energy, 1e-9)
	assert.InDelta(t, 5, first.Benefits.Losses, 1e-9)
	assert.InDelta(t, 2, first.MarginalGHG, 1e-9)
	assert.InDelta(t, 2, first.Levelized, 1e-9)

	second := rows[1]
	assert.Equal(t, 2, second.HourOfYear)
	assert.Equal(t, 2, second.Quarter)
	assert.InDelta(t, 1/1.02, second.Discount, 1e-12)
	assert.InDelta(t, 5*3/1.02, second.Benefits.Total, 1e-9)
	assert.InDelta(t, 5*1/1.02, second.Benefits.Capacity, 1e-9)
	// Marginal GHG is not discounted.
	assert.InDelta(t, 1, second.MarginalGHG, 1e-9)
	assert.InDelta(t, 3/1.02, second.Levelized, 1e-9)
}

func TestElectricLevelizedDivergesFromBenefit(t *testing.T) {
	p, costs := electricFixture()
	rows := ElectricBenefits(p, twoHourShape(), costs, NewDiscountSchedule(p.EUL, p.DiscountRate))
	for _, r := range rows[:2] {
		require.NotEqual(t, 1.0, r.HourlySavings)
		assert.InDelta(t, r.Levelized*r.HourlySavings, r.Benefits.Total, 1e-9)
		assert.NotEqual(t, r.Levelized, r.Benefits.Total)
	}
}

func TestElectricUnmatchedHoursKeepSavings(t *testing.T) {
	p, costs := electricFixture()
	w := make([]float64, HoursPerYear)
	w[0], w[99] = 0.5, 0.5
	rows := ElectricBenefits(p, &LoadShape{Name: "x", Weights: w}, costs, NewDiscountSchedule(p.EUL, p.DiscountRate))

	var unmatched []ElecBenefit
	for _, r := range rows {
		if !r.Matched {
			unmatched = append(unmatched, r)
		}
	}
	require.Len(t, unmatched, HoursPerYear-2)
	// Unmatched rows sort after matched ones, in hour order.
	assert.True(t, rows[0].Matched)
	assert.True(t, rows[1].Matched)
	assert.Equal(t, 3, rows[2].HourOfYear)

	for _, r := range unmatched {
		if r.HourOfYear == 100 {
			assert.InDelta(t, 5, r.HourlySavings, 1e-12)
			assert.Zero(t, r.Benefits.Total)
			assert.Zero(t, r.Discount)
		}
	}

	s := Summarize(p, rows, nil)
	assert.InDelta(t, 10, s.ElecLifecycleMWh, 1e-9)
	assert.InDelta(t, 10, s.ElecBenefits, 1e-9)
}

func TestElectricBenefitsSkipsHoursBeyondShape(t *testing.T) {
	p, _ := electricFixture()
	costs := TagElecQuarters([]ElecAvoidedCost{{Year: 2021, Month: 12, HourOfYear: 8784, Costs: ElecComponents{Total: 9}}}, p)
	rows := ElectricBenefits(p, twoHourShape(), costs, NewDiscountSchedule(p.EUL, p.DiscountRate))
	for _, r := range rows {
		assert.False(t, r.Matched)
	}
}
