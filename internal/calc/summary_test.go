package calc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosts(t *testing.T) {
	p := Project{Admin: 100, Measure: 200, Incentive: 50, NTG: 0.5, DiscountRate: 0.08}
	assert.InDelta(t, 100+125/1.02, TRCCosts(p), 1e-9)
	assert.InDelta(t, 100+50/1.02, PACCosts(p), 1e-9)
}

func TestSummarize(t *testing.T) {
	p, elecCosts := electricFixture()
	p.Admin, p.Measure, p.Incentive = 100, 200, 50
	p.Utility, p.ThermsProfile, p.ThermsSavings = "PGE", "annual", 40
	_, gasCosts := gasFixture()
	sched := NewDiscountSchedule(p.EUL, p.DiscountRate)

	elec := ElectricBenefits(p, twoHourShape(), elecCosts, sched)
	gas, err := GasBenefits(p, gasCosts, sched, DefaultThermsAdjustments())
	require.NoError(t, err)

	s := Summarize(p, elec, gas)
	wantElec := 10 + 5*3/1.02
	wantGas := 0.5*2*10*4*0.9427 + 0.5*2*10*(1/1.02)*8*0.9427
	assert.Equal(t, "p1", s.ID)
	assert.InDelta(t, wantElec, s.ElecBenefits, 1e-9)
	assert.InDelta(t, wantGas, s.GasBenefits, 1e-9)
	assert.InDelta(t, wantElec+wantGas, s.TotalBenefits, 1e-9)
	assert.InDelta(t, 10, s.ElecLifecycleMWh, 1e-9)
	assert.InDelta(t, 10, s.ElecFirstYearMWh, 1e-9)
	assert.InDelta(t, 3, s.ElecLifecycleGHG, 1e-9)
	assert.InDelta(t, 20, s.GasFirstYearTherms, 1e-12)
	assert.InDelta(t, 20, s.GasLifecycleTherms, 1e-12)
	assert.InDelta(t, 20*2*0.006, s.GasLifecycleGHG, 1e-12)
	assert.InDelta(t, 3+0.24, s.TotalLifecycleGHG, 1e-9)
	require.True(t, s.TRC.Valid)
	assert.InDelta(t, (wantElec+wantGas)/(100+125/1.02), s.TRC.Float64, 1e-9)
	assert.InDelta(t, (wantElec+wantGas)/(100+50/1.02), s.PAC.Float64, 1e-9)
}

func TestSummarizeLifecycleMWhIsActualSum(t *testing.T) {
	p := Project{ID: "x", StartYear: 2021, StartQuarter: 1, EUL: 2, MWhSavings: 8760, Units: 1, NTG: 1}
	w := make([]float64, HoursPerYear)
	for i := range w {
		w[i] = 1.0 / HoursPerYear
	}
	var costs []ElecAvoidedCost
	for _, year := range []int{2021, 2022} {
		for h := 1; h <= HoursPerYear; h++ {
			costs = append(costs, ElecAvoidedCost{Year: year, Month: 1, HourOfYear: h})
		}
	}
	rows := ElectricBenefits(p, &LoadShape{Name: "flat", Weights: w}, TagElecQuarters(costs, p), NewDiscountSchedule(2, 0))
	require.Len(t, rows, 2*HoursPerYear)

	s := Summarize(p, rows, nil)
	assert.InDelta(t, 2*8760, s.ElecLifecycleMWh, 1e-6)
	assert.InDelta(t, 8760, s.ElecFirstYearMWh, 1e-6)
}

func TestZeroCostRatioUndefined(t *testing.T) {
	s := Summarize(Project{ID: "free", EUL: 1}, nil, nil)
	assert.False(t, s.TRC.Valid)
	assert.False(t, s.PAC.Valid)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"trc":null`)
	assert.Contains(t, string(b), `"pac":null`)
	assert.Equal(t, "", s.TRC.String())

	var back Summary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.False(t, back.TRC.Valid)
}

func TestTotalsRecomputesRatios(t *testing.T) {
	a := Summary{ID: "a", ElecBenefits: 200, TRCCosts: 100, PACCosts: 50, ElecLifecycleGHG: 1}
	a.finish()
	b := Summary{ID: "b", GasBenefits: 4000, TRCCosts: 1000, PACCosts: 1000, GasLifecycleGHG: 2}
	b.finish()
	require.InDelta(t, 2.0, a.TRC.Float64, 1e-12)
	require.InDelta(t, 4.0, b.TRC.Float64, 1e-12)

	tot := Totals([]Summary{a, b})
	assert.Equal(t, TotalsID, tot.ID)
	assert.InDelta(t, 4200, tot.TotalBenefits, 1e-9)
	assert.InDelta(t, 4200.0/1100.0, tot.TRC.Float64, 1e-12)
	assert.NotEqual(t, 6.0, tot.TRC.Float64)
	assert.NotEqual(t, 3.0, tot.TRC.Float64)
	assert.InDelta(t, 4200.0/1050.0, tot.PAC.Float64, 1e-12)
	assert.InDelta(t, 3, tot.TotalLifecycleGHG, 1e-12)

	assert.False(t, Totals(nil).TRC.Valid)
}

func TestRounded(t *testing.T) {
	s := Summary{
		TRC:              Float(1.23456),
		ElecBenefits:     2.675,
		TRCCosts:         10.004999,
		ElecLifecycleMWh: 1.0005,
		GasLifecycleGHG:  -1.0005,
	}
	r := s.Rounded()
	assert.Equal(t, 1.235, r.TRC.Float64)
	assert.False(t, r.PAC.Valid)
	assert.Equal(t, 2.68, r.ElecBenefits)
	assert.Equal(t, 10.0, r.TRCCosts)
	assert.Equal(t, 1.001, r.ElecLifecycleMWh)
	assert.Equal(t, -1.001, r.GasLifecycleGHG)
}
