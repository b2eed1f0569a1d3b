package calc

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// GasGHGFactor is tons of CO2e avoided per therm.
const GasGHGFactor = 0.006

// TotalsID is the identifier of the portfolio totals row.
const TotalsID = "Totals"

// Summary is the per-project output row.
type Summary struct {
	ID                 string    `json:"id"`
	TRC                NullFloat `json:"trc"`
	PAC                NullFloat `json:"pac"`
	ElecBenefits       float64   `json:"elec_benefits"`
	GasBenefits        float64   `json:"gas_benefits"`
	TotalBenefits      float64   `json:"total_benefits"`
	TRCCosts           float64   `json:"trc_costs"`
	PACCosts           float64   `json:"pac_costs"`
	ElecFirstYearMWh   float64   `json:"elec_first_year_net_mwh"`
	ElecLifecycleMWh   float64   `json:"elec_lifecycle_net_mwh"`
	GasFirstYearTherms float64   `json:"gas_first_year_net_therms"`
	GasLifecycleTherms float64   `json:"gas_lifecycle_net_therms"`
	ElecLifecycleGHG   float64   `json:"elec_lifecycle_ghg_tons"`
	GasLifecycleGHG    float64   `json:"gas_lifecycle_ghg_tons"`
	TotalLifecycleGHG  float64   `json:"total_lifecycle_ghg_tons"`
}

// TRCCosts is admin plus the net measure and free-rider incentive costs,
// discounted one quarter.
func TRCCosts(p Project) float64 {
	return p.Admin + ((1-p.NTG)*p.Incentive+p.NTG*p.Measure)/(1+p.DiscountRate/4)
}

// PACCosts is admin plus incentives, discounted one quarter.
func PACCosts(p Project) float64 {
	return p.Admin + p.Incentive/(1+p.DiscountRate/4)
}

// Ratio divides benefits by costs. The ratio is undefined when costs are
// zero.
func Ratio(benefits, costs float64) NullFloat {
	if costs == 0 {
		return NullFloat{}
	}
	return Float(benefits / costs)
}

// Summarize aggregates a project's benefit rows into its output row.
func Summarize(p Project, elec []ElecBenefit, gas []GasBenefit) Summary {
	savings := make([]float64, len(elec))
	totals := make([]float64, len(elec))
	ghg := make([]float64, len(elec))
	for i, r := range elec {
		savings[i] = r.HourlySavings
		if r.Matched {
			totals[i] = r.Benefits.Total
			ghg[i] = r.MarginalGHG
		}
	}
	gasTotals := make([]float64, len(gas))
	for i, r := range gas {
		gasTotals[i] = r.Benefits.Total
	}

	s := Summary{
		ID:               p.ID,
		ElecBenefits:     floats.Sum(totals),
		GasBenefits:      floats.Sum(gasTotals),
		TRCCosts:         TRCCosts(p),
		PACCosts:         PACCosts(p),
		ElecLifecycleMWh: floats.Sum(savings),
		ElecLifecycleGHG: floats.Sum(ghg),
	}
	if p.EUL > 0 {
		s.ElecFirstYearMWh = s.ElecLifecycleMWh / float64(p.EUL)
	}
	s.GasFirstYearTherms = p.NTG * p.ThermsSavings
	s.GasLifecycleTherms = s.GasFirstYearTherms * float64(p.EUL)
	s.GasLifecycleGHG = s.GasLifecycleTherms * p.Units * GasGHGFactor
	s.finish()
	return s
}

func (s *Summary) finish() {
	s.TotalBenefits = s.ElecBenefits + s.GasBenefits
	s.TotalLifecycleGHG = s.ElecLifecycleGHG + s.GasLifecycleGHG
	s.TRC = Ratio(s.TotalBenefits, s.TRCCosts)
	s.PAC = Ratio(s.TotalBenefits, s.PACCosts)
}

// Totals sums unrounded project rows column by column and recomputes the
// ratios from the summed benefits and costs.
func Totals(rows []Summary) Summary {
	t := Summary{ID: TotalsID}
	for _, r := range rows {
		t.ElecBenefits += r.ElecBenefits
		t.GasBenefits += r.GasBenefits
		t.TRCCosts += r.TRCCosts
		t.PACCosts += r.PACCosts
		t.ElecFirstYearMWh += r.ElecFirstYearMWh
		t.ElecLifecycleMWh += r.ElecLifecycleMWh
		t.GasFirstYearTherms += r.GasFirstYearTherms
		t.GasLifecycleTherms += r.GasLifecycleTherms
		t.ElecLifecycleGHG += r.ElecLifecycleGHG
		t.GasLifecycleGHG += r.GasLifecycleGHG
	}
	t.finish()
	return t
}

// Rounded returns s with dollars at 2 places and everything else at 3.
func (s Summary) Rounded() Summary {
	s.TRC = roundNull(s.TRC, 3)
	s.PAC = roundNull(s.PAC, 3)
	for _, f := range []*float64{&s.ElecBenefits, &s.GasBenefits, &s.TotalBenefits, &s.TRCCosts, &s.PACCosts} {
		*f = Round(*f, 2)
	}
	for _, f := range []*float64{
		&s.ElecFirstYearMWh, &s.ElecLifecycleMWh, &s.GasFirstYearTherms, &s.GasLifecycleTherms,
		&s.ElecLifecycleGHG, &s.GasLifecycleGHG, &s.TotalLifecycleGHG,
	} {
		*f = Round(*f, 3)
	}
	return s
}

// Round rounds half away from zero on the decimal representation of v.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func roundNull(n NullFloat, places int32) NullFloat {
	if !n.Valid {
		return n
	}
	return Float(Round(n.Float64, places))
}
