package calc

import "errors"

// GasBenefit is one project quarter of gas benefits.
type GasBenefit struct {
	ID      string `json:"id"`
	Year    int    `json:"year"`
	Quarter int    `json:"quarter"`
	// Months is how many monthly rows were averaged into Costs.
	Months        int           `json:"months"`
	ThermsSavings float64       `json:"therms_savings"`
	Adjustment    float64       `json:"therms_profile_adjustment"`
	Discount      float64       `json:"discount"`
	Costs         GasComponents `json:"costs"`
	Benefits      GasComponents `json:"benefits"`
	Levelized     float64       `json:"av_csts_levelized"`
}

// GasBenefitLess orders gas rows by (id, year, quarter).
func GasBenefitLess(a, b GasBenefit) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.Quarter < b.Quarter
}

// GasQuarterCost is the mean of the monthly gas costs in one project quarter.
type GasQuarterCost struct {
	Year    int
	Quarter int
	Months  int
	Costs   GasComponents
}

type gasQuarterKey struct {
	year, quarter int
}

// AverageGasQuarters averages quarter-tagged monthly rows within each
// (year, quarter) group. Monthly values are rates, so the quarter value is
// their mean. Groups keep the order in which they first appear.
func AverageGasQuarters(rows []GasAvoidedCost) []GasQuarterCost {
	idx := make(map[gasQuarterKey]int)
	var out []GasQuarterCost
	for _, r := range rows {
		k := gasQuarterKey{r.Year, r.Quarter}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, GasQuarterCost{Year: r.Year, Quarter: r.Quarter})
		}
		out[i].Costs = out[i].Costs.Add(r.Costs)
		out[i].Months++
	}
	for i := range out {
		out[i].Costs = out[i].Costs.Scale(1 / float64(out[i].Months))
	}
	return out
}

// GasBenefits computes quarterly gas benefits for a project from its
// quarter-tagged monthly avoided costs. The therms profile is checked even
// when there are no rows.
func GasBenefits(p Project, costs []GasAvoidedCost, sched DiscountSchedule, adj ThermsAdjustments) ([]GasBenefit, error) {
	factor, err := adj.Factor(p.Utility, p.ThermsProfile)
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			de.Project = p.ID
		}
		return nil, err
	}
	quarterly := p.ThermsSavings / 4
	var out []GasBenefit
	for _, q := range AverageGasQuarters(costs) {
		d, ok := sched.At(q.Quarter)
		if !ok {
			continue
		}
		out = append(out, GasBenefit{
			ID:            p.ID,
			Year:          q.Year,
			Quarter:       q.Quarter,
			Months:        q.Months,
			ThermsSavings: quarterly,
			Adjustment:    factor,
			Discount:      d,
			Costs:         q.Costs,
			Benefits:      q.Costs.Scale(p.NTG * p.Units * quarterly * d * factor),
			Levelized:     q.Costs.Total * d,
		})
	}
	return out, nil
}
