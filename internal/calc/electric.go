package calc

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ElecBenefit is one hour of one project year. Rows with Matched false are
// load-shape hours that had no avoided-cost row in any fetched year; their
// joined fields are null and count as zero in every sum.
type ElecBenefit struct {
	ID            string         `json:"id"`
	Year          int            `json:"year"`
	Month         int            `json:"month"`
	HourOfDay     int            `json:"hour_of_day"`
	HourOfYear    int            `json:"hour_of_year"`
	Quarter       int            `json:"quarter"`
	Matched       bool           `json:"matched"`
	HourlySavings float64        `json:"hourly_savings"`
	Discount      float64        `json:"discount"`
	Benefits      ElecComponents `json:"benefits"`
	// MarginalGHG is hourly savings times the marginal emissions rate. It is
	// never discounted.
	MarginalGHG float64 `json:"marginal_ghg"`
	// Levelized is the raw total avoided cost times the discount factor,
	// not scaled by savings.
	Levelized float64 `json:"av_csts_levelized"`
}

// HourlySavings spreads first-year electric savings over a load shape. A nil
// shape yields all zeros.
func HourlySavings(p Project, shape *LoadShape) []float64 {
	out := make([]float64, HoursPerYear)
	if shape == nil {
		return out
	}
	floats.ScaleTo(out, p.MWhSavings*p.Units*p.NTG, shape.Weights)
	return out
}

// ElectricBenefits joins a project's hourly savings onto its quarter-tagged
// avoided costs. costs must come from TagElecQuarters for the same project.
// The same first-year savings series is used for every year of life.
func ElectricBenefits(p Project, shape *LoadShape, costs []ElecAvoidedCost, sched DiscountSchedule) []ElecBenefit {
	savings := HourlySavings(p, shape)
	seen := make([]bool, HoursPerYear)
	out := make([]ElecBenefit, 0, len(costs)+1)
	for _, c := range costs {
		h := c.HourOfYear
		if h < 1 || h > HoursPerYear {
			continue
		}
		d, ok := sched.At(c.Quarter)
		if !ok {
			continue
		}
		seen[h-1] = true
		hs := savings[h-1]
		out = append(out, ElecBenefit{
			ID:            p.ID,
			Year:          c.Year,
			Month:         c.Month,
			HourOfDay:     c.HourOfDay,
			HourOfYear:    h,
			Quarter:       c.Quarter,
			Matched:       true,
			HourlySavings: hs,
			Discount:      d,
			Benefits:      c.Costs.Scale(hs * d),
			MarginalGHG:   hs * c.MarginalGHG,
			Levelized:     c.Costs.Total * d,
		})
	}
	for h, ok := range seen {
		if ok {
			continue
		}
		out = append(out, ElecBenefit{ID: p.ID, HourOfYear: h + 1, HourlySavings: savings[h]})
	}
	sort.SliceStable(out, func(i, j int) bool { return ElecBenefitLess(out[i], out[j]) })
	return out
}

// ElecBenefitLess orders electric rows by (id, year, hour_of_year). An
// unmatched row has a null year, and null years sort after every real year
// of the same id, in hour order.
func ElecBenefitLess(a, b ElecBenefit) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Matched != b.Matched {
		return a.Matched
	}
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.HourOfYear < b.HourOfYear
}
