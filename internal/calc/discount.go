package calc

import "math"

// QuarterDiscount is the discount factor for one project-relative quarter.
type QuarterDiscount struct {
	Quarter  int
	Discount float64
}

// QuarterlyDiscount returns the discount factor for every quarter of a
// measure's life, 1 through eul*4. Quarter 1 is never discounted.
func QuarterlyDiscount(eul int, rate float64) []QuarterDiscount {
	if eul <= 0 {
		return nil
	}
	out := make([]QuarterDiscount, eul*4)
	base := 1 + rate/4
	for i := range out {
		out[i] = QuarterDiscount{Quarter: i + 1, Discount: 1 / math.Pow(base, float64(i))}
	}
	return out
}

// DiscountSchedule is a precomputed QuarterlyDiscount with O(1) lookup.
type DiscountSchedule struct {
	factors []float64
}

func NewDiscountSchedule(eul int, rate float64) DiscountSchedule {
	qs := QuarterlyDiscount(eul, rate)
	factors := make([]float64, len(qs))
	for i, q := range qs {
		factors[i] = q.Discount
	}
	return DiscountSchedule{factors: factors}
}

// At returns the factor for quarter q, or false when q is outside the
// measure's life.
func (s DiscountSchedule) At(q int) (float64, bool) {
	if q < 1 || q > len(s.factors) {
		return 0, false
	}
	return s.factors[q-1], true
}

// Quarters is the number of quarters covered, eul*4.
func (s DiscountSchedule) Quarters() int { return len(s.factors) }

// ProjectRelativeQuarter maps a calendar year and month onto the project's
// quarter index. The first quarter of the project is 1; months before the
// start give values below 1.
func ProjectRelativeQuarter(year, month, startYear, startQuarter int) int {
	return (year-startYear)*4 - startQuarter + calendarQuarter(month) + 1
}

func calendarQuarter(month int) int {
	return (month + 2) / 3
}
