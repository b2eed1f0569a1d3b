package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuarterlyDiscountFirstQuarterIsOne(t *testing.T) {
	for _, eul := range []int{1, 5, 9, 30} {
		for _, rate := range []float64{0, 0.03, 0.0766, 0.5} {
			qs := QuarterlyDiscount(eul, rate)
			require.Len(t, qs, eul*4)
			assert.Equal(t, 1, qs[0].Quarter)
			assert.Equal(t, 1.0, qs[0].Discount, "eul=%d rate=%v", eul, rate)
		}
	}
}

func TestQuarterlyDiscountNonIncreasing(t *testing.T) {
	qs := QuarterlyDiscount(12, 0.0766)
	for i := 1; i < len(qs); i++ {
		assert.LessOrEqual(t, qs[i].Discount, qs[i-1].Discount)
		assert.Equal(t, i+1, qs[i].Quarter)
	}
}

func TestQuarterlyDiscountValues(t *testing.T) {
	qs := QuarterlyDiscount(1, 0.08)
	assert.InDelta(t, 1/1.02, qs[1].Discount, 1e-12)
	assert.InDelta(t, 1/(1.02*1.02*1.02), qs[3].Discount, 1e-12)
	assert.Nil(t, QuarterlyDiscount(0, 0.08))
}

func TestDiscountScheduleAt(t *testing.T) {
	s := NewDiscountSchedule(2, 0.08)
	assert.Equal(t, 8, s.Quarters())

	d, ok := s.At(1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, d)

	_, ok = s.At(0)
	assert.False(t, ok)
	_, ok = s.At(9)
	assert.False(t, ok)
}

func TestProjectRelativeQuarter(t *testing.T) {
	cases := []struct {
		name                string
		year, month         int
		startYear, startQtr int
		want                int
	}{
		{"january of start year", 2021, 1, 2021, 1, 1},
		{"march of start year", 2021, 3, 2021, 1, 1},
		{"april of start year", 2021, 4, 2021, 1, 2},
		{"december of start year", 2021, 12, 2021, 1, 4},
		{"next january", 2022, 1, 2021, 1, 5},
		{"q3 start first month", 2021, 7, 2021, 3, 1},
		{"before q3 start", 2021, 6, 2021, 3, 0},
		{"q4 start spills into next year", 2022, 2, 2021, 4, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProjectRelativeQuarter(tc.year, tc.month, tc.startYear, tc.startQtr))
		})
	}
}

func TestProjectRelativeQuarterLifeBoundary(t *testing.T) {
	const eul = 9
	// Last in-life quarter of a Q1 start is Q4 of the eul-th year.
	assert.Equal(t, eul*4, ProjectRelativeQuarter(2021+eul-1, 12, 2021, 1))
	// The start quarter eul years later is the first quarter past the life.
	assert.Equal(t, eul*4+1, ProjectRelativeQuarter(2021+eul, 1, 2021, 1))
}
