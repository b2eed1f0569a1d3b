package calc

import (
	"context"
	"fmt"
	"strings"
)

// CostScope selects the avoided-cost curve a project reads. When ValueCurve
// is set it is matched instead of the utility and climate zone.
type CostScope struct {
	Utility     string
	ClimateZone string
	ValueCurve  string
}

func (s CostScope) String() string {
	if s.ValueCurve != "" {
		return fmt.Sprintf("value curve %s", s.ValueCurve)
	}
	return fmt.Sprintf("utility %s, climate zone %s", s.Utility, s.ClimateZone)
}

// ElecSource fetches hourly electric avoided costs. Implementations filter on
// the scope and an inclusive calendar year range.
type ElecSource interface {
	ElecAvoidedCosts(ctx context.Context, scope CostScope, startYear, endYear int) ([]ElecAvoidedCost, error)
}

// GasSource fetches monthly gas avoided costs for an inclusive year range.
// Gas rows have no climate zone: implementations match the scope's utility,
// treating rows without a utility as shared, or its value curve.
type GasSource interface {
	GasAvoidedCosts(ctx context.Context, scope CostScope, startYear, endYear int) ([]GasAvoidedCost, error)
}

// Scope returns the avoided-cost scope of p. With byValueCurve the project
// must name a value curve.
func (p Project) Scope(byValueCurve bool) (CostScope, error) {
	s := CostScope{
		Utility:     NormalizeUtility(p.Utility),
		ClimateZone: NormalizeClimateZone(p.ClimateZone),
	}
	if byValueCurve {
		s.ValueCurve = strings.TrimSpace(p.ValueCurve)
		if s.ValueCurve == "" {
			return s, fmt.Errorf("%w: value_curve_name is required when joining on value curves", ErrInvalidProject)
		}
	}
	return s, nil
}

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	Start int
	End   int
}

// FetchWindow returns the calendar years to fetch for a project. Starts after
// Q1 spill into one extra trailing year; rows outside the life are dropped
// later by quarter.
func FetchWindow(startYear, startQuarter, eul int) YearRange {
	adj := 1
	if startQuarter == 1 {
		adj = 0
	}
	return YearRange{Start: startYear, End: startYear + eul + adj}
}

// NormalizeUtility upper-cases a utility key.
func NormalizeUtility(utility string) string {
	return strings.ToUpper(strings.TrimSpace(utility))
}

// NormalizeClimateZone returns the zone in CZ<...> form, so "3A", "cz3a" and
// "CZ3A" all become "CZ3A".
func NormalizeClimateZone(zone string) string {
	z := strings.ToUpper(strings.TrimSpace(zone))
	if strings.HasPrefix(z, "CZ") {
		return z
	}
	return "CZ" + z
}

// FetchElecWindow fetches the electric avoided costs for p within scope and
// tags each row with its project-relative quarter, keeping only quarters
// 1..eul*4.
func FetchElecWindow(ctx context.Context, src ElecSource, p Project, scope CostScope) ([]ElecAvoidedCost, error) {
	w := FetchWindow(p.StartYear, p.StartQuarter, p.EUL)
	rows, err := src.ElecAvoidedCosts(ctx, scope, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dataErrorf(ErrNoAvoidedCosts, p.ID,
			"no electric avoided costs for %s, years %d-%d", scope, w.Start, w.End)
	}
	return TagElecQuarters(rows, p), nil
}

// FetchGasWindow fetches gas avoided costs for p within scope. An empty
// result is only an error when the project has gas savings. A month that
// appears more than once means several curves matched, and is an error
// rather than a blended average.
func FetchGasWindow(ctx context.Context, src GasSource, p Project, scope CostScope) ([]GasAvoidedCost, error) {
	w := FetchWindow(p.StartYear, p.StartQuarter, p.EUL)
	rows, err := src.GasAvoidedCosts(ctx, scope, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if p.ThermsSavings != 0 {
			return nil, dataErrorf(ErrNoAvoidedCosts, p.ID,
				"no gas avoided costs for %s, years %d-%d", scope, w.Start, w.End)
		}
		return nil, nil
	}
	type month struct{ year, month int }
	seen := make(map[month]bool, len(rows))
	for _, r := range rows {
		k := month{r.Year, r.Month}
		if seen[k] {
			return nil, dataErrorf(ErrAmbiguousAvoidedCosts, p.ID,
				"gas avoided costs for %s have more than one row for %d-%02d", scope, r.Year, r.Month)
		}
		seen[k] = true
	}
	return TagGasQuarters(rows, p), nil
}

// TagElecQuarters returns a copy of rows carrying their project-relative
// quarter, without rows outside the measure's life.
func TagElecQuarters(rows []ElecAvoidedCost, p Project) []ElecAvoidedCost {
	last := p.EUL * 4
	out := make([]ElecAvoidedCost, 0, len(rows))
	for _, r := range rows {
		q := ProjectRelativeQuarter(r.Year, r.Month, p.StartYear, p.StartQuarter)
		if q < 1 || q > last {
			continue
		}
		r.Quarter = q
		out = append(out, r)
	}
	return out
}

// TagGasQuarters is TagElecQuarters for monthly gas rows.
func TagGasQuarters(rows []GasAvoidedCost, p Project) []GasAvoidedCost {
	last := p.EUL * 4
	out := make([]GasAvoidedCost, 0, len(rows))
	for _, r := range rows {
		q := ProjectRelativeQuarter(r.Year, r.Month, p.StartYear, p.StartQuarter)
		if q < 1 || q > last {
			continue
		}
		r.Quarter = q
		out = append(out, r)
	}
	return out
}
