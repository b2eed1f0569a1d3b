package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/storage"
)

// StorageSource reads avoided costs from a storage backend.
type StorageSource struct {
	Storage storage.Storage
}

func costFilter(scope calc.CostScope) storage.CostFilter {
	return storage.CostFilter{Utility: scope.Utility, Region: scope.ClimateZone, ValueCurve: scope.ValueCurve}
}

func (s StorageSource) ElecAvoidedCosts(ctx context.Context, scope calc.CostScope, startYear, endYear int) ([]calc.ElecAvoidedCost, error) {
	rows, err := s.Storage.ElecAvoidedCosts(ctx, costFilter(scope), startYear, endYear)
	if err != nil {
		return nil, fmt.Errorf("fetch electric avoided costs: %w", err)
	}
	out := make([]calc.ElecAvoidedCost, len(rows))
	for i, r := range rows {
		out[i] = calc.ElecAvoidedCost{
			Year:       r.Year,
			Month:      r.Month,
			HourOfDay:  r.HourOfDay,
			HourOfYear: r.HourOfYear,
			Costs: calc.ElecComponents{
				Energy:              r.Energy,
				Losses:              r.Losses,
				AncillaryServices:   r.AncillaryServices,
				Capacity:            r.Capacity,
				Transmission:        r.Transmission,
				Distribution:        r.Distribution,
				CapAndTrade:         r.CapAndTrade,
				GHGAdder:            r.GHGAdder,
				GHGRebalancing:      r.GHGRebalancing,
				GHGAdderRebalancing: r.GHGAdderRebalancing,
				MethaneLeakage:      r.MethaneLeakage,
				Total:               r.Total,
			},
			MarginalGHG: r.MarginalGHG,
		}
	}
	return out, nil
}

func (s StorageSource) GasAvoidedCosts(ctx context.Context, scope calc.CostScope, startYear, endYear int) ([]calc.GasAvoidedCost, error) {
	rows, err := s.Storage.GasAvoidedCosts(ctx, costFilter(scope), startYear, endYear)
	if err != nil {
		return nil, fmt.Errorf("fetch gas avoided costs: %w", err)
	}
	out := make([]calc.GasAvoidedCost, len(rows))
	for i, r := range rows {
		out[i] = calc.GasAvoidedCost{
			Year:  r.Year,
			Month: r.Month,
			Costs: calc.GasComponents{
				Market:          r.Market,
				TD:              r.TD,
				Environment:     r.Environment,
				BTMMethane:      r.BTMMethane,
				UpstreamMethane: r.UpstreamMethane,
				Total:           r.Total,
			},
		}
	}
	return out, nil
}

// LoadShapeTableFrom builds the immutable load-shape table from every stored
// load-shape value.
func LoadShapeTableFrom(ctx context.Context, st storage.Storage) (*calc.LoadShapeTable, error) {
	values, err := st.LoadShapeValues(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shapes: %w", err)
	}
	byName := make(map[string]*calc.LoadShape)
	for _, v := range values {
		shape, ok := byName[v.LoadShapeName]
		if !ok {
			shape = &calc.LoadShape{
				Name:    v.LoadShapeName,
				Source:  calc.LoadShapeSource(v.Source),
				Weights: make([]float64, calc.HoursPerYear),
			}
			byName[v.LoadShapeName] = shape
		}
		if v.HourOfYear < 1 || v.HourOfYear > calc.HoursPerYear {
			return nil, fmt.Errorf("load shape %s: hour_of_year %d out of range", v.LoadShapeName, v.HourOfYear)
		}
		shape.Weights[v.HourOfYear-1] = v.Value
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	shapes := make([]calc.LoadShape, 0, len(names))
	for _, n := range names {
		shapes = append(shapes, *byName[n])
	}
	return calc.NewLoadShapeTable(shapes...)
}

// ProjectsFrom converts stored projects for a run.
func ProjectsFrom(ps []storage.ProjectInfo) []calc.Project {
	out := make([]calc.Project, len(ps))
	for i, p := range ps {
		out[i] = calc.Project{
			ID:            p.ID,
			StartYear:     p.StartYear,
			StartQuarter:  p.StartQuarter,
			Utility:       p.Utility,
			ClimateZone:   p.ClimateZone,
			MWhSavings:    p.MWhSavings,
			LoadShape:     p.LoadShape,
			ThermsSavings: p.ThermsSavings,
			ThermsProfile: p.ThermsProfile,
			Units:         p.Units,
			EUL:           p.EUL,
			NTG:           p.NTG,
			DiscountRate:  p.DiscountRate,
			Admin:         p.Admin,
			Measure:       p.Measure,
			Incentive:     p.Incentive,
			ValueCurve:    p.ValueCurveName,
		}
	}
	return out
}

// ProjectInfoFrom converts a project for storage.
func ProjectInfoFrom(p calc.Project) storage.ProjectInfo {
	return storage.ProjectInfo{
		ID:             p.ID,
		StartYear:      p.StartYear,
		StartQuarter:   p.StartQuarter,
		Utility:        p.Utility,
		ClimateZone:    p.ClimateZone,
		MWhSavings:     p.MWhSavings,
		LoadShape:      p.LoadShape,
		ThermsSavings:  p.ThermsSavings,
		ThermsProfile:  p.ThermsProfile,
		Units:          p.Units,
		EUL:            p.EUL,
		NTG:            p.NTG,
		DiscountRate:   p.DiscountRate,
		Admin:          p.Admin,
		Measure:        p.Measure,
		Incentive:      p.Incentive,
		ValueCurveName: p.ValueCurve,
	}
}
