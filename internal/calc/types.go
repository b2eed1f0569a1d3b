package calc

import (
	"fmt"
	"strconv"
	"strings"
)

// Project is one measure, project or portfolio entry of a batch.
type Project struct {
	ID            string  `json:"id"`
	StartYear     int     `json:"start_year"`
	StartQuarter  int     `json:"start_quarter"`
	Utility       string  `json:"utility"`
	ClimateZone   string  `json:"climate_zone"`
	MWhSavings    float64 `json:"mwh_savings"`
	LoadShape     string  `json:"load_shape"`
	ThermsSavings float64 `json:"therms_savings"`
	ThermsProfile string  `json:"therms_profile"`
	Units         float64 `json:"units"`
	EUL           int     `json:"eul"`
	NTG           float64 `json:"ntg"`
	DiscountRate  float64 `json:"discount_rate"`
	Admin         float64 `json:"admin"`
	Measure       float64 `json:"measure"`
	Incentive     float64 `json:"incentive"`
	// ValueCurve names the avoided-cost curve to join on when a run joins on
	// value curves instead of utility and climate zone.
	ValueCurve    string  `json:"value_curve_name,omitempty"`
}

// Validate checks the invariants every calculation relies on.
func (p Project) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProject)
	case p.EUL <= 0:
		return fmt.Errorf("%w: eul must be positive, got %d", ErrInvalidProject, p.EUL)
	case p.StartQuarter < 1 || p.StartQuarter > 4:
		return fmt.Errorf("%w: start_quarter must be 1-4, got %d", ErrInvalidProject, p.StartQuarter)
	}
	return nil
}

// Normalize returns p with its lookup keys in canonical form.
func (p Project) Normalize() Project {
	p.ID = strings.TrimSpace(p.ID)
	p.Utility = NormalizeUtility(p.Utility)
	p.ClimateZone = NormalizeClimateZone(p.ClimateZone)
	p.LoadShape = strings.ToUpper(strings.TrimSpace(p.LoadShape))
	p.ThermsProfile = strings.ToLower(strings.TrimSpace(p.ThermsProfile))
	p.ValueCurve = strings.TrimSpace(p.ValueCurve)
	return p
}

// ElecComponent names one electric avoided-cost component.
type ElecComponent string

const (
	ElecEnergy              ElecComponent = "energy"
	ElecLosses              ElecComponent = "losses"
	ElecAncillaryServices   ElecComponent = "ancillary_services"
	ElecCapacity            ElecComponent = "capacity"
	ElecTransmission        ElecComponent = "transmission"
	ElecDistribution        ElecComponent = "distribution"
	ElecCapAndTrade         ElecComponent = "cap_and_trade"
	ElecGHGAdder            ElecComponent = "ghg_adder"
	ElecGHGRebalancing      ElecComponent = "ghg_rebalancing"
	ElecGHGAdderRebalancing ElecComponent = "ghg_adder_rebalancing"
	ElecMethaneLeakage      ElecComponent = "methane_leakage"
	ElecTotal               ElecComponent = "total"
)

// ElecComponentNames lists every electric component in output order.
var ElecComponentNames = []ElecComponent{
	ElecEnergy, ElecLosses, ElecAncillaryServices, ElecCapacity,
	ElecTransmission, ElecDistribution, ElecCapAndTrade, ElecGHGAdder,
	ElecGHGRebalancing, ElecGHGAdderRebalancing, ElecMethaneLeakage, ElecTotal,
}

// ElecComponents holds one value per electric component.
type ElecComponents struct {
	Energy              float64 `json:"energy"`
	Losses              float64 `json:"losses"`
	AncillaryServices   float64 `json:"ancillary_services"`
	Capacity            float64 `json:"capacity"`
	Transmission        float64 `json:"transmission"`
	Distribution        float64 `json:"distribution"`
	CapAndTrade         float64 `json:"cap_and_trade"`
	GHGAdder            float64 `json:"ghg_adder"`
	GHGRebalancing      float64 `json:"ghg_rebalancing"`
	GHGAdderRebalancing float64 `json:"ghg_adder_rebalancing"`
	MethaneLeakage      float64 `json:"methane_leakage"`
	Total               float64 `json:"total"`
}

// Get returns the value of component c.
func (e ElecComponents) Get(c ElecComponent) (float64, bool) {
	switch c {
	case ElecEnergy:
		return e.Energy, true
	case ElecLosses:
		return e.Losses, true
	case ElecAncillaryServices:
		return e.AncillaryServices, true
	case ElecCapacity:
		return e.Capacity, true
	case ElecTransmission:
		return e.Transmission, true
	case ElecDistribution:
		return e.Distribution, true
	case ElecCapAndTrade:
		return e.CapAndTrade, true
	case ElecGHGAdder:
		return e.GHGAdder, true
	case ElecGHGRebalancing:
		return e.GHGRebalancing, true
	case ElecGHGAdderRebalancing:
		return e.GHGAdderRebalancing, true
	case ElecMethaneLeakage:
		return e.MethaneLeakage, true
	case ElecTotal:
		return e.Total, true
	}
	return 0, false
}

// Scale multiplies every component by f.
func (e ElecComponents) Scale(f float64) ElecComponents {
	return ElecComponents{
		Energy:              e.Energy * f,
		Losses:              e.Losses * f,
		AncillaryServices:   e.AncillaryServices * f,
		Capacity:            e.Capacity * f,
		Transmission:        e.Transmission * f,
		Distribution:        e.Distribution * f,
		CapAndTrade:         e.CapAndTrade * f,
		GHGAdder:            e.GHGAdder * f,
		GHGRebalancing:      e.GHGRebalancing * f,
		GHGAdderRebalancing: e.GHGAdderRebalancing * f,
		MethaneLeakage:      e.MethaneLeakage * f,
		Total:               e.Total * f,
	}
}

// Add returns the component-wise sum of e and o.
func (e ElecComponents) Add(o ElecComponents) ElecComponents {
	return ElecComponents{
		Energy:              e.Energy + o.Energy,
		Losses:              e.Losses + o.Losses,
		AncillaryServices:   e.AncillaryServices + o.AncillaryServices,
		Capacity:            e.Capacity + o.Capacity,
		Transmission:        e.Transmission + o.Transmission,
		Distribution:        e.Distribution + o.Distribution,
		CapAndTrade:         e.CapAndTrade + o.CapAndTrade,
		GHGAdder:            e.GHGAdder + o.GHGAdder,
		GHGRebalancing:      e.GHGRebalancing + o.GHGRebalancing,
		GHGAdderRebalancing: e.GHGAdderRebalancing + o.GHGAdderRebalancing,
		MethaneLeakage:      e.MethaneLeakage + o.MethaneLeakage,
		Total:               e.Total + o.Total,
	}
}

// ParseElecComponents parses a comma separated component list. An empty
// string selects every component.
func ParseElecComponents(s string) ([]ElecComponent, error) {
	if strings.TrimSpace(s) == "" {
		return ElecComponentNames, nil
	}
	var out []ElecComponent
	for _, f := range strings.Split(s, ",") {
		c := ElecComponent(strings.ToLower(strings.TrimSpace(f)))
		if _, ok := (ElecComponents{}).Get(c); !ok {
			return nil, fmt.Errorf("unknown electric component %q", f)
		}
		out = append(out, c)
	}
	return out, nil
}

// GasComponent names one gas avoided-cost component.
type GasComponent string

const (
	GasMarket          GasComponent = "market"
	GasTD              GasComponent = "t_d"
	GasEnvironment     GasComponent = "environment"
	GasBTMMethane      GasComponent = "btm_methane"
	GasUpstreamMethane GasComponent = "upstream_methane"
	GasTotal           GasComponent = "total"
)

var GasComponentNames = []GasComponent{
	GasMarket, GasTD, GasEnvironment, GasBTMMethane, GasUpstreamMethane, GasTotal,
}

type GasComponents struct {
	Market          float64 `json:"market"`
	TD              float64 `json:"t_d"`
	Environment     float64 `json:"environment"`
	BTMMethane      float64 `json:"btm_methane"`
	UpstreamMethane float64 `json:"upstream_methane"`
	Total           float64 `json:"total"`
}

func (g GasComponents) Get(c GasComponent) (float64, bool) {
	switch c {
	case GasMarket:
		return g.Market, true
	case GasTD:
		return g.TD, true
	case GasEnvironment:
		return g.Environment, true
	case GasBTMMethane:
		return g.BTMMethane, true
	case GasUpstreamMethane:
		return g.UpstreamMethane, true
	case GasTotal:
		return g.Total, true
	}
	return 0, false
}

func (g GasComponents) Scale(f float64) GasComponents {
	return GasComponents{
		Market:          g.Market * f,
		TD:              g.TD * f,
		Environment:     g.Environment * f,
		BTMMethane:      g.BTMMethane * f,
		UpstreamMethane: g.UpstreamMethane * f,
		Total:           g.Total * f,
	}
}

func (g GasComponents) Add(o GasComponents) GasComponents {
	return GasComponents{
		Market:          g.Market + o.Market,
		TD:              g.TD + o.TD,
		Environment:     g.Environment + o.Environment,
		BTMMethane:      g.BTMMethane + o.BTMMethane,
		UpstreamMethane: g.UpstreamMethane + o.UpstreamMethane,
		Total:           g.Total + o.Total,
	}
}

// ParseGasComponents is ParseElecComponents for gas.
func ParseGasComponents(s string) ([]GasComponent, error) {
	if strings.TrimSpace(s) == "" {
		return GasComponentNames, nil
	}
	var out []GasComponent
	for _, f := range strings.Split(s, ",") {
		c := GasComponent(strings.ToLower(strings.TrimSpace(f)))
		if _, ok := (GasComponents{}).Get(c); !ok {
			return nil, fmt.Errorf("unknown gas component %q", f)
		}
		out = append(out, c)
	}
	return out, nil
}

// ElecAvoidedCost is one hour of one calendar year of electric avoided costs.
// Quarter is the project-relative quarter, set by TagElecQuarters.
type ElecAvoidedCost struct {
	Year        int
	Month       int
	HourOfDay   int
	HourOfYear  int
	Quarter     int
	Costs       ElecComponents
	MarginalGHG float64
}

// GasAvoidedCost is one month of gas avoided costs.
type GasAvoidedCost struct {
	Year    int
	Month   int
	Quarter int
	Costs   GasComponents
}

// NullFloat is a float that may be undefined, such as a ratio over zero
// costs. It marshals to JSON null and to an empty CSV cell.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

func Float(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Float64, 'f', -1, 64)), nil
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Float(v)
	return nil
}

func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}
