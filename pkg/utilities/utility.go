package utilities

import "errors"

// Utility describes a utility whose avoided costs the engine can value.
type Utility struct {
	// Key is the upper-case identifier used in project and avoided-cost data.
	Key string `json:"key" yaml:"key"`
	// Name is the human-readable name of the utility.
	Name string `json:"name" yaml:"name"`
	// State is the two letter state code of the service territory.
	State string `json:"state" yaml:"state"`
	// ThermsProfileAdjustments maps a therms profile (annual, summer,
	// winter) to the seasonal multiplier applied to gas benefits.
	ThermsProfileAdjustments map[string]float64 `json:"therms_profile_adjustments" yaml:"therms_profile_adjustments"`
}

var ErrUtilityNotFound = errors.New("utility not found")
