package calc

import (
	"strings"

	"github.com/bher20/avoidedcost/pkg/utilities"
)

// Therms profiles accepted by the gas calculation.
const (
	ProfileAnnual = "annual"
	ProfileSummer = "summer"
	ProfileWinter = "winter"
)

// ThermsAdjustments maps utility to therms profile to the multiplier applied
// to gas benefits.
type ThermsAdjustments map[string]map[string]float64

// DefaultThermsAdjustments builds the table from the registered utilities.
func DefaultThermsAdjustments() ThermsAdjustments {
	out := make(ThermsAdjustments)
	for _, u := range utilities.All() {
		if len(u.ThermsProfileAdjustments) == 0 {
			continue
		}
		m := make(map[string]float64, len(u.ThermsProfileAdjustments))
		for k, v := range u.ThermsProfileAdjustments {
			m[strings.ToLower(k)] = v
		}
		out[u.Key] = m
	}
	return out
}

// Merge returns a copy of a with every entry of o laid over it.
func (a ThermsAdjustments) Merge(o ThermsAdjustments) ThermsAdjustments {
	out := make(ThermsAdjustments, len(a)+len(o))
	for _, src := range []ThermsAdjustments{a, o} {
		for util, profiles := range src {
			key := NormalizeUtility(util)
			if out[key] == nil {
				out[key] = make(map[string]float64)
			}
			for p, v := range profiles {
				out[key][strings.ToLower(p)] = v
			}
		}
	}
	return out
}

// Factor looks up the adjustment for a utility and profile.
func (a ThermsAdjustments) Factor(utility, profile string) (float64, error) {
	p := strings.ToLower(strings.TrimSpace(profile))
	switch p {
	case ProfileAnnual, ProfileSummer, ProfileWinter:
	default:
		return 0, dataErrorf(ErrUnknownThermsProfile, "", "therms_profile %q is not one of annual, summer, winter", profile)
	}
	u := NormalizeUtility(utility)
	profiles, ok := a[u]
	if !ok {
		return 0, dataErrorf(ErrNoThermsAdjustment, "", "utility %q", u)
	}
	f, ok := profiles[p]
	if !ok {
		return 0, dataErrorf(ErrNoThermsAdjustment, "", "utility %q has no %s profile", u, p)
	}
	return f, nil
}
