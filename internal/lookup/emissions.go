// internal/lookup/emissions.go
package lookup

import "strings"

// defaultEmissionFactors holds gCO2 per ton-km per vehicle type, used when
// configuration supplies no override.
var defaultEmissionFactors = map[string]float64{
	"van":          180,
	"rigid_truck":  92,
	"semi_trailer": 62,
	"mega_trailer": 58,
	"refrigerated": 85,
	"tanker":       70,
	"container":    65,
	"flatbed":      68,
}

// StaticEmissionsLookup serves emission factors from configuration, falling
// back to built-in defaults. Implements matching.EmissionsLookup.
type StaticEmissionsLookup struct {
	factors map[string]float64
}

// NewStaticEmissionsLookup merges configured factors over the defaults.
// Configured keys win.
func NewStaticEmissionsLookup(configured map[string]float64) *StaticEmissionsLookup {
	factors := make(map[string]float64, len(defaultEmissionFactors)+len(configured))
	for k, v := range defaultEmissionFactors {
		factors[k] = v
	}
	for k, v := range configured {
		factors[strings.ToLower(k)] = v
	}
	return &StaticEmissionsLookup{factors: factors}
}

// FactorFor returns the factor for a vehicle type. The second return is
// false for unknown types so the carbon score can fall back to neutral.
func (l *StaticEmissionsLookup) FactorFor(vehicleType string) (float64, bool) {
	f, ok := l.factors[strings.ToLower(vehicleType)]
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}
