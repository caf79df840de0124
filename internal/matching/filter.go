// internal/matching/filter.go
package matching

import (
	"math"
	"sort"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Candidate is a vehicle offer that survived the compatibility filter,
// together with its proximity to the freight origin.
type Candidate struct {
	Vehicle    *models.VehicleOffer
	DistanceKm float64
	// KnownDistance is false when either side lacks coordinates and the pair
	// matched on country equality alone.
	KnownDistance bool
}

// Filter narrows the vehicle universe to offers structurally compatible with
// a freight offer. Every rule is a hard exclusion; scoring handles partial
// credit later.
type Filter struct {
	cfg config.MatchingConfig
}

func NewFilter(cfg config.MatchingConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Candidates applies the exclusion rules and returns the surviving vehicles
// ordered by proximity, capped at the configured candidate limit. An empty
// result is a valid outcome, not an error.
func (f *Filter) Candidates(freight *models.FreightOffer, vehicles []*models.VehicleOffer, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(vehicles))
	for _, v := range vehicles {
		c, ok := f.check(freight, v, now)
		if !ok {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Vehicle.ID < out[j].Vehicle.ID
	})

	if f.cfg.MaxCandidates > 0 && len(out) > f.cfg.MaxCandidates {
		out = out[:f.cfg.MaxCandidates]
	}
	return out
}

func (f *Filter) check(freight *models.FreightOffer, v *models.VehicleOffer, now time.Time) (Candidate, bool) {
	if v.Status != models.VehicleStatusAvailable {
		return Candidate{}, false
	}
	if v.ExpiresAt != nil && !v.ExpiresAt.After(now) {
		return Candidate{}, false
	}

	// Vehicle type must match, unless the vehicle is flexible.
	if v.VehicleType != "" && freight.RequiredVehicleType != "" && v.VehicleType != freight.RequiredVehicleType {
		return Candidate{}, false
	}

	// Capacity must cover the cargo weight when both are known.
	if v.CapacityKg > 0 && freight.WeightKg > 0 && v.CapacityKg < freight.WeightKg {
		return Candidate{}, false
	}

	// Declared vehicle destination must agree with the freight destination.
	if v.DestinationCountry != "" && freight.DestinationCountry != "" && v.DestinationCountry != freight.DestinationCountry {
		return Candidate{}, false
	}

	if !f.datesOverlap(freight, v) {
		return Candidate{}, false
	}

	return f.checkProximity(freight, v)
}

// datesOverlap requires the vehicle availability window to intersect the
// freight loading window. A missing available_to is open-ended.
func (f *Filter) datesOverlap(freight *models.FreightOffer, v *models.VehicleOffer) bool {
	if v.AvailableFrom.After(freight.UnloadingDate) {
		return false
	}
	if v.AvailableTo != nil && v.AvailableTo.Before(freight.LoadingDate) {
		return false
	}
	return true
}

// checkProximity admits a vehicle in the freight's origin country, or one
// whose position is within the configured radius of the origin coordinates.
func (f *Filter) checkProximity(freight *models.FreightOffer, v *models.VehicleOffer) (Candidate, bool) {
	sameCountry := v.CurrentCountry != "" && v.CurrentCountry == freight.OriginCountry

	if freight.OriginCoords == nil || v.CurrentCoords == nil {
		if !sameCountry {
			return Candidate{}, false
		}
		// Country match without coordinates sorts behind measured candidates.
		return Candidate{Vehicle: v, DistanceKm: f.cfg.MaxRadiusKm, KnownDistance: false}, true
	}

	dist := HaversineKm(*freight.OriginCoords, *v.CurrentCoords)
	if !sameCountry && dist > f.cfg.MaxRadiusKm {
		return Candidate{}, false
	}
	return Candidate{Vehicle: v, DistanceKm: dist, KnownDistance: true}, true
}
