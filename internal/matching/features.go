// internal/matching/features.go
package matching

import (
	"context"
	"math"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/metrics"
	"freight-match-engine/internal/models"
)

// Extractor computes the six normalized sub-scores for a surviving
// (freight, vehicle) pair. The score functions themselves are pure; the
// extractor only supplies their inputs from the external lookups, falling
// back to the configured neutral midpoint whenever a lookup is unavailable.
type Extractor struct {
	cfg         config.MatchingConfig
	pricing     PriceLookup
	emissions   EmissionsLookup
	reliability ReliabilityLookup
	logger      logger.Logger
}

func NewExtractor(
	cfg config.MatchingConfig,
	pricing PriceLookup,
	emissions EmissionsLookup,
	reliability ReliabilityLookup,
	log logger.Logger,
) *Extractor {
	return &Extractor{
		cfg:         cfg,
		pricing:     pricing,
		emissions:   emissions,
		reliability: reliability,
		logger:      log,
	}
}

// Extract computes the sub-scores for one candidate.
func (e *Extractor) Extract(ctx context.Context, freight *models.FreightOffer, c Candidate) models.SubScores {
	v := c.Vehicle
	neutral := e.cfg.NeutralScore

	distance := neutral
	if c.KnownDistance {
		distance = DistanceScore(c.DistanceKm, e.cfg.MaxRadiusKm)
	}

	reliabilityScore := neutral
	rate, samples, err := e.reliability.AcceptanceRate(ctx, v.CompanyID)
	if err != nil {
		metrics.LookupFallbacks.WithLabelValues("reliability").Inc()
		e.logger.Warn("reliability lookup unavailable, using neutral default", map[string]interface{}{
			"companyId": v.CompanyID,
			"error":     err,
		})
	} else {
		reliabilityScore = ReliabilityScore(rate, samples, v.Verified, neutral)
	}

	priceScore := neutral
	band, err := e.pricing.RouteBand(ctx, freight.OriginCountry, freight.DestinationCountry)
	if err != nil {
		metrics.LookupFallbacks.WithLabelValues("pricing").Inc()
		e.logger.Warn("pricing lookup unavailable, using neutral default", map[string]interface{}{
			"origin":      freight.OriginCountry,
			"destination": freight.DestinationCountry,
			"error":       err,
		})
	} else {
		priceScore = PriceScore(v.PricePerKm, band, neutral)
	}

	carbonScore := neutral
	if factor, ok := e.emissions.FactorFor(v.VehicleType); ok {
		carbonScore = CarbonScore(factor, e.cfg.CarbonBaseline)
	} else {
		metrics.LookupFallbacks.WithLabelValues("emissions").Inc()
	}

	return models.SubScores{
		Distance:    distance,
		Capacity:    CapacityScore(freight.WeightKg, v.CapacityKg, neutral),
		Timing:      TimingScore(v.AvailableFrom, freight.LoadingDate, e.cfg.TimingDecayDays),
		Reliability: reliabilityScore,
		Price:       priceScore,
		Carbon:      carbonScore,
	}
}

// DistanceScore decays linearly from 100 at distance zero to 0 at the
// configured max radius.
func DistanceScore(distKm, maxRadiusKm float64) float64 {
	if maxRadiusKm <= 0 {
		return 0
	}
	return clampScore(100 * (1 - distKm/maxRadiusKm))
}

// CapacityScore rewards tight-but-sufficient capacity fit. The filter has
// already excluded undersized vehicles, so the ratio never exceeds 1 for
// valid inputs; unknown weight or capacity earns the neutral midpoint.
func CapacityScore(weightKg, capacityKg, neutral float64) float64 {
	if weightKg <= 0 || capacityKg <= 0 {
		return neutral
	}
	return clampScore(100 * math.Min(1, weightKg/capacityKg))
}

// TimingScore rewards a small gap between vehicle availability and the
// loading date, decaying linearly to 0 over decayDays. Early idle time and
// near-miss lateness are penalized symmetrically.
func TimingScore(availableFrom, loadingDate time.Time, decayDays float64) float64 {
	if decayDays <= 0 {
		return 0
	}
	gapDays := math.Abs(loadingDate.Sub(availableFrom).Hours()) / 24
	return clampScore(100 * (1 - gapDays/decayDays))
}

// ReliabilityScore maps the counterparty's historical acceptance rate to
// [0, 100]. With no history the score is the neutral midpoint (cold start);
// a verified carrier gets a small bump either way.
func ReliabilityScore(acceptanceRate float64, samples int, verified bool, neutral float64) float64 {
	score := neutral
	if samples > 0 {
		score = acceptanceRate * 100
	}
	if verified {
		score += 10
	}
	return clampScore(score)
}

// PriceScore compares the vehicle's asking price per km with the route's
// historical market band: at or below the band floor scores 100, inside the
// band it falls linearly to 60 at the ceiling, and above the ceiling it keeps
// falling to 0 at twice the ceiling. Missing price or band earns the neutral
// midpoint.
func PriceScore(pricePerKm *float64, band *PriceBand, neutral float64) float64 {
	if pricePerKm == nil || band == nil || band.HighPerKm <= band.LowPerKm {
		return neutral
	}
	p := *pricePerKm
	switch {
	case p <= band.LowPerKm:
		return 100
	case p <= band.HighPerKm:
		position := (p - band.LowPerKm) / (band.HighPerKm - band.LowPerKm)
		return clampScore(100 - position*40)
	default:
		overshoot := (p - band.HighPerKm) / band.HighPerKm
		return clampScore(60 * (1 - overshoot))
	}
}

// CarbonScore rewards lower estimated emissions per ton-km relative to the
// reference baseline: at the baseline the score is 100, and it shrinks
// proportionally as the factor grows.
func CarbonScore(factor, baseline float64) float64 {
	if factor <= 0 || baseline <= 0 {
		return 0
	}
	return clampScore(100 * baseline / factor)
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}
