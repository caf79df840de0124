// internal/models/weights.go
package models

import (
	"fmt"
	"math"
	"time"
)

// weightTolerance is the floating-point slack allowed on the sum-to-one check.
const weightTolerance = 1e-9

// Weights is the per-feature weight set used to combine sub-scores into a
// composite score. Same fixed shape as SubScores.
type Weights struct {
	Distance    float64 `json:"distance"`
	Capacity    float64 `json:"capacity"`
	Timing      float64 `json:"timing"`
	Reliability float64 `json:"reliability"`
	Price       float64 `json:"price"`
	Carbon      float64 `json:"carbon"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Distance + w.Capacity + w.Timing + w.Reliability + w.Price + w.Carbon
}

// Normalized returns a copy scaled so the weights sum to 1. Negative weights
// are floored at zero first. A degenerate all-zero set falls back to the
// default weights.
func (w Weights) Normalized() Weights {
	clamped := Weights{
		Distance:    math.Max(0, w.Distance),
		Capacity:    math.Max(0, w.Capacity),
		Timing:      math.Max(0, w.Timing),
		Reliability: math.Max(0, w.Reliability),
		Price:       math.Max(0, w.Price),
		Carbon:      math.Max(0, w.Carbon),
	}
	total := clamped.Sum()
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Distance:    clamped.Distance / total,
		Capacity:    clamped.Capacity / total,
		Timing:      clamped.Timing / total,
		Reliability: clamped.Reliability / total,
		Price:       clamped.Price / total,
		Carbon:      clamped.Carbon / total,
	}
}

// Apply combines sub-scores into the weighted composite, clamped to [0, 100].
func (w Weights) Apply(s SubScores) float64 {
	composite := w.Distance*s.Distance +
		w.Capacity*s.Capacity +
		w.Timing*s.Timing +
		w.Reliability*s.Reliability +
		w.Price*s.Price +
		w.Carbon*s.Carbon
	return math.Max(0, math.Min(100, composite))
}

// DefaultWeights returns the bootstrap weight set.
func DefaultWeights() Weights {
	return Weights{
		Distance:    0.25,
		Capacity:    0.20,
		Timing:      0.15,
		Reliability: 0.15,
		Price:       0.15,
		Carbon:      0.10,
	}
}

// WeightVector is a versioned weight set plus the tier thresholds that give
// tiers a stable meaning within one model version. Vectors are immutable:
// recalibration writes a new version and switches the current pointer,
// it never mutates a published vector.
type WeightVector struct {
	Version          int       `json:"version"`
	Weights          Weights   `json:"weights"`
	PremiumThreshold float64   `json:"premiumThreshold"`
	GoodThreshold    float64   `json:"goodThreshold"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewWeightVector validates and constructs a weight vector.
func NewWeightVector(version int, w Weights, premium, good float64) (*WeightVector, error) {
	v := &WeightVector{
		Version:          version,
		Weights:          w,
		PremiumThreshold: premium,
		GoodThreshold:    good,
		CreatedAt:        time.Now().UTC(),
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate enforces the weight vector invariants: non-negative weights
// summing to 1 within tolerance, and ordered thresholds.
func (v *WeightVector) Validate() error {
	for name, weight := range map[string]float64{
		"distance":    v.Weights.Distance,
		"capacity":    v.Weights.Capacity,
		"timing":      v.Weights.Timing,
		"reliability": v.Weights.Reliability,
		"price":       v.Weights.Price,
		"carbon":      v.Weights.Carbon,
	} {
		if weight < 0 {
			return fmt.Errorf("weight %q is negative: %f", name, weight)
		}
	}
	if diff := math.Abs(v.Weights.Sum() - 1.0); diff > weightTolerance {
		return fmt.Errorf("weights sum to %f, want 1.0", v.Weights.Sum())
	}
	if v.GoodThreshold > v.PremiumThreshold {
		return fmt.Errorf("good threshold %f exceeds premium threshold %f", v.GoodThreshold, v.PremiumThreshold)
	}
	if v.PremiumThreshold < 0 || v.PremiumThreshold > 100 || v.GoodThreshold < 0 {
		return fmt.Errorf("thresholds out of range: premium=%f good=%f", v.PremiumThreshold, v.GoodThreshold)
	}
	return nil
}

// Tier classifies a composite score against this vector's thresholds.
func (v *WeightVector) Tier(score float64) Tier {
	switch {
	case score >= v.PremiumThreshold:
		return TierPremium
	case score >= v.GoodThreshold:
		return TierGood
	default:
		return TierFair
	}
}

// BootstrapWeightVector is the version-1 vector created once at bootstrap.
func BootstrapWeightVector(premium, good float64) *WeightVector {
	return &WeightVector{
		Version:          1,
		Weights:          DefaultWeights(),
		PremiumThreshold: premium,
		GoodThreshold:    good,
		CreatedAt:        time.Now().UTC(),
	}
}
