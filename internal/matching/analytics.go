// internal/matching/analytics.go
package matching

import (
	"context"
	"math"

	"freight-match-engine/internal/models"
)

// TierOutcome counts resolved matches of one tier.
type TierOutcome struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// AcceptanceRate returns accepted / (accepted + rejected), or 0 with no data.
func (t TierOutcome) AcceptanceRate() float64 {
	total := t.Accepted + t.Rejected
	if total == 0 {
		return 0
	}
	return float64(t.Accepted) / float64(total)
}

// ScoreBucket is one bar of the composite-score distribution.
type ScoreBucket struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int64   `json:"count"`
}

// WeightDrift is the L1 distance between two consecutive weight versions.
type WeightDrift struct {
	FromVersion int     `json:"fromVersion"`
	ToVersion   int     `json:"toVersion"`
	L1Distance  float64 `json:"l1Distance"`
}

// AnalyticsReport is the read-only rollup served to the caller.
type AnalyticsReport struct {
	MatchesByStatus       map[models.MatchStatus]int64 `json:"matchesByStatus"`
	OverallAcceptanceRate float64                      `json:"overallAcceptanceRate"`
	AcceptanceByTier      map[models.Tier]TierOutcome  `json:"acceptanceByTier"`
	ScoreDistribution     []ScoreBucket                `json:"scoreDistribution"`
	WeightDrift           []WeightDrift                `json:"weightDrift"`
	CurrentModelVersion   int                          `json:"currentModelVersion"`
}

// Aggregator builds analytics reports. It is a pure reader: it takes no
// locks and tolerates writes happening underneath it.
type Aggregator struct {
	store   AnalyticsStore
	weights WeightStore
}

func NewAggregator(store AnalyticsStore, weights WeightStore) *Aggregator {
	return &Aggregator{store: store, weights: weights}
}

const scoreBucketWidth = 10

// Report assembles the full analytics rollup.
func (a *Aggregator) Report(ctx context.Context) (*AnalyticsReport, error) {
	byStatus, err := a.store.CountMatchesByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byTier, err := a.store.TierOutcomes(ctx)
	if err != nil {
		return nil, err
	}

	histogram, err := a.store.ScoreHistogram(ctx, scoreBucketWidth)
	if err != nil {
		return nil, err
	}

	versions, err := a.weights.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	var accepted, rejected int64
	for _, outcome := range byTier {
		accepted += outcome.Accepted
		rejected += outcome.Rejected
	}
	overall := 0.0
	if accepted+rejected > 0 {
		overall = float64(accepted) / float64(accepted+rejected)
	}

	report := &AnalyticsReport{
		MatchesByStatus:       byStatus,
		OverallAcceptanceRate: overall,
		AcceptanceByTier:      byTier,
		ScoreDistribution:     histogram,
		WeightDrift:           driftBetween(versions),
	}
	if len(versions) > 0 {
		report.CurrentModelVersion = versions[len(versions)-1].Version
	}
	return report, nil
}

func driftBetween(versions []*models.WeightVector) []WeightDrift {
	if len(versions) < 2 {
		return nil
	}
	out := make([]WeightDrift, 0, len(versions)-1)
	for i := 1; i < len(versions); i++ {
		prev, next := versions[i-1], versions[i]
		a := weightsArray(prev.Weights)
		b := weightsArray(next.Weights)
		var l1 float64
		for j := range a {
			l1 += math.Abs(a[j] - b[j])
		}
		out = append(out, WeightDrift{
			FromVersion: prev.Version,
			ToVersion:   next.Version,
			L1Distance:  l1,
		})
	}
	return out
}
