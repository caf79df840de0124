// internal/matching/analytics_test.go
package matching

import (
	"context"
	"testing"
	"time"

	"freight-match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyticsStore serves canned rollup rows.
type fakeAnalyticsStore struct {
	byStatus  map[models.MatchStatus]int64
	byTier    map[models.Tier]TierOutcome
	histogram []ScoreBucket
	err       error
}

func (f *fakeAnalyticsStore) CountMatchesByStatus(ctx context.Context) (map[models.MatchStatus]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byStatus, nil
}

func (f *fakeAnalyticsStore) TierOutcomes(ctx context.Context) (map[models.Tier]TierOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTier, nil
}

func (f *fakeAnalyticsStore) ScoreHistogram(ctx context.Context, bucketWidth float64) ([]ScoreBucket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.histogram, nil
}

func weightVectorAt(version int, distance float64) *models.WeightVector {
	rest := (1 - distance) / 5
	return &models.WeightVector{
		Version: version,
		Weights: models.Weights{
			Distance:    distance,
			Capacity:    rest,
			Timing:      rest,
			Reliability: rest,
			Price:       rest,
			Carbon:      rest,
		},
		PremiumThreshold: 85,
		GoodThreshold:    65,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestAggregator_Report(t *testing.T) {
	store := &fakeAnalyticsStore{
		byStatus: map[models.MatchStatus]int64{
			models.MatchStatusSuggested: 10,
			models.MatchStatusAccepted:  6,
			models.MatchStatusRejected:  2,
			models.MatchStatusExpired:   4,
		},
		byTier: map[models.Tier]TierOutcome{
			models.TierPremium: {Accepted: 4, Rejected: 0},
			models.TierGood:    {Accepted: 2, Rejected: 1},
			models.TierFair:    {Accepted: 0, Rejected: 1},
		},
		histogram: []ScoreBucket{
			{From: 60, To: 70, Count: 5},
			{From: 70, To: 80, Count: 9},
		},
	}
	weights := newFakeWeightStore(weightVectorAt(1, 0.25), weightVectorAt(2, 0.30))

	report, err := NewAggregator(store, weights).Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.MatchesByStatus[models.MatchStatusSuggested])
	assert.InDelta(t, 0.75, report.OverallAcceptanceRate, 1e-9) // 6 of 8 resolved
	assert.Equal(t, 2, report.CurrentModelVersion)
	assert.Len(t, report.ScoreDistribution, 2)

	require.Len(t, report.WeightDrift, 1)
	drift := report.WeightDrift[0]
	assert.Equal(t, 1, drift.FromVersion)
	assert.Equal(t, 2, drift.ToVersion)
	// Distance moved +0.05 and the five remaining weights each gave back
	// 0.01, so the L1 distance is 0.10.
	assert.InDelta(t, 0.10, drift.L1Distance, 1e-9)
}

func TestAggregator_Report_EmptyStore(t *testing.T) {
	store := &fakeAnalyticsStore{
		byStatus: map[models.MatchStatus]int64{},
		byTier:   map[models.Tier]TierOutcome{},
	}
	weights := newFakeWeightStore(weightVectorAt(1, 0.25))

	report, err := NewAggregator(store, weights).Report(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.OverallAcceptanceRate)
	assert.Empty(t, report.WeightDrift)
	assert.Equal(t, 1, report.CurrentModelVersion)
}

func TestTierOutcome_AcceptanceRate(t *testing.T) {
	assert.Zero(t, TierOutcome{}.AcceptanceRate())
	assert.InDelta(t, 0.8, TierOutcome{Accepted: 4, Rejected: 1}.AcceptanceRate(), 1e-9)
}

func TestDriftBetween(t *testing.T) {
	assert.Nil(t, driftBetween(nil))
	assert.Nil(t, driftBetween([]*models.WeightVector{weightVectorAt(1, 0.25)}))

	out := driftBetween([]*models.WeightVector{
		weightVectorAt(1, 0.25),
		weightVectorAt(2, 0.25),
	})
	require.Len(t, out, 1)
	assert.Zero(t, out[0].L1Distance)
}
