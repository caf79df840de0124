// internal/matching/scorer.go
package matching

import (
	"context"
	"sync/atomic"
	"time"

	"freight-match-engine/internal/models"

	"github.com/google/uuid"
)

// WeightSource hands out the currently active weight vector. The vector is
// cached in an atomic.Value so scorers never observe a half-published
// version and never hit the store on the hot path; Refresh is called after
// every recalibration publish.
type WeightSource struct {
	store   WeightStore
	current atomic.Value // *models.WeightVector
}

func NewWeightSource(store WeightStore) *WeightSource {
	return &WeightSource{store: store}
}

// Active returns the cached current vector, loading it from the store on
// first use.
func (w *WeightSource) Active(ctx context.Context) (*models.WeightVector, error) {
	if v, ok := w.current.Load().(*models.WeightVector); ok && v != nil {
		return v, nil
	}
	return w.Refresh(ctx)
}

// Refresh reloads the current vector from the store and swaps the cache.
func (w *WeightSource) Refresh(ctx context.Context) (*models.WeightVector, error) {
	v, err := w.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	w.current.Store(v)
	return v, nil
}

// Score combines sub-scores into the composite using the given vector and
// assigns the tier from the vector's thresholds.
func Score(sub models.SubScores, vector *models.WeightVector) (float64, models.Tier) {
	composite := vector.Weights.Apply(sub)
	return composite, vector.Tier(composite)
}

// BuildSuggestion assembles a fresh suggested MatchResult, stamping the model
// version and a snapshot of the weight vector onto it. The snapshot is
// mandatory: the recalibrator must be able to explain any historical score.
func BuildSuggestion(freight *models.FreightOffer, vehicle *models.VehicleOffer, sub models.SubScores, vector *models.WeightVector, now time.Time) *models.MatchResult {
	score, tier := Score(sub, vector)
	return &models.MatchResult{
		ID:             uuid.NewString(),
		FreightOfferID: freight.ID,
		VehicleOfferID: vehicle.ID,
		AIScore:        score,
		SubScores:      sub,
		ModelVersion:   vector.Version,
		FeatureWeights: vector.Weights,
		Tier:           tier,
		Status:         models.MatchStatusSuggested,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
