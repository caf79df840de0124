// internal/matching/service_test.go
package matching

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"freight-match-engine/internal/common/config"
	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog is an in-memory OfferCatalog.
type fakeCatalog struct {
	mu       sync.Mutex
	freight  map[string]*models.FreightOffer
	vehicles []*models.VehicleOffer
	getErrs  map[string]error
	listErr  error
}

func newFakeCatalog(freight []*models.FreightOffer, vehicles []*models.VehicleOffer) *fakeCatalog {
	byID := make(map[string]*models.FreightOffer, len(freight))
	for _, f := range freight {
		byID[f.ID] = f
	}
	return &fakeCatalog{freight: byID, vehicles: vehicles}
}

func (f *fakeCatalog) GetFreightOffer(ctx context.Context, id string) (*models.FreightOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErrs[id]; err != nil {
		return nil, err
	}
	offer, ok := f.freight[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("freight offer", id)
	}
	return offer, nil
}

func (f *fakeCatalog) ListActiveFreightSince(ctx context.Context, since time.Time) ([]*models.FreightOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.FreightOffer{}
	for _, offer := range f.freight {
		if offer.Status == models.OfferStatusActive && !offer.CreatedAt.Before(since) {
			out = append(out, offer)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListCandidateVehicles(ctx context.Context, freight *models.FreightOffer) ([]*models.VehicleOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.vehicles, nil
}

// fakeMatchRepo is an in-memory MatchRepository enforcing the live-pair
// upsert the way the partial unique index does.
type fakeMatchRepo struct {
	mu        sync.Mutex
	matches   map[string]*models.MatchResult // by id
	upsertErr error
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: map[string]*models.MatchResult{}}
}

func (r *fakeMatchRepo) UpsertSuggestion(ctx context.Context, m *models.MatchResult) (*models.MatchResult, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return nil, false, r.upsertErr
	}
	for _, existing := range r.matches {
		if existing.Status == models.MatchStatusSuggested &&
			existing.FreightOfferID == m.FreightOfferID &&
			existing.VehicleOfferID == m.VehicleOfferID {
			updated := *m
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
			r.matches[existing.ID] = &updated
			return &updated, false, nil
		}
	}
	stored := *m
	r.matches[stored.ID] = &stored
	return &stored, true, nil
}

func (r *fakeMatchRepo) GetMatch(ctx context.Context, id string) (*models.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("match result", id)
	}
	return m, nil
}

func (r *fakeMatchRepo) ListTopForFreight(ctx context.Context, freightID string, limit int) ([]*models.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.MatchResult{}
	for _, m := range r.matches {
		if m.FreightOfferID == freightID && m.Status == models.MatchStatusSuggested {
			out = append(out, m)
		}
	}
	sortMatches(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMatchRepo) MarkExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.matches {
		if m.Status == models.MatchStatusSuggested && m.CreatedAt.Before(olderThan) {
			m.Status = models.MatchStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeMatchRepo) ListLiveForCompany(ctx context.Context, companyID string) ([]*models.MatchResult, error) {
	return []*models.MatchResult{}, nil
}

func (r *fakeMatchRepo) ListHistoryForCompany(ctx context.Context, companyID string, offset, limit int) ([]*models.MatchResult, int64, error) {
	return []*models.MatchResult{}, 0, nil
}

func sortMatches(out []*models.MatchResult) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].AIScore != out[j].AIScore {
			return out[i].AIScore > out[j].AIScore
		}
		return out[i].VehicleOfferID < out[j].VehicleOfferID
	})
}

func (r *fakeMatchRepo) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.matches {
		if m.Status == models.MatchStatusSuggested {
			n++
		}
	}
	return n
}

func newTestService(cfg config.MatchingConfig, catalog *fakeCatalog, repo *fakeMatchRepo) *Service {
	source := NewWeightSource(newFakeWeightStore(models.BootstrapWeightVector(85, 65)))
	ext := NewExtractor(cfg,
		&stubPriceLookup{band: &PriceBand{LowPerKm: 1.0, HighPerKm: 2.0}},
		&stubEmissions{factors: map[string]float64{"semi_trailer": 62}},
		&stubReliability{rate: 0.8, samples: 40},
		logger.NewNoOpLogger(),
	)
	return NewService(cfg, catalog, repo, source, ext, logger.NewNoOpLogger())
}

func TestService_SmartMatch_RanksAndPersists(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()

	near := testVehicle("v-near")
	far := testVehicle("v-far")
	far.CurrentCoords = &hamburg

	catalog := newFakeCatalog([]*models.FreightOffer{freight}, []*models.VehicleOffer{far, near})
	repo := newFakeMatchRepo()
	svc := newTestService(cfg, catalog, repo)

	got, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Nearer vehicle scores higher on distance, all else equal.
	assert.Equal(t, "v-near", got[0].VehicleOfferID)
	assert.GreaterOrEqual(t, got[0].AIScore, got[1].AIScore)
	for _, m := range got {
		assert.Equal(t, models.MatchStatusSuggested, m.Status)
		assert.Equal(t, 1, m.ModelVersion)
	}
	assert.Equal(t, 2, repo.liveCount())
}

func TestService_SmartMatch_Idempotent(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()
	catalog := newFakeCatalog([]*models.FreightOffer{freight}, []*models.VehicleOffer{testVehicle("v-1")})
	repo := newFakeMatchRepo()
	svc := newTestService(cfg, catalog, repo)

	first, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)
	second, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)

	// Re-running against an unchanged marketplace refreshes the suggestion
	// in place instead of duplicating it.
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, repo.liveCount())
}

func TestService_SmartMatch_NoCandidatesIsEmptyNotError(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()
	booked := testVehicle("v-1")
	booked.Status = models.VehicleStatusBooked

	catalog := newFakeCatalog([]*models.FreightOffer{freight}, []*models.VehicleOffer{booked})
	svc := newTestService(cfg, catalog, newFakeMatchRepo())

	got, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_SmartMatch_InactiveFreight(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()
	freight.Status = models.OfferStatusCancelled

	catalog := newFakeCatalog([]*models.FreightOffer{freight}, nil)
	svc := newTestService(cfg, catalog, newFakeMatchRepo())

	_, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState))
}

func TestService_SmartMatch_UnknownFreight(t *testing.T) {
	catalog := newFakeCatalog(nil, nil)
	svc := newTestService(testMatchingConfig(), catalog, newFakeMatchRepo())

	_, err := svc.SmartMatch(context.Background(), "missing", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestService_SmartMatch_UpsertFailureSurfaces(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()
	catalog := newFakeCatalog([]*models.FreightOffer{freight}, []*models.VehicleOffer{testVehicle("v-1")})
	repo := newFakeMatchRepo()
	repo.upsertErr = errors.New("db down")
	svc := newTestService(cfg, catalog, repo)

	_, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	assert.Error(t, err)
}

func TestService_SmartMatch_Deterministic(t *testing.T) {
	cfg := testMatchingConfig()
	freight := testFreight()
	vehicles := []*models.VehicleOffer{testVehicle("v-b"), testVehicle("v-a"), testVehicle("v-c")}

	catalog := newFakeCatalog([]*models.FreightOffer{freight}, vehicles)
	repo := newFakeMatchRepo()
	svc := newTestService(cfg, catalog, repo)

	first, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)
	second, err := svc.SmartMatch(context.Background(), freight.ID, 10)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].VehicleOfferID, second[i].VehicleOfferID)
		assert.Equal(t, first[i].AIScore, second[i].AIScore)
	}
}
