// internal/matching/features_test.go
package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"freight-match-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestDistanceScore(t *testing.T) {
	assert.Equal(t, 100.0, DistanceScore(0, 300))
	assert.InDelta(t, 50.0, DistanceScore(150, 300), 1e-9)
	assert.Equal(t, 0.0, DistanceScore(300, 300))
	assert.Equal(t, 0.0, DistanceScore(400, 300))
	assert.Equal(t, 0.0, DistanceScore(100, 0))

	// Monotonic: closer is never worse.
	prev := 100.0
	for d := 10.0; d <= 300; d += 10 {
		s := DistanceScore(d, 300)
		assert.LessOrEqual(t, s, prev)
		prev = s
	}
}

func TestCapacityScore(t *testing.T) {
	assert.InDelta(t, 83.33, CapacityScore(10000, 12000, 50), 0.01)
	assert.Equal(t, 100.0, CapacityScore(24000, 24000, 50))
	assert.Equal(t, 50.0, CapacityScore(0, 24000, 50))
	assert.Equal(t, 50.0, CapacityScore(10000, 0, 50))
	// Oversized cargo slips past the filter only on unknown data; ratio is
	// still capped at 1.
	assert.Equal(t, 100.0, CapacityScore(30000, 24000, 50))
}

func TestTimingScore(t *testing.T) {
	loading := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 100.0, TimingScore(loading, loading, 7))
	assert.InDelta(t, 100.0*(1-1.0/7), TimingScore(loading.Add(-24*time.Hour), loading, 7), 1e-9)
	// Symmetric around the loading date.
	assert.InDelta(t,
		TimingScore(loading.Add(-48*time.Hour), loading, 7),
		TimingScore(loading.Add(48*time.Hour), loading, 7), 1e-9)
	assert.Equal(t, 0.0, TimingScore(loading.Add(-8*24*time.Hour), loading, 7))
	assert.Equal(t, 0.0, TimingScore(loading, loading, 0))
}

func TestReliabilityScore(t *testing.T) {
	assert.Equal(t, 50.0, ReliabilityScore(0, 0, false, 50))
	assert.Equal(t, 60.0, ReliabilityScore(0, 0, true, 50))
	assert.Equal(t, 80.0, ReliabilityScore(0.8, 25, false, 50))
	assert.Equal(t, 90.0, ReliabilityScore(0.8, 25, true, 50))
	// Verified bump never exceeds the cap.
	assert.Equal(t, 100.0, ReliabilityScore(1.0, 25, true, 50))
	// A measured zero rate beats nothing but the floor.
	assert.Equal(t, 0.0, ReliabilityScore(0, 10, false, 50))
}

func TestPriceScore(t *testing.T) {
	band := &PriceBand{LowPerKm: 1.0, HighPerKm: 2.0}
	price := func(p float64) *float64 { return &p }

	assert.Equal(t, 50.0, PriceScore(nil, band, 50))
	assert.Equal(t, 50.0, PriceScore(price(1.5), nil, 50))
	assert.Equal(t, 100.0, PriceScore(price(0.8), band, 50))
	assert.Equal(t, 100.0, PriceScore(price(1.0), band, 50))
	assert.InDelta(t, 80.0, PriceScore(price(1.5), band, 50), 1e-9)
	assert.InDelta(t, 60.0, PriceScore(price(2.0), band, 50), 1e-9)
	assert.InDelta(t, 30.0, PriceScore(price(3.0), band, 50), 1e-9)
	assert.Equal(t, 0.0, PriceScore(price(4.0), band, 50))

	// Degenerate band falls back to neutral.
	flat := &PriceBand{LowPerKm: 1.5, HighPerKm: 1.5}
	assert.Equal(t, 50.0, PriceScore(price(1.5), flat, 50))
}

func TestCarbonScore(t *testing.T) {
	assert.Equal(t, 100.0, CarbonScore(62, 62))
	assert.InDelta(t, 100.0*62/92, CarbonScore(92, 62), 1e-9)
	// Cleaner than the baseline caps at 100.
	assert.Equal(t, 100.0, CarbonScore(58, 62))
	assert.Equal(t, 0.0, CarbonScore(0, 62))
	assert.Equal(t, 0.0, CarbonScore(62, 0))
}

type stubPriceLookup struct {
	band *PriceBand
	err  error
}

func (s *stubPriceLookup) RouteBand(ctx context.Context, origin, destination string) (*PriceBand, error) {
	return s.band, s.err
}

type stubEmissions struct {
	factors map[string]float64
}

func (s *stubEmissions) FactorFor(vehicleType string) (float64, bool) {
	f, ok := s.factors[vehicleType]
	return f, ok
}

type stubReliability struct {
	rate    float64
	samples int
	err     error
}

func (s *stubReliability) AcceptanceRate(ctx context.Context, companyID string) (float64, int, error) {
	return s.rate, s.samples, s.err
}

func TestExtractor_Extract_LookupFallbacks(t *testing.T) {
	cfg := testMatchingConfig()
	ext := NewExtractor(cfg,
		&stubPriceLookup{err: errors.New("index down")},
		&stubEmissions{factors: map[string]float64{}},
		&stubReliability{err: errors.New("redis down")},
		logger.NewNoOpLogger(),
	)

	freight := testFreight()
	v := testVehicle("v-1")
	sub := ext.Extract(context.Background(), freight, Candidate{Vehicle: v, DistanceKm: 0, KnownDistance: true})

	// Failed or unknown lookups degrade to the neutral midpoint; the pair is
	// still scored.
	assert.Equal(t, cfg.NeutralScore, sub.Reliability)
	assert.Equal(t, cfg.NeutralScore, sub.Price)
	assert.Equal(t, cfg.NeutralScore, sub.Carbon)
	assert.Equal(t, 100.0, sub.Distance)
}

func TestExtractor_Extract_AllLookupsAvailable(t *testing.T) {
	cfg := testMatchingConfig()
	perKm := 1.5
	ext := NewExtractor(cfg,
		&stubPriceLookup{band: &PriceBand{LowPerKm: 1.0, HighPerKm: 2.0}},
		&stubEmissions{factors: map[string]float64{"semi_trailer": 62}},
		&stubReliability{rate: 0.9, samples: 40},
		logger.NewNoOpLogger(),
	)

	freight := testFreight()
	v := testVehicle("v-1")
	v.PricePerKm = &perKm
	v.Verified = true

	sub := ext.Extract(context.Background(), freight, Candidate{Vehicle: v, DistanceKm: 150, KnownDistance: true})

	assert.InDelta(t, 50.0, sub.Distance, 1e-9)
	assert.InDelta(t, 100.0*10000/24000, sub.Capacity, 1e-9)
	assert.InDelta(t, 100.0, sub.Reliability, 1e-9) // 90 + verified bump, capped
	assert.InDelta(t, 80.0, sub.Price, 1e-9)
	assert.Equal(t, 100.0, sub.Carbon)
}

func TestExtractor_Extract_UnknownDistance(t *testing.T) {
	cfg := testMatchingConfig()
	ext := NewExtractor(cfg,
		&stubPriceLookup{err: errors.New("down")},
		&stubEmissions{},
		&stubReliability{},
		logger.NewNoOpLogger(),
	)

	sub := ext.Extract(context.Background(), testFreight(), Candidate{Vehicle: testVehicle("v-1"), DistanceKm: 300, KnownDistance: false})
	assert.Equal(t, cfg.NeutralScore, sub.Distance)
}
