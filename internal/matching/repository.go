// internal/matching/repository.go
package matching

import (
	"context"
	"time"

	"freight-match-engine/internal/models"
)

// OfferCatalog is the read-only view of the external freight/vehicle offer
// catalog. Implementations pre-filter structurally in SQL (status, expiry,
// capacity, vehicle type); the geo filter re-checks every rule so it stays
// testable without a database.
type OfferCatalog interface {
	GetFreightOffer(ctx context.Context, id string) (*models.FreightOffer, error)
	// ListActiveFreightSince returns active freight offers created or updated
	// after the given instant.
	ListActiveFreightSince(ctx context.Context, since time.Time) ([]*models.FreightOffer, error)
	// ListCandidateVehicles returns available, unexpired vehicle offers that
	// structurally fit the freight offer.
	ListCandidateVehicles(ctx context.Context, freight *models.FreightOffer) ([]*models.VehicleOffer, error)
}

// MatchRepository persists match results. UpsertSuggestion must be atomic:
// at most one suggested row may exist per (freight, vehicle) pair, and two
// concurrent matcher runs on the same pair must not duplicate it.
type MatchRepository interface {
	// UpsertSuggestion inserts a new suggestion or refreshes the live one for
	// the pair. The second return reports whether a new row was created.
	UpsertSuggestion(ctx context.Context, m *models.MatchResult) (*models.MatchResult, bool, error)
	GetMatch(ctx context.Context, id string) (*models.MatchResult, error)
	// ListTopForFreight returns live suggestions ordered by score descending,
	// ties broken by ascending vehicle offer id, capped at limit.
	ListTopForFreight(ctx context.Context, freightID string, limit int) ([]*models.MatchResult, error)
	// MarkExpired transitions stale suggested rows to expired and reports how
	// many were swept.
	MarkExpired(ctx context.Context, olderThan time.Time) (int64, error)
	// ListLiveForCompany returns live suggestions touching any offer owned by
	// the company, on either side of the pair.
	ListLiveForCompany(ctx context.Context, companyID string) ([]*models.MatchResult, error)
	// ListHistoryForCompany returns a page of the company's matches, newest
	// first, plus the total row count.
	ListHistoryForCompany(ctx context.Context, companyID string, offset, limit int) ([]*models.MatchResult, int64, error)
}

// FeedbackStore records operator decisions and serves them back as training
// signal. RespondToSuggestion performs the status transition and the ledger
// append in one transaction, guarded by an optimistic status check.
type FeedbackStore interface {
	RespondToSuggestion(ctx context.Context, matchID string, action models.FeedbackAction, reason string, now time.Time) (*models.MatchResult, error)
	// LabeledOutcomes returns ledger entries recorded at or after since.
	LabeledOutcomes(ctx context.Context, since time.Time) ([]*models.FeedbackEntry, error)
	// CompanyAcceptanceRate returns the company's historical acceptance rate
	// on suggested matches and the number of samples behind it.
	CompanyAcceptanceRate(ctx context.Context, companyID string) (float64, int, error)
}

// WeightStore persists versioned weight vectors. Publish must be atomic:
// readers observe either the previous current vector or the new one, never a
// partial write.
type WeightStore interface {
	Current(ctx context.Context) (*models.WeightVector, error)
	Publish(ctx context.Context, v *models.WeightVector) error
	// EnsureBootstrap installs the version-1 vector if none exists yet.
	EnsureBootstrap(ctx context.Context, v *models.WeightVector) error
	// ListVersions returns all published vectors, oldest first.
	ListVersions(ctx context.Context) ([]*models.WeightVector, error)
}

// AnalyticsStore serves the read-only rollup queries. Implementations must
// not take locks that block the write path; an eventually-consistent read is
// acceptable.
type AnalyticsStore interface {
	CountMatchesByStatus(ctx context.Context) (map[models.MatchStatus]int64, error)
	TierOutcomes(ctx context.Context) (map[models.Tier]TierOutcome, error)
	ScoreHistogram(ctx context.Context, bucketWidth float64) ([]ScoreBucket, error)
}

// PriceBand is the historical market-rate band for a route, per km.
type PriceBand struct {
	LowPerKm  float64 `json:"lowPerKm"`
	HighPerKm float64 `json:"highPerKm"`
}

// PriceLookup serves route market-rate bands. Treated as a fast, cached
// external read; on failure the price sub-score falls back to the neutral
// default instead of failing the match.
type PriceLookup interface {
	RouteBand(ctx context.Context, originCountry, destinationCountry string) (*PriceBand, error)
}

// EmissionsLookup serves emission factors (gCO2 per ton-km) per vehicle type.
type EmissionsLookup interface {
	FactorFor(vehicleType string) (float64, bool)
}

// ReliabilityLookup serves counterparty acceptance rates.
type ReliabilityLookup interface {
	AcceptanceRate(ctx context.Context, companyID string) (float64, int, error)
}

// SuggestionNotifier is told about fresh premium-tier suggestions. Calls are
// best-effort; failures never fail a match run.
type SuggestionNotifier interface {
	NotifyPremiumSuggestions(ctx context.Context, freight *models.FreightOffer, matches []*models.MatchResult)
}
