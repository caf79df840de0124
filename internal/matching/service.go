// internal/matching/service.go
package matching

import (
	"context"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/metrics"
	"freight-match-engine/internal/models"
)

// Service runs the on-demand matching pipeline for a single freight offer:
// filter, extract, score, upsert, rank. Repeated runs against an unchanged
// marketplace are idempotent: the repository upsert refreshes live
// suggestions instead of duplicating them.
type Service struct {
	cfg       config.MatchingConfig
	catalog   OfferCatalog
	repo      MatchRepository
	weights   *WeightSource
	filter    *Filter
	extractor *Extractor
	logger    logger.Logger
	now       func() time.Time
}

func NewService(
	cfg config.MatchingConfig,
	catalog OfferCatalog,
	repo MatchRepository,
	weights *WeightSource,
	extractor *Extractor,
	log logger.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		catalog:   catalog,
		repo:      repo,
		weights:   weights,
		filter:    NewFilter(cfg),
		extractor: extractor,
		logger:    log.WithFields(map[string]interface{}{"component": "match-service"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SmartMatch scores all compatible vehicles for the freight offer, persists
// the suggestions and returns the top live suggestions by score. A freight
// offer with no compatible vehicles yields an empty list, not an error.
func (s *Service) SmartMatch(ctx context.Context, freightID string, limit int) ([]*models.MatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.SmartMatchDuration.Observe(time.Since(start).Seconds())
	}()

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	freight, err := s.catalog.GetFreightOffer(ctx, freightID)
	if err != nil {
		return nil, err
	}
	if freight.Status != models.OfferStatusActive {
		return nil, errors.NewInvalidStateError("freight offer", string(freight.Status), "only active freight offers can be matched")
	}

	vector, err := s.weights.Active(ctx)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.catalog.ListCandidateVehicles(ctx, freight)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidates := s.filter.Candidates(freight, vehicles, now)
	if len(candidates) == 0 {
		s.logger.Debug("no compatible vehicles", map[string]interface{}{
			"freightId": freightID,
			"universe":  len(vehicles),
		})
		return []*models.MatchResult{}, nil
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := s.extractor.Extract(ctx, freight, c)
		suggestion := BuildSuggestion(freight, c.Vehicle, sub, vector, now)

		stored, created, err := s.repo.UpsertSuggestion(ctx, suggestion)
		if err != nil {
			return nil, err
		}

		metrics.MatchesScored.WithLabelValues(string(stored.Tier)).Inc()
		if created {
			metrics.MatchesUpserted.WithLabelValues("created").Inc()
		} else {
			metrics.MatchesUpserted.WithLabelValues("updated").Inc()
		}
	}

	ranked, err := s.repo.ListTopForFreight(ctx, freightID, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("smart match completed", map[string]interface{}{
		"freightId":  freightID,
		"candidates": len(candidates),
		"returned":   len(ranked),
	})
	return ranked, nil
}
