// internal/matching/engine.go
package matching

import (
	"context"
	"time"

	"freight-match-engine/internal/models"
)

// Page is one page of match history.
type Page struct {
	Items   []*models.MatchResult `json:"items"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"perPage"`
}

// Engine is the facade the web layer (and the task workers) call. It bundles
// the matching pipeline, the feedback loop, recalibration and the read-only
// views behind one type.
type Engine struct {
	service      *Service
	batch        *BatchMatcher
	recorder     *Recorder
	recalibrator *Recalibrator
	aggregator   *Aggregator
	repo         MatchRepository
}

func NewEngine(
	service *Service,
	batch *BatchMatcher,
	recorder *Recorder,
	recalibrator *Recalibrator,
	aggregator *Aggregator,
	repo MatchRepository,
) *Engine {
	return &Engine{
		service:      service,
		batch:        batch,
		recorder:     recorder,
		recalibrator: recalibrator,
		aggregator:   aggregator,
		repo:         repo,
	}
}

// SmartMatch runs the on-demand pipeline for one freight offer.
func (e *Engine) SmartMatch(ctx context.Context, freightID string, limit int) ([]*models.MatchResult, error) {
	return e.service.SmartMatch(ctx, freightID, limit)
}

// BatchMatch runs the scheduled matcher over the recent freight window.
func (e *Engine) BatchMatch(ctx context.Context, hoursBack, limitPerFreight int) (*BatchSummary, error) {
	return e.batch.Run(ctx, hoursBack, limitPerFreight)
}

// RespondToSuggestion records an operator accept/reject decision.
func (e *Engine) RespondToSuggestion(ctx context.Context, matchID string, action models.FeedbackAction, reason string) (*models.MatchResult, error) {
	return e.recorder.RespondToSuggestion(ctx, matchID, action, reason)
}

// RecalibrateWeights derives and publishes a new weight vector from feedback.
func (e *Engine) RecalibrateWeights(ctx context.Context) (*RecalibrationResult, error) {
	return e.recalibrator.Recalibrate(ctx)
}

// GetAnalytics returns the read-only rollup report.
func (e *Engine) GetAnalytics(ctx context.Context) (*AnalyticsReport, error) {
	return e.aggregator.Report(ctx)
}

// GetDashboardSuggestions lists the live suggestions touching any offer
// owned by the company.
func (e *Engine) GetDashboardSuggestions(ctx context.Context, companyID string) ([]*models.MatchResult, error) {
	return e.repo.ListLiveForCompany(ctx, companyID)
}

// ListMatchHistory returns a page of the company's matches, newest first.
func (e *Engine) ListMatchHistory(ctx context.Context, companyID string, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	items, total, err := e.repo.ListHistoryForCompany(ctx, companyID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// MarkExpired sweeps stale live suggestions into the expired state.
func (e *Engine) MarkExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return e.repo.MarkExpired(ctx, olderThan)
}
