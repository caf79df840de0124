// internal/matching/batch.go
package matching

import (
	"context"
	"sync"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/metrics"
	"freight-match-engine/internal/models"
)

// BatchError records one freight offer's failure inside a batch run.
type BatchError struct {
	FreightOfferID string `json:"freightOfferId"`
	Error          string `json:"error"`
}

// BatchSummary is the outcome of one batch matcher run.
type BatchSummary struct {
	Processed      int           `json:"processed"`
	ZeroMatch      int           `json:"zeroMatch"`
	MatchesWritten int           `json:"matchesWritten"`
	Errors         []BatchError  `json:"errors,omitempty"`
	Cancelled      bool          `json:"cancelled"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}

// BatchMatcher drives the single-match service across every active freight
// offer touched within a recent window. Offers are processed by a bounded
// worker pool; one offer's failure is recorded in the summary and never
// aborts the batch.
type BatchMatcher struct {
	cfg      config.BatchConfig
	catalog  OfferCatalog
	service  *Service
	notifier SuggestionNotifier
	logger   logger.Logger
	now      func() time.Time
}

func NewBatchMatcher(
	cfg config.BatchConfig,
	catalog OfferCatalog,
	service *Service,
	notifier SuggestionNotifier,
	log logger.Logger,
) *BatchMatcher {
	return &BatchMatcher{
		cfg:      cfg,
		catalog:  catalog,
		service:  service,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "batch-matcher"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run matches every active freight offer created or updated within the last
// hoursBack hours, capping each offer's output at limitPerFreight.
// Cancellation is cooperative: in-flight offers finish, queued offers are
// skipped, and the partial summary is returned. An idempotent re-run
// finishes the job.
func (b *BatchMatcher) Run(ctx context.Context, hoursBack, limitPerFreight int) (*BatchSummary, error) {
	if hoursBack <= 0 {
		hoursBack = b.cfg.HoursBack
	}
	if limitPerFreight <= 0 {
		limitPerFreight = b.cfg.LimitPerFreight
	}

	started := b.now()
	summary := &BatchSummary{StartedAt: started}

	since := started.Add(-time.Duration(hoursBack) * time.Hour)
	offers, err := b.catalog.ListActiveFreightSince(ctx, since)
	if err != nil {
		return nil, err
	}

	concurrency := b.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)

	for _, offer := range offers {
		// Check-and-stop between iterations; workers already dispatched run
		// to completion so the repository stays consistent.
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(freight *models.FreightOffer) {
			defer wg.Done()
			defer func() { <-sem }()

			matches, err := b.service.SmartMatch(ctx, freight.ID, limitPerFreight)

			mu.Lock()
			summary.Processed++
			switch {
			case err != nil:
				summary.Errors = append(summary.Errors, BatchError{
					FreightOfferID: freight.ID,
					Error:          err.Error(),
				})
			case len(matches) == 0:
				summary.ZeroMatch++
			default:
				summary.MatchesWritten += len(matches)
			}
			mu.Unlock()

			if err != nil {
				metrics.BatchOfferFailures.Inc()
				b.logger.Warn("freight offer failed in batch", map[string]interface{}{
					"freightId": freight.ID,
					"error":     err,
				})
				return
			}

			// Notification is best-effort and runs outside the summary lock.
			if b.notifier != nil {
				if premium := premiumOnly(matches); len(premium) > 0 {
					b.notifier.NotifyPremiumSuggestions(ctx, freight, premium)
				}
			}
		}(offer)
	}
	wg.Wait()

	summary.Duration = time.Since(started)
	metrics.BatchDuration.Observe(summary.Duration.Seconds())
	status := "completed"
	if summary.Cancelled {
		status = "cancelled"
	}
	metrics.BatchRuns.WithLabelValues(status).Inc()

	b.logger.Info("batch match finished", map[string]interface{}{
		"processed": summary.Processed,
		"zeroMatch": summary.ZeroMatch,
		"written":   summary.MatchesWritten,
		"errors":    len(summary.Errors),
		"cancelled": summary.Cancelled,
	})
	return summary, nil
}

func premiumOnly(matches []*models.MatchResult) []*models.MatchResult {
	var out []*models.MatchResult
	for _, m := range matches {
		if m.Tier == models.TierPremium {
			out = append(out, m)
		}
	}
	return out
}
