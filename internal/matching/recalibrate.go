// internal/matching/recalibrate.go
package matching

import (
	"context"
	"math"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/database"
	"freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/metrics"
	"freight-match-engine/internal/models"

	"github.com/google/uuid"
)

const recalibrationLeaseKey = "matching:recalibration:lease"

// LeaseLocker guards recalibration against concurrent runs.
type LeaseLocker interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLease implements LeaseLocker on the shared Redis client.
type RedisLease struct {
	client *database.RedisClient
}

func NewRedisLease(client *database.RedisClient) *RedisLease {
	return &RedisLease{client: client}
}

func (l *RedisLease) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, holder, ttl)
}

func (l *RedisLease) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key)
}

// RecalibrationResult reports what a recalibration run did. A run below the
// minimum sample count is a no-op, not an error: the unchanged current
// vector comes back with Published=false and an explanatory reason.
type RecalibrationResult struct {
	Vector    *models.WeightVector `json:"vector"`
	Published bool                 `json:"published"`
	Samples   int                  `json:"samples"`
	Reason    string               `json:"reason"`
}

// Recalibrator derives a new weight vector from accumulated accept/reject
// outcomes. The learning rule is deliberately simple: each feature's signal
// is the gap between its mean sub-score among accepted and among rejected
// matches, applied as a bounded multiplicative nudge and renormalized, so a
// small noisy sample can never swing the weights by more than the configured
// step.
type Recalibrator struct {
	cfg     config.RecalibrationConfig
	store   FeedbackStore
	weights WeightStore
	source  *WeightSource
	lock    LeaseLocker
	logger  logger.Logger
	now     func() time.Time
}

func NewRecalibrator(
	cfg config.RecalibrationConfig,
	store FeedbackStore,
	weights WeightStore,
	source *WeightSource,
	lock LeaseLocker,
	log logger.Logger,
) *Recalibrator {
	return &Recalibrator{
		cfg:     cfg,
		store:   store,
		weights: weights,
		source:  source,
		lock:    lock,
		logger:  log.WithFields(map[string]interface{}{"component": "recalibrator"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Recalibrate runs one recalibration attempt. It is single-flight: a second
// caller while the lease is held gets a retryable locked error and no
// version is published twice.
func (r *Recalibrator) Recalibrate(ctx context.Context) (*RecalibrationResult, error) {
	holder := uuid.NewString()
	ttl := time.Duration(r.cfg.LockTTLSeconds) * time.Second

	acquired, err := r.lock.Acquire(ctx, recalibrationLeaseKey, holder, ttl)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("acquire recalibration lease", err)
	}
	if !acquired {
		metrics.Recalibrations.WithLabelValues("locked").Inc()
		return nil, errors.NewRecalibrationLockedError(recalibrationLeaseKey)
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), recalibrationLeaseKey); err != nil {
			r.logger.Warn("failed to release recalibration lease", map[string]interface{}{"error": err})
		}
	}()

	current, err := r.source.Active(ctx)
	if err != nil {
		return nil, err
	}

	since := r.now().AddDate(0, 0, -r.cfg.LookbackDays)
	outcomes, err := r.store.LabeledOutcomes(ctx, since)
	if err != nil {
		return nil, err
	}

	if len(outcomes) < r.cfg.MinSamples {
		metrics.Recalibrations.WithLabelValues("skipped_insufficient_data").Inc()
		r.logger.Info("recalibration skipped, not enough labeled outcomes", map[string]interface{}{
			"samples": len(outcomes),
			"minimum": r.cfg.MinSamples,
			"version": current.Version,
		})
		return &RecalibrationResult{
			Vector:    current,
			Published: false,
			Samples:   len(outcomes),
			Reason:    errors.NewInsufficientDataError(len(outcomes), r.cfg.MinSamples).Message,
		}, nil
	}

	nudged := nudgeWeights(current.Weights, outcomes, r.cfg.LearningRate, r.cfg.MaxStep)

	next, err := models.NewWeightVector(current.Version+1, nudged, current.PremiumThreshold, current.GoodThreshold)
	if err != nil {
		return nil, err
	}

	if err := r.weights.Publish(ctx, next); err != nil {
		return nil, err
	}
	if _, err := r.source.Refresh(ctx); err != nil {
		r.logger.Warn("weight cache refresh failed after publish", map[string]interface{}{"error": err})
	}

	metrics.Recalibrations.WithLabelValues("published").Inc()
	r.logger.Info("weight vector recalibrated", map[string]interface{}{
		"fromVersion": current.Version,
		"toVersion":   next.Version,
		"samples":     len(outcomes),
	})
	return &RecalibrationResult{
		Vector:    next,
		Published: true,
		Samples:   len(outcomes),
		Reason:    "published",
	}, nil
}

// nudgeWeights shifts each weight toward the features that predicted
// acceptance. signal is (mean sub-score among accepted - mean among
// rejected) scaled to [-1, 1]; an empty class contributes the neutral
// midpoint so a lookback of all-accepts still nudges sensibly. The raw
// per-feature delta is clamped to maxStep before renormalization.
func nudgeWeights(current models.Weights, outcomes []*models.FeedbackEntry, learningRate, maxStep float64) models.Weights {
	var accSum, rejSum [6]float64
	var accN, rejN int

	for _, o := range outcomes {
		arr := subScoreArray(o.SubScores)
		if o.Action == models.FeedbackAccept {
			for i, v := range arr {
				accSum[i] += v
			}
			accN++
		} else {
			for i, v := range arr {
				rejSum[i] += v
			}
			rejN++
		}
	}

	cur := weightsArray(current)
	var next [6]float64
	for i := range cur {
		accMean, rejMean := 50.0, 50.0
		if accN > 0 {
			accMean = accSum[i] / float64(accN)
		}
		if rejN > 0 {
			rejMean = rejSum[i] / float64(rejN)
		}
		signal := (accMean - rejMean) / 100 // [-1, 1]

		delta := cur[i] * learningRate * signal
		if delta > maxStep {
			delta = maxStep
		} else if delta < -maxStep {
			delta = -maxStep
		}
		next[i] = math.Max(0, cur[i]+delta)
	}

	return weightsFromArray(next).Normalized()
}

func subScoreArray(s models.SubScores) [6]float64 {
	return [6]float64{s.Distance, s.Capacity, s.Timing, s.Reliability, s.Price, s.Carbon}
}

func weightsArray(w models.Weights) [6]float64 {
	return [6]float64{w.Distance, w.Capacity, w.Timing, w.Reliability, w.Price, w.Carbon}
}

func weightsFromArray(a [6]float64) models.Weights {
	return models.Weights{
		Distance:    a[0],
		Capacity:    a[1],
		Timing:      a[2],
		Reliability: a[3],
		Price:       a[4],
		Carbon:      a[5],
	}
}
