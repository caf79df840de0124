// internal/lookup/reliability.go
package lookup

import (
	"context"
	"encoding/json"
	"time"

	"freight-match-engine/internal/common/database"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/matching"

	"github.com/redis/go-redis/v9"
)

const reliabilityCacheTTL = 15 * time.Minute

type cachedRate struct {
	Rate    float64 `json:"rate"`
	Samples int     `json:"samples"`
}

// CachedReliabilityLookup is a redis read-through over the feedback ledger's
// acceptance-rate query. Implements matching.ReliabilityLookup.
type CachedReliabilityLookup struct {
	store  matching.FeedbackStore
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedReliabilityLookup(store matching.FeedbackStore, cache *database.RedisClient, log logger.Logger) *CachedReliabilityLookup {
	return &CachedReliabilityLookup{
		store:  store,
		cache:  cache,
		ttl:    reliabilityCacheTTL,
		logger: log,
	}
}

// AcceptanceRate returns the company's historical acceptance rate and sample
// count. Cache failures degrade to a direct ledger query.
func (l *CachedReliabilityLookup) AcceptanceRate(ctx context.Context, companyID string) (float64, int, error) {
	key := "reliability:company:" + companyID

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, key)
		if err == nil {
			var c cachedRate
			if err := json.Unmarshal([]byte(cached), &c); err == nil {
				return c.Rate, c.Samples, nil
			}
		} else if err != redis.Nil {
			l.logger.WithError(err).Debug("reliability cache read failed, querying ledger", nil)
		}
	}

	rate, samples, err := l.store.CompanyAcceptanceRate(ctx, companyID)
	if err != nil {
		return 0, 0, err
	}

	if l.cache != nil {
		payload, _ := json.Marshal(cachedRate{Rate: rate, Samples: samples})
		if err := l.cache.Set(ctx, key, payload, l.ttl); err != nil {
			l.logger.WithError(err).Debug("reliability cache write failed", nil)
		}
	}
	return rate, samples, nil
}
