// internal/lookup/pricing.go
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/database"
	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/matching"

	"github.com/redis/go-redis/v9"
)

// ESPriceLookup serves route market-rate bands from the rate index, with a
// redis read-through cache in front. Implements matching.PriceLookup.
type ESPriceLookup struct {
	es     *database.ElasticsearchClient
	cache  *database.RedisClient
	index  string
	ttl    time.Duration
	reqTTL time.Duration
	logger logger.Logger
}

func NewESPriceLookup(es *database.ElasticsearchClient, cache *database.RedisClient, cfg config.PricingConfig, log logger.Logger) *ESPriceLookup {
	return &ESPriceLookup{
		es:     es,
		cache:  cache,
		index:  cfg.Index,
		ttl:    time.Duration(cfg.CacheTTLMins) * time.Minute,
		reqTTL: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		logger: log,
	}
}

// RouteBand returns the aggregated low/high per-km rate for a country pair.
func (l *ESPriceLookup) RouteBand(ctx context.Context, originCountry, destinationCountry string) (*matching.PriceBand, error) {
	key := fmt.Sprintf("pricing:band:%s:%s", originCountry, destinationCountry)

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, key)
		if err == nil {
			var band matching.PriceBand
			if err := json.Unmarshal([]byte(cached), &band); err == nil {
				return &band, nil
			}
		} else if err != redis.Nil {
			l.logger.WithError(err).Debug("pricing cache read failed, querying index", nil)
		}
	}

	band, err := l.queryIndex(ctx, originCountry, destinationCountry)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		payload, _ := json.Marshal(band)
		if err := l.cache.Set(ctx, key, payload, l.ttl); err != nil {
			l.logger.WithError(err).Debug("pricing cache write failed", nil)
		}
	}
	return band, nil
}

func (l *ESPriceLookup) queryIndex(ctx context.Context, originCountry, destinationCountry string) (*matching.PriceBand, error) {
	if l.reqTTL > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.reqTTL)
		defer cancel()
	}

	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"origin_country": originCountry}},
					{"term": map[string]interface{}{"destination_country": destinationCountry}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"low":  map[string]interface{}{"percentiles": map[string]interface{}{"field": "price_per_km", "percents": []float64{25}}},
			"high": map[string]interface{}{"percentiles": map[string]interface{}{"field": "price_per_km", "percents": []float64{75}}},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	raw, err := l.es.Search(ctx, l.index, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewLookupUnavailableError("pricing", err)
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Low struct {
				Values map[string]float64 `json:"values"`
			} `json:"low"`
			High struct {
				Values map[string]float64 `json:"values"`
			} `json:"high"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperrors.NewLookupUnavailableError("pricing", err)
	}

	if resp.Hits.Total.Value == 0 {
		return nil, apperrors.NewNotFoundError("route price band", originCountry+":"+destinationCountry)
	}

	band := &matching.PriceBand{
		LowPerKm:  resp.Aggregations.Low.Values["25.0"],
		HighPerKm: resp.Aggregations.High.Values["75.0"],
	}
	if band.HighPerKm < band.LowPerKm {
		band.LowPerKm, band.HighPerKm = band.HighPerKm, band.LowPerKm
	}
	return band, nil
}
