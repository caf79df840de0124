// internal/storage/postgres/matches.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/matching"
	"freight-match-engine/internal/models"
)

// MatchRepo persists match results. It implements matching.MatchRepository
// and matching.AnalyticsStore.
type MatchRepo struct {
	db *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

const matchColumns = `
	id, freight_offer_id, vehicle_offer_id, ai_score,
	distance_score, capacity_score, timing_score, reliability_score, price_score, carbon_score,
	model_version, feature_weights, tier, status,
	created_at, updated_at, accepted_at, rejected_at, rejection_reason`

// UpsertSuggestion inserts a suggestion or refreshes the live one for the
// pair in a single statement. The partial unique index on
// (freight_offer_id, vehicle_offer_id) WHERE status='suggested' makes the
// at-most-one-live-suggestion invariant hold even under concurrent matcher
// runs; read-then-write would race.
func (r *MatchRepo) UpsertSuggestion(ctx context.Context, m *models.MatchResult) (*models.MatchResult, bool, error) {
	weightsJSON, err := json.Marshal(m.FeatureWeights)
	if err != nil {
		return nil, false, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO match_results (
			id, freight_offer_id, vehicle_offer_id, ai_score,
			distance_score, capacity_score, timing_score, reliability_score, price_score, carbon_score,
			model_version, feature_weights, tier, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'suggested', $14, $14)
		ON CONFLICT (freight_offer_id, vehicle_offer_id) WHERE status = 'suggested'
		DO UPDATE SET
			ai_score = EXCLUDED.ai_score,
			distance_score = EXCLUDED.distance_score,
			capacity_score = EXCLUDED.capacity_score,
			timing_score = EXCLUDED.timing_score,
			reliability_score = EXCLUDED.reliability_score,
			price_score = EXCLUDED.price_score,
			carbon_score = EXCLUDED.carbon_score,
			model_version = EXCLUDED.model_version,
			feature_weights = EXCLUDED.feature_weights,
			tier = EXCLUDED.tier,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted`,
		m.ID, m.FreightOfferID, m.VehicleOfferID, m.AIScore,
		m.SubScores.Distance, m.SubScores.Capacity, m.SubScores.Timing,
		m.SubScores.Reliability, m.SubScores.Price, m.SubScores.Carbon,
		m.ModelVersion, weightsJSON, string(m.Tier), m.UpdatedAt,
	)

	stored := *m
	var created bool
	if err := row.Scan(&stored.ID, &stored.CreatedAt, &created); err != nil {
		return nil, false, apperrors.NewQueryExecutionFailedError("upsert suggestion", err)
	}
	return &stored, created, nil
}

// GetMatch fetches one match result by id.
func (r *MatchRepo) GetMatch(ctx context.Context, id string) (*models.MatchResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM match_results
		WHERE id = $1`, id)

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("match result", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get match", err)
	}
	return m, nil
}

// ListTopForFreight returns live suggestions by descending score, ties
// broken by ascending vehicle id so the ranking is deterministic.
func (r *MatchRepo) ListTopForFreight(ctx context.Context, freightID string, limit int) ([]*models.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM match_results
		WHERE freight_offer_id = $1 AND status = 'suggested'
		ORDER BY ai_score DESC, vehicle_offer_id ASC
		LIMIT $2`, freightID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list top for freight", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// MarkExpired transitions stale suggested rows to expired.
func (r *MatchRepo) MarkExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE match_results
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'suggested' AND created_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark expired", err)
	}
	return res.RowsAffected()
}

// ListLiveForCompany returns live suggestions touching the company's offers
// on either side of the pair.
func (r *MatchRepo) ListLiveForCompany(ctx context.Context, companyID string) ([]*models.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM match_results m
		WHERE m.status = 'suggested'
		  AND (EXISTS (SELECT 1 FROM freight_offers f WHERE f.id = m.freight_offer_id AND f.company_id = $1)
		    OR EXISTS (SELECT 1 FROM vehicle_offers v WHERE v.id = m.vehicle_offer_id AND v.company_id = $1))
		ORDER BY m.ai_score DESC, m.vehicle_offer_id ASC`, companyID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list live for company", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// ListHistoryForCompany returns a page of the company's matches, newest
// first, plus the total row count.
func (r *MatchRepo) ListHistoryForCompany(ctx context.Context, companyID string, offset, limit int) ([]*models.MatchResult, int64, error) {
	const companyFilter = `
		(EXISTS (SELECT 1 FROM freight_offers f WHERE f.id = m.freight_offer_id AND f.company_id = $1)
		 OR EXISTS (SELECT 1 FROM vehicle_offers v WHERE v.id = m.vehicle_offer_id AND v.company_id = $1))`

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_results m WHERE `+companyFilter, companyID).Scan(&total)
	if err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("count match history", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM match_results m
		WHERE `+companyFilter+`
		ORDER BY m.created_at DESC, m.id ASC
		LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("list match history", err)
	}
	defer rows.Close()

	items, err := collectMatches(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// --- matching.AnalyticsStore ---

func (r *MatchRepo) CountMatchesByStatus(ctx context.Context) (map[models.MatchStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM match_results
		GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count by status", err)
	}
	defer rows.Close()

	out := make(map[models.MatchStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[models.MatchStatus(status)] = count
	}
	return out, rows.Err()
}

func (r *MatchRepo) TierOutcomes(ctx context.Context) (map[models.Tier]matching.TierOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tier,
		       COUNT(*) FILTER (WHERE status = 'accepted'),
		       COUNT(*) FILTER (WHERE status = 'rejected')
		FROM match_results
		WHERE status IN ('accepted', 'rejected')
		GROUP BY tier`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("tier outcomes", err)
	}
	defer rows.Close()

	out := make(map[models.Tier]matching.TierOutcome)
	for rows.Next() {
		var tier string
		var outcome matching.TierOutcome
		if err := rows.Scan(&tier, &outcome.Accepted, &outcome.Rejected); err != nil {
			return nil, err
		}
		out[models.Tier(tier)] = outcome
	}
	return out, rows.Err()
}

func (r *MatchRepo) ScoreHistogram(ctx context.Context, bucketWidth float64) ([]matching.ScoreBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT FLOOR(ai_score / $1) * $1 AS bucket, COUNT(*)
		FROM match_results
		GROUP BY bucket
		ORDER BY bucket`, bucketWidth)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("score histogram", err)
	}
	defer rows.Close()

	var out []matching.ScoreBucket
	for rows.Next() {
		var b matching.ScoreBucket
		if err := rows.Scan(&b.From, &b.Count); err != nil {
			return nil, err
		}
		b.To = b.From + bucketWidth
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.MatchResult, error) {
	var (
		m           models.MatchResult
		weightsJSON []byte
		tier        string
		status      string
		acceptedAt  sql.NullTime
		rejectedAt  sql.NullTime
		reason      sql.NullString
	)

	err := row.Scan(
		&m.ID, &m.FreightOfferID, &m.VehicleOfferID, &m.AIScore,
		&m.SubScores.Distance, &m.SubScores.Capacity, &m.SubScores.Timing,
		&m.SubScores.Reliability, &m.SubScores.Price, &m.SubScores.Carbon,
		&m.ModelVersion, &weightsJSON, &tier, &status,
		&m.CreatedAt, &m.UpdatedAt, &acceptedAt, &rejectedAt, &reason,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(weightsJSON, &m.FeatureWeights); err != nil {
		return nil, err
	}
	m.Tier = models.Tier(tier)
	m.Status = models.MatchStatus(status)
	if acceptedAt.Valid {
		m.AcceptedAt = &acceptedAt.Time
	}
	if rejectedAt.Valid {
		m.RejectedAt = &rejectedAt.Time
	}
	if reason.Valid {
		m.RejectionReason = reason.String
	}
	return &m, nil
}

func collectMatches(rows *sql.Rows) ([]*models.MatchResult, error) {
	out := []*models.MatchResult{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
