// internal/storage/postgres/feedback.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/models"
)

// FeedbackRepo records operator decisions and serves them back as training
// signal. It implements matching.FeedbackStore.
type FeedbackRepo struct {
	db *sql.DB
}

func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

// RespondToSuggestion transitions the match out of suggested and appends the
// outcome to the ledger in one transaction. The status predicate on the
// UPDATE is the optimistic guard: a match already resolved by another caller
// updates zero rows and the transaction aborts without touching the ledger.
func (r *FeedbackRepo) RespondToSuggestion(ctx context.Context, matchID string, action models.FeedbackAction, reason string, now time.Time) (*models.MatchResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	var row *sql.Row
	if action == models.FeedbackAccept {
		row = tx.QueryRowContext(ctx, `
			UPDATE match_results
			SET status = 'accepted', accepted_at = $2, updated_at = $2
			WHERE id = $1 AND status = 'suggested'
			RETURNING `+matchColumns, matchID, now)
	} else {
		row = tx.QueryRowContext(ctx, `
			UPDATE match_results
			SET status = 'rejected', rejected_at = $2, rejection_reason = NULLIF($3, ''), updated_at = $2
			WHERE id = $1 AND status = 'suggested'
			RETURNING `+matchColumns, matchID, now, reason)
	}

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, r.classifyMissedUpdate(ctx, matchID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("respond to suggestion", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_feedback (
			match_id, freight_company_id, vehicle_company_id, action,
			distance_score, capacity_score, timing_score, reliability_score, price_score, carbon_score,
			model_version, tier, recorded_at
		)
		SELECT m.id, f.company_id, v.company_id, $2,
		       m.distance_score, m.capacity_score, m.timing_score,
		       m.reliability_score, m.price_score, m.carbon_score,
		       m.model_version, m.tier, $3
		FROM match_results m
		JOIN freight_offers f ON f.id = m.freight_offer_id
		JOIN vehicle_offers v ON v.id = m.vehicle_offer_id
		WHERE m.id = $1`, matchID, string(action), now)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("append feedback ledger", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("commit feedback", err)
	}
	return m, nil
}

// classifyMissedUpdate tells a missing match apart from one that was already
// resolved. Runs outside the aborted transaction on purpose.
func (r *FeedbackRepo) classifyMissedUpdate(ctx context.Context, matchID string) error {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM match_results WHERE id = $1`, matchID).Scan(&status)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError("match result", matchID)
	}
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("classify match status", err)
	}
	return apperrors.NewInvalidStateError("match result", status, "only suggested matches accept a response")
}

// LabeledOutcomes returns ledger entries recorded at or after since, oldest
// first.
func (r *FeedbackRepo) LabeledOutcomes(ctx context.Context, since time.Time) ([]*models.FeedbackEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, match_id, freight_company_id, vehicle_company_id, action,
		       distance_score, capacity_score, timing_score, reliability_score, price_score, carbon_score,
		       model_version, tier, recorded_at
		FROM match_feedback
		WHERE recorded_at >= $1
		ORDER BY recorded_at ASC, id ASC`, since)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("labeled outcomes", err)
	}
	defer rows.Close()

	out := []*models.FeedbackEntry{}
	for rows.Next() {
		var (
			e      models.FeedbackEntry
			action string
			tier   string
		)
		err := rows.Scan(
			&e.ID, &e.MatchID, &e.FreightCompanyID, &e.VehicleCompanyID, &action,
			&e.SubScores.Distance, &e.SubScores.Capacity, &e.SubScores.Timing,
			&e.SubScores.Reliability, &e.SubScores.Price, &e.SubScores.Carbon,
			&e.ModelVersion, &tier, &e.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		e.Action = models.FeedbackAction(action)
		e.Tier = models.Tier(tier)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CompanyAcceptanceRate returns the company's acceptance rate over the
// ledger, counting decisions where the company sat on either side.
func (r *FeedbackRepo) CompanyAcceptanceRate(ctx context.Context, companyID string) (float64, int, error) {
	var accepts, total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE action = 'accept'), COUNT(*)
		FROM match_feedback
		WHERE freight_company_id = $1 OR vehicle_company_id = $1`,
		companyID).Scan(&accepts, &total)
	if err != nil {
		return 0, 0, apperrors.NewQueryExecutionFailedError("company acceptance rate", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(accepts) / float64(total), total, nil
}
