// internal/storage/postgres/feedback_test.go
package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/models"
)

func newMockFeedbackRepo(t *testing.T) (*FeedbackRepo, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewFeedbackRepo(db), mock, func() { db.Close() }
}

func acceptedMatchRow(now time.Time) *sqlmock.Rows {
	weights := []byte(`{"distance":0.25,"capacity":0.2,"timing":0.15,"reliability":0.15,"price":0.15,"carbon":0.1}`)
	return sqlmock.NewRows(matchColumnNames).AddRow(
		"match-1", "freight-1", "v-1", 78.5,
		90.0, 70.0, 85.0, 60.0, 75.0, 80.0,
		3, weights, "good", "accepted",
		now.Add(-time.Hour), now, now, nil, nil,
	)
}

func TestFeedbackRepo_RespondToSuggestion_Accept(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE match_results\s+SET status = 'accepted'`).
		WithArgs("match-1", now).
		WillReturnRows(acceptedMatchRow(now))
	mock.ExpectExec(`INSERT INTO match_feedback`).
		WithArgs("match-1", "accept", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m, err := repo.RespondToSuggestion(context.Background(), "match-1", models.FeedbackAccept, "", now)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusAccepted, m.Status)
	require.NotNil(t, m.AcceptedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepo_RespondToSuggestion_RejectPassesReason(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	weights := []byte(`{"distance":0.25,"capacity":0.2,"timing":0.15,"reliability":0.15,"price":0.15,"carbon":0.1}`)
	rejectedRow := sqlmock.NewRows(matchColumnNames).AddRow(
		"match-1", "freight-1", "v-1", 78.5,
		90.0, 70.0, 85.0, 60.0, 75.0, 80.0,
		3, weights, "good", "rejected",
		now.Add(-time.Hour), now, nil, now, "price too high",
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE match_results\s+SET status = 'rejected'`).
		WithArgs("match-1", now, "price too high").
		WillReturnRows(rejectedRow)
	mock.ExpectExec(`INSERT INTO match_feedback`).
		WithArgs("match-1", "reject", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m, err := repo.RespondToSuggestion(context.Background(), "match-1", models.FeedbackReject, "price too high", now)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusRejected, m.Status)
	assert.Equal(t, "price too high", m.RejectionReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepo_RespondToSuggestion_AlreadyResolved(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE match_results\s+SET status = 'accepted'`).
		WithArgs("match-1", now).
		WillReturnError(sql.ErrNoRows)
	// The status probe runs on the pool, outside the transaction; the
	// deferred rollback fires after it.
	mock.ExpectQuery(`SELECT status FROM match_results`).
		WithArgs("match-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
	mock.ExpectRollback()

	_, err := repo.RespondToSuggestion(context.Background(), "match-1", models.FeedbackAccept, "", now)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState))
}

func TestFeedbackRepo_RespondToSuggestion_UnknownMatch(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE match_results\s+SET status = 'accepted'`).
		WithArgs("missing", now).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT status FROM match_results`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RespondToSuggestion(context.Background(), "missing", models.FeedbackAccept, "", now)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestFeedbackRepo_LabeledOutcomes(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	recorded := since.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "match_id", "freight_company_id", "vehicle_company_id", "action",
		"distance_score", "capacity_score", "timing_score", "reliability_score", "price_score", "carbon_score",
		"model_version", "tier", "recorded_at",
	}).
		AddRow(1, "match-1", "shipper-1", "carrier-1", "accept",
			90.0, 70.0, 85.0, 60.0, 75.0, 80.0, 3, "good", recorded).
		AddRow(2, "match-2", "shipper-1", "carrier-2", "reject",
			40.0, 70.0, 55.0, 60.0, 35.0, 50.0, 3, "fair", recorded.Add(time.Hour))

	mock.ExpectQuery(`FROM match_feedback\s+WHERE recorded_at >= \$1`).
		WithArgs(since).
		WillReturnRows(rows)

	got, err := repo.LabeledOutcomes(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.FeedbackAccept, got[0].Action)
	assert.Equal(t, models.FeedbackReject, got[1].Action)
	assert.InDelta(t, 90.0, got[0].SubScores.Distance, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepo_CompanyAcceptanceRate(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	mock.ExpectQuery(`FROM match_feedback\s+WHERE freight_company_id = \$1 OR vehicle_company_id = \$1`).
		WithArgs("carrier-1").
		WillReturnRows(sqlmock.NewRows([]string{"accepts", "total"}).AddRow(8, 10))

	rate, samples, err := repo.CompanyAcceptanceRate(context.Background(), "carrier-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, rate, 1e-9)
	assert.Equal(t, 10, samples)
}

func TestFeedbackRepo_CompanyAcceptanceRate_NoHistory(t *testing.T) {
	repo, mock, done := newMockFeedbackRepo(t)
	defer done()

	mock.ExpectQuery(`FROM match_feedback\s+WHERE freight_company_id = \$1 OR vehicle_company_id = \$1`).
		WithArgs("carrier-new").
		WillReturnRows(sqlmock.NewRows([]string{"accepts", "total"}).AddRow(0, 0))

	rate, samples, err := repo.CompanyAcceptanceRate(context.Background(), "carrier-new")
	require.NoError(t, err)
	assert.Zero(t, rate)
	assert.Zero(t, samples)
}
