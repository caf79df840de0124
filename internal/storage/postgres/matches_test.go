// internal/storage/postgres/matches_test.go
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

var matchColumnNames = []string{
	"id", "freight_offer_id", "vehicle_offer_id", "ai_score",
	"distance_score", "capacity_score", "timing_score", "reliability_score", "price_score", "carbon_score",
	"model_version", "feature_weights", "tier", "status",
	"created_at", "updated_at", "accepted_at", "rejected_at", "rejection_reason",
}

func newMockRepo(t *testing.T) (*MatchRepo, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewMatchRepo(db), mock, func() { db.Close() }
}

func sampleSuggestion() *models.MatchResult {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return &models.MatchResult{
		ID:             "match-1",
		FreightOfferID: "freight-1",
		VehicleOfferID: "v-1",
		AIScore:        78.5,
		SubScores: models.SubScores{
			Distance: 90, Capacity: 70, Timing: 85, Reliability: 60, Price: 75, Carbon: 80,
		},
		ModelVersion:   3,
		FeatureWeights: models.DefaultWeights(),
		Tier:           models.TierGood,
		Status:         models.MatchStatusSuggested,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMatchRepo_UpsertSuggestion_Created(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	m := sampleSuggestion()
	mock.ExpectQuery(`INSERT INTO match_results`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "inserted"}).
			AddRow(m.ID, m.CreatedAt, true))

	stored, created, err := repo.UpsertSuggestion(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "match-1", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_UpsertSuggestion_RefreshedExisting(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	m := sampleSuggestion()
	// The conflict branch keeps the original row identity.
	originalCreated := m.CreatedAt.Add(-2 * time.Hour)
	mock.ExpectQuery(`INSERT INTO match_results`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "inserted"}).
			AddRow("match-original", originalCreated, false))

	stored, created, err := repo.UpsertSuggestion(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "match-original", stored.ID)
	assert.Equal(t, originalCreated, stored.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_GetMatch(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	accepted := now.Add(time.Hour)
	rows := sqlmock.NewRows(matchColumnNames).AddRow(
		"match-1", "freight-1", "v-1", 78.5,
		90.0, 70.0, 85.0, 60.0, 75.0, 80.0,
		3, []byte(`{"distance":0.25,"capacity":0.2,"timing":0.15,"reliability":0.15,"price":0.15,"carbon":0.1}`),
		"good", "accepted",
		now, accepted, accepted, nil, nil,
	)
	mock.ExpectQuery(`FROM match_results\s+WHERE id = \$1`).
		WithArgs("match-1").
		WillReturnRows(rows)

	m, err := repo.GetMatch(context.Background(), "match-1")
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusAccepted, m.Status)
	assert.Equal(t, models.TierGood, m.Tier)
	assert.InDelta(t, 0.25, m.FeatureWeights.Distance, 1e-9)
	require.NotNil(t, m.AcceptedAt)
	assert.Nil(t, m.RejectedAt)
	assert.Empty(t, m.RejectionReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_GetMatch_NotFound(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(`FROM match_results\s+WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetMatch(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestMatchRepo_ListTopForFreight(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	weights := []byte(`{"distance":0.25,"capacity":0.2,"timing":0.15,"reliability":0.15,"price":0.15,"carbon":0.1}`)
	rows := sqlmock.NewRows(matchColumnNames).
		AddRow("match-1", "freight-1", "v-1", 91.0,
			95.0, 80.0, 90.0, 85.0, 95.0, 90.0,
			3, weights, "premium", "suggested", now, now, nil, nil, nil).
		AddRow("match-2", "freight-1", "v-2", 72.0,
			70.0, 70.0, 75.0, 70.0, 75.0, 72.0,
			3, weights, "good", "suggested", now, now, nil, nil, nil)

	mock.ExpectQuery(`FROM match_results\s+WHERE freight_offer_id = \$1 AND status = 'suggested'`).
		WithArgs("freight-1", 5).
		WillReturnRows(rows)

	got, err := repo.ListTopForFreight(context.Background(), "freight-1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.TierPremium, got[0].Tier)
	assert.Equal(t, "v-2", got[1].VehicleOfferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_MarkExpired(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	cutoff := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE match_results\s+SET status = 'expired'`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
