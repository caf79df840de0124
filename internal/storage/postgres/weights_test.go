// internal/storage/postgres/weights_test.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/models"
)

const weightsJSON = `{"distance":0.25,"capacity":0.2,"timing":0.15,"reliability":0.15,"price":0.15,"carbon":0.1}`

func newMockWeightRepo(t *testing.T) (*WeightRepo, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewWeightRepo(db), mock, func() { db.Close() }
}

func TestWeightRepo_Current(t *testing.T) {
	repo, mock, done := newMockWeightRepo(t)
	defer done()

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"version", "weights", "premium_threshold", "good_threshold", "created_at"}).
		AddRow(3, []byte(weightsJSON), 85.0, 65.0, created)

	mock.ExpectQuery(`JOIN current_weight_version c ON c\.version = w\.version`).
		WillReturnRows(rows)

	v, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v.Version)
	assert.InDelta(t, 0.25, v.Weights.Distance, 1e-9)
	assert.Equal(t, 85.0, v.PremiumThreshold)
}

func TestWeightRepo_Current_Empty(t *testing.T) {
	repo, mock, done := newMockWeightRepo(t)
	defer done()

	mock.ExpectQuery(`JOIN current_weight_version c ON c\.version = w\.version`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Current(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestWeightRepo_Publish(t *testing.T) {
	repo, mock, done := newMockWeightRepo(t)
	defer done()

	v := models.BootstrapWeightVector(85, 65)
	v.Version = 4

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO weight_vectors`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO current_weight_version`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Publish(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeightRepo_Publish_DuplicateVersionConflicts(t *testing.T) {
	repo, mock, done := newMockWeightRepo(t)
	defer done()

	v := models.BootstrapWeightVector(85, 65)
	v.Version = 4

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO weight_vectors`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "weight_vectors_pkey"`))
	mock.ExpectRollback()

	err := repo.Publish(context.Background(), v)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConcurrencyConflict))
}

func TestWeightRepo_ListVersions(t *testing.T) {
	repo, mock, done := newMockWeightRepo(t)
	defer done()

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"version", "weights", "premium_threshold", "good_threshold", "created_at"}).
		AddRow(1, []byte(weightsJSON), 85.0, 65.0, created).
		AddRow(2, []byte(weightsJSON), 85.0, 65.0, created.Add(24*time.Hour))

	mock.ExpectQuery(`FROM weight_vectors\s+ORDER BY version ASC`).
		WillReturnRows(rows)

	got, err := repo.ListVersions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, 2, got[1].Version)
}
