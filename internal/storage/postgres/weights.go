// internal/storage/postgres/weights.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/models"
)

// WeightRepo persists versioned weight vectors. A single-row pointer table
// names the current version so switching vectors is one atomic update.
type WeightRepo struct {
	db *sql.DB
}

func NewWeightRepo(db *sql.DB) *WeightRepo {
	return &WeightRepo{db: db}
}

// Current returns the vector the pointer row names.
func (r *WeightRepo) Current(ctx context.Context) (*models.WeightVector, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT w.version, w.weights, w.premium_threshold, w.good_threshold, w.created_at
		FROM weight_vectors w
		JOIN current_weight_version c ON c.version = w.version`)

	v, err := scanWeightVector(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("weight vector", "current")
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("current weight vector", err)
	}
	return v, nil
}

// Publish inserts the vector and repoints the current pointer in one
// transaction. The version primary key rejects a concurrent publish of the
// same version; losing a race surfaces as a conflict, not a silent overwrite.
func (r *WeightRepo) Publish(ctx context.Context, v *models.WeightVector) error {
	weightsJSON, err := json.Marshal(v.Weights)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weight_vectors (version, weights, premium_threshold, good_threshold, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		v.Version, weightsJSON, v.PremiumThreshold, v.GoodThreshold, v.CreatedAt)
	if err != nil {
		return apperrors.NewConcurrencyConflictError("weight vector", strconv.Itoa(v.Version))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_weight_version (singleton, version)
		VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET version = EXCLUDED.version`,
		v.Version)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("repoint current weight version", err)
	}

	return tx.Commit()
}

// EnsureBootstrap installs the version-1 vector if the table is empty. Safe
// to run on every startup; a vector that already exists wins.
func (r *WeightRepo) EnsureBootstrap(ctx context.Context, v *models.WeightVector) error {
	weightsJSON, err := json.Marshal(v.Weights)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weight_vectors (version, weights, premium_threshold, good_threshold, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version) DO NOTHING`,
		v.Version, weightsJSON, v.PremiumThreshold, v.GoodThreshold, v.CreatedAt)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("bootstrap weight vector", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_weight_version (singleton, version)
		VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO NOTHING`,
		v.Version)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("bootstrap current weight version", err)
	}

	return tx.Commit()
}

// ListVersions returns all published vectors, oldest first.
func (r *WeightRepo) ListVersions(ctx context.Context) ([]*models.WeightVector, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT version, weights, premium_threshold, good_threshold, created_at
		FROM weight_vectors
		ORDER BY version ASC`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list weight versions", err)
	}
	defer rows.Close()

	out := []*models.WeightVector{}
	for rows.Next() {
		v, err := scanWeightVector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanWeightVector(row rowScanner) (*models.WeightVector, error) {
	var (
		v           models.WeightVector
		weightsJSON []byte
	)
	err := row.Scan(&v.Version, &weightsJSON, &v.PremiumThreshold, &v.GoodThreshold, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(weightsJSON, &v.Weights); err != nil {
		return nil, err
	}
	return &v, nil
}
