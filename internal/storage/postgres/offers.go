// internal/storage/postgres/offers.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	apperrors "freight-match-engine/internal/common/errors"
	"freight-match-engine/internal/models"
)

// OfferRepo reads freight and vehicle offers. It implements
// matching.OfferCatalog.
type OfferRepo struct {
	db *sql.DB
}

func NewOfferRepo(db *sql.DB) *OfferRepo {
	return &OfferRepo{db: db}
}

const freightColumns = `
	id, company_id,
	origin_country, origin_city, origin_lat, origin_lon,
	destination_country, destination_city, destination_lat, destination_lon,
	weight_kg, required_vehicle_type, loading_date, unloading_date,
	price, status, created_at, updated_at`

// GetFreightOffer fetches one freight offer by id.
func (r *OfferRepo) GetFreightOffer(ctx context.Context, id string) (*models.FreightOffer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+freightColumns+`
		FROM freight_offers
		WHERE id = $1`, id)

	f, err := scanFreight(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("freight offer", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get freight offer", err)
	}
	return f, nil
}

// ListActiveFreightSince returns active freight created or updated since the
// cutoff, oldest first so batch runs process in a stable order.
func (r *OfferRepo) ListActiveFreightSince(ctx context.Context, since time.Time) ([]*models.FreightOffer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+freightColumns+`
		FROM freight_offers
		WHERE status = 'active' AND (created_at >= $1 OR updated_at >= $1)
		ORDER BY created_at ASC, id ASC`, since)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list active freight", err)
	}
	defer rows.Close()

	out := []*models.FreightOffer{}
	for rows.Next() {
		f, err := scanFreight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListCandidateVehicles returns available, unexpired vehicle offers that
// structurally fit the freight offer. Only cheap checks happen in SQL; the
// matching filter re-checks every rule so it stays unit-testable.
func (r *OfferRepo) ListCandidateVehicles(ctx context.Context, freight *models.FreightOffer) ([]*models.VehicleOffer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id,
		       current_country, current_city, current_lat, current_lon,
		       destination_country, capacity_kg, vehicle_type,
		       available_from, available_to, price_per_km,
		       verified, status, expires_at
		FROM vehicle_offers
		WHERE status = 'available'
		  AND (expires_at IS NULL OR expires_at > NOW())
		  AND ($1 = '' OR vehicle_type IS NULL OR vehicle_type = '' OR vehicle_type = $1)
		  AND (capacity_kg <= 0 OR $2 <= 0 OR capacity_kg >= $2)
		ORDER BY id ASC`, freight.RequiredVehicleType, freight.WeightKg)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list candidate vehicles", err)
	}
	defer rows.Close()

	out := []*models.VehicleOffer{}
	for rows.Next() {
		var (
			v           models.VehicleOffer
			lat, lon    sql.NullFloat64
			destCountry sql.NullString
			vehicleType sql.NullString
			availableTo sql.NullTime
			pricePerKm  sql.NullFloat64
			status      string
			expiresAt   sql.NullTime
		)
		err := rows.Scan(
			&v.ID, &v.CompanyID,
			&v.CurrentCountry, &v.CurrentCity, &lat, &lon,
			&destCountry, &v.CapacityKg, &vehicleType,
			&v.AvailableFrom, &availableTo, &pricePerKm,
			&v.Verified, &status, &expiresAt,
		)
		if err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			v.CurrentCoords = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
		}
		v.DestinationCountry = destCountry.String
		v.VehicleType = vehicleType.String
		if availableTo.Valid {
			t := availableTo.Time
			v.AvailableTo = &t
		}
		if pricePerKm.Valid {
			p := pricePerKm.Float64
			v.PricePerKm = &p
		}
		v.Status = models.VehicleStatus(status)
		if expiresAt.Valid {
			t := expiresAt.Time
			v.ExpiresAt = &t
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func scanFreight(row rowScanner) (*models.FreightOffer, error) {
	var (
		f                  models.FreightOffer
		originLat, originLon, destLat, destLon sql.NullFloat64
		price              sql.NullFloat64
		status             string
	)

	err := row.Scan(
		&f.ID, &f.CompanyID,
		&f.OriginCountry, &f.OriginCity, &originLat, &originLon,
		&f.DestinationCountry, &f.DestinationCity, &destLat, &destLon,
		&f.WeightKg, &f.RequiredVehicleType, &f.LoadingDate, &f.UnloadingDate,
		&price, &status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if originLat.Valid && originLon.Valid {
		f.OriginCoords = &models.Coordinates{Lat: originLat.Float64, Lon: originLon.Float64}
	}
	if destLat.Valid && destLon.Valid {
		f.DestinationCoords = &models.Coordinates{Lat: destLat.Float64, Lon: destLon.Float64}
	}
	if price.Valid {
		p := price.Float64
		f.Price = &p
	}
	f.Status = models.OfferStatus(status)
	return &f, nil
}
