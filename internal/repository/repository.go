package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertRCDetails stores an RC record, replacing the previous copy for the same RC number
func (r *Repository) UpsertRCDetails(ctx context.Context, rc *models.RCDetails) error {
	query := `
		INSERT INTO valuation.rc_details (rc_number, owner_name, maker_description, make, maker_model,
			registration_date, manufacturing_date, fuel_type, color, body_type, cubic_capacity, norms_type,
			registered_at, city, rto_code, vehicle_category, owner_count, financed, insurance_upto, raw_data,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (rc_number) DO UPDATE SET
			owner_name = EXCLUDED.owner_name, maker_description = EXCLUDED.maker_description,
			make = EXCLUDED.make, maker_model = EXCLUDED.maker_model,
			registration_date = EXCLUDED.registration_date, manufacturing_date = EXCLUDED.manufacturing_date,
			fuel_type = EXCLUDED.fuel_type, color = EXCLUDED.color, body_type = EXCLUDED.body_type,
			cubic_capacity = EXCLUDED.cubic_capacity, norms_type = EXCLUDED.norms_type,
			registered_at = EXCLUDED.registered_at, city = EXCLUDED.city, rto_code = EXCLUDED.rto_code,
			vehicle_category = EXCLUDED.vehicle_category, owner_count = EXCLUDED.owner_count,
			financed = EXCLUDED.financed, insurance_upto = EXCLUDED.insurance_upto,
			raw_data = EXCLUDED.raw_data, updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rc.RCNumber, rc.OwnerName, rc.MakerDescription, rc.Make, rc.MakerModel,
		rc.RegistrationDate, rc.ManufacturingDate, rc.FuelType, rc.Color, rc.BodyType,
		rc.CubicCapacity, rc.NormsType, rc.RegisteredAt, rc.City, rc.RTOCode,
		rc.VehicleCategory, rc.OwnerCount, rc.Financed, rc.InsuranceUpto, rawJSON(rc.RawData),
	).Scan(&rc.ID, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rc details: %w", err)
	}
	return nil
}

// GetRCDetails retrieves a stored RC record
func (r *Repository) GetRCDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error) {
	rc := &models.RCDetails{}
	var raw []byte
	query := `
		SELECT id, rc_number, COALESCE(owner_name, ''), COALESCE(maker_description, ''), COALESCE(make, ''),
			COALESCE(maker_model, ''), COALESCE(registration_date, ''), COALESCE(manufacturing_date, ''),
			COALESCE(fuel_type, ''), COALESCE(color, ''), COALESCE(body_type, ''), COALESCE(cubic_capacity, ''),
			COALESCE(norms_type, ''), COALESCE(registered_at, ''), COALESCE(city, ''), COALESCE(rto_code, ''),
			COALESCE(vehicle_category, ''), owner_count, financed, COALESCE(insurance_upto, ''), raw_data,
			created_at, updated_at
		FROM valuation.rc_details
		WHERE rc_number = $1`
	err := r.db.QueryRowContext(ctx, query, rcNumber).Scan(
		&rc.ID, &rc.RCNumber, &rc.OwnerName, &rc.MakerDescription, &rc.Make,
		&rc.MakerModel, &rc.RegistrationDate, &rc.ManufacturingDate,
		&rc.FuelType, &rc.Color, &rc.BodyType, &rc.CubicCapacity,
		&rc.NormsType, &rc.RegisteredAt, &rc.City, &rc.RTOCode,
		&rc.VehicleCategory, &rc.OwnerCount, &rc.Financed, &rc.InsuranceUpto, &raw,
		&rc.CreatedAt, &rc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rc %s: %w", rcNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rc details: %w", err)
	}
	rc.RawData = raw
	return rc, nil
}

// SaveValuation stores a computed valuation
func (r *Repository) SaveValuation(ctx context.Context, v *models.ValuationRecord) error {
	query := `
		INSERT INTO valuation.valuations (uid, rc_number, make, model, manufacturing_year, fuel_type, city,
			owner_count, engine_used, policy, mode, fair_market_retail_value, dealer_purchase_price,
			current_ex_showroom, estimated_odometer, base_depreciation_percent, book_value,
			market_listings_mean, market_source, oracle_confidence, breakdown_log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		v.UID, nullString(v.RCNumber), v.Make, v.Model, v.ManufacturingYear, v.FuelType, v.City,
		v.OwnerCount, v.EngineUsed, v.Policy, v.Mode, v.FairMarketRetailValue, v.DealerPurchasePrice,
		v.CurrentExShowroom, v.EstimatedOdometer, v.BaseDepreciationPercent, v.BookValue,
		nullFloat(v.MarketListingsMean), v.MarketSource, nullFloat(v.OracleConfidence), pq.Array(v.BreakdownLog),
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save valuation: %w", err)
	}
	return nil
}

const valuationColumns = `id, uid, COALESCE(rc_number, ''), COALESCE(make, ''), COALESCE(model, ''),
	COALESCE(manufacturing_year, 0), COALESCE(fuel_type, ''), COALESCE(city, ''), COALESCE(owner_count, 1),
	engine_used, policy, mode, fair_market_retail_value, dealer_purchase_price,
	COALESCE(current_ex_showroom, 0), COALESCE(estimated_odometer, 0), COALESCE(base_depreciation_percent, 0),
	COALESCE(book_value, 0), market_listings_mean, market_source, oracle_confidence, breakdown_log, created_at`

// ValuationHistory lists the valuations of one RC, newest first
func (r *Repository) ValuationHistory(ctx context.Context, rcNumber string) ([]models.ValuationRecord, error) {
	query := `SELECT ` + valuationColumns + `
		FROM valuation.valuations
		WHERE rc_number = $1
		ORDER BY created_at DESC`
	return r.queryValuations(ctx, query, rcNumber)
}

// RecentValuations lists the latest valuations across all vehicles
func (r *Repository) RecentValuations(ctx context.Context, limit int) ([]models.ValuationRecord, error) {
	query := `SELECT ` + valuationColumns + `
		FROM valuation.valuations
		ORDER BY created_at DESC
		LIMIT $1`
	return r.queryValuations(ctx, query, limit)
}

func (r *Repository) queryValuations(ctx context.Context, query string, args ...any) ([]models.ValuationRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuations: %w", err)
	}
	defer rows.Close()

	var out []models.ValuationRecord
	for rows.Next() {
		var v models.ValuationRecord
		var market, confidence sql.NullFloat64
		if err := rows.Scan(
			&v.ID, &v.UID, &v.RCNumber, &v.Make, &v.Model,
			&v.ManufacturingYear, &v.FuelType, &v.City, &v.OwnerCount,
			&v.EngineUsed, &v.Policy, &v.Mode, &v.FairMarketRetailValue, &v.DealerPurchasePrice,
			&v.CurrentExShowroom, &v.EstimatedOdometer, &v.BaseDepreciationPercent,
			&v.BookValue, &market, &v.MarketSource, &confidence, pq.Array(&v.BreakdownLog), &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan valuation: %w", err)
		}
		if market.Valid {
			v.MarketListingsMean = &market.Float64
		}
		if confidence.Valid {
			v.OracleConfidence = &confidence.Float64
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read valuations: %w", err)
	}
	return out, nil
}

// SimilarVehicles finds past valuations of the same model, year and fuel registered in a state
func (r *Repository) SimilarVehicles(ctx context.Context, state string, year int, fuelType, model string, limit int) ([]models.SimilarVehicle, error) {
	query := `
		SELECT v.rc_number, v.model, v.manufacturing_year, v.fuel_type,
			v.fair_market_retail_value, v.dealer_purchase_price, COALESCE(r.registered_at, '')
		FROM valuation.valuations v
		LEFT JOIN valuation.rc_details r ON v.rc_number = r.rc_number
		WHERE v.manufacturing_year = $1
			AND v.fuel_type ILIKE $2
			AND v.model ILIKE $3
			AND r.registered_at ILIKE $4
		ORDER BY v.created_at DESC
		LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, year, fuelType, model, "%"+state+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.SimilarVehicle
	for rows.Next() {
		var s models.SimilarVehicle
		if err := rows.Scan(&s.RCNumber, &s.Model, &s.ManufacturingYear, &s.FuelType,
			&s.FairMarketRetailValue, &s.DealerPurchasePrice, &s.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan similar vehicle: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read similar vehicles: %w", err)
	}
	return out, nil
}

// SaveIDV stores an IDV calculation
func (r *Repository) SaveIDV(ctx context.Context, rec *models.IDVRecord) error {
	query := `
		INSERT INTO valuation.idv_calculations (uid, rc_number, policy, status, idv, validation_status,
			confidence_score, review_notified, breakdown_log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.UID, nullString(rec.RCNumber), rec.Policy, rec.Status, rec.IDV, rec.ValidationStatus,
		rec.ConfidenceScore, rec.ReviewNotified, pq.Array(rec.BreakdownLog),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save idv calculation: %w", err)
	}
	return nil
}

// SaveMarketSnapshot stores an observed market listings mean
func (r *Repository) SaveMarketSnapshot(ctx context.Context, m *models.MarketSnapshot) error {
	query := `
		INSERT INTO valuation.market_snapshots (cache_key, listings_mean, confidence, source, observed_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, observed_at`
	err := r.db.QueryRowContext(ctx, query, m.CacheKey, m.ListingsMean, m.Confidence, m.Source).
		Scan(&m.ID, &m.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to save market snapshot: %w", err)
	}
	return nil
}

// LatestMarketSnapshot returns the newest snapshot for a market segment
func (r *Repository) LatestMarketSnapshot(ctx context.Context, cacheKey string) (*models.MarketSnapshot, error) {
	m := &models.MarketSnapshot{}
	query := `
		SELECT id, cache_key, listings_mean, COALESCE(confidence, 0), source, observed_at
		FROM valuation.market_snapshots
		WHERE cache_key = $1
		ORDER BY observed_at DESC
		LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, cacheKey).
		Scan(&m.ID, &m.CacheKey, &m.ListingsMean, &m.Confidence, &m.Source, &m.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market snapshot %s: %w", cacheKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find market snapshot: %w", err)
	}
	return m, nil
}

// PurgeMarketSnapshots deletes snapshots observed before the cutoff
func (r *Repository) PurgeMarketSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM valuation.market_snapshots WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge market snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged snapshots: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
