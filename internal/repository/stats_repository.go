package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// StatsRepository persists the daily validation rollup. The worker adds its
// batch deltas as it goes; one row accumulates per calendar day.
type StatsRepository interface {
	// Add folds a delta into today's row, creating it if needed.
	Add(ctx context.Context, delta models.DailyStats) error

	// GetByDate returns the rollup for a day, or nil, nil when no work
	// happened that day.
	GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error)
}

type statsRepository struct {
	db *database.Database
}

// NewStatsRepository creates a new instance of StatsRepository.
func NewStatsRepository(db *database.Database) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Add(ctx context.Context, delta models.DailyStats) error {
	query := `
		INSERT INTO validation_stats (
			stat_date,
			total_validated,
			found,
			not_found,
			high_confidence,
			medium_confidence,
			low_confidence,
			cities_updated,
			postal_codes_updated,
			geocoding_updated
		)
		VALUES (CURRENT_DATE, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stat_date) DO UPDATE SET
			total_validated = validation_stats.total_validated + EXCLUDED.total_validated,
			found = validation_stats.found + EXCLUDED.found,
			not_found = validation_stats.not_found + EXCLUDED.not_found,
			high_confidence = validation_stats.high_confidence + EXCLUDED.high_confidence,
			medium_confidence = validation_stats.medium_confidence + EXCLUDED.medium_confidence,
			low_confidence = validation_stats.low_confidence + EXCLUDED.low_confidence,
			cities_updated = validation_stats.cities_updated + EXCLUDED.cities_updated,
			postal_codes_updated = validation_stats.postal_codes_updated + EXCLUDED.postal_codes_updated,
			geocoding_updated = validation_stats.geocoding_updated + EXCLUDED.geocoding_updated`

	_, err := r.db.Pool.Exec(ctx, query,
		delta.TotalValidated,
		delta.Found,
		delta.NotFound,
		delta.HighConfidence,
		delta.MediumConfidence,
		delta.LowConfidence,
		delta.CitiesUpdated,
		delta.PostalCodesUpdated,
		delta.GeocodingUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to add validation stats: %w", err)
	}
	return nil
}

func (r *statsRepository) GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	query := `
		SELECT
			stat_date,
			total_validated,
			found,
			not_found,
			high_confidence,
			medium_confidence,
			low_confidence,
			cities_updated,
			postal_codes_updated,
			geocoding_updated
		FROM validation_stats
		WHERE stat_date = $1::date`

	var stats models.DailyStats
	err := r.db.Pool.QueryRow(ctx, query, date).Scan(
		&stats.Date,
		&stats.TotalValidated,
		&stats.Found,
		&stats.NotFound,
		&stats.HighConfidence,
		&stats.MediumConfidence,
		&stats.LowConfidence,
		&stats.CitiesUpdated,
		&stats.PostalCodesUpdated,
		&stats.GeocodingUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query validation stats: %w", err)
	}
	return &stats, nil
}
