package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// CacheRepository persists validation cache entries in the
// nar_address_cache table. Entries are append-only: the validation payload
// never changes after the first write, only the lookup bookkeeping does.
type CacheRepository interface {
	Get(ctx context.Context, addressNormalized string, cityHint, postalCode *string) (*models.CacheEntry, error)
	Touch(ctx context.Context, addressNormalized string, cityHint, postalCode *string) error
	Upsert(ctx context.Context, entry *models.CacheEntry) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type cacheRepository struct {
	db *database.Database
}

// NewCacheRepository creates a new instance of CacheRepository.
func NewCacheRepository(db *database.Database) CacheRepository {
	return &cacheRepository{db: db}
}

// keyPredicate matches the composite cache key. NULL hint columns only match
// explicit NULL probes, which is what gives the loose (no postal) key its
// meaning.
const keyPredicate = `
	address_normalized = $1
	AND city_hint IS NOT DISTINCT FROM $2
	AND postal_code IS NOT DISTINCT FROM $3`

func (r *cacheRepository) Get(ctx context.Context, addressNormalized string, cityHint, postalCode *string) (*models.CacheEntry, error) {
	query := `
		SELECT
			address_normalized,
			city_hint,
			postal_code,
			nar_found,
			nar_city,
			nar_postal_code,
			nar_latitude,
			nar_longitude,
			confidence_score,
			match_type,
			lookup_count,
			first_lookup_at,
			last_lookup_at
		FROM nar_address_cache
		WHERE` + keyPredicate + `
		LIMIT 1`

	var (
		entry     models.CacheEntry
		city      *string
		postal    *string
		matchType *string
	)
	err := r.db.Pool.QueryRow(ctx, query, addressNormalized, cityHint, postalCode).Scan(
		&entry.AddressNormalized,
		&entry.CityHint,
		&entry.PostalCode,
		&entry.Result.Found,
		&city,
		&postal,
		&entry.Result.Latitude,
		&entry.Result.Longitude,
		&entry.Result.Confidence,
		&matchType,
		&entry.LookupCount,
		&entry.CreatedAt,
		&entry.LastLookupAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query validation cache: %w", err)
	}

	if city != nil {
		entry.Result.City = *city
	}
	if postal != nil {
		entry.Result.PostalCode = *postal
	}
	if matchType != nil {
		entry.Result.MatchType = models.MatchType(*matchType)
	}
	entry.Result.Source = models.SourceCache

	return &entry, nil
}

func (r *cacheRepository) Touch(ctx context.Context, addressNormalized string, cityHint, postalCode *string) error {
	query := `
		UPDATE nar_address_cache
		SET lookup_count = lookup_count + 1,
		    last_lookup_at = NOW()
		WHERE` + keyPredicate

	if _, err := r.db.Pool.Exec(ctx, query, addressNormalized, cityHint, postalCode); err != nil {
		return fmt.Errorf("failed to update cache lookup stats: %w", err)
	}
	return nil
}

// Upsert inserts a new entry or, when the key already exists, bumps its
// lookup bookkeeping and leaves the payload untouched. The unique index on
// the key columns is declared NULLS NOT DISTINCT so loose keys conflict too.
func (r *cacheRepository) Upsert(ctx context.Context, entry *models.CacheEntry) (bool, error) {
	query := `
		INSERT INTO nar_address_cache (
			address_normalized,
			city_hint,
			postal_code,
			nar_found,
			nar_city,
			nar_postal_code,
			nar_latitude,
			nar_longitude,
			confidence_score,
			match_type,
			lookup_count,
			first_lookup_at,
			last_lookup_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW())
		ON CONFLICT (address_normalized, city_hint, postal_code) DO UPDATE SET
			lookup_count = nar_address_cache.lookup_count + 1,
			last_lookup_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.Pool.QueryRow(ctx, query,
		entry.AddressNormalized,
		entry.CityHint,
		entry.PostalCode,
		entry.Result.Found,
		nullIfEmpty(entry.Result.City),
		nullIfEmpty(entry.Result.PostalCode),
		entry.Result.Latitude,
		entry.Result.Longitude,
		entry.Result.Confidence,
		string(entry.Result.MatchType),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert validation cache entry: %w", err)
	}
	return inserted, nil
}

func (r *cacheRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM nar_address_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count validation cache entries: %w", err)
	}
	return count, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
