package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// PropertyRepository defines data access for resolved properties.
//
// The field update methods are deliberately independent: the validation
// worker gates each field on its own confidence check, so a single combined
// update would couple decisions that the policy keeps separate.
type PropertyRepository interface {
	// GetByID returns the property, or nil, nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)

	// GetByHash returns the property with the given address hash, or nil, nil.
	GetByHash(ctx context.Context, hash string) (*models.Property, error)

	// Insert persists a new property. When a row with the same address hash
	// already exists, NULL columns on the existing row are filled from the
	// incoming record and the existing row is returned.
	Insert(ctx context.Context, property *models.Property) (*models.Property, error)

	// UpdateCity overwrites the property's city.
	UpdateCity(ctx context.Context, id uuid.UUID, city string) error

	// UpdatePostalCode overwrites the property's postal code.
	UpdatePostalCode(ctx context.Context, id uuid.UUID, postalCode string) error

	// UpdateCoordinates overwrites the property's coordinates.
	UpdateCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error
}

type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `
	id,
	address_line1,
	city,
	province,
	postal_code,
	latitude,
	longitude,
	address_canonical,
	address_hash,
	needs_review,
	created_at,
	updated_at`

func (r *propertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `SELECT` + propertyColumns + ` FROM properties WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *propertyRepository) GetByHash(ctx context.Context, hash string) (*models.Property, error) {
	query := `SELECT` + propertyColumns + ` FROM properties WHERE address_hash = $1`
	return r.queryOne(ctx, query, hash)
}

// Insert uses the address hash as the dedup key. On conflict it coalesces
// NULL columns from the incoming record so a re-ingest can only add
// information, never clobber a validated field.
func (r *propertyRepository) Insert(ctx context.Context, property *models.Property) (*models.Property, error) {
	query := `
		INSERT INTO properties (
			address_line1,
			city,
			province,
			postal_code,
			latitude,
			longitude,
			address_canonical,
			address_hash,
			needs_review
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address_hash) DO UPDATE SET
			city = COALESCE(properties.city, EXCLUDED.city),
			province = COALESCE(properties.province, EXCLUDED.province),
			postal_code = COALESCE(properties.postal_code, EXCLUDED.postal_code),
			latitude = COALESCE(properties.latitude, EXCLUDED.latitude),
			longitude = COALESCE(properties.longitude, EXCLUDED.longitude),
			updated_at = NOW()
		RETURNING` + propertyColumns

	var saved models.Property
	err := r.db.Pool.QueryRow(ctx, query,
		property.AddressLine1,
		property.City,
		property.Province,
		property.PostalCode,
		property.Latitude,
		property.Longitude,
		property.AddressCanonical,
		property.AddressHash,
		property.NeedsReview,
	).Scan(
		&saved.ID,
		&saved.AddressLine1,
		&saved.City,
		&saved.Province,
		&saved.PostalCode,
		&saved.Latitude,
		&saved.Longitude,
		&saved.AddressCanonical,
		&saved.AddressHash,
		&saved.NeedsReview,
		&saved.CreatedAt,
		&saved.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert property %s: %w", property.AddressHash, err)
	}

	return &saved, nil
}

func (r *propertyRepository) UpdateCity(ctx context.Context, id uuid.UUID, city string) error {
	return r.updateField(ctx, id, "city", city)
}

func (r *propertyRepository) UpdatePostalCode(ctx context.Context, id uuid.UUID, postalCode string) error {
	return r.updateField(ctx, id, "postal_code", postalCode)
}

func (r *propertyRepository) UpdateCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	query := `UPDATE properties SET latitude = $2, longitude = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, id, lat, lng); err != nil {
		return fmt.Errorf("failed to update coordinates for property %s: %w", id, err)
	}
	return nil
}

func (r *propertyRepository) updateField(ctx context.Context, id uuid.UUID, column, value string) error {
	query := fmt.Sprintf(`UPDATE properties SET %s = $2, updated_at = NOW() WHERE id = $1`, column)
	if _, err := r.db.Pool.Exec(ctx, query, id, value); err != nil {
		return fmt.Errorf("failed to update %s for property %s: %w", column, id, err)
	}
	return nil
}

func (r *propertyRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Property, error) {
	var p models.Property
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.AddressLine1,
		&p.City,
		&p.Province,
		&p.PostalCode,
		&p.Latitude,
		&p.Longitude,
		&p.AddressCanonical,
		&p.AddressHash,
		&p.NeedsReview,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	return &p, nil
}
