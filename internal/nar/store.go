package nar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// PostalCity is the dominant city for a postal code, with the number of
// reference rows that back it.
type PostalCity struct {
	City         string
	AddressCount int
}

// ReferenceStore queries the offline reference address dataset. All lookups
// return nil, nil when no row matches.
type ReferenceStore interface {
	CityByPostal(ctx context.Context, postalClean string) (*PostalCity, error)
	FindByPostalAndAddress(ctx context.Context, streetNumber, streetName, postalClean string) (*models.ReferenceAddress, error)
	FindByAddressAndCity(ctx context.Context, streetNumber, streetName, city string) (*models.ReferenceAddress, error)
	FindByAddress(ctx context.Context, streetNumber, streetName string) (*models.ReferenceAddress, error)
}

// postgresReferenceStore implements ReferenceStore against the nar_addresses
// table, which holds the imported reference dataset filtered to CA/ON.
type postgresReferenceStore struct {
	db *database.Database
}

// NewPostgresReferenceStore creates a reference store backed by the pool.
func NewPostgresReferenceStore(db *database.Database) ReferenceStore {
	return &postgresReferenceStore{db: db}
}

// CityByPostal returns the city with the most reference rows under the given
// cleaned postal code.
func (s *postgresReferenceStore) CityByPostal(ctx context.Context, postalClean string) (*PostalCity, error) {
	if len(postalClean) < 6 {
		return nil, nil
	}

	query := `
		SELECT city, COUNT(*) AS address_count
		FROM nar_addresses
		WHERE country = 'CA'
		  AND province = 'ON'
		  AND REPLACE(UPPER(postal_code), ' ', '') = $1
		GROUP BY city
		ORDER BY address_count DESC
		LIMIT 1`

	var pc PostalCity
	err := s.db.Pool.QueryRow(ctx, query, postalClean).Scan(&pc.City, &pc.AddressCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query reference city by postal code: %w", err)
	}

	return &pc, nil
}

// FindByPostalAndAddress looks for an exact street number and street name
// match inside a postal code.
func (s *postgresReferenceStore) FindByPostalAndAddress(ctx context.Context, streetNumber, streetName, postalClean string) (*models.ReferenceAddress, error) {
	query := `
		SELECT city, postal_code, latitude, longitude
		FROM nar_addresses
		WHERE country = 'CA'
		  AND province = 'ON'
		  AND street_number = $1
		  AND UPPER(street_name) LIKE $2
		  AND REPLACE(UPPER(postal_code), ' ', '') = $3
		LIMIT 1`

	return s.queryOne(ctx, query, streetNumber, "%"+streetName+"%", postalClean)
}

// FindByAddressAndCity looks for an exact street number and street name match
// inside the given city.
func (s *postgresReferenceStore) FindByAddressAndCity(ctx context.Context, streetNumber, streetName, city string) (*models.ReferenceAddress, error) {
	query := `
		SELECT city, postal_code, latitude, longitude
		FROM nar_addresses
		WHERE country = 'CA'
		  AND province = 'ON'
		  AND street_number = $1
		  AND UPPER(street_name) LIKE $2
		  AND UPPER(city) = $3
		LIMIT 1`

	return s.queryOne(ctx, query, streetNumber, "%"+streetName+"%", city)
}

// FindByAddress looks for a street number and street name match with no city
// constraint. Used as the last rung of the ladder.
func (s *postgresReferenceStore) FindByAddress(ctx context.Context, streetNumber, streetName string) (*models.ReferenceAddress, error) {
	query := `
		SELECT city, postal_code, latitude, longitude
		FROM nar_addresses
		WHERE country = 'CA'
		  AND province = 'ON'
		  AND street_number = $1
		  AND UPPER(street_name) LIKE $2
		LIMIT 1`

	return s.queryOne(ctx, query, streetNumber, "%"+streetName+"%")
}

func (s *postgresReferenceStore) queryOne(ctx context.Context, query string, args ...interface{}) (*models.ReferenceAddress, error) {
	var ref models.ReferenceAddress
	err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&ref.City, &ref.PostalCode, &ref.Latitude, &ref.Longitude)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query reference addresses: %w", err)
	}
	return &ref, nil
}
