package nar

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandonolsen23/cleo-pipeline/internal/cities"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// Cache memoizes validation results keyed by normalized address plus hints.
// Lookup returns nil, nil on a miss. Store failures must not fail validation.
type Cache interface {
	Lookup(ctx context.Context, addressNormalized string, cityHint, postalCode *string) (*models.ValidationResult, error)
	Store(ctx context.Context, addressNormalized string, cityHint, postalCode *string, result models.ValidationResult)
}

// Validator checks addresses against the reference dataset using a
// postal-code-first strategy ladder:
//
//  1. postal + exact address  -> confidence 100
//  2. postal alone for city   -> confidence 95
//  3. address + city          -> confidence 90
//  4. address only (fuzzy)    -> confidence 70
//
// Results are memoized through the cache when one is configured.
type Validator struct {
	store ReferenceStore
	cache Cache
	log   *logger.Logger
}

// NewValidator creates a validator. The cache may be nil to disable
// memoization.
func NewValidator(store ReferenceStore, cache Cache, log *logger.Logger) *Validator {
	return &Validator{
		store: store,
		cache: cache,
		log:   log.WithComponent("validator"),
	}
}

// Validate runs the strategy ladder for one address. It always returns a
// result; an error means the reference store itself failed.
func (v *Validator) Validate(ctx context.Context, address string, cityHint, postalCode *string) (*models.ValidationResult, error) {
	// Inputs with no parseable street number never hit the reference store.
	streetNumber := ParseStreetNumber(address)
	if strings.TrimSpace(address) == "" || streetNumber == "" {
		return &models.ValidationResult{
			Found:      false,
			Confidence: 0,
			MatchType:  models.MatchInvalidAddress,
			Source:     models.SourceReferenceQuery,
		}, nil
	}

	normalized := NormalizeForCache(address)

	if v.cache != nil {
		cached, err := v.cache.Lookup(ctx, normalized, cityHint, postalCode)
		if err != nil {
			v.log.Warn("Cache lookup failed, falling through to reference query", map[string]interface{}{
				"address": normalized,
				"error":   err.Error(),
			})
		} else if cached != nil {
			cached.MatchType = models.MatchCached
			cached.Source = models.SourceCache
			return cached, nil
		}
	}

	result, err := v.runLadder(ctx, address, streetNumber, cityHint, postalCode)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		v.cache.Store(ctx, normalized, cityHint, postalCode, *result)
	}

	return result, nil
}

func (v *Validator) runLadder(ctx context.Context, address, streetNumber string, cityHint, postalCode *string) (*models.ValidationResult, error) {
	streetName := ParseStreetName(address)

	if postalCode != nil && strings.TrimSpace(*postalCode) != "" {
		postalClean := CleanPostal(*postalCode)

		postalCity, err := v.store.CityByPostal(ctx, postalClean)
		if err != nil {
			return nil, fmt.Errorf("postal code lookup failed: %w", err)
		}

		if postalCity != nil {
			ref, err := v.store.FindByPostalAndAddress(ctx, streetNumber, streetName, postalClean)
			if err != nil {
				return nil, fmt.Errorf("postal and address lookup failed: %w", err)
			}
			if ref != nil {
				return foundResult(ref, models.MatchPostalAndAddress, models.ConfidencePostalAndAddress), nil
			}

			// The postal code is known even though the exact address is not,
			// which is still enough to trust the city.
			return &models.ValidationResult{
				Found:      true,
				Confidence: models.ConfidencePostalOnly,
				City:       cities.Normalize(postalCity.City),
				PostalCode: *postalCode,
				MatchType:  models.MatchPostalOnly,
				Source:     models.SourceReferenceQuery,
			}, nil
		}
	}

	if cityHint != nil && strings.TrimSpace(*cityHint) != "" {
		ref, err := v.store.FindByAddressAndCity(ctx, streetNumber, streetName, cities.Normalize(*cityHint))
		if err != nil {
			return nil, fmt.Errorf("address and city lookup failed: %w", err)
		}
		if ref != nil {
			return foundResult(ref, models.MatchAddressAndCity, models.ConfidenceAddressAndCity), nil
		}
	}

	ref, err := v.store.FindByAddress(ctx, streetNumber, streetName)
	if err != nil {
		return nil, fmt.Errorf("fuzzy address lookup failed: %w", err)
	}
	if ref != nil {
		return foundResult(ref, models.MatchFuzzy, models.ConfidenceFuzzy), nil
	}

	return &models.ValidationResult{
		Found:      false,
		Confidence: 0,
		MatchType:  models.MatchNotFound,
		Source:     models.SourceReferenceQuery,
	}, nil
}

func foundResult(ref *models.ReferenceAddress, matchType models.MatchType, confidence int) *models.ValidationResult {
	lat := ref.Latitude
	lng := ref.Longitude
	return &models.ValidationResult{
		Found:      true,
		Confidence: confidence,
		City:       cities.Normalize(ref.City),
		PostalCode: ref.PostalCode,
		Latitude:   &lat,
		Longitude:  &lng,
		MatchType:  matchType,
		Source:     models.SourceReferenceQuery,
	}
}
