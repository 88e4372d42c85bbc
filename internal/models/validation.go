package models

import "time"

// MatchType identifies which rung of the reference validation ladder
// produced a result.
type MatchType string

const (
	// MatchPostalAndAddress is an exact street match inside a postal code.
	MatchPostalAndAddress MatchType = "postal_and_address"
	// MatchPostalOnly recovered the city from the postal code alone.
	MatchPostalOnly MatchType = "postal_only"
	// MatchAddressAndCity is an exact street match within the hinted city.
	MatchAddressAndCity MatchType = "address_and_city"
	// MatchFuzzy is an exact street match with no city constraint.
	MatchFuzzy MatchType = "fuzzy"
	// MatchNotFound means the ladder was exhausted without a hit.
	MatchNotFound MatchType = "not_found"
	// MatchInvalidAddress means the input had no parseable street number and
	// the reference dataset was never queried.
	MatchInvalidAddress MatchType = "invalid_address"
	// MatchCached means the result was served from the validation cache.
	MatchCached MatchType = "cached"
)

// Validation result sources.
const (
	SourceReferenceQuery = "reference_query"
	SourceCache          = "cache"
)

// Confidence scores assigned by the validation ladder.
const (
	ConfidencePostalAndAddress = 100
	ConfidencePostalOnly       = 95
	ConfidenceAddressAndCity   = 90
	ConfidenceFuzzy            = 70
)

// ValidationResult is the outcome of validating one address against the
// reference dataset (or the cache of previous validations).
type ValidationResult struct {
	Found      bool      `json:"found"`
	Confidence int       `json:"confidence"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Source     string    `json:"source"`
}

// ReferenceAddress is one row of the offline reference dataset.
type ReferenceAddress struct {
	City       string
	PostalCode string
	Latitude   float64
	Longitude  float64
}

// CacheEntry is a persisted validation memo keyed by
// (normalized address, city hint, postal code). The payload never changes
// after the first write; only the lookup bookkeeping does.
type CacheEntry struct {
	AddressNormalized string
	CityHint          *string
	PostalCode        *string
	Result            ValidationResult
	LookupCount       int
	CreatedAt         time.Time
	LastLookupAt      time.Time
}

// DailyStats is one row of the daily validation rollup.
type DailyStats struct {
	Date               time.Time
	TotalValidated     int
	Found              int
	NotFound           int
	HighConfidence     int
	MediumConfidence   int
	LowConfidence      int
	CitiesUpdated      int
	PostalCodesUpdated int
	GeocodingUpdated   int
}
