package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is the persisted best-known state of a resolved address.
// Nullable columns use pointers to distinguish zero values from NULL.
// AddressHash is the natural dedup key: it is computed once at ingest time
// from the immutable raw fields and is never recomputed when the validation
// worker corrects a component field.
type Property struct {
	ID               uuid.UUID
	AddressLine1     string
	City             *string
	Province         *string
	PostalCode       *string
	Latitude         *float64
	Longitude        *float64
	AddressCanonical string
	AddressHash      string
	NeedsReview      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
