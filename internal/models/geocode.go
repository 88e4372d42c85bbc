package models

import "encoding/json"

// GeocodeMethod identifies which provider call produced a result.
type GeocodeMethod string

const (
	// MethodGeocoding is the structured geocoding endpoint.
	MethodGeocoding GeocodeMethod = "geocoding"
	// MethodTextSearch is the free-text place search fallback.
	MethodTextSearch GeocodeMethod = "text_search"
)

// AddressComponents is the component breakdown of a geocoded address.
type AddressComponents struct {
	StreetNumber string `json:"street_number,omitempty"`
	Street       string `json:"street,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult is the outcome of resolving one expanded address through the
// geocoding gateway. Confidence and NeedsReview are derived by the gateway's
// tiering policy, never taken from the provider.
type GeocodeResult struct {
	FormattedAddress string            `json:"formatted_address"`
	Components       AddressComponents `json:"components"`
	Location         LatLng            `json:"location"`
	PlaceID          string            `json:"place_id"`
	Method           GeocodeMethod     `json:"method"`
	Confidence       int               `json:"confidence"`
	NeedsReview      bool              `json:"needs_review"`
	RawPayload       json.RawMessage   `json:"-"`
}

// HasPostalCode reports whether the provider resolved a postal code, the
// strongest signal that the match landed on a real address rather than a
// locality centroid.
func (r *GeocodeResult) HasPostalCode() bool {
	return r.Components.PostalCode != ""
}

// HasLocation reports whether the result carries usable coordinates.
func (r *GeocodeResult) HasLocation() bool {
	return r.Location.Lat != 0 || r.Location.Lng != 0
}
