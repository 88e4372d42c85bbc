package geocode

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// Confidence scores assigned by resolution method.
const (
	ConfidenceRooftop      = 100
	ConfidenceTextSearch   = 90
	ConfidenceInterpolated = 70
	ConfidenceFallback     = 25

	// MaxConfidenceNoPostal caps boosted confidence when the result still
	// lacks a postal code.
	MaxConfidenceNoPostal = 75

	poiSearchRadiusMeters = 100
)

// Retail place types that make a cluster of POIs count as commercial context.
var retailTypes = map[string]bool{
	"store":             true,
	"shopping_mall":     true,
	"supermarket":       true,
	"restaurant":        true,
	"gas_station":       true,
	"convenience_store": true,
	"department_store":  true,
	"clothing_store":    true,
	"home_goods_store":  true,
	"pharmacy":          true,
}

// Gateway implements the two-tier resolution policy: a structured geocode
// first, and a free-text place search when the structured result looks weak.
type Gateway struct {
	geocoder Geocoder
	searcher PlaceSearcher
	pois     POISearcher
	region   string
	log      *logger.Logger
}

// NewGateway creates a resolution gateway. The POI searcher may be nil, in
// which case confidence boosting is skipped.
func NewGateway(geocoder Geocoder, searcher PlaceSearcher, pois POISearcher, region string, log *logger.Logger) *Gateway {
	if region == "" {
		region = "CA"
	}
	return &Gateway{
		geocoder: geocoder,
		searcher: searcher,
		pois:     pois,
		region:   region,
		log:      log.WithComponent("geocode_gateway"),
	}
}

// Resolve geocodes an address with fallback. A nil result with nil error
// means neither tier produced a match.
func (g *Gateway) Resolve(ctx context.Context, address string) (*models.GeocodeResult, error) {
	primary, err := g.geocoder.Geocode(ctx, address, g.region)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed for %q: %w", address, err)
	}

	if primary != nil && !isLowConfidence(primary) {
		return primary, nil
	}

	fallback, err := g.searcher.TextSearch(ctx, address, g.region)
	if err != nil {
		g.log.Warn("Text search fallback failed", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
		fallback = nil
	}

	// A fallback with a postal code supersedes the weak primary outright.
	if fallback != nil && fallback.HasPostalCode() {
		fallback.NeedsReview = false
		return fallback, nil
	}

	if primary != nil {
		primary.NeedsReview = true
		if primary.Confidence > ConfidenceFallback {
			primary.Confidence = ConfidenceFallback
		}
		return primary, nil
	}

	if fallback != nil {
		fallback.NeedsReview = true
		return fallback, nil
	}

	return nil, nil
}

// BoostConfidence raises a result's confidence when the coordinate sits in a
// commercial cluster. Boosted confidence without a postal code is capped.
func (g *Gateway) BoostConfidence(ctx context.Context, result *models.GeocodeResult) {
	if g.pois == nil || result == nil || !result.HasLocation() {
		return
	}

	pois, err := g.pois.NearbyPOIs(ctx, result.Location.Lat, result.Location.Lng, poiSearchRadiusMeters)
	if err != nil {
		g.log.Warn("POI lookup failed, skipping confidence boost", map[string]interface{}{
			"place_id": result.PlaceID,
			"error":    err.Error(),
		})
		return
	}

	boost := 0
	switch {
	case len(pois) >= 5 && hasRetail(pois):
		boost = 25
	case len(pois) >= 3:
		boost = 15
	case len(pois) >= 1:
		boost = 5
	}
	if boost == 0 {
		return
	}

	result.Confidence += boost
	if !result.HasPostalCode() && result.Confidence > MaxConfidenceNoPostal {
		result.Confidence = MaxConfidenceNoPostal
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
}

// isLowConfidence reports whether a structured geocode looks too weak to
// trust: it resolved without a postal code, or the formatted result reads as
// a city or place match rather than a street address.
func isLowConfidence(result *models.GeocodeResult) bool {
	if !result.HasPostalCode() {
		return true
	}
	return looksLikePlaceName(result.FormattedAddress)
}

// looksLikePlaceName reports whether a formatted address reads as a named
// place: at most two commas, with no digit before the first one. A street
// match always leads with its number ("9226 ON-93, Midland, ON ..., Canada");
// a centroid match leads with the place name ("Midland, ON L4R 4K4").
func looksLikePlaceName(formatted string) bool {
	if strings.Count(formatted, ",") > 2 {
		return false
	}
	first := strings.SplitN(formatted, ",", 2)[0]
	return !strings.ContainsAny(first, "0123456789")
}

func hasRetail(pois []POI) bool {
	for _, p := range pois {
		for _, t := range p.Types {
			if retailTypes[t] {
				return true
			}
		}
	}
	return false
}

// FlagDuplicateCoordinates marks results in a batch that landed on the same
// coordinate as another member. Distinct child addresses resolving to one
// point usually means the provider snapped to the parent parcel.
func FlagDuplicateCoordinates(results []*models.GeocodeResult) {
	seen := make(map[string][]*models.GeocodeResult)
	for _, r := range results {
		if r == nil || !r.HasLocation() {
			continue
		}
		key := fmt.Sprintf("%.6f,%.6f", r.Location.Lat, r.Location.Lng)
		seen[key] = append(seen[key], r)
	}
	for _, group := range seen {
		if len(group) < 2 {
			continue
		}
		for _, r := range group {
			r.NeedsReview = true
		}
	}
}
