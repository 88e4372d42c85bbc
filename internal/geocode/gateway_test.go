package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

type fakeGeocoder struct {
	result *models.GeocodeResult
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address, region string) (*models.GeocodeResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSearcher struct {
	result *models.GeocodeResult
	err    error
	calls  int
}

func (f *fakeSearcher) TextSearch(ctx context.Context, query, region string) (*models.GeocodeResult, error) {
	f.calls++
	return f.result, f.err
}

type fakePOISearcher struct {
	pois []POI
	err  error
}

func (f *fakePOISearcher) NearbyPOIs(ctx context.Context, lat, lng float64, radiusMeters int) ([]POI, error) {
	return f.pois, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New("test")
}

func geocodeResult(postal string, confidence int) *models.GeocodeResult {
	return &models.GeocodeResult{
		FormattedAddress: "471 King St E, Toronto, ON " + postal + ", Canada",
		Components: models.AddressComponents{
			StreetNumber: "471",
			Street:       "King St E",
			City:         "Toronto",
			Province:     "ON",
			PostalCode:   postal,
		},
		Location:   models.LatLng{Lat: 43.6532, Lng: -79.3832},
		PlaceID:    "place-1",
		Method:     models.MethodGeocoding,
		Confidence: confidence,
	}
}

func TestResolve_StrongPrimarySkipsFallback(t *testing.T) {
	geocoder := &fakeGeocoder{result: geocodeResult("M5A 1L7", ConfidenceRooftop)}
	searcher := &fakeSearcher{}
	gw := NewGateway(geocoder, searcher, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "471 KING ST E, Toronto")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, ConfidenceRooftop, result.Confidence)
	assert.False(t, result.NeedsReview)
	assert.Equal(t, 0, searcher.calls, "fallback should not run for a strong primary")
}

func TestResolve_MissingPostalTriggersFallback(t *testing.T) {
	geocoder := &fakeGeocoder{result: geocodeResult("", ConfidenceRooftop)}
	searcher := &fakeSearcher{result: &models.GeocodeResult{
		FormattedAddress: "471 King St E, Toronto, ON M5A 1L7, Canada",
		Components:       models.AddressComponents{PostalCode: "M5A 1L7"},
		Location:         models.LatLng{Lat: 43.6532, Lng: -79.3832},
		Method:           models.MethodTextSearch,
		Confidence:       ConfidenceTextSearch,
	}}
	gw := NewGateway(geocoder, searcher, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "471 KING ST E, Toronto")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.MethodTextSearch, result.Method)
	assert.Equal(t, ConfidenceTextSearch, result.Confidence)
	assert.False(t, result.NeedsReview, "postal-bearing fallback replaces the primary outright")
	assert.Equal(t, 1, searcher.calls)
}

func TestResolve_CityLevelPrimaryTriggersFallback(t *testing.T) {
	// A primary that bottomed out at the postal/city centroid carries a
	// postal code but its formatted address leads with the place name, not a
	// street number. It must not be trusted even when the input has a digit.
	geocoder := &fakeGeocoder{result: &models.GeocodeResult{
		FormattedAddress: "Midland, ON L4R 4K4",
		Components:       models.AddressComponents{City: "Midland", Province: "ON", PostalCode: "L4R 4K4"},
		Location:         models.LatLng{Lat: 44.75, Lng: -79.88},
		Method:           models.MethodGeocoding,
		Confidence:       ConfidenceInterpolated,
	}}
	searcher := &fakeSearcher{result: nil}
	gw := NewGateway(geocoder, searcher, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "9226 Highway 93, Midland")

	require.NoError(t, err)
	require.NotNil(t, result)
	// Fallback found nothing, so the weak primary is returned flagged.
	assert.True(t, result.NeedsReview)
	assert.Equal(t, ConfidenceFallback, result.Confidence)
	assert.Equal(t, 1, searcher.calls)
}

func TestResolve_FallbackWithoutPostalKeepsPrimaryFlagged(t *testing.T) {
	geocoder := &fakeGeocoder{result: geocodeResult("", ConfidenceInterpolated)}
	searcher := &fakeSearcher{result: &models.GeocodeResult{
		FormattedAddress: "King St E, Toronto, ON, Canada",
		Location:         models.LatLng{Lat: 43.65, Lng: -79.38},
		Method:           models.MethodTextSearch,
		Confidence:       ConfidenceTextSearch,
	}}
	gw := NewGateway(geocoder, searcher, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "471 KING ST E, Toronto")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.MethodGeocoding, result.Method)
	assert.True(t, result.NeedsReview)
	assert.Equal(t, ConfidenceFallback, result.Confidence)
}

func TestResolve_NoMatchEitherTier(t *testing.T) {
	gw := NewGateway(&fakeGeocoder{}, &fakeSearcher{}, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "NOWHERE AT ALL")

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestResolve_FallbackErrorFallsBackToPrimary(t *testing.T) {
	geocoder := &fakeGeocoder{result: geocodeResult("", ConfidenceRooftop)}
	searcher := &fakeSearcher{err: errors.New("quota exceeded")}
	gw := NewGateway(geocoder, searcher, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "471 KING ST E, Toronto")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.NeedsReview)
	assert.Equal(t, ConfidenceFallback, result.Confidence)
}

func TestResolve_GeocoderError(t *testing.T) {
	geocoder := &fakeGeocoder{err: errors.New("provider down")}
	gw := NewGateway(geocoder, &fakeSearcher{}, nil, "CA", testLogger(t))

	result, err := gw.Resolve(context.Background(), "471 KING ST E, Toronto")

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestBoostConfidence(t *testing.T) {
	retail := POI{Name: "Store", Types: []string{"store"}}
	office := POI{Name: "Office", Types: []string{"point_of_interest"}}

	tests := []struct {
		name string
		pois []POI
		in   int
		want int
	}{
		{"five POIs with retail", []POI{retail, office, office, office, office}, 50, 75},
		{"five POIs no retail", []POI{office, office, office, office, office}, 50, 65},
		{"three POIs", []POI{office, office, office}, 50, 65},
		{"one POI", []POI{office}, 50, 55},
		{"no POIs", nil, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(&fakeGeocoder{}, &fakeSearcher{}, &fakePOISearcher{pois: tt.pois}, "CA", testLogger(t))
			result := geocodeResult("M5A 1L7", tt.in)
			gw.BoostConfidence(context.Background(), result)
			assert.Equal(t, tt.want, result.Confidence)
		})
	}
}

func TestBoostConfidence_CappedWithoutPostal(t *testing.T) {
	retail := POI{Name: "Store", Types: []string{"supermarket"}}
	pois := []POI{retail, retail, retail, retail, retail}
	gw := NewGateway(&fakeGeocoder{}, &fakeSearcher{}, &fakePOISearcher{pois: pois}, "CA", testLogger(t))

	result := geocodeResult("", 70)
	gw.BoostConfidence(context.Background(), result)

	assert.Equal(t, MaxConfidenceNoPostal, result.Confidence)
}

func TestBoostConfidence_CappedAtHundred(t *testing.T) {
	retail := POI{Name: "Store", Types: []string{"supermarket"}}
	pois := []POI{retail, retail, retail, retail, retail}
	gw := NewGateway(&fakeGeocoder{}, &fakeSearcher{}, &fakePOISearcher{pois: pois}, "CA", testLogger(t))

	result := geocodeResult("M5A 1L7", 90)
	gw.BoostConfidence(context.Background(), result)

	assert.Equal(t, 100, result.Confidence)
}

func TestBoostConfidence_POIErrorLeavesConfidence(t *testing.T) {
	gw := NewGateway(&fakeGeocoder{}, &fakeSearcher{}, &fakePOISearcher{err: errors.New("quota")}, "CA", testLogger(t))

	result := geocodeResult("M5A 1L7", 70)
	gw.BoostConfidence(context.Background(), result)

	assert.Equal(t, 70, result.Confidence)
}

func TestFlagDuplicateCoordinates(t *testing.T) {
	a := &models.GeocodeResult{Location: models.LatLng{Lat: 44.75, Lng: -79.88}}
	b := &models.GeocodeResult{Location: models.LatLng{Lat: 44.75, Lng: -79.88}}
	c := &models.GeocodeResult{Location: models.LatLng{Lat: 43.65, Lng: -79.38}}

	FlagDuplicateCoordinates([]*models.GeocodeResult{a, b, c, nil})

	assert.True(t, a.NeedsReview)
	assert.True(t, b.NeedsReview)
	assert.False(t, c.NeedsReview)
}

func TestLooksLikePlaceName(t *testing.T) {
	assert.True(t, looksLikePlaceName("Mountainview Mall, Midland"))
	assert.True(t, looksLikePlaceName("Mountainview Mall, Midland, ON"))
	assert.True(t, looksLikePlaceName("Midland, ON L4R 4K4"))
	assert.True(t, looksLikePlaceName("Heritage Place"))
	assert.False(t, looksLikePlaceName("471 King St E, Toronto"))
	assert.False(t, looksLikePlaceName("9226 ON-93, Midland, ON L4R 4K4, Canada"))
	assert.False(t, looksLikePlaceName("Mountainview Mall, Midland, ON L4R 4K4, Canada"))
}
