package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/metrics"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// Provider endpoint URLs (Google Maps Platform).
const (
	geocodeURL    = "https://maps.googleapis.com/maps/api/geocode/json"
	textSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	nearbyURL     = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
)

// ErrNoAPIKey is returned when the provider client is constructed without
// credentials but a call is attempted anyway.
var ErrNoAPIKey = errors.New("geocoding API key not configured")

// errTransient marks a retryable provider failure (network error, 429, 5xx).
var errTransient = errors.New("transient provider error")

// POI is one nearby point of interest returned by the places API.
type POI struct {
	Name  string
	Types []string
}

// Geocoder resolves a structured address string to a best match.
type Geocoder interface {
	Geocode(ctx context.Context, address, region string) (*models.GeocodeResult, error)
}

// PlaceSearcher resolves a free-text query to a ranked place.
type PlaceSearcher interface {
	TextSearch(ctx context.Context, query, region string) (*models.GeocodeResult, error)
}

// POISearcher lists points of interest near a coordinate.
type POISearcher interface {
	NearbyPOIs(ctx context.Context, lat, lng float64, radiusMeters int) ([]POI, error)
}

// ClientOptions tunes the provider client's rate limiting and retry policy.
type ClientOptions struct {
	// CallDelay is the minimum spacing between outbound calls.
	CallDelay time.Duration
	// MaxAttempts caps retries for transient failures (network, 429, 5xx).
	MaxAttempts int
	// Backoff is the linear backoff step: attempt n sleeps n*Backoff.
	Backoff time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the external geocoding provider. All methods distinguish
// "no result" (nil, nil) from a transient failure that exhausted its retries
// (nil, err); the caller decides which outcomes matter.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	log         *logger.Logger
	callDelay   time.Duration
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient creates a provider client.
func NewClient(apiKey string, opts ClientOptions, log *logger.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &Client{
		apiKey:      apiKey,
		httpClient:  httpClient,
		log:         log.WithComponent("geocode_client"),
		callDelay:   opts.CallDelay,
		maxAttempts: maxAttempts,
		backoff:     opts.Backoff,
	}
}

// Available reports whether the client has credentials to make calls.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// googleResponse is the common envelope of the geocoding and places APIs.
type googleResponse struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress  string `json:"formatted_address"`
	PlaceID           string `json:"place_id"`
	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
	Geometry struct {
		Location     models.LatLng `json:"location"`
		LocationType string        `json:"location_type"`
	} `json:"geometry"`
}

type googlePlaceResult struct {
	FormattedAddress string `json:"formatted_address"`
	Name             string `json:"name"`
	PlaceID          string `json:"place_id"`
	Types            []string `json:"types"`
	Geometry         struct {
		Location models.LatLng `json:"location"`
	} `json:"geometry"`
}

// Geocode calls the structured geocoding endpoint. A nil result with nil
// error means the provider had no match.
func (c *Client) Geocode(ctx context.Context, address, region string) (*models.GeocodeResult, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("region", region)
	params.Set("key", c.apiKey)

	metrics.GeocodeCalls.WithLabelValues(string(models.MethodGeocoding)).Inc()
	body, err := c.get(ctx, geocodeURL, params)
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, nil
	}

	var raw googleGeocodeResult
	if err := json.Unmarshal(resp.Results[0], &raw); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding result: %w", err)
	}

	result := &models.GeocodeResult{
		FormattedAddress: raw.FormattedAddress,
		Location:         raw.Geometry.Location,
		PlaceID:          raw.PlaceID,
		Method:           models.MethodGeocoding,
		RawPayload:       resp.Results[0],
	}
	for _, comp := range raw.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "street_number":
				result.Components.StreetNumber = comp.LongName
			case "route":
				result.Components.Street = comp.LongName
			case "locality":
				result.Components.City = comp.LongName
			case "administrative_area_level_1":
				result.Components.Province = comp.ShortName
			case "postal_code":
				result.Components.PostalCode = comp.LongName
			}
		}
	}

	// Rooftop matches landed on the building; anything else interpolated.
	if raw.Geometry.LocationType == "ROOFTOP" {
		result.Confidence = ConfidenceRooftop
	} else {
		result.Confidence = ConfidenceInterpolated
	}

	return result, nil
}

// TextSearch calls the free-text place search endpoint. Components are parsed
// out of the formatted address because the places API does not return a
// component breakdown.
func (c *Client) TextSearch(ctx context.Context, query, region string) (*models.GeocodeResult, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("region", strings.ToLower(region))
	params.Set("key", c.apiKey)

	metrics.GeocodeCalls.WithLabelValues(string(models.MethodTextSearch)).Inc()
	body, err := c.get(ctx, textSearchURL, params)
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode text search response: %w", err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, nil
	}

	var raw googlePlaceResult
	if err := json.Unmarshal(resp.Results[0], &raw); err != nil {
		return nil, fmt.Errorf("failed to decode text search result: %w", err)
	}

	return &models.GeocodeResult{
		FormattedAddress: raw.FormattedAddress,
		Components:       parseFormattedAddress(raw.FormattedAddress),
		Location:         raw.Geometry.Location,
		PlaceID:          raw.PlaceID,
		Method:           models.MethodTextSearch,
		Confidence:       ConfidenceTextSearch,
		RawPayload:       resp.Results[0],
	}, nil
}

// NearbyPOIs lists establishments within radiusMeters of the coordinate.
func (c *Client) NearbyPOIs(ctx context.Context, lat, lng float64, radiusMeters int) ([]POI, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", fmt.Sprintf("%d", radiusMeters))
	params.Set("type", "establishment")
	params.Set("key", c.apiKey)

	metrics.GeocodeCalls.WithLabelValues("nearby_search").Inc()
	body, err := c.get(ctx, nearbyURL, params)
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode nearby search response: %w", err)
	}
	if resp.Status != "OK" {
		return nil, nil
	}

	pois := make([]POI, 0, len(resp.Results))
	for _, r := range resp.Results {
		var raw googlePlaceResult
		if err := json.Unmarshal(r, &raw); err != nil {
			continue
		}
		pois = append(pois, POI{Name: raw.Name, Types: raw.Types})
	}
	return pois, nil
}

// get issues a throttled GET with linear-backoff retries on transient
// failures. Non-2xx statuses outside {429, 5xx} are terminal.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, errTransient) {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxAttempts {
			c.log.Warn("Transient provider failure, backing off", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			if err := sleepCtx(ctx, time.Duration(attempt)*c.backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("provider call failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", errTransient, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
}

// throttle enforces the fixed inter-call delay.
func (c *Client) throttle(ctx context.Context) error {
	if c.callDelay <= 0 {
		return nil
	}

	c.mu.Lock()
	wait := c.callDelay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		return sleepCtx(ctx, wait)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseFormattedAddress extracts components from a formatted address like
// "9226 ON-93, Midland, ON L4R 4K4, Canada".
func parseFormattedAddress(formatted string) models.AddressComponents {
	parts := strings.Split(formatted, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var comps models.AddressComponents

	if len(parts) >= 1 {
		streetParts := strings.Fields(parts[0])
		if len(streetParts) > 0 && isDigits(streetParts[0]) {
			comps.StreetNumber = streetParts[0]
			comps.Street = strings.Join(streetParts[1:], " ")
		} else {
			comps.Street = parts[0]
		}
	}
	if len(parts) >= 2 {
		comps.City = parts[1]
	}
	if len(parts) >= 3 {
		// Province and postal code share the third segment: "ON L4R 4K4".
		provincePostal := strings.Fields(parts[2])
		if len(provincePostal) > 0 {
			comps.Province = provincePostal[0]
		}
		if len(provincePostal) >= 2 {
			comps.PostalCode = strings.Join(provincePostal[1:], " ")
		}
	}

	return comps
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
