package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/brandonolsen23/cleo-pipeline/internal/errors"
	"github.com/brandonolsen23/cleo-pipeline/internal/ingest"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/middleware"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// fakePropertyStore keeps properties in memory, keyed by address hash.
type fakePropertyStore struct {
	byHash map[string]*models.Property
}

func newFakePropertyStore() *fakePropertyStore {
	return &fakePropertyStore{byHash: make(map[string]*models.Property)}
}

func (f *fakePropertyStore) GetByHash(ctx context.Context, hash string) (*models.Property, error) {
	return f.byHash[hash], nil
}

func (f *fakePropertyStore) Insert(ctx context.Context, property *models.Property) (*models.Property, error) {
	saved := *property
	saved.ID = uuid.New()
	f.byHash[saved.AddressHash] = &saved
	return &saved, nil
}

type fakeEnqueuer struct{}

func (f *fakeEnqueuer) EnqueueBatch(ctx context.Context, propertyIDs []uuid.UUID, priority int) (int, error) {
	return len(propertyIDs), nil
}

type fakeResolver struct {
	result *models.GeocodeResult
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, address string) (*models.GeocodeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.GeocodeResult{
		FormattedAddress: address,
		Components:       models.AddressComponents{PostalCode: "M6E 1R6", City: "Toronto"},
		Location:         models.LatLng{Lat: 43.68, Lng: -79.45},
		Method:           models.MethodGeocoding,
		Confidence:       100,
	}, nil
}

func (f *fakeResolver) BoostConfidence(ctx context.Context, result *models.GeocodeResult) {}

type fakeAddressValidator struct {
	result *models.ValidationResult
	err    error
}

func (f *fakeAddressValidator) Validate(ctx context.Context, address string, cityHint, postalCode *string) (*models.ValidationResult, error) {
	return f.result, f.err
}

// setupPipelineTestRouter creates a test router with middleware and pipeline handlers.
func setupPipelineTestRouter(handler *PipelineHandler, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", handler.Ingest)
		v1.POST("/ingest/batch", handler.IngestBatch)
		v1.POST("/resolve", handler.Resolve)
		v1.POST("/validate", handler.Validate)
	}

	return router
}

func newTestPipelineHandler(resolver ingest.Resolver, validator AddressValidator) (*PipelineHandler, *logger.Logger) {
	log := logger.New("test")
	pipeline := ingest.NewPipeline(newFakePropertyStore(), &fakeEnqueuer{}, resolver, log)
	return NewPipelineHandler(pipeline, resolver, validator), log
}

func TestIngest_Success(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{}, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	body, _ := json.Marshal(IngestRequest{
		Address: "140 Rogers Rd",
		City:    "Toronto",
	})
	req, err := http.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response ingest.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Properties, 1)
	assert.NotEmpty(t, response.Properties[0].AddressHash)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestIngest_MissingAddress(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{}, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	req, err := http.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader([]byte(`{"city":"Toronto"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, apierrors.ErrValidation, response.Error.Code)
}

func TestIngestBatch_Success(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{}, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	body, _ := json.Marshal(IngestBatchRequest{Records: []IngestRequest{
		{Address: "140 Rogers Rd", City: "Toronto"},
		{Address: "471 King St E", City: "Hamilton"},
	}})
	req, err := http.NewRequest(http.MethodPost, "/api/v1/ingest/batch", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Results []*ingest.Result `json:"results"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Count)
	require.Len(t, response.Results, 2)
	require.NotNil(t, response.Results[0])
}

func TestIngestBatch_EmptyRecords(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{}, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	req, err := http.NewRequest(http.MethodPost, "/api/v1/ingest/batch", bytes.NewReader([]byte(`{"records":[]}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve_Success(t *testing.T) {
	resolver := &fakeResolver{result: &models.GeocodeResult{
		FormattedAddress: "9226 ON-93, Midland, ON L4R 4K4, Canada",
		Components:       models.AddressComponents{PostalCode: "L4R 4K4", City: "Midland"},
		Location:         models.LatLng{Lat: 44.75, Lng: -79.88},
		Method:           models.MethodGeocoding,
		Confidence:       100,
	}}
	handler, log := newTestPipelineHandler(resolver, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	body, _ := json.Marshal(ResolveRequest{Address: "9226 Highway 93, Midland"})
	req, err := http.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.GeocodeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 100, response.Confidence)
	assert.Equal(t, "Midland", response.Components.City)
}

func TestResolve_NoResult(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{result: nil, err: nil}, &fakeAddressValidator{})
	// Force the nil-result branch with a resolver that returns nothing.
	handler.resolver = nilResolver{}
	router := setupPipelineTestRouter(handler, log)

	body, _ := json.Marshal(ResolveRequest{Address: "nowhere at all"})
	req, err := http.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

type nilResolver struct{}

func (nilResolver) Resolve(ctx context.Context, address string) (*models.GeocodeResult, error) {
	return nil, nil
}

func (nilResolver) BoostConfidence(ctx context.Context, result *models.GeocodeResult) {}

func TestValidate_Success(t *testing.T) {
	validator := &fakeAddressValidator{result: &models.ValidationResult{
		Found:      true,
		Confidence: 100,
		MatchType:  models.MatchPostalAndAddress,
		City:       "TORONTO",
	}}
	handler, log := newTestPipelineHandler(&fakeResolver{}, validator)
	router := setupPipelineTestRouter(handler, log)

	body, _ := json.Marshal(map[string]string{
		"address":     "140 Rogers Rd",
		"city":        "Toronto",
		"postal_code": "M6E 1R6",
	})
	req, err := http.NewRequest(http.MethodPost, "/api/v1/validate", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Found)
	assert.Equal(t, 100, response.Confidence)
}

func TestValidate_MissingAddress(t *testing.T) {
	handler, log := newTestPipelineHandler(&fakeResolver{}, &fakeAddressValidator{})
	router := setupPipelineTestRouter(handler, log)

	req, err := http.NewRequest(http.MethodPost, "/api/v1/validate", bytes.NewReader([]byte(`{"city":"Toronto"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
