package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/brandonolsen23/cleo-pipeline/internal/errors"
	"github.com/brandonolsen23/cleo-pipeline/internal/ingest"
	"github.com/brandonolsen23/cleo-pipeline/internal/middleware"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
	"github.com/brandonolsen23/cleo-pipeline/internal/nar"
)

// AddressValidator checks one address against the reference dataset.
type AddressValidator interface {
	Validate(ctx context.Context, address string, cityHint, postalCode *string) (*models.ValidationResult, error)
}

// PipelineHandler handles ingest and ad hoc resolution requests.
type PipelineHandler struct {
	pipeline  *ingest.Pipeline
	resolver  ingest.Resolver
	validator AddressValidator
}

// NewPipelineHandler creates a new PipelineHandler instance.
func NewPipelineHandler(pipeline *ingest.Pipeline, resolver ingest.Resolver, validator AddressValidator) *PipelineHandler {
	return &PipelineHandler{
		pipeline:  pipeline,
		resolver:  resolver,
		validator: validator,
	}
}

// IngestRequest is the body of the single-record ingest endpoint.
type IngestRequest struct {
	Address    string `json:"address" binding:"required"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	ARN        string `json:"arn"`
	PIN        string `json:"pin"`
}

// IngestBatchRequest is the body of the batch ingest endpoint.
type IngestBatchRequest struct {
	Records []IngestRequest `json:"records" binding:"required,min=1,max=500,dive"`
}

// ResolveRequest is the body of the ad hoc geocoding endpoint.
type ResolveRequest struct {
	Address string `json:"address" binding:"required"`
}

// ValidateRequest is the body of the ad hoc validation endpoint.
type ValidateRequest struct {
	Address    string  `json:"address" binding:"required"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
}

// Ingest handles POST /api/v1/ingest.
// It runs one raw record through the full resolution pipeline.
func (h *PipelineHandler) Ingest(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing ingest request", map[string]interface{}{
			"address": req.Address,
			"city":    req.City,
		})
	}

	result, err := h.pipeline.IngestRecord(c.Request.Context(), toRawRecord(req))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to ingest record", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// IngestBatch handles POST /api/v1/ingest/batch.
// Individual record failures do not fail the batch; failed slots come back
// null in the results array.
func (h *PipelineHandler) IngestBatch(c *gin.Context) {
	var req IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	records := make([]models.RawRecord, len(req.Records))
	for i, r := range req.Records {
		records[i] = toRawRecord(r)
	}

	results, err := h.pipeline.IngestBatch(c.Request.Context(), records)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to ingest batch", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// Resolve handles POST /api/v1/resolve.
// It geocodes one address through the tiered gateway without persisting.
func (h *PipelineHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), req.Address)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to resolve address", err)
		return
	}
	if result == nil {
		apierrors.NotFound(c, "Address could not be resolved")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Validate handles POST /api/v1/validate.
// It runs the reference validation ladder for one address.
func (h *PipelineHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), req.Address, req.City, req.PostalCode)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to validate address", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func toRawRecord(req IngestRequest) models.RawRecord {
	return models.RawRecord{
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		ARN:        req.ARN,
		PIN:        req.PIN,
	}
}

var _ AddressValidator = (*nar.Validator)(nil)
