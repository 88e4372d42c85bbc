package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/brandonolsen23/cleo-pipeline/internal/errors"
	"github.com/brandonolsen23/cleo-pipeline/internal/middleware"
	"github.com/brandonolsen23/cleo-pipeline/internal/services"
)

// OpsHandler exposes queue and stats operations for operators.
type OpsHandler struct {
	service services.OpsService
}

// NewOpsHandler creates a new OpsHandler instance.
func NewOpsHandler(service services.OpsService) *OpsHandler {
	return &OpsHandler{service: service}
}

// RequeueStaleRequest is the body of the stale-requeue endpoint. CutoffMinutes
// bounds how long an item may sit in processing before it is reclaimed.
type RequeueStaleRequest struct {
	CutoffMinutes int `json:"cutoff_minutes" binding:"required,min=1"`
}

// EnqueueRequest is the body of the manual enqueue endpoint.
type EnqueueRequest struct {
	PropertyID string `json:"property_id" binding:"required,uuid"`
	Priority   int    `json:"priority" binding:"required,min=1,max=10"`
}

// DailyStatsQuery is the query of the daily stats endpoint.
type DailyStatsQuery struct {
	Date string `form:"date" binding:"required,datetime=2006-01-02"`
}

// QueueStatusQuery is the query of the queue status endpoint. StaleMinutes
// controls how old a processing claim must be before it counts as stale.
type QueueStatusQuery struct {
	StaleMinutes int `form:"stale_minutes" binding:"omitempty,min=1,max=1440"`
}

const defaultStaleCutoff = 30 * time.Minute

// GetQueueStatus handles GET /api/v1/queue/status.
func (h *OpsHandler) GetQueueStatus(c *gin.Context) {
	var query QueueStatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	cutoff := defaultStaleCutoff
	if query.StaleMinutes > 0 {
		cutoff = time.Duration(query.StaleMinutes) * time.Minute
	}

	status, err := h.service.GetQueueStatus(c.Request.Context(), cutoff)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to fetch queue status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// RequeueStale handles POST /api/v1/queue/requeue-stale.
func (h *OpsHandler) RequeueStale(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req RequeueStaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	reclaimed, err := h.service.RequeueStale(c.Request.Context(), time.Duration(req.CutoffMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCutoff) {
			apierrors.BadRequest(c, "Cutoff must be between 1 minute and 24 hours", nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to requeue stale items", err)
		return
	}

	if log != nil {
		log.Info("Requeued stale queue items", map[string]interface{}{
			"reclaimed":      reclaimed,
			"cutoff_minutes": req.CutoffMinutes,
		})
	}

	c.JSON(http.StatusOK, gin.H{"reclaimed": reclaimed})
}

// Enqueue handles POST /api/v1/queue/enqueue.
func (h *OpsHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		apierrors.BadRequest(c, "Invalid property ID format", nil)
		return
	}

	queued, err := h.service.EnqueueProperty(c.Request.Context(), propertyID, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownProperty):
			apierrors.NotFound(c, "Property not found")
		case errors.Is(err, services.ErrInvalidPriority):
			apierrors.BadRequest(c, "Priority must be between 1 and 10", nil)
		default:
			apierrors.InternalServerError(c, "Failed to enqueue property", err)
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"property_id": propertyID,
		"queued":      queued,
	})
}

// GetDailyStats handles GET /api/v1/stats/daily.
func (h *OpsHandler) GetDailyStats(c *gin.Context) {
	var query DailyStatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	date, err := time.Parse("2006-01-02", query.Date)
	if err != nil {
		apierrors.BadRequest(c, "Invalid date format, expected YYYY-MM-DD", nil)
		return
	}

	stats, err := h.service.GetDailyStats(c.Request.Context(), date)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to fetch daily stats", err)
		return
	}
	if stats == nil {
		apierrors.NotFound(c, "No stats recorded for that date")
		return
	}

	c.JSON(http.StatusOK, stats)
}
