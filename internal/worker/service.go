// Package worker runs the background validation service: it drains the
// durable validation queue, validates each property against the reference
// dataset, and applies high-confidence corrections to the properties table.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/brandonolsen23/cleo-pipeline/internal/alert"
	"github.com/brandonolsen23/cleo-pipeline/internal/config"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/metrics"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
	"github.com/brandonolsen23/cleo-pipeline/internal/repository"
)

// Validator checks one address against the reference dataset.
type Validator interface {
	Validate(ctx context.Context, address string, cityHint, postalCode *string) (*models.ValidationResult, error)
}

// Service is the polling validation worker. One claimed batch is processed
// sequentially; horizontal scale comes from running more workers, which the
// queue's claim semantics make safe.
type Service struct {
	queue     repository.QueueRepository
	props     repository.PropertyRepository
	validator Validator
	stats     repository.StatsRepository
	notifier  alert.Notifier
	cfg       config.WorkerConfig
	log       *logger.Logger

	totalProcessed int
	pendingStats   models.DailyStats
	lastActivity   time.Time
	idleAlerted    bool
	staleAlerted   bool
}

// NewService creates a validation worker.
func NewService(
	queue repository.QueueRepository,
	props repository.PropertyRepository,
	validator Validator,
	stats repository.StatsRepository,
	notifier alert.Notifier,
	cfg config.WorkerConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		queue:     queue,
		props:     props,
		validator: validator,
		stats:     stats,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.WithComponent("worker"),
	}
}

// Run polls the queue until the context is canceled. A batch in flight is
// always finished before returning, so canceling the context drains cleanly.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("Validation worker started", map[string]interface{}{
		"batch_size":    s.cfg.BatchSize,
		"poll_interval": s.cfg.PollInterval.String(),
		"threshold":     s.cfg.HighConfidenceThreshold,
	})

	s.lastActivity = time.Now()

	for {
		batch, err := s.queue.ClaimBatch(ctx, s.cfg.BatchSize)
		if err != nil {
			s.log.Error("Failed to claim queue batch", err, nil)
		} else if len(batch) > 0 {
			// A claimed batch is finished even if shutdown starts mid-batch;
			// cancellation is only honored between batches. Otherwise a
			// SIGINT would fail every remaining item with "context canceled"
			// or strand them in processing.
			s.processBatch(context.WithoutCancel(ctx), batch)
		}

		s.refreshQueueGauges(ctx)
		s.checkHealth(ctx)

		if s.pendingStats.TotalValidated >= s.cfg.StatsEvery {
			s.flushStats(ctx)
		}

		select {
		case <-ctx.Done():
			s.flushStats(context.WithoutCancel(ctx))
			s.log.Info("Validation worker stopped", map[string]interface{}{
				"total_processed": s.totalProcessed,
			})
			return nil
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// processBatch validates every claimed item. A failure on one item never
// aborts the rest of the batch.
func (s *Service) processBatch(ctx context.Context, batch []models.ValidationQueueItem) {
	start := time.Now()
	s.log.Info("Processing validation batch", map[string]interface{}{
		"size": len(batch),
	})

	for i := range batch {
		item := &batch[i]

		outcome, err := s.processItem(ctx, item)
		if err != nil {
			reason := truncate(err.Error(), 500)
			if markErr := s.queue.MarkFailed(ctx, item.ID, reason); markErr != nil {
				s.log.Error("Failed to mark queue item failed", markErr, map[string]interface{}{
					"queue_id": item.ID.String(),
				})
			}
			metrics.ItemsProcessed.WithLabelValues("failed").Inc()
			s.log.Warn("Validation failed for property", map[string]interface{}{
				"property_id": item.PropertyID.String(),
				"error":       reason,
			})
			continue
		}

		if err := s.queue.MarkCompleted(ctx, item.ID, *outcome); err != nil {
			s.log.Error("Failed to mark queue item completed", err, map[string]interface{}{
				"queue_id": item.ID.String(),
			})
			continue
		}

		metrics.ItemsProcessed.WithLabelValues("completed").Inc()
		s.totalProcessed++
		s.accumulateStats(outcome)
	}

	s.lastActivity = time.Now()
	s.idleAlerted = false

	s.log.Info("Batch completed", map[string]interface{}{
		"size":       len(batch),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

// processItem validates one property and applies confidence-gated updates.
func (s *Service) processItem(ctx context.Context, item *models.ValidationQueueItem) (*repository.ValidationOutcome, error) {
	property, err := s.props.GetByID(ctx, item.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return nil, fmt.Errorf("property %s no longer exists", item.PropertyID)
	}

	result, err := s.validator.Validate(ctx, property.AddressLine1, property.City, property.PostalCode)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	metrics.Confidence.Observe(float64(result.Confidence))

	outcome := &repository.ValidationOutcome{
		NARFound:         result.Found,
		ConfidenceScore:  result.Confidence,
		CityBefore:       property.City,
		CityAfter:        property.City,
		PostalCodeBefore: property.PostalCode,
		PostalCodeAfter:  property.PostalCode,
	}

	// Updates only apply at or above the high-confidence threshold. Each
	// field is gated independently so a partial result still helps.
	if result.Confidence < s.cfg.HighConfidenceThreshold {
		return outcome, nil
	}

	if result.City != "" {
		if err := s.props.UpdateCity(ctx, property.ID, result.City); err != nil {
			return nil, fmt.Errorf("failed to update city: %w", err)
		}
		outcome.CityAfter = &result.City
		if property.City == nil || *property.City != result.City {
			metrics.FieldsUpdated.WithLabelValues("city").Inc()
		}
	}

	if result.PostalCode != "" {
		if err := s.props.UpdatePostalCode(ctx, property.ID, result.PostalCode); err != nil {
			return nil, fmt.Errorf("failed to update postal code: %w", err)
		}
		outcome.PostalCodeAfter = &result.PostalCode
		if property.PostalCode == nil || *property.PostalCode != result.PostalCode {
			metrics.FieldsUpdated.WithLabelValues("postal_code").Inc()
		}
	}

	if result.Latitude != nil && result.Longitude != nil {
		if err := s.props.UpdateCoordinates(ctx, property.ID, *result.Latitude, *result.Longitude); err != nil {
			return nil, fmt.Errorf("failed to update coordinates: %w", err)
		}
		outcome.GeocodingUpdated = true
		metrics.FieldsUpdated.WithLabelValues("coordinates").Inc()
	}

	return outcome, nil
}

func (s *Service) accumulateStats(outcome *repository.ValidationOutcome) {
	s.pendingStats.TotalValidated++
	if outcome.NARFound {
		s.pendingStats.Found++
	} else {
		s.pendingStats.NotFound++
	}

	switch {
	case outcome.ConfidenceScore >= 90:
		s.pendingStats.HighConfidence++
	case outcome.ConfidenceScore >= 70:
		s.pendingStats.MediumConfidence++
	default:
		s.pendingStats.LowConfidence++
	}

	if changed(outcome.CityBefore, outcome.CityAfter) {
		s.pendingStats.CitiesUpdated++
	}
	if changed(outcome.PostalCodeBefore, outcome.PostalCodeAfter) {
		s.pendingStats.PostalCodesUpdated++
	}
	if outcome.GeocodingUpdated {
		s.pendingStats.GeocodingUpdated++
	}
}

func (s *Service) flushStats(ctx context.Context) {
	if s.pendingStats.TotalValidated == 0 {
		return
	}
	if err := s.stats.Add(ctx, s.pendingStats); err != nil {
		s.log.Error("Failed to update daily stats", err, nil)
		return
	}
	s.pendingStats = models.DailyStats{}
}

// checkHealth alerts on stuck processing items and on prolonged idleness.
// Each condition alerts once until it clears.
func (s *Service) checkHealth(ctx context.Context) {
	stale, err := s.queue.CountStale(ctx, s.cfg.StaleTimeout)
	if err != nil {
		s.log.Error("Failed to count stale queue items", err, nil)
	} else if stale > 0 {
		if !s.staleAlerted {
			s.notifier.Notify("Validation queue stale items",
				fmt.Sprintf("%d items have been processing for over %s. A worker may have died mid-batch.",
					stale, s.cfg.StaleTimeout))
			s.staleAlerted = true
		}
	} else {
		s.staleAlerted = false
	}

	if idle := time.Since(s.lastActivity); idle > s.cfg.IdleTimeout && !s.idleAlerted {
		s.notifier.Notify("Validation worker idle",
			fmt.Sprintf("No batch completed for %s. The queue may be empty or the worker may be stuck.",
				idle.Round(time.Minute)))
		s.idleAlerted = true
	}
}

func (s *Service) refreshQueueGauges(ctx context.Context) {
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		s.log.Error("Failed to read queue counts", err, nil)
		return
	}
	metrics.QueueDepth.WithLabelValues("pending").Set(float64(counts.Pending))
	metrics.QueueDepth.WithLabelValues("processing").Set(float64(counts.Processing))
	metrics.QueueDepth.WithLabelValues("completed").Set(float64(counts.Completed))
	metrics.QueueDepth.WithLabelValues("failed").Set(float64(counts.Failed))
}

func changed(before, after *string) bool {
	if before == nil && after == nil {
		return false
	}
	if before == nil || after == nil {
		return true
	}
	return *before != *after
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
