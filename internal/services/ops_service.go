package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
	"github.com/brandonolsen23/cleo-pipeline/internal/repository"
)

// Stale cutoff bounds for operator-triggered requeues.
const (
	MinStaleCutoff = time.Minute
	MaxStaleCutoff = 24 * time.Hour
)

// Service-level errors
var (
	ErrInvalidCutoff   = errors.New("stale cutoff must be between 1 minute and 24 hours")
	ErrInvalidPriority = errors.New("priority must be between 1 and 10")
	ErrUnknownProperty = errors.New("property not found")
)

// QueueStatus is the operator-facing snapshot of the validation queue.
type QueueStatus struct {
	Counts          models.QueueCounts `json:"counts"`
	StaleProcessing int                `json:"stale_processing"`
	LastCompletedAt *time.Time         `json:"last_completed_at,omitempty"`
}

// OpsService exposes the operational surface of the validation pipeline:
// queue inspection, stale recovery, requeueing, and daily rollups.
type OpsService interface {
	// GetQueueStatus returns queue counts plus staleness indicators.
	GetQueueStatus(ctx context.Context, staleCutoff time.Duration) (*QueueStatus, error)

	// RequeueStale returns abandoned processing items to pending and
	// reports how many were reset.
	// Returns ErrInvalidCutoff if the cutoff is out of bounds.
	RequeueStale(ctx context.Context, cutoff time.Duration) (int, error)

	// EnqueueProperty schedules one property for validation.
	// Returns ErrUnknownProperty if the property does not exist and
	// ErrInvalidPriority if the priority is out of bounds.
	EnqueueProperty(ctx context.Context, propertyID uuid.UUID, priority int) (bool, error)

	// GetDailyStats returns the validation rollup for a date, or nil when
	// no validation ran that day.
	GetDailyStats(ctx context.Context, date time.Time) (*models.DailyStats, error)
}

type opsService struct {
	queue repository.QueueRepository
	props repository.PropertyRepository
	stats repository.StatsRepository
	log   *logger.Logger
}

// NewOpsService creates a new instance of OpsService.
func NewOpsService(queue repository.QueueRepository, props repository.PropertyRepository, stats repository.StatsRepository, log *logger.Logger) OpsService {
	return &opsService{
		queue: queue,
		props: props,
		stats: stats,
		log:   log,
	}
}

func (s *opsService) GetQueueStatus(ctx context.Context, staleCutoff time.Duration) (*QueueStatus, error) {
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue counts: %w", err)
	}

	stale, err := s.queue.CountStale(ctx, staleCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count stale items: %w", err)
	}

	last, err := s.queue.LastCompletedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last completion time: %w", err)
	}

	return &QueueStatus{
		Counts:          *counts,
		StaleProcessing: stale,
		LastCompletedAt: last,
	}, nil
}

func (s *opsService) RequeueStale(ctx context.Context, cutoff time.Duration) (int, error) {
	if cutoff < MinStaleCutoff || cutoff > MaxStaleCutoff {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidCutoff, cutoff)
	}

	reset, err := s.queue.ResetStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale items: %w", err)
	}

	if reset > 0 {
		s.log.Info("Requeued stale validation items", map[string]interface{}{
			"count":  reset,
			"cutoff": cutoff.String(),
		})
	}
	return reset, nil
}

func (s *opsService) EnqueueProperty(ctx context.Context, propertyID uuid.UUID, priority int) (bool, error) {
	if priority < models.PriorityHighest || priority > models.PriorityLowest {
		return false, fmt.Errorf("%w: got %d", ErrInvalidPriority, priority)
	}

	property, err := s.props.GetByID(ctx, propertyID)
	if err != nil {
		return false, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return false, ErrUnknownProperty
	}

	created, err := s.queue.Enqueue(ctx, propertyID, priority)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue property: %w", err)
	}
	return created, nil
}

func (s *opsService) GetDailyStats(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	stats, err := s.stats.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily stats: %w", err)
	}
	return stats, nil
}
