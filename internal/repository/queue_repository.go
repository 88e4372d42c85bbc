package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// ValidationOutcome records what the worker did with a claimed item.
type ValidationOutcome struct {
	NARFound         bool
	ConfidenceScore  int
	CityBefore       *string
	CityAfter        *string
	PostalCodeBefore *string
	PostalCodeAfter  *string
	GeocodingUpdated bool
}

// QueueRepository defines data access for the durable validation queue.
type QueueRepository interface {
	// Enqueue adds a property to the queue unless it already has a pending
	// or processing item. It reports whether a new item was created.
	Enqueue(ctx context.Context, propertyID uuid.UUID, priority int) (bool, error)

	// EnqueueBatch enqueues many properties, skipping those already queued.
	// It returns the number of items created.
	EnqueueBatch(ctx context.Context, propertyIDs []uuid.UUID, priority int) (int, error)

	// ClaimBatch atomically moves up to limit pending items to processing,
	// highest priority first, oldest first within a priority. Each claim
	// increments the item's attempt count. Concurrent workers never claim
	// the same item.
	ClaimBatch(ctx context.Context, limit int) ([]models.ValidationQueueItem, error)

	// MarkCompleted finalizes a claimed item with its validation outcome.
	MarkCompleted(ctx context.Context, id uuid.UUID, outcome ValidationOutcome) error

	// MarkFailed finalizes a claimed item with an error. Failed items stay
	// failed until an operator requeues them.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// ResetStale returns processing items older than the cutoff to pending.
	// It returns the number of items reset.
	ResetStale(ctx context.Context, olderThan time.Duration) (int, error)

	// CountStale counts processing items older than the cutoff.
	CountStale(ctx context.Context, olderThan time.Duration) (int, error)

	// Counts tallies the queue by status.
	Counts(ctx context.Context) (*models.QueueCounts, error)

	// LastCompletedAt returns the completion time of the most recently
	// finished item, or nil when nothing has completed yet.
	LastCompletedAt(ctx context.Context) (*time.Time, error)
}

type queueRepository struct {
	db *database.Database
}

// NewQueueRepository creates a new instance of QueueRepository.
func NewQueueRepository(db *database.Database) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Enqueue(ctx context.Context, propertyID uuid.UUID, priority int) (bool, error) {
	query := `
		INSERT INTO validation_queue (property_id, priority, status)
		SELECT $1, $2, 'pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM validation_queue
			WHERE property_id = $1
			  AND status IN ('pending', 'processing')
		)`

	tag, err := r.db.Pool.Exec(ctx, query, propertyID, priority)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue property %s: %w", propertyID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queueRepository) EnqueueBatch(ctx context.Context, propertyIDs []uuid.UUID, priority int) (int, error) {
	if len(propertyIDs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO validation_queue (property_id, priority, status)
		SELECT pid, $2, 'pending'
		FROM unnest($1::uuid[]) AS pid
		WHERE NOT EXISTS (
			SELECT 1 FROM validation_queue q
			WHERE q.property_id = pid
			  AND q.status IN ('pending', 'processing')
		)`

	tag, err := r.db.Pool.Exec(ctx, query, propertyIDs, priority)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %d properties: %w", len(propertyIDs), err)
	}
	return int(tag.RowsAffected()), nil
}

// ClaimBatch uses FOR UPDATE SKIP LOCKED so concurrent workers partition the
// pending set instead of blocking on each other.
func (r *queueRepository) ClaimBatch(ctx context.Context, limit int) ([]models.ValidationQueueItem, error) {
	query := `
		UPDATE validation_queue
		SET status = 'processing',
		    attempts = attempts + 1,
		    last_attempt_at = NOW()
		WHERE id IN (
			SELECT id FROM validation_queue
			WHERE status = 'pending'
			ORDER BY priority ASC, queued_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, property_id, priority, status, attempts, queued_at,
		          last_attempt_at, completed_at, nar_found, confidence_score,
		          city_before, city_after, postal_code_before, postal_code_after,
		          geocoding_updated, last_error`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue batch: %w", err)
	}
	defer rows.Close()

	var items []models.ValidationQueueItem
	for rows.Next() {
		var item models.ValidationQueueItem
		err := rows.Scan(
			&item.ID,
			&item.PropertyID,
			&item.Priority,
			&item.Status,
			&item.Attempts,
			&item.QueuedAt,
			&item.LastAttemptAt,
			&item.CompletedAt,
			&item.NARFound,
			&item.ConfidenceScore,
			&item.CityBefore,
			&item.CityAfter,
			&item.PostalCodeBefore,
			&item.PostalCodeAfter,
			&item.GeocodingUpdated,
			&item.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed queue batch: %w", err)
	}

	return items, nil
}

func (r *queueRepository) MarkCompleted(ctx context.Context, id uuid.UUID, outcome ValidationOutcome) error {
	query := `
		UPDATE validation_queue
		SET status = 'completed',
		    completed_at = NOW(),
		    nar_found = $2,
		    confidence_score = $3,
		    city_before = $4,
		    city_after = $5,
		    postal_code_before = $6,
		    postal_code_after = $7,
		    geocoding_updated = $8,
		    last_error = NULL
		WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id,
		outcome.NARFound,
		outcome.ConfidenceScore,
		outcome.CityBefore,
		outcome.CityAfter,
		outcome.PostalCodeBefore,
		outcome.PostalCodeAfter,
		outcome.GeocodingUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to complete queue item %s: %w", id, err)
	}
	return nil
}

func (r *queueRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE validation_queue
		SET status = 'failed',
		    completed_at = NOW(),
		    last_error = $2
		WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("failed to mark queue item %s failed: %w", id, err)
	}
	return nil
}

func (r *queueRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE validation_queue
		SET status = 'pending'
		WHERE status = 'processing'
		  AND last_attempt_at < NOW() - $1::interval`

	tag, err := r.db.Pool.Exec(ctx, query, durationInterval(olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale queue items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *queueRepository) CountStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM validation_queue
		WHERE status = 'processing'
		  AND last_attempt_at < NOW() - $1::interval`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, durationInterval(olderThan)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stale queue items: %w", err)
	}
	return count, nil
}

func (r *queueRepository) Counts(ctx context.Context) (*models.QueueCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*)
		FROM validation_queue`

	var counts models.QueueCounts
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&counts.Pending,
		&counts.Processing,
		&counts.Completed,
		&counts.Failed,
		&counts.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	return &counts, nil
}

func (r *queueRepository) LastCompletedAt(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(completed_at) FROM validation_queue WHERE status = 'completed'`

	var last *time.Time
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last completion time: %w", err)
	}
	return last, nil
}

func durationInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}
