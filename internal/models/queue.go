package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of a validation queue item.
// Transitions: pending -> processing -> {completed | failed}.
// Failed items are requeued by operator action only, never automatically.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// Queue priority bounds. 1 is drained first.
const (
	PriorityHighest = 1
	PriorityDefault = 5
	PriorityLowest  = 10
)

// ValidationQueueItem is one durable unit of background validation work.
// Before/after fields record what the worker changed for operator triage.
type ValidationQueueItem struct {
	ID                uuid.UUID
	PropertyID        uuid.UUID
	Priority          int
	Status            QueueStatus
	Attempts          int
	QueuedAt          time.Time
	LastAttemptAt     *time.Time
	CompletedAt       *time.Time
	NARFound          *bool
	ConfidenceScore   *int
	CityBefore        *string
	CityAfter         *string
	PostalCodeBefore  *string
	PostalCodeAfter   *string
	GeocodingUpdated  bool
	LastError         *string
}

// QueueCounts is a per-status tally of the validation queue.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
