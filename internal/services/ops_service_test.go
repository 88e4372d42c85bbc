package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
	"github.com/brandonolsen23/cleo-pipeline/internal/repository"
)

type mockQueueRepo struct {
	mock.Mock
}

func (m *mockQueueRepo) Enqueue(ctx context.Context, propertyID uuid.UUID, priority int) (bool, error) {
	args := m.Called(ctx, propertyID, priority)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueueRepo) EnqueueBatch(ctx context.Context, propertyIDs []uuid.UUID, priority int) (int, error) {
	args := m.Called(ctx, propertyIDs, priority)
	return args.Int(0), args.Error(1)
}

func (m *mockQueueRepo) ClaimBatch(ctx context.Context, limit int) ([]models.ValidationQueueItem, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ValidationQueueItem), args.Error(1)
}

func (m *mockQueueRepo) MarkCompleted(ctx context.Context, id uuid.UUID, outcome repository.ValidationOutcome) error {
	return m.Called(ctx, id, outcome).Error(0)
}

func (m *mockQueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *mockQueueRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *mockQueueRepo) CountStale(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *mockQueueRepo) Counts(ctx context.Context) (*models.QueueCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueCounts), args.Error(1)
}

func (m *mockQueueRepo) LastCompletedAt(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

type mockPropertyRepo struct {
	mock.Mock
}

func (m *mockPropertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *mockPropertyRepo) GetByHash(ctx context.Context, hash string) (*models.Property, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *mockPropertyRepo) Insert(ctx context.Context, property *models.Property) (*models.Property, error) {
	args := m.Called(ctx, property)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *mockPropertyRepo) UpdateCity(ctx context.Context, id uuid.UUID, city string) error {
	return m.Called(ctx, id, city).Error(0)
}

func (m *mockPropertyRepo) UpdatePostalCode(ctx context.Context, id uuid.UUID, postalCode string) error {
	return m.Called(ctx, id, postalCode).Error(0)
}

func (m *mockPropertyRepo) UpdateCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	return m.Called(ctx, id, lat, lng).Error(0)
}

type mockStatsRepo struct {
	mock.Mock
}

func (m *mockStatsRepo) Add(ctx context.Context, delta models.DailyStats) error {
	return m.Called(ctx, delta).Error(0)
}

func (m *mockStatsRepo) GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyStats), args.Error(1)
}

func newTestOpsService(queue *mockQueueRepo, props *mockPropertyRepo, stats *mockStatsRepo) OpsService {
	return NewOpsService(queue, props, stats, logger.New("test"))
}

func TestGetQueueStatus(t *testing.T) {
	queue := new(mockQueueRepo)
	last := time.Now().Add(-10 * time.Minute)
	queue.On("Counts", mock.Anything).Return(&models.QueueCounts{Pending: 12, Processing: 3, Completed: 100, Failed: 1, Total: 116}, nil)
	queue.On("CountStale", mock.Anything, 5*time.Minute).Return(2, nil)
	queue.On("LastCompletedAt", mock.Anything).Return(&last, nil)

	svc := newTestOpsService(queue, new(mockPropertyRepo), new(mockStatsRepo))
	status, err := svc.GetQueueStatus(context.Background(), 5*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 12, status.Counts.Pending)
	assert.Equal(t, 2, status.StaleProcessing)
	require.NotNil(t, status.LastCompletedAt)
}

func TestRequeueStale_CutoffBounds(t *testing.T) {
	svc := newTestOpsService(new(mockQueueRepo), new(mockPropertyRepo), new(mockStatsRepo))

	_, err := svc.RequeueStale(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = svc.RequeueStale(context.Background(), 48*time.Hour)
	assert.ErrorIs(t, err, ErrInvalidCutoff)
}

func TestRequeueStale(t *testing.T) {
	queue := new(mockQueueRepo)
	queue.On("ResetStale", mock.Anything, 10*time.Minute).Return(4, nil)

	svc := newTestOpsService(queue, new(mockPropertyRepo), new(mockStatsRepo))
	reset, err := svc.RequeueStale(context.Background(), 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 4, reset)
}

func TestEnqueueProperty(t *testing.T) {
	propertyID := uuid.New()

	props := new(mockPropertyRepo)
	props.On("GetByID", mock.Anything, propertyID).Return(&models.Property{ID: propertyID}, nil)

	queue := new(mockQueueRepo)
	queue.On("Enqueue", mock.Anything, propertyID, models.PriorityHighest).Return(true, nil)

	svc := newTestOpsService(queue, props, new(mockStatsRepo))
	created, err := svc.EnqueueProperty(context.Background(), propertyID, models.PriorityHighest)

	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnqueueProperty_UnknownProperty(t *testing.T) {
	props := new(mockPropertyRepo)
	props.On("GetByID", mock.Anything, mock.Anything).Return(nil, nil)

	svc := newTestOpsService(new(mockQueueRepo), props, new(mockStatsRepo))
	_, err := svc.EnqueueProperty(context.Background(), uuid.New(), models.PriorityDefault)

	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestEnqueueProperty_InvalidPriority(t *testing.T) {
	svc := newTestOpsService(new(mockQueueRepo), new(mockPropertyRepo), new(mockStatsRepo))

	_, err := svc.EnqueueProperty(context.Background(), uuid.New(), 0)
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = svc.EnqueueProperty(context.Background(), uuid.New(), 11)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestGetDailyStats_NoData(t *testing.T) {
	stats := new(mockStatsRepo)
	stats.On("GetByDate", mock.Anything, mock.Anything).Return(nil, nil)

	svc := newTestOpsService(new(mockQueueRepo), new(mockPropertyRepo), stats)
	result, err := svc.GetDailyStats(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Nil(t, result)
}
