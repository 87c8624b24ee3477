package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockQueueService is a mock implementation of service.QueueService
type MockQueueService struct {
	mock.Mock
	sweeps atomic.Int64
}

func (m *MockQueueService) IssueToken(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) GetStatus(ctx context.Context, tokenID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) Sweep(ctx context.Context) (*domain.SweepResult, error) {
	m.sweeps.Add(1)
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepResult), args.Error(1)
}

func (m *MockQueueService) CompleteToken(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}

func (m *MockQueueService) ValidateActiveToken(ctx context.Context, tokenID, userID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, tokenID, userID)
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) GetStatistics(ctx context.Context) (*domain.QueueStatistics, error) {
	args := m.Called(ctx)
	return args.Get(0).(*domain.QueueStatistics), args.Error(1)
}

func (m *MockQueueService) WaitPerSlot() time.Duration { return 6 * time.Second }

// MockReservationService is a mock implementation of service.ReservationService
type MockReservationService struct {
	mock.Mock
	releases atomic.Int64
}

func (m *MockReservationService) ReserveSeat(ctx context.Context, tokenID, userID, seatID string, price int64) (*dto.ReserveSeatResponse, error) {
	args := m.Called(ctx, tokenID, userID, seatID, price)
	return args.Get(0).(*dto.ReserveSeatResponse), args.Error(1)
}

func (m *MockReservationService) ProcessPayment(ctx context.Context, tokenID, userID, reservationID string) (*dto.PaymentResponse, error) {
	args := m.Called(ctx, tokenID, userID, reservationID)
	return args.Get(0).(*dto.PaymentResponse), args.Error(1)
}

func (m *MockReservationService) ReleaseExpiredHolds(ctx context.Context, limit int) (int, error) {
	m.releases.Add(1)
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	args := m.Called(ctx, userID, reservationID)
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) ListUserReservations(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) FindExpiredTemporaryReservations(ctx context.Context, limit int) ([]*domain.Reservation, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*domain.Reservation), args.Error(1)
}

func TestQueueSweepWorker_RunOnce(t *testing.T) {
	queue := new(MockQueueService)
	queue.On("Sweep", mock.Anything).Return(&domain.SweepResult{Expired: 2, Activated: 5, Waiting: 7}, nil).Once()
	queue.On("Sweep", mock.Anything).Return(&domain.SweepResult{Skipped: true}, nil).Once()
	queue.On("Sweep", mock.Anything).Return(nil, errors.New("redis down")).Once()

	w := NewQueueSweepWorker(queue, nil, logger.Nop())

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Activated)

	result, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	_, err = w.RunOnce(context.Background())
	assert.Error(t, err)

	stats := w.GetStats()
	assert.Equal(t, int64(3), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.TotalSkipped)
	assert.Equal(t, int64(5), stats.TotalAdmitted)
	assert.Equal(t, int64(2), stats.TotalExpired)
	assert.Equal(t, 7, stats.LastWaiting)
	assert.False(t, stats.IsRunning)
	queue.AssertExpectations(t)
}

func TestQueueSweepWorker_StartStop(t *testing.T) {
	queue := new(MockQueueService)
	queue.On("Sweep", mock.Anything).Return(&domain.SweepResult{}, nil)

	w := NewQueueSweepWorker(queue, &QueueSweepWorkerConfig{Interval: time.Second}, logger.Nop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start is rejected")
	assert.True(t, w.GetStats().IsRunning)

	// one immediate run plus at least one scheduled run
	assert.Eventually(t, func() bool { return queue.sweeps.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)

	w.Stop()
	assert.False(t, w.GetStats().IsRunning)
	w.Stop()
}

func TestHoldExpiryWorker_RunOnce(t *testing.T) {
	booking := new(MockReservationService)
	booking.On("ReleaseExpiredHolds", mock.Anything, 25).Return(3, nil).Once()
	booking.On("ReleaseExpiredHolds", mock.Anything, 25).Return(1, errors.New("partial")).Once()

	w := NewHoldExpiryWorker(booking, &HoldExpiryWorkerConfig{ScanInterval: time.Minute, BatchSize: 25}, logger.Nop())

	assert.Equal(t, 3, w.RunOnce(context.Background()))
	assert.Equal(t, 1, w.RunOnce(context.Background()))

	stats := w.GetStats()
	assert.Equal(t, int64(4), stats.TotalReleased)
	assert.Equal(t, 1, stats.LastReleaseCount)
	booking.AssertExpectations(t)
}

func TestHoldExpiryWorker_StartStop(t *testing.T) {
	booking := new(MockReservationService)
	booking.On("ReleaseExpiredHolds", mock.Anything, 100).Return(0, nil)

	w := NewHoldExpiryWorker(booking, &HoldExpiryWorkerConfig{ScanInterval: 20 * time.Millisecond}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx))

	assert.Eventually(t, func() bool {
		return booking.releases.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	w.Stop()
	assert.False(t, w.GetStats().IsRunning)
}
