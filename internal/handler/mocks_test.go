package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/stretchr/testify/mock"
)

// MockQueueService is a mock implementation of QueueService
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) IssueToken(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) GetStatus(ctx context.Context, tokenID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) Sweep(ctx context.Context) (*domain.SweepResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepResult), args.Error(1)
}

func (m *MockQueueService) CompleteToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockQueueService) ValidateActiveToken(ctx context.Context, tokenID, userID string) (*domain.AdmissionToken, error) {
	args := m.Called(ctx, tokenID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdmissionToken), args.Error(1)
}

func (m *MockQueueService) GetStatistics(ctx context.Context) (*domain.QueueStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueStatistics), args.Error(1)
}

func (m *MockQueueService) WaitPerSlot() time.Duration {
	return 6 * time.Second
}

// MockCatalogService is a mock implementation of CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) GetAvailableSchedules(ctx context.Context) ([]*domain.AvailableSchedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AvailableSchedule), args.Error(1)
}

func (m *MockCatalogService) GetSeatLayout(ctx context.Context, scheduleID string) (*domain.SeatLayout, error) {
	args := m.Called(ctx, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatLayout), args.Error(1)
}

func (m *MockCatalogService) GetAvailableSeats(ctx context.Context, scheduleID string) ([]dto.AvailableSeatResponse, error) {
	args := m.Called(ctx, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.AvailableSeatResponse), args.Error(1)
}

func (m *MockCatalogService) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.CreateScheduleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.CreateScheduleResponse), args.Error(1)
}

// MockReservationService is a mock implementation of ReservationService
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) ReserveSeat(ctx context.Context, tokenID, userID, seatID string, price int64) (*dto.ReserveSeatResponse, error) {
	args := m.Called(ctx, tokenID, userID, seatID, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReserveSeatResponse), args.Error(1)
}

func (m *MockReservationService) ProcessPayment(ctx context.Context, tokenID, userID, reservationID string) (*dto.PaymentResponse, error) {
	args := m.Called(ctx, tokenID, userID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PaymentResponse), args.Error(1)
}

func (m *MockReservationService) ReleaseExpiredHolds(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	args := m.Called(ctx, userID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) ListUserReservations(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reservation), args.Error(1)
}

func (m *MockReservationService) FindExpiredTemporaryReservations(ctx context.Context, limit int) ([]*domain.Reservation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reservation), args.Error(1)
}

// MockBalanceService is a mock implementation of BalanceService
type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserBalance), args.Error(1)
}

func (m *MockBalanceService) Charge(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserBalance), args.Error(1)
}

func (m *MockBalanceService) Deduct(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserBalance), args.Error(1)
}

func (m *MockBalanceService) Refund(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserBalance), args.Error(1)
}

// setupTestRouter returns a gin engine that trusts X-User-ID
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware to set user_id
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	return router
}
