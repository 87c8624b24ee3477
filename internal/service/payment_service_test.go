package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/gateway"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a testify mock of gateway.PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResponse), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	return m.Called(ctx, transactionID, amount).Error(0)
}

func (m *MockGateway) Name() string { return "mock" }

// failingPaymentRepository fails every save
type failingPaymentRepository struct {
	repository.PaymentRepository
}

func (failingPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	return errors.New("connection reset")
}

func TestPaymentProcessor_Success(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryPaymentRepository()
	gw := new(MockGateway)
	gw.On("Charge", mock.Anything, mock.MatchedBy(func(req *gateway.ChargeRequest) bool {
		return req.UserID == "alice" && req.Amount == 50000 && req.Currency == "KRW"
	})).Return(&gateway.ChargeResponse{Success: true, TransactionID: "txn_1", Status: "succeeded"}, nil)

	p := NewPaymentProcessor(repo, gw, clockwork.NewFakeClockAt(t0), nil, nil)

	info, err := p.ProcessPayment(ctx, "alice", 50000, "Concert Seat Reservation - 7")
	require.NoError(t, err)
	assert.NotEmpty(t, info.PaymentID)
	assert.Equal(t, int64(50000), info.Amount)

	payment, err := p.GetPayment(ctx, info.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, "txn_1", payment.TransactionID)
	assert.Equal(t, t0, payment.CreatedAt)
	gw.AssertExpectations(t)
}

func TestPaymentProcessor_Declined(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryPaymentRepository()
	gw := new(MockGateway)
	gw.On("Charge", mock.Anything, mock.Anything).
		Return(&gateway.ChargeResponse{Success: false, Status: "failed", FailureReason: "card_declined"}, nil)

	p := NewPaymentProcessor(repo, gw, clockwork.NewFakeClockAt(t0), nil, nil)

	_, err := p.ProcessPayment(ctx, "alice", 50000, "x")
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
	assert.Contains(t, err.Error(), "card_declined")

	payments, _ := repo.FindByUserID(ctx, "alice")
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)
}

func TestPaymentProcessor_GatewayError(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Charge", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	p := NewPaymentProcessor(repository.NewMemoryPaymentRepository(), gw, clockwork.NewFakeClockAt(t0), nil, nil)

	_, err := p.ProcessPayment(context.Background(), "alice", 50000, "x")
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
}

func TestPaymentProcessor_UnrecordedChargeIsRefunded(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Charge", mock.Anything, mock.Anything).
		Return(&gateway.ChargeResponse{Success: true, TransactionID: "txn_9"}, nil)
	gw.On("Refund", mock.Anything, "txn_9", int64(50000)).Return(nil)

	p := NewPaymentProcessor(failingPaymentRepository{}, gw, clockwork.NewFakeClockAt(t0), nil, nil)

	_, err := p.ProcessPayment(context.Background(), "alice", 50000, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPaymentFailed)
	gw.AssertExpectations(t)
}
