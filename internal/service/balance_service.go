package service

import (
	"context"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BalanceService manages prepaid user balances
type BalanceService interface {
	// GetBalance returns the user's balance, zero when they never charged
	GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error)

	// Charge tops up the balance
	Charge(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error)

	// Deduct takes amount from the balance or fails with domain.ErrInsufficientFunds
	Deduct(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error)

	// Refund gives a previously deducted amount back
	Refund(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error)
}

type balanceService struct {
	repo repository.BalanceRepository
}

// NewBalanceService creates a new balance service
func NewBalanceService(repo repository.BalanceRepository) BalanceService {
	return &balanceService{repo: repo}
}

func (s *balanceService) GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.balance.get")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	span.SetAttributes(attribute.String("user_id", userID))

	balance, err := s.repo.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return balance, nil
}

func (s *balanceService) Charge(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	return s.apply(ctx, "service.balance.charge", userID, amount, s.repo.Credit)
}

func (s *balanceService) Deduct(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	return s.apply(ctx, "service.balance.deduct", userID, amount, s.repo.Debit)
}

func (s *balanceService) Refund(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	return s.apply(ctx, "service.balance.refund", userID, amount, s.repo.Credit)
}

func (s *balanceService) apply(
	ctx context.Context,
	spanName, userID string,
	amount int64,
	op func(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error),
) (*domain.UserBalance, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, domain.ErrInvalidAmount
	}
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
	)

	balance, err := op(ctx, userID, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("balance", balance.Balance))
	span.SetStatus(codes.Ok, "")
	return balance, nil
}
