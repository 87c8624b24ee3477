package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/gateway"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// PaymentInfo is the outcome of a successful payment
type PaymentInfo struct {
	PaymentID string
	Amount    int64
}

// PaymentProcessor confirms a payment with an external gateway and records it
type PaymentProcessor interface {
	// ProcessPayment charges amount; a declined charge returns domain.ErrPaymentFailed
	ProcessPayment(ctx context.Context, userID string, amount int64, description string) (*PaymentInfo, error)

	// GetPayment returns a payment record
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// PaymentProcessorConfig contains configuration for the payment processor
type PaymentProcessorConfig struct {
	Currency string
}

type paymentProcessor struct {
	repo     repository.PaymentRepository
	gateway  gateway.PaymentGateway
	clock    clockwork.Clock
	currency string
	log      *logger.Logger
}

// NewPaymentProcessor creates a new payment processor
func NewPaymentProcessor(
	repo repository.PaymentRepository,
	gw gateway.PaymentGateway,
	clock clockwork.Clock,
	log *logger.Logger,
	cfg *PaymentProcessorConfig,
) PaymentProcessor {
	currency := "KRW"
	if cfg != nil && cfg.Currency != "" {
		currency = cfg.Currency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &paymentProcessor{
		repo:     repo,
		gateway:  gw,
		clock:    clock,
		currency: currency,
		log:      log,
	}
}

func (p *paymentProcessor) ProcessPayment(ctx context.Context, userID string, amount int64, description string) (*PaymentInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.process")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
		attribute.String("gateway", p.gateway.Name()),
	)

	payment := &domain.Payment{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		CreatedAt:   p.clock.Now(),
	}

	resp, err := p.gateway.Charge(ctx, &gateway.ChargeRequest{
		PaymentID:   payment.ID,
		UserID:      userID,
		Amount:      amount,
		Currency:    p.currency,
		Description: description,
		Metadata:    map[string]string{"payment_id": payment.ID},
	})
	if err != nil {
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = err.Error()
		p.saveFailed(ctx, payment)
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}
	if !resp.Success {
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = resp.FailureReason
		p.saveFailed(ctx, payment)
		span.SetStatus(codes.Error, "payment declined")
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, resp.FailureReason)
	}

	payment.Status = domain.PaymentStatusSucceeded
	payment.TransactionID = resp.TransactionID
	if err := p.repo.Save(ctx, payment); err != nil {
		// an unrecorded charge must not stand
		if rerr := p.gateway.Refund(ctx, resp.TransactionID, amount); rerr != nil {
			p.log.Error("failed to refund unrecorded charge",
				zap.String("payment_id", payment.ID),
				zap.String("transaction_id", resp.TransactionID),
				zap.Error(rerr),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	span.SetAttributes(attribute.String("payment_id", payment.ID))
	span.SetStatus(codes.Ok, "")
	return &PaymentInfo{PaymentID: payment.ID, Amount: payment.Amount}, nil
}

func (p *paymentProcessor) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return p.repo.GetByID(ctx, paymentID)
}

func (p *paymentProcessor) saveFailed(ctx context.Context, payment *domain.Payment) {
	if err := p.repo.Save(ctx, payment); err != nil {
		p.log.Warn("failed to record failed payment",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}
}
