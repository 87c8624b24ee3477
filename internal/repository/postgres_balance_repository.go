package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresBalanceRepository implements BalanceRepository using PostgreSQL with pgxpool
type PostgresBalanceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBalanceRepository creates a new PostgresBalanceRepository
func NewPostgresBalanceRepository(pool *pgxpool.Pool) *PostgresBalanceRepository {
	return &PostgresBalanceRepository{pool: pool}
}

// Get returns the balance of a user, zero if none was ever charged
func (r *PostgresBalanceRepository) Get(ctx context.Context, userID string) (*domain.UserBalance, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.balance.get")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	b := &domain.UserBalance{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT balance, updated_at FROM user_balances WHERE user_id = $1
	`, userID).Scan(&b.Balance, &b.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return b, nil
}

// Debit subtracts amount only when the balance covers it
func (r *PostgresBalanceRepository) Debit(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.balance.debit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
	)

	b := &domain.UserBalance{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		UPDATE user_balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance, updated_at
	`, userID, amount).Scan(&b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "insufficient funds")
			return nil, domain.ErrInsufficientFunds
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return b, nil
}

// Credit adds amount, creating the balance row on first use
func (r *PostgresBalanceRepository) Credit(ctx context.Context, userID string, amount int64) (*domain.UserBalance, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.balance.credit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", amount),
	)

	b := &domain.UserBalance{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_balances (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_balances.balance + EXCLUDED.balance,
			updated_at = NOW()
		RETURNING balance, updated_at
	`, userID, amount).Scan(&b.Balance, &b.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return b, nil
}

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL with pgxpool
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

// Save inserts a payment record
func (r *PostgresPaymentRepository) Save(ctx context.Context, p *domain.Payment) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", p.ID),
		attribute.String("status", string(p.Status)),
	)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (
			id, user_id, amount, description, status, transaction_id, failure_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			transaction_id = EXCLUDED.transaction_id,
			failure_reason = EXCLUDED.failure_reason
	`, p.ID, p.UserID, p.Amount, p.Description, string(p.Status),
		nullString(p.TransactionID), nullString(p.FailureReason), p.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("payment_id", id))

	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, user_id, amount, description, status, transaction_id, failure_reason, created_at
		FROM payments WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrPaymentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return p, nil
}

// FindByUserID lists a user's payments, newest first
func (r *PostgresPaymentRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.payment.find_by_user_id")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, description, status, transaction_id, failure_reason, created_at
		FROM payments WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return out, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var (
		status        string
		transactionID *string
		failureReason *string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Description, &status,
		&transactionID, &failureReason, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.TransactionID = derefString(transactionID)
	p.FailureReason = derefString(failureReason)
	return p, nil
}
