package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const reservationColumns = `
	id, user_id, seat_id, schedule_id, seat_number, price, status,
	reserved_at, expires_at, confirmed_at, payment_id`

// PostgresReservationRepository implements ReservationRepository using PostgreSQL with pgxpool
type PostgresReservationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository
func NewPostgresReservationRepository(pool *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{pool: pool}
}

// Save inserts a reservation or updates its status fields
func (r *PostgresReservationRepository) Save(ctx context.Context, res *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("user_id", res.UserID),
		attribute.String("status", string(res.Status)),
	)

	query := `
		INSERT INTO reservations (
			id, user_id, seat_id, schedule_id, seat_number, price, status,
			reserved_at, expires_at, confirmed_at, payment_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			confirmed_at = EXCLUDED.confirmed_at,
			payment_id = EXCLUDED.payment_id
	`

	_, err := r.pool.Exec(ctx, query,
		res.ID,
		res.UserID,
		res.SeatID,
		res.ScheduleID,
		res.SeatNumber,
		res.Price,
		string(res.Status),
		res.ReservedAt,
		res.ExpiresAt,
		res.ConfirmedAt,
		nullString(res.PaymentID),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a reservation by its ID
func (r *PostgresReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	res, err := scanReservation(r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// FindByUserID lists a user's reservations, newest first
func (r *PostgresReservationRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.find_by_user_id")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE user_id = $1
		ORDER BY reserved_at DESC
	`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}

	reservations, err := collectReservations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return reservations, nil
}

// FindExpiredTemporary lists TEMPORARY reservations past their expiry, oldest first
func (r *PostgresReservationRepository) FindExpiredTemporary(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.find_expired_temporary")
	defer span.End()

	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = $1 AND expires_at < $2
		ORDER BY reserved_at
		LIMIT $3
	`, string(domain.ReservationStatusTemporary), now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}

	reservations, err := collectReservations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(reservations)))
	span.SetStatus(codes.Ok, "")
	return reservations, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	var (
		status    string
		paymentID *string
	)
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.SeatID,
		&res.ScheduleID,
		&res.SeatNumber,
		&res.Price,
		&status,
		&res.ReservedAt,
		&res.ExpiresAt,
		&res.ConfirmedAt,
		&paymentID,
	)
	if err != nil {
		return nil, err
	}
	res.Status = domain.ReservationStatus(status)
	res.PaymentID = derefString(paymentID)
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]*domain.Reservation, error) {
	defer rows.Close()

	var out []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return out, nil
}
