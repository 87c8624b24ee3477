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

const seatColumns = `
	id, schedule_id, seat_number, grade, price, row_number, column_number,
	status, holder_user_id, held_at, expires_at, updated_at`

const upsertSeatQuery = `
	INSERT INTO seats (
		id, schedule_id, seat_number, grade, price, row_number, column_number,
		status, holder_user_id, held_at, expires_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		holder_user_id = EXCLUDED.holder_user_id,
		held_at = EXCLUDED.held_at,
		expires_at = EXCLUDED.expires_at,
		updated_at = EXCLUDED.updated_at
`

const conditionalSeatUpdateQuery = `
	UPDATE seats SET
		status = $2,
		holder_user_id = $3,
		held_at = $4,
		expires_at = $5,
		updated_at = $6
	WHERE id = $1
		AND status = $7
		AND holder_user_id IS NOT DISTINCT FROM $8
		AND held_at IS NOT DISTINCT FROM $9
`

// PostgresSeatRepository implements SeatRepository using PostgreSQL with pgxpool
type PostgresSeatRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSeatRepository creates a new PostgresSeatRepository
func NewPostgresSeatRepository(pool *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{pool: pool}
}

// GetByID retrieves a seat by its ID
func (r *PostgresSeatRepository) GetByID(ctx context.Context, id string) (*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("seat_id", id))

	row := r.pool.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = $1`, id)
	seat, err := scanSeat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrSeatNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return seat, nil
}

// Save inserts a seat or updates its reservation state
func (r *PostgresSeatRepository) Save(ctx context.Context, seat *domain.Seat) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("seat_id", seat.ID),
		attribute.String("status", string(seat.Status)),
	)

	if _, err := r.pool.Exec(ctx, upsertSeatQuery, seatArgs(seat)...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save seat: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SaveIfUnchanged updates the reservation state of a seat only while its
// stored status, holder and hold start still equal expected
func (r *PostgresSeatRepository) SaveIfUnchanged(ctx context.Context, seat *domain.Seat, expected domain.SeatVersion) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.save_if_unchanged")
	defer span.End()

	span.SetAttributes(
		attribute.String("seat_id", seat.ID),
		attribute.String("status", string(seat.Status)),
		attribute.String("expected_status", string(expected.Status)),
	)

	tag, err := r.pool.Exec(ctx, conditionalSeatUpdateQuery,
		seat.ID,
		string(seat.Status),
		nullString(seat.HolderUserID),
		seat.HeldAt,
		seat.ExpiresAt,
		seat.UpdatedAt,
		string(expected.Status),
		nullString(expected.HolderUserID),
		expected.HeldAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "seat changed")
		return fmt.Errorf("%w: %s", domain.ErrSeatChanged, seat.ID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SaveAll upserts seats in one batch
func (r *PostgresSeatRepository) SaveAll(ctx context.Context, seats []*domain.Seat) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.save_all")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(seats)))

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(upsertSeatQuery, seatArgs(s)...)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save seats: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// FindBySchedule lists a schedule's seats by row and column
func (r *PostgresSeatRepository) FindBySchedule(ctx context.Context, scheduleID string) ([]*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.find_by_schedule")
	defer span.End()

	span.SetAttributes(attribute.String("schedule_id", scheduleID))

	rows, err := r.pool.Query(ctx, `
		SELECT `+seatColumns+`
		FROM seats
		WHERE schedule_id = $1
		ORDER BY row_number, column_number
	`, scheduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}

	seats, err := collectSeats(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return seats, nil
}

// FindExpiredHolds lists held seats whose hold ended before now, oldest first
func (r *PostgresSeatRepository) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.find_expired_holds")
	defer span.End()

	if limit <= 0 {
		limit = 1000
	}
	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := r.pool.Query(ctx, `
		SELECT `+seatColumns+`
		FROM seats
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3
	`, string(domain.SeatStatusTemporarilyHeld), now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query expired holds: %w", err)
	}

	seats, err := collectSeats(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return seats, nil
}

func seatArgs(s *domain.Seat) []interface{} {
	return []interface{}{
		s.ID,
		s.ScheduleID,
		s.SeatNumber,
		s.Grade,
		s.Price,
		s.RowNumber,
		s.ColumnNumber,
		string(s.Status),
		nullString(s.HolderUserID),
		s.HeldAt,
		s.ExpiresAt,
		s.UpdatedAt,
	}
}

func scanSeat(row pgx.Row) (*domain.Seat, error) {
	seat := &domain.Seat{}
	var (
		status string
		holder *string
	)
	err := row.Scan(
		&seat.ID,
		&seat.ScheduleID,
		&seat.SeatNumber,
		&seat.Grade,
		&seat.Price,
		&seat.RowNumber,
		&seat.ColumnNumber,
		&status,
		&holder,
		&seat.HeldAt,
		&seat.ExpiresAt,
		&seat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	seat.Status = domain.SeatStatus(status)
	if holder != nil {
		seat.HolderUserID = *holder
	}
	return seat, nil
}

func collectSeats(rows pgx.Rows) ([]*domain.Seat, error) {
	defer rows.Close()

	var seats []*domain.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seats: %w", err)
	}
	return seats, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
