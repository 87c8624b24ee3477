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

// PostgresScheduleRepository implements ScheduleRepository using PostgreSQL with pgxpool
type PostgresScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScheduleRepository creates a new PostgresScheduleRepository
func NewPostgresScheduleRepository(pool *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{pool: pool}
}

// SaveConcert inserts or updates a concert
func (r *PostgresScheduleRepository) SaveConcert(ctx context.Context, concert *domain.Concert) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.concert.save")
	defer span.End()

	span.SetAttributes(attribute.String("concert_id", concert.ID))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO concerts (id, title, artist, venue, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			artist = EXCLUDED.artist,
			venue = EXCLUDED.venue
	`, concert.ID, concert.Title, concert.Artist, concert.Venue, concert.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save concert: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetConcert retrieves a concert by its ID
func (r *PostgresScheduleRepository) GetConcert(ctx context.Context, id string) (*domain.Concert, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.concert.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("concert_id", id))

	c := &domain.Concert{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, artist, venue, created_at FROM concerts WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.Artist, &c.Venue, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrConcertNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get concert: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return c, nil
}

// Save inserts or updates a schedule
func (r *PostgresScheduleRepository) Save(ctx context.Context, s *domain.ConcertSchedule) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("schedule_id", s.ID),
		attribute.String("concert_id", s.ConcertID),
	)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO concert_schedules (
			id, concert_id, concert_date, reservation_open_at, total_seats, available_seats
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			concert_date = EXCLUDED.concert_date,
			reservation_open_at = EXCLUDED.reservation_open_at,
			total_seats = EXCLUDED.total_seats,
			available_seats = EXCLUDED.available_seats
	`, s.ID, s.ConcertID, s.ConcertDate, s.ReservationOpenAt, s.TotalSeats, s.AvailableSeats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a schedule by its ID
func (r *PostgresScheduleRepository) GetByID(ctx context.Context, id string) (*domain.ConcertSchedule, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("schedule_id", id))

	s := &domain.ConcertSchedule{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, concert_id, concert_date, reservation_open_at, total_seats, available_seats
		FROM concert_schedules
		WHERE id = $1
	`, id).Scan(&s.ID, &s.ConcertID, &s.ConcertDate, &s.ReservationOpenAt, &s.TotalSeats, &s.AvailableSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrScheduleNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return s, nil
}

// FindAvailable lists open schedules with seats left, earliest date first
func (r *PostgresScheduleRepository) FindAvailable(ctx context.Context, now time.Time) ([]*domain.AvailableSchedule, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.find_available")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.concert_id, c.title, c.artist, c.venue,
		       s.concert_date, s.reservation_open_at, s.total_seats, s.available_seats
		FROM concert_schedules s
		JOIN concerts c ON c.id = s.concert_id
		WHERE s.available_seats > 0 AND s.reservation_open_at < $1
		ORDER BY s.concert_date
	`, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query available schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.AvailableSchedule
	for rows.Next() {
		a := &domain.AvailableSchedule{}
		if err := rows.Scan(
			&a.ScheduleID, &a.ConcertID, &a.Title, &a.Artist, &a.Venue,
			&a.ConcertDate, &a.ReservationOpenAt, &a.TotalSeats, &a.AvailableSeats,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// AdjustAvailableSeats adds delta in a single statement, clamped to [0, total]
func (r *PostgresScheduleRepository) AdjustAvailableSeats(ctx context.Context, id string, delta int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.adjust_available")
	defer span.End()

	span.SetAttributes(
		attribute.String("schedule_id", id),
		attribute.Int("delta", delta),
	)

	tag, err := r.pool.Exec(ctx, `
		UPDATE concert_schedules
		SET available_seats = LEAST(total_seats, GREATEST(0, available_seats + $2))
		WHERE id = $1
	`, id, delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to adjust available seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrScheduleNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
