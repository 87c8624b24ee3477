package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/cache"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// CatalogService serves schedules and seat layouts through the seat cache
type CatalogService interface {
	// GetAvailableSchedules lists open schedules that still have seats
	GetAvailableSchedules(ctx context.Context) ([]*domain.AvailableSchedule, error)

	// GetSeatLayout returns the full seat map of a schedule
	GetSeatLayout(ctx context.Context, scheduleID string) (*domain.SeatLayout, error)

	// GetAvailableSeats returns the reservable seats of a schedule
	GetAvailableSeats(ctx context.Context, scheduleID string) ([]dto.AvailableSeatResponse, error)

	// CreateSchedule provisions a schedule and its seats
	CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.CreateScheduleResponse, error)
}

// CatalogServiceConfig contains configuration for catalog service
type CatalogServiceConfig struct {
	LayoutTTL   time.Duration
	ScheduleTTL time.Duration
}

type catalogService struct {
	schedules   repository.ScheduleRepository
	seats       repository.SeatRepository
	cache       cache.SeatCache
	clock       clockwork.Clock
	loads       singleflight.Group
	layoutTTL   time.Duration
	scheduleTTL time.Duration
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	schedules repository.ScheduleRepository,
	seats repository.SeatRepository,
	seatCache cache.SeatCache,
	clock clockwork.Clock,
	cfg *CatalogServiceConfig,
) CatalogService {
	layoutTTL := cache.DefaultLayoutTTL
	scheduleTTL := cache.DefaultScheduleTTL
	if cfg != nil {
		if cfg.LayoutTTL > 0 {
			layoutTTL = cfg.LayoutTTL
		}
		if cfg.ScheduleTTL > 0 {
			scheduleTTL = cfg.ScheduleTTL
		}
	}

	return &catalogService{
		schedules:   schedules,
		seats:       seats,
		cache:       seatCache,
		clock:       clock,
		layoutTTL:   layoutTTL,
		scheduleTTL: scheduleTTL,
	}
}

func (s *catalogService) GetAvailableSchedules(ctx context.Context) ([]*domain.AvailableSchedule, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.available_schedules")
	defer span.End()

	if cached, ok := s.cache.GetAvailableSchedules(ctx); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "")
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	v, err, _ := s.loads.Do(cache.AvailableSchedulesKey, func() (interface{}, error) {
		list, err := s.schedules.FindAvailable(ctx, s.clock.Now())
		if err != nil {
			return nil, err
		}
		s.cache.PutAvailableSchedules(ctx, list, s.scheduleTTL)
		return list, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	list := v.([]*domain.AvailableSchedule)
	span.SetAttributes(attribute.Int("count", len(list)))
	span.SetStatus(codes.Ok, "")
	return list, nil
}

func (s *catalogService) GetSeatLayout(ctx context.Context, scheduleID string) (*domain.SeatLayout, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.seat_layout")
	defer span.End()

	span.SetAttributes(attribute.String("schedule_id", scheduleID))

	if layout, ok := s.cache.GetLayout(ctx, scheduleID); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		span.SetStatus(codes.Ok, "")
		return layout, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	// concurrent misses of one schedule share a single store read
	v, err, _ := s.loads.Do(cache.LayoutKey(scheduleID), func() (interface{}, error) {
		if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
			return nil, err
		}
		// the generation is read first; a seat write landing after it makes the put a no-op
		gen, genOK := s.cache.LayoutGeneration(ctx, scheduleID)
		seats, err := s.seats.FindBySchedule(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
		layout := domain.BuildSeatLayout(scheduleID, seats, s.clock.Now())
		if genOK && !s.cache.PutLayout(ctx, scheduleID, layout, gen, s.layoutTTL) {
			span.AddEvent("layout superseded while loading")
		}
		return layout, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return v.(*domain.SeatLayout), nil
}

func (s *catalogService) GetAvailableSeats(ctx context.Context, scheduleID string) ([]dto.AvailableSeatResponse, error) {
	layout, err := s.GetSeatLayout(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	available := layout.Available()
	out := make([]dto.AvailableSeatResponse, 0, len(available))
	for _, item := range available {
		out = append(out, dto.AvailableSeatResponse{
			SeatID:     item.SeatID,
			SeatNumber: item.SeatNumber,
			SeatGrade:  item.SeatGrade,
			Price:      item.Price,
		})
	}
	return out, nil
}

func (s *catalogService) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest) (*dto.CreateScheduleResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.create_schedule")
	defer span.End()

	now := s.clock.Now()

	concert, err := s.resolveConcert(ctx, req, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	schedule, seats, err := domain.NewSchedule(concert.ID, req.ConcertDate, req.ReservationOpenAt, domain.SeatSpec{
		Count:       req.TotalSeats,
		SeatsPerRow: req.SeatsPerRow,
		Price:       req.Price,
		VIPRows:     req.VIPRows,
		VIPPrice:    req.VIPPrice,
	}, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.schedules.Save(ctx, schedule); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	if err := s.seats.SaveAll(ctx, seats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save seats: %w", err)
	}
	s.cache.InvalidateAvailableSchedules(ctx)

	span.SetAttributes(
		attribute.String("concert_id", concert.ID),
		attribute.String("schedule_id", schedule.ID),
		attribute.Int("total_seats", schedule.TotalSeats),
	)
	span.SetStatus(codes.Ok, "")
	return &dto.CreateScheduleResponse{
		ConcertID:  concert.ID,
		ScheduleID: schedule.ID,
		TotalSeats: schedule.TotalSeats,
	}, nil
}

// resolveConcert loads the referenced concert or creates a new one
func (s *catalogService) resolveConcert(ctx context.Context, req *dto.CreateScheduleRequest, now time.Time) (*domain.Concert, error) {
	if req.ConcertID != "" {
		return s.schedules.GetConcert(ctx, req.ConcertID)
	}
	if req.Title == "" {
		return nil, domain.ErrInvalidConcert
	}

	concert := &domain.Concert{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Artist:    req.Artist,
		Venue:     req.Venue,
		CreatedAt: now,
	}
	if err := s.schedules.SaveConcert(ctx, concert); err != nil {
		return nil, fmt.Errorf("failed to save concert: %w", err)
	}
	return concert, nil
}
