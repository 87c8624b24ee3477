package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// MemorySeatRepository implements SeatRepository in process memory
type MemorySeatRepository struct {
	mu    sync.RWMutex
	seats map[string]domain.Seat
}

// NewMemorySeatRepository creates a new MemorySeatRepository
func NewMemorySeatRepository() *MemorySeatRepository {
	return &MemorySeatRepository{seats: make(map[string]domain.Seat)}
}

func (r *MemorySeatRepository) GetByID(_ context.Context, id string) (*domain.Seat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.seats[id]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	return &s, nil
}

func (r *MemorySeatRepository) Save(_ context.Context, seat *domain.Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[seat.ID] = *seat
	return nil
}

func (r *MemorySeatRepository) SaveIfUnchanged(_ context.Context, seat *domain.Seat, expected domain.SeatVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.seats[seat.ID]
	if !ok {
		return domain.ErrSeatNotFound
	}
	if !expected.Matches(&stored) {
		return domain.ErrSeatChanged
	}
	r.seats[seat.ID] = *seat
	return nil
}

func (r *MemorySeatRepository) SaveAll(_ context.Context, seats []*domain.Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range seats {
		r.seats[s.ID] = *s
	}
	return nil
}

func (r *MemorySeatRepository) FindBySchedule(_ context.Context, scheduleID string) ([]*domain.Seat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Seat
	for _, s := range r.seats {
		if s.ScheduleID == scheduleID {
			seat := s
			out = append(out, &seat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowNumber != out[j].RowNumber {
			return out[i].RowNumber < out[j].RowNumber
		}
		return out[i].ColumnNumber < out[j].ColumnNumber
	})
	return out, nil
}

func (r *MemorySeatRepository) FindExpiredHolds(_ context.Context, now time.Time, limit int) ([]*domain.Seat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Seat
	for _, s := range r.seats {
		if s.IsHoldExpired(now) {
			seat := s
			out = append(out, &seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryReservationRepository implements ReservationRepository in process memory
type MemoryReservationRepository struct {
	mu           sync.RWMutex
	reservations map[string]domain.Reservation
}

// NewMemoryReservationRepository creates a new MemoryReservationRepository
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{reservations: make(map[string]domain.Reservation)}
}

func (r *MemoryReservationRepository) Save(_ context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[reservation.ID] = *reservation
	return nil
}

func (r *MemoryReservationRepository) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return &res, nil
}

func (r *MemoryReservationRepository) FindByUserID(_ context.Context, userID string) ([]*domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool { return res.UserID == userID }, 0, true), nil
}

func (r *MemoryReservationRepository) FindExpiredTemporary(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	return r.filter(func(res *domain.Reservation) bool {
		return res.IsTemporary() && res.IsExpired(now)
	}, limit, false), nil
}

func (r *MemoryReservationRepository) filter(keep func(*domain.Reservation) bool, limit int, newestFirst bool) []*domain.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Reservation
	for _, res := range r.reservations {
		res := res
		if keep(&res) {
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ReservedAt.After(out[j].ReservedAt)
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryScheduleRepository implements ScheduleRepository in process memory
type MemoryScheduleRepository struct {
	mu        sync.RWMutex
	concerts  map[string]domain.Concert
	schedules map[string]domain.ConcertSchedule
}

// NewMemoryScheduleRepository creates a new MemoryScheduleRepository
func NewMemoryScheduleRepository() *MemoryScheduleRepository {
	return &MemoryScheduleRepository{
		concerts:  make(map[string]domain.Concert),
		schedules: make(map[string]domain.ConcertSchedule),
	}
}

func (r *MemoryScheduleRepository) SaveConcert(_ context.Context, concert *domain.Concert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concerts[concert.ID] = *concert
	return nil
}

func (r *MemoryScheduleRepository) GetConcert(_ context.Context, id string) (*domain.Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.concerts[id]
	if !ok {
		return nil, domain.ErrConcertNotFound
	}
	return &c, nil
}

func (r *MemoryScheduleRepository) Save(_ context.Context, schedule *domain.ConcertSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ID] = *schedule
	return nil
}

func (r *MemoryScheduleRepository) GetByID(_ context.Context, id string) (*domain.ConcertSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return &s, nil
}

func (r *MemoryScheduleRepository) FindAvailable(_ context.Context, now time.Time) ([]*domain.AvailableSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.AvailableSchedule
	for _, s := range r.schedules {
		if !s.HasAvailableSeats() || !s.IsReservationOpen(now) {
			continue
		}
		c := r.concerts[s.ConcertID]
		out = append(out, &domain.AvailableSchedule{
			ScheduleID:        s.ID,
			ConcertID:         s.ConcertID,
			Title:             c.Title,
			Artist:            c.Artist,
			Venue:             c.Venue,
			ConcertDate:       s.ConcertDate,
			ReservationOpenAt: s.ReservationOpenAt,
			TotalSeats:        s.TotalSeats,
			AvailableSeats:    s.AvailableSeats,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConcertDate.Before(out[j].ConcertDate) })
	return out, nil
}

func (r *MemoryScheduleRepository) AdjustAvailableSeats(_ context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.AdjustAvailable(delta)
	r.schedules[id] = s
	return nil
}
