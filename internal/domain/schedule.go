package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTotalSeats is the seat count of a schedule when none is given
const DefaultTotalSeats = 50

// Concert is a performance that can have several schedules
type Concert struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Venue     string    `json:"venue"`
	CreatedAt time.Time `json:"created_at"`
}

// ConcertSchedule is one dated performance with its own seat pool
type ConcertSchedule struct {
	ID                string    `json:"id"`
	ConcertID         string    `json:"concert_id"`
	ConcertDate       time.Time `json:"concert_date"`
	ReservationOpenAt time.Time `json:"reservation_open_at"`
	TotalSeats        int       `json:"total_seats"`
	AvailableSeats    int       `json:"available_seats"`
}

// IsReservationOpen reports whether booking has opened at now
func (s *ConcertSchedule) IsReservationOpen(now time.Time) bool {
	return now.After(s.ReservationOpenAt)
}

// HasAvailableSeats reports whether any seat remains
func (s *ConcertSchedule) HasAvailableSeats() bool {
	return s.AvailableSeats > 0
}

// AdjustAvailable applies delta to the available counter, bounded to [0, TotalSeats]
func (s *ConcertSchedule) AdjustAvailable(delta int) {
	n := s.AvailableSeats + delta
	if n < 0 {
		n = 0
	}
	if n > s.TotalSeats {
		n = s.TotalSeats
	}
	s.AvailableSeats = n
}

// SeatSpec describes seats to provision for a schedule
type SeatSpec struct {
	Count       int
	SeatsPerRow int
	Price       int64
	VIPRows     int
	VIPPrice    int64
}

// NewSchedule creates a schedule and its seats numbered 1..N, laid out in
// rows of SeatsPerRow; the first VIPRows rows are VIP
func NewSchedule(concertID string, concertDate, openAt time.Time, spec SeatSpec, now time.Time) (*ConcertSchedule, []*Seat, error) {
	if spec.Count == 0 {
		spec.Count = DefaultTotalSeats
	}
	if spec.Count < 0 {
		return nil, nil, ErrInvalidSeatCount
	}
	if spec.Price < 0 || spec.VIPPrice < 0 {
		return nil, nil, ErrInvalidPrice
	}
	if spec.SeatsPerRow <= 0 {
		spec.SeatsPerRow = 10
	}

	schedule := &ConcertSchedule{
		ID:                uuid.New().String(),
		ConcertID:         concertID,
		ConcertDate:       concertDate,
		ReservationOpenAt: openAt,
		TotalSeats:        spec.Count,
		AvailableSeats:    spec.Count,
	}

	seats := make([]*Seat, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		row := i/spec.SeatsPerRow + 1
		grade, price := SeatGradeStandard, spec.Price
		if row <= spec.VIPRows {
			grade, price = SeatGradeVIP, spec.VIPPrice
		}
		seats = append(seats, &Seat{
			ID:           uuid.New().String(),
			ScheduleID:   schedule.ID,
			SeatNumber:   fmt.Sprintf("%d", i+1),
			Grade:        grade,
			Price:        price,
			RowNumber:    row,
			ColumnNumber: i%spec.SeatsPerRow + 1,
			Status:       SeatStatusAvailable,
			UpdatedAt:    now,
		})
	}
	return schedule, seats, nil
}

// AvailableSchedule is a schedule listing row with its concert details
type AvailableSchedule struct {
	ScheduleID        string    `json:"schedule_id"`
	ConcertID         string    `json:"concert_id"`
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	Venue             string    `json:"venue"`
	ConcertDate       time.Time `json:"concert_date"`
	ReservationOpenAt time.Time `json:"reservation_open_at"`
	TotalSeats        int       `json:"total_seats"`
	AvailableSeats    int       `json:"available_seats"`
}
