package dto

import "time"

// AvailableSeatResponse represents a seat that can be reserved
type AvailableSeatResponse struct {
	SeatID     string `json:"seat_id"`
	SeatNumber string `json:"seat_number"`
	SeatGrade  string `json:"seat_grade"`
	Price      int64  `json:"price"`
}

// CreateScheduleRequest provisions a concert schedule and its seats. An
// empty ConcertID creates a new concert from Title, Artist and Venue.
type CreateScheduleRequest struct {
	ConcertID         string    `json:"concert_id"`
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	Venue             string    `json:"venue"`
	ConcertDate       time.Time `json:"concert_date" binding:"required"`
	ReservationOpenAt time.Time `json:"reservation_open_at" binding:"required"`
	TotalSeats        int       `json:"total_seats" binding:"gte=0"`
	SeatsPerRow       int       `json:"seats_per_row" binding:"gte=0"`
	Price             int64     `json:"price" binding:"gte=0"`
	VIPRows           int       `json:"vip_rows" binding:"gte=0"`
	VIPPrice          int64     `json:"vip_price" binding:"gte=0"`
}

// CreateScheduleResponse represents a provisioned schedule
type CreateScheduleResponse struct {
	ConcertID  string `json:"concert_id"`
	ScheduleID string `json:"schedule_id"`
	TotalSeats int    `json:"total_seats"`
}
