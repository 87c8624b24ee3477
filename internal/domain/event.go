package domain

import "time"

// BookingEventType names a published booking event
type BookingEventType string

const (
	BookingEventReservationCreated   BookingEventType = "reservation.created"
	BookingEventReservationConfirmed BookingEventType = "reservation.confirmed"
	BookingEventSeatReleased         BookingEventType = "seat.released"
)

// BookingEvent is the envelope published to the booking events topic
type BookingEvent struct {
	EventID       string           `json:"event_id"`
	EventType     BookingEventType `json:"event_type"`
	OccurredAt    time.Time        `json:"occurred_at"`
	ReservationID string           `json:"reservation_id,omitempty"`
	UserID        string           `json:"user_id,omitempty"`
	SeatID        string           `json:"seat_id"`
	ScheduleID    string           `json:"schedule_id"`
	SeatNumber    string           `json:"seat_number,omitempty"`
	Price         int64            `json:"price,omitempty"`
	PaymentID     string           `json:"payment_id,omitempty"`
}

// NewReservationEvent builds a reservation.created or reservation.confirmed event
func NewReservationEvent(eventType BookingEventType, eventID string, r *Reservation, now time.Time) *BookingEvent {
	return &BookingEvent{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    now,
		ReservationID: r.ID,
		UserID:        r.UserID,
		SeatID:        r.SeatID,
		ScheduleID:    r.ScheduleID,
		SeatNumber:    r.SeatNumber,
		Price:         r.Price,
		PaymentID:     r.PaymentID,
	}
}

// NewSeatReleasedEvent builds a seat.released event for a reclaimed hold
func NewSeatReleasedEvent(eventID string, seat *Seat, previousHolder string, now time.Time) *BookingEvent {
	return &BookingEvent{
		EventID:    eventID,
		EventType:  BookingEventSeatReleased,
		OccurredAt: now,
		UserID:     previousHolder,
		SeatID:     seat.ID,
		ScheduleID: seat.ScheduleID,
		SeatNumber: seat.SeatNumber,
	}
}

// Key is the partition key; events of one seat stay ordered
func (e *BookingEvent) Key() string {
	return e.SeatID
}
