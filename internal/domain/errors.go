package domain

import "errors"

// Domain errors
var (
	// Admission errors
	ErrInvalidToken   = errors.New("invalid admission token")
	ErrTokenNotActive = errors.New("admission token is not active")
	ErrTokenNotFound  = errors.New("admission token not found")

	// Seat errors
	ErrSeatNotFound    = errors.New("seat not found")
	ErrSeatUnavailable = errors.New("seat is not available")
	ErrSeatNotHeld     = errors.New("seat is not temporarily held")
	ErrSeatChanged     = errors.New("seat changed since it was read")

	// Reservation errors
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrReservationNotOwned     = errors.New("reservation belongs to another user")
	ErrReservationNotTemporary = errors.New("reservation is not temporary")
	ErrReservationExpired      = errors.New("reservation has expired")

	// Balance and payment errors
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrPaymentNotFound   = errors.New("payment not found")

	// Catalog errors
	ErrScheduleNotFound = errors.New("concert schedule not found")
	ErrConcertNotFound  = errors.New("concert not found")
	ErrInvalidConcert   = errors.New("concert title is required")

	// Validation errors
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrInvalidSeatID     = errors.New("invalid seat id")
	ErrInvalidPrice      = errors.New("price cannot be negative")
	ErrInvalidSeatCount  = errors.New("seat count must be greater than zero")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrConcertNotFound)
}

// IsAdmissionError checks if the error means the caller may not act yet
func IsAdmissionError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenNotActive)
}

// IsConflictError checks if the error is a state conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrSeatNotHeld) ||
		errors.Is(err, ErrSeatChanged) ||
		errors.Is(err, ErrReservationNotTemporary) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidSeatID) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidConcert) ||
		errors.Is(err, ErrInvalidSeatCount)
}

// ErrLockTimeout is returned when a named lock is not acquired within its wait
var ErrLockTimeout = errors.New("lock not acquired within wait timeout")

// IsRetryableError checks if the caller may retry the same request later
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
