package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/cache"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReservationService holds seats and turns holds into paid reservations
type ReservationService interface {
	// ReserveSeat temporarily holds a seat for an admitted user. A zero
	// price means the seat's list price.
	ReserveSeat(ctx context.Context, tokenID, userID, seatID string, price int64) (*dto.ReserveSeatResponse, error)

	// ProcessPayment pays for a temporary reservation and confirms it
	ProcessPayment(ctx context.Context, tokenID, userID, reservationID string) (*dto.PaymentResponse, error)

	// ReleaseExpiredHolds reverts lapsed holds to available and returns how many were released
	ReleaseExpiredHolds(ctx context.Context, limit int) (int, error)

	// GetReservation returns a reservation owned by userID
	GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error)

	// ListUserReservations returns every reservation of a user
	ListUserReservations(ctx context.Context, userID string) ([]*domain.Reservation, error)

	// FindExpiredTemporaryReservations lists temporary reservations past their expiry
	FindExpiredTemporaryReservations(ctx context.Context, limit int) ([]*domain.Reservation, error)
}

// ReservationServiceConfig contains configuration for reservation service
type ReservationServiceConfig struct {
	HoldDuration time.Duration // how long a seat stays held (default: 5 minutes)
	LockOptions  lock.Options  // seat and payment locks (default: lock.TransactionOptions)
}

// ReservationDeps groups the collaborators of the reservation service
type ReservationDeps struct {
	Queue        QueueService
	Seats        repository.SeatRepository
	Reservations repository.ReservationRepository
	Schedules    repository.ScheduleRepository
	Cache        cache.SeatCache
	Balance      BalanceService
	Payments     PaymentProcessor
	Events       EventPublisher
	Locker       lock.Locker
	Clock        clockwork.Clock
	Logger       *logger.Logger
}

type reservationService struct {
	ReservationDeps
	holdDuration time.Duration
	lockOpts     lock.Options
}

// NewReservationService creates a new reservation service
func NewReservationService(deps ReservationDeps, cfg *ReservationServiceConfig) ReservationService {
	holdDuration := 5 * time.Minute
	lockOpts := lock.TransactionOptions

	if cfg != nil {
		if cfg.HoldDuration > 0 {
			holdDuration = cfg.HoldDuration
		}
		if cfg.LockOptions.LeaseTime > 0 {
			lockOpts = cfg.LockOptions
		}
	}
	if deps.Events == nil {
		deps.Events = NewNoOpEventPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	return &reservationService{
		ReservationDeps: deps,
		holdDuration:    holdDuration,
		lockOpts:        lockOpts,
	}
}

// ReserveSeat holds a seat under its seat lock
func (s *reservationService) ReserveSeat(ctx context.Context, tokenID, userID, seatID string, price int64) (*dto.ReserveSeatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.reserve_seat")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("seat_id", seatID),
		attribute.Int64("price", price),
	)

	if seatID == "" {
		span.SetStatus(codes.Error, "invalid seat_id")
		return nil, domain.ErrInvalidSeatID
	}
	if price < 0 {
		span.SetStatus(codes.Error, "invalid price")
		return nil, domain.ErrInvalidPrice
	}

	start := time.Now()
	resp, err := withLock(ctx, s.Locker, lock.SeatReserveKey(seatID), "reserve_seat", s.lockOpts,
		func(ctx context.Context) (*dto.ReserveSeatResponse, error) {
			return s.reserveLocked(ctx, tokenID, userID, seatID, price)
		})
	metrics.RecordRequestDuration(ctx, "reserve_seat", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordReservationFailure(ctx, failureReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("reservation_id", resp.ReservationID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (s *reservationService) reserveLocked(ctx context.Context, tokenID, userID, seatID string, price int64) (*dto.ReserveSeatResponse, error) {
	// 1. admission
	if _, err := s.Queue.ValidateActiveToken(ctx, tokenID, userID); err != nil {
		return nil, err
	}

	// 2. seat
	seat, err := s.Seats.GetByID(ctx, seatID)
	if err != nil {
		return nil, err
	}

	// 3. a lapsed hold goes back to the pool before deciding
	now := s.Clock.Now()
	read := seat.Version()
	previousHolder := seat.HolderUserID
	reclaimed := seat.ReclaimIfExpired(now)
	if !seat.IsAvailable(now) {
		return nil, domain.ErrSeatUnavailable
	}
	if price == 0 {
		price = seat.Price
	}

	// 4. hold; a payment confirming the old hold meanwhile wins
	if err := seat.Hold(userID, now, s.holdDuration); err != nil {
		return nil, err
	}
	if err := s.Seats.SaveIfUnchanged(ctx, seat, read); err != nil {
		if errors.Is(err, domain.ErrSeatChanged) {
			s.invalidate(ctx, seat.ScheduleID)
			return nil, domain.ErrSeatUnavailable
		}
		return nil, fmt.Errorf("failed to save seat: %w", err)
	}
	if reclaimed {
		s.afterReclaim(ctx, seat, previousHolder)
	}

	// 5. the cached layout no longer matches
	s.invalidate(ctx, seat.ScheduleID)

	// 6. reservation mirrors the hold
	reservation, err := domain.NewTemporaryReservation(userID, seat, price, now)
	if err == nil {
		err = s.Reservations.Save(ctx, reservation)
	}
	if err != nil {
		s.undoHold(ctx, seat)
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	// 7. schedule counter
	if err := s.Schedules.AdjustAvailableSeats(ctx, seat.ScheduleID, -1); err != nil {
		s.Logger.Warn("failed to decrement available seats",
			zap.String("schedule_id", seat.ScheduleID),
			zap.Error(err),
		)
	}

	metrics.RecordReservation(ctx, seat.ScheduleID)
	if err := s.Events.PublishReservationCreated(ctx, reservation); err != nil {
		s.Logger.Warn("failed to publish reservation created event",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}

	return &dto.ReserveSeatResponse{
		ReservationID: reservation.ID,
		SeatID:        seat.ID,
		SeatNumber:    seat.SeatNumber,
		Price:         reservation.Price,
		ExpiresAt:     *reservation.ExpiresAt,
	}, nil
}

// undoHold returns a seat whose reservation could not be stored
func (s *reservationService) undoHold(ctx context.Context, seat *domain.Seat) {
	held := seat.Version()
	seat.Release(s.Clock.Now())
	if err := s.Seats.SaveIfUnchanged(ctx, seat, held); err != nil {
		s.Logger.Error("failed to release seat after reservation error",
			zap.String("seat_id", seat.ID),
			zap.Error(err),
		)
	}
	s.invalidate(ctx, seat.ScheduleID)
}

// ProcessPayment pays for a reservation under its payment lock
func (s *reservationService) ProcessPayment(ctx context.Context, tokenID, userID, reservationID string) (*dto.PaymentResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.process_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("reservation_id", reservationID),
	)

	start := time.Now()
	resp, err := withLock(ctx, s.Locker, lock.PaymentKey(reservationID), "process_payment", s.lockOpts,
		func(ctx context.Context) (*dto.PaymentResponse, error) {
			return s.payLocked(ctx, tokenID, userID, reservationID)
		})
	metrics.RecordRequestDuration(ctx, "process_payment", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordPaymentFailure(ctx, failureReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("payment_id", resp.PaymentID),
		attribute.Int64("amount", resp.Amount),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (s *reservationService) payLocked(ctx context.Context, tokenID, userID, reservationID string) (*dto.PaymentResponse, error) {
	// 1. admission
	if _, err := s.Queue.ValidateActiveToken(ctx, tokenID, userID); err != nil {
		return nil, err
	}

	// 2. reservation and seat guards
	now := s.Clock.Now()
	reservation, err := s.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !reservation.IsOwnedBy(userID) {
		return nil, domain.ErrReservationNotOwned
	}
	if !reservation.IsTemporary() {
		return nil, domain.ErrReservationNotTemporary
	}
	if reservation.IsExpired(now) {
		return nil, domain.ErrReservationExpired
	}
	seat, err := s.Seats.GetByID(ctx, reservation.SeatID)
	if err != nil {
		return nil, err
	}
	if !seat.IsHeldBy(userID, now) {
		return nil, domain.ErrReservationExpired
	}
	held := seat.Version()

	// 3. balance
	amount := reservation.Price
	if amount > 0 {
		if _, err := s.Balance.Deduct(ctx, userID, amount); err != nil {
			return nil, err
		}
	}

	// 4. payment; the debit is given back when it fails
	payment, err := s.Payments.ProcessPayment(ctx, userID, amount, "Concert Seat Reservation - "+seat.SeatNumber)
	if err != nil {
		s.refund(ctx, userID, amount)
		return nil, err
	}

	// 5. the collaborators took time; the hold must still be live now
	now = s.Clock.Now()
	if !seat.IsHeldBy(userID, now) {
		s.refund(ctx, userID, amount)
		return nil, domain.ErrReservationExpired
	}
	if err := reservation.Confirm(now, payment.PaymentID); err != nil {
		s.refund(ctx, userID, amount)
		return nil, err
	}
	if err := seat.Confirm(now); err != nil {
		s.refund(ctx, userID, amount)
		return nil, err
	}

	// 6. persist; the seat write fails if the hold was reclaimed meanwhile
	if err := s.Seats.SaveIfUnchanged(ctx, seat, held); err != nil {
		s.refund(ctx, userID, amount)
		if errors.Is(err, domain.ErrSeatChanged) {
			s.Logger.Warn("hold lost while paying",
				zap.String("seat_id", seat.ID),
				zap.String("reservation_id", reservation.ID),
				zap.String("payment_id", payment.PaymentID),
			)
			return nil, domain.ErrReservationExpired
		}
		return nil, fmt.Errorf("failed to save seat: %w", err)
	}
	if err := s.Reservations.Save(ctx, reservation); err != nil {
		s.Logger.Error("seat confirmed but reservation not saved",
			zap.String("reservation_id", reservation.ID),
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}
	s.invalidate(ctx, seat.ScheduleID)

	// 7. the token is used up
	if err := s.Queue.CompleteToken(ctx, tokenID); err != nil {
		s.Logger.Warn("failed to complete admission token",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
	}

	metrics.RecordPayment(ctx, reservation.ScheduleID, amount)
	if err := s.Events.PublishReservationConfirmed(ctx, reservation); err != nil {
		s.Logger.Warn("failed to publish reservation confirmed event",
			zap.String("reservation_id", reservation.ID),
			zap.Error(err),
		)
	}

	return &dto.PaymentResponse{
		PaymentID:     payment.PaymentID,
		ReservationID: reservation.ID,
		Amount:        payment.Amount,
		PaidAt:        *reservation.ConfirmedAt,
	}, nil
}

func (s *reservationService) refund(ctx context.Context, userID string, amount int64) {
	if amount <= 0 {
		return
	}
	if _, err := s.Balance.Refund(ctx, userID, amount); err != nil {
		s.Logger.Error("failed to refund balance",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
	}
}

// ReleaseExpiredHolds reclaims lapsed holds one seat lock at a time. A seat
// whose lock is busy is left for the next run.
func (s *reservationService) ReleaseExpiredHolds(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.release_expired_holds")
	defer span.End()

	expired, err := s.Seats.FindExpiredHolds(ctx, s.Clock.Now(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	released := 0
	for _, candidate := range expired {
		ok, err := withLock(ctx, s.Locker, lock.SeatReserveKey(candidate.ID), "release_hold", s.lockOpts,
			func(ctx context.Context) (bool, error) {
				return s.releaseLocked(ctx, candidate.ID)
			})
		if err != nil {
			if errors.Is(err, lock.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			s.Logger.Warn("failed to release expired hold",
				zap.String("seat_id", candidate.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			released++
		}
	}

	span.SetAttributes(
		attribute.Int("candidates", len(expired)),
		attribute.Int("released", released),
	)
	span.SetStatus(codes.Ok, "")
	return released, ctx.Err()
}

func (s *reservationService) releaseLocked(ctx context.Context, seatID string) (bool, error) {
	seat, err := s.Seats.GetByID(ctx, seatID)
	if err != nil {
		return false, err
	}
	read := seat.Version()
	previousHolder := seat.HolderUserID
	if !seat.ReclaimIfExpired(s.Clock.Now()) {
		return false, nil
	}
	if err := s.Seats.SaveIfUnchanged(ctx, seat, read); err != nil {
		if errors.Is(err, domain.ErrSeatChanged) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save seat: %w", err)
	}
	s.afterReclaim(ctx, seat, previousHolder)
	s.invalidate(ctx, seat.ScheduleID)
	return true, nil
}

// afterReclaim gives a reclaimed seat back to the schedule counter
func (s *reservationService) afterReclaim(ctx context.Context, seat *domain.Seat, previousHolder string) {
	if err := s.Schedules.AdjustAvailableSeats(ctx, seat.ScheduleID, 1); err != nil {
		s.Logger.Warn("failed to increment available seats",
			zap.String("schedule_id", seat.ScheduleID),
			zap.Error(err),
		)
	}
	metrics.RecordHoldsReleased(ctx, 1)
	if err := s.Events.PublishSeatReleased(ctx, seat, previousHolder); err != nil {
		s.Logger.Warn("failed to publish seat released event",
			zap.String("seat_id", seat.ID),
			zap.Error(err),
		)
	}
}

func (s *reservationService) invalidate(ctx context.Context, scheduleID string) {
	s.Cache.InvalidateLayout(ctx, scheduleID)
	s.Cache.InvalidateAvailableSchedules(ctx)
}

func (s *reservationService) GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	reservation, err := s.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !reservation.IsOwnedBy(userID) {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrReservationNotOwned
	}

	span.SetStatus(codes.Ok, "")
	return reservation, nil
}

func (s *reservationService) ListUserReservations(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.list_user")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	list, err := s.Reservations.FindByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(list)))
	span.SetStatus(codes.Ok, "")
	return list, nil
}

func (s *reservationService) FindExpiredTemporaryReservations(ctx context.Context, limit int) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.find_expired")
	defer span.End()

	list, err := s.Reservations.FindExpiredTemporary(ctx, s.Clock.Now(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(list)))
	span.SetStatus(codes.Ok, "")
	return list, nil
}

// failureReason labels a failure for metrics
func failureReason(err error) string {
	switch {
	case errors.Is(err, lock.ErrTimeout):
		return "lock_timeout"
	case domain.IsAdmissionError(err):
		return "admission"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, domain.ErrReservationExpired):
		return "expired"
	case domain.IsNotFoundError(err):
		return "not_found"
	case domain.IsConflictError(err):
		return "conflict"
	case domain.IsValidationError(err):
		return "validation"
	default:
		return "internal"
	}
}
