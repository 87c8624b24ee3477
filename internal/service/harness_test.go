package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/cache"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/gateway"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu        sync.Mutex
	created   []*domain.Reservation
	confirmed []*domain.Reservation
	released  []string
}

func (p *recordingPublisher) PublishReservationCreated(ctx context.Context, r *domain.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, r)
	return nil
}

func (p *recordingPublisher) PublishReservationConfirmed(ctx context.Context, r *domain.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, r)
	return nil
}

func (p *recordingPublisher) PublishSeatReleased(ctx context.Context, seat *domain.Seat, previousHolder string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, seat.ID)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) counts() (created, confirmed, released int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created), len(p.confirmed), len(p.released)
}

type harness struct {
	ctx          context.Context
	clock        *clockwork.FakeClock
	locker       *lock.MemoryLocker
	tokens       *repository.MemoryTokenRepository
	seats        *repository.MemorySeatRepository
	reservations *repository.MemoryReservationRepository
	schedules    *repository.MemoryScheduleRepository
	balances     *repository.MemoryBalanceRepository
	payments     *repository.MemoryPaymentRepository
	cache        *cache.MemorySeatCache
	gateway      *gateway.MockGateway
	events       *recordingPublisher

	queue   QueueService
	balance BalanceService
	payment PaymentProcessor
	catalog CatalogService
	booking ReservationService
}

type harnessOptions struct {
	capacity     int64
	holdDuration time.Duration
	lockOptions  lock.Options

	// wrap the stores the reservation service sees, to pause it mid-operation
	wrapSeats    func(repository.SeatRepository) repository.SeatRepository
	wrapPayments func(PaymentProcessor) PaymentProcessor
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(t0)
	h := &harness{
		ctx:          context.Background(),
		clock:        clock,
		locker:       lock.NewMemoryLocker(clock),
		tokens:       repository.NewMemoryTokenRepository(),
		seats:        repository.NewMemorySeatRepository(),
		reservations: repository.NewMemoryReservationRepository(),
		schedules:    repository.NewMemoryScheduleRepository(),
		balances:     repository.NewMemoryBalanceRepository(clock),
		payments:     repository.NewMemoryPaymentRepository(),
		cache:        cache.NewMemorySeatCache(clock),
		gateway:      gateway.NewMockGateway(nil),
		events:       &recordingPublisher{},
	}

	h.queue = NewQueueService(h.tokens, h.locker, clock, &QueueServiceConfig{Capacity: opts.capacity})
	h.balance = NewBalanceService(h.balances)
	h.payment = NewPaymentProcessor(h.payments, h.gateway, clock, nil, nil)
	h.catalog = NewCatalogService(h.schedules, h.seats, h.cache, clock, nil)
	var seats repository.SeatRepository = h.seats
	if opts.wrapSeats != nil {
		seats = opts.wrapSeats(seats)
	}
	payments := h.payment
	if opts.wrapPayments != nil {
		payments = opts.wrapPayments(payments)
	}

	h.booking = NewReservationService(ReservationDeps{
		Queue:        h.queue,
		Seats:        seats,
		Reservations: h.reservations,
		Schedules:    h.schedules,
		Cache:        h.cache,
		Balance:      h.balance,
		Payments:     payments,
		Events:       h.events,
		Locker:       h.locker,
		Clock:        clock,
	}, &ReservationServiceConfig{
		HoldDuration: opts.holdDuration,
		LockOptions:  opts.lockOptions,
	})
	return h
}

// provision creates an open schedule with n seats priced 50000
func (h *harness) provision(t *testing.T, n int) (string, []*domain.Seat) {
	t.Helper()

	resp, err := h.catalog.CreateSchedule(h.ctx, &dto.CreateScheduleRequest{
		Title:             "Spring Tour",
		Artist:            "The Band",
		Venue:             "Olympic Hall",
		ConcertDate:       t0.Add(30 * 24 * time.Hour),
		ReservationOpenAt: t0.Add(-time.Hour),
		TotalSeats:        n,
		Price:             50000,
	})
	require.NoError(t, err)

	seats, err := h.seats.FindBySchedule(h.ctx, resp.ScheduleID)
	require.NoError(t, err)
	require.Len(t, seats, n)
	return resp.ScheduleID, seats
}

// admit issues a token for userID and sweeps it into the active set
func (h *harness) admit(t *testing.T, userID string) string {
	t.Helper()

	tok, err := h.queue.IssueToken(h.ctx, userID)
	require.NoError(t, err)
	_, err = h.queue.Sweep(h.ctx)
	require.NoError(t, err)

	tok, err = h.queue.GetStatus(h.ctx, tok.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TokenStatusActive, tok.Status)
	return tok.ID
}

func (h *harness) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := h.balance.Charge(h.ctx, userID, amount)
	require.NoError(t, err)
}

func (h *harness) available(t *testing.T, scheduleID string) int {
	t.Helper()
	s, err := h.schedules.GetByID(h.ctx, scheduleID)
	require.NoError(t, err)
	return s.AvailableSeats
}
