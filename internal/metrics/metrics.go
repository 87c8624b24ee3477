package metrics

import (
	"context"
	"sync"

	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Reservation counters
	ReservationsCreated *telemetry.Counter
	ReservationsFailed  *telemetry.Counter
	HoldsReleased       *telemetry.Counter

	// Payment counters
	PaymentsSucceeded *telemetry.Counter
	PaymentsFailed    *telemetry.Counter

	// Admission counters
	TokensIssued    *telemetry.Counter
	TokensActivated *telemetry.Counter
	TokensExpired   *telemetry.Counter
	SweepsSkipped   *telemetry.Counter

	// Lock and cache counters
	LockTimeouts *telemetry.Counter
	CacheLookups *telemetry.Counter

	// Error tracking counters
	ErrorsTotal       *telemetry.Counter
	SlowRequestsTotal *telemetry.Counter

	// Histograms
	LockWaitDuration *telemetry.Histogram
	SweepDuration    *telemetry.Histogram
	RequestDuration  *telemetry.Histogram

	// Gauges
	HeldSeats *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		opts telemetry.MetricOpts
	}{
		{&ReservationsCreated, telemetry.MetricOpts{Name: "booking_reservations_total", Description: "Total number of temporary reservations created", Unit: "1"}},
		{&ReservationsFailed, telemetry.MetricOpts{Name: "booking_reservation_failures_total", Description: "Total number of rejected reservation attempts", Unit: "1"}},
		{&HoldsReleased, telemetry.MetricOpts{Name: "booking_holds_released_total", Description: "Total number of lapsed seat holds reclaimed", Unit: "1"}},
		{&PaymentsSucceeded, telemetry.MetricOpts{Name: "booking_payments_total", Description: "Total number of confirmed payments", Unit: "1"}},
		{&PaymentsFailed, telemetry.MetricOpts{Name: "booking_payment_failures_total", Description: "Total number of failed payments", Unit: "1"}},
		{&TokensIssued, telemetry.MetricOpts{Name: "queue_tokens_issued_total", Description: "Total number of admission tokens issued", Unit: "1"}},
		{&TokensActivated, telemetry.MetricOpts{Name: "queue_tokens_activated_total", Description: "Total number of tokens promoted to active", Unit: "1"}},
		{&TokensExpired, telemetry.MetricOpts{Name: "queue_tokens_expired_total", Description: "Total number of active tokens whose lease lapsed", Unit: "1"}},
		{&SweepsSkipped, telemetry.MetricOpts{Name: "queue_sweeps_skipped_total", Description: "Sweeps skipped because another instance held the lock", Unit: "1"}},
		{&LockTimeouts, telemetry.MetricOpts{Name: "lock_timeouts_total", Description: "Total number of lock acquisitions that timed out", Unit: "1"}},
		{&CacheLookups, telemetry.MetricOpts{Name: "cache_lookups_total", Description: "Cache lookups by cache and outcome", Unit: "1"}},
		{&ErrorsTotal, telemetry.MetricOpts{Name: "booking_errors_total", Description: "Total number of errors by type", Unit: "1"}},
		{&SlowRequestsTotal, telemetry.MetricOpts{Name: "booking_slow_requests_total", Description: "Total number of requests slower than 1s", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	var err error
	LockWaitDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "lock_wait_duration_seconds",
		Description: "Time spent waiting for a named lock",
		Unit:        "s",
	}, latencyBuckets)
	if err != nil {
		return err
	}

	SweepDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "queue_sweep_duration_seconds",
		Description: "Duration of one admission sweep",
		Unit:        "s",
	}, latencyBuckets)
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_request_duration_seconds",
		Description: "Duration of booking operations",
		Unit:        "s",
	}, latencyBuckets)
	if err != nil {
		return err
	}

	HeldSeats, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_held_seats",
		Description: "Seats currently temporarily held",
		Unit:        "1",
	})
	return err
}

// RecordReservation records a new temporary reservation
func RecordReservation(ctx context.Context, scheduleID string) {
	if ReservationsCreated != nil {
		ReservationsCreated.Inc(ctx, attribute.String("schedule_id", scheduleID))
	}
	if HeldSeats != nil {
		HeldSeats.Inc(ctx)
	}
}

// RecordReservationFailure records a rejected reservation attempt
func RecordReservationFailure(ctx context.Context, reason string) {
	if ReservationsFailed != nil {
		ReservationsFailed.Inc(ctx, attribute.String("reason", reason))
	}
}

// RecordHoldsReleased records reclaimed holds
func RecordHoldsReleased(ctx context.Context, count int64) {
	if HoldsReleased != nil {
		HoldsReleased.Add(ctx, count)
	}
	if HeldSeats != nil {
		HeldSeats.Add(ctx, -count)
	}
}

// RecordPayment records a confirmed payment
func RecordPayment(ctx context.Context, scheduleID string, amount int64) {
	if PaymentsSucceeded != nil {
		PaymentsSucceeded.Inc(ctx,
			attribute.String("schedule_id", scheduleID),
			attribute.Int64("amount", amount),
		)
	}
	if HeldSeats != nil {
		HeldSeats.Dec(ctx)
	}
}

// RecordPaymentFailure records a failed payment
func RecordPaymentFailure(ctx context.Context, reason string) {
	if PaymentsFailed != nil {
		PaymentsFailed.Inc(ctx, attribute.String("reason", reason))
	}
}

// RecordTokenIssued records a newly issued admission token
func RecordTokenIssued(ctx context.Context) {
	if TokensIssued != nil {
		TokensIssued.Inc(ctx)
	}
}

// RecordSweep records the outcome of one admission sweep
func RecordSweep(ctx context.Context, expired, activated int, durationSeconds float64) {
	if TokensExpired != nil {
		TokensExpired.Add(ctx, int64(expired))
	}
	if TokensActivated != nil {
		TokensActivated.Add(ctx, int64(activated))
	}
	if SweepDuration != nil {
		SweepDuration.Record(ctx, durationSeconds)
	}
}

// RecordSweepSkipped records a sweep skipped for a busy lock
func RecordSweepSkipped(ctx context.Context) {
	if SweepsSkipped != nil {
		SweepsSkipped.Inc(ctx)
	}
}

// RecordLockWait records how long a lock acquisition took and whether it timed out
func RecordLockWait(ctx context.Context, operation string, durationSeconds float64, timedOut bool) {
	if LockWaitDuration != nil {
		LockWaitDuration.Record(ctx, durationSeconds, attribute.String("operation", operation))
	}
	if timedOut && LockTimeouts != nil {
		LockTimeouts.Inc(ctx, attribute.String("operation", operation))
	}
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if CacheLookups != nil {
		CacheLookups.Inc(ctx,
			attribute.String("cache", cache),
			attribute.Bool("hit", hit),
		)
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records operation duration and tracks slow requests
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
	// Track slow requests (>1s)
	if durationSeconds > 1.0 && SlowRequestsTotal != nil {
		SlowRequestsTotal.Inc(ctx,
			attribute.String("operation", operation),
		)
	}
}
