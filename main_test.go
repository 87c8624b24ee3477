package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/di"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func (a *apiClient) do(method, path, userID, queueToken string, body interface{}, out interface{}) int {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if queueToken != "" {
		req.Header.Set("Queue-Token", queueToken)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func newTestApp(t *testing.T, capacity int) (*apiClient, *di.Container, *clockwork.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:     config.AppConfig{Name: "concert-booking", Environment: "development"},
		Server:  config.ServerConfig{Port: 8080},
		Store:   config.StoreConfig{Driver: "memory"},
		JWT:     config.JWTConfig{Secret: "test-secret"},
		Queue:   config.QueueConfig{MaxActive: capacity, ActiveLease: 10 * time.Minute, WaitPerSlot: 6 * time.Second},
		Booking: config.BookingConfig{HoldDuration: 5 * time.Minute, LockWaitTimeout: time.Second, LockLeaseTime: 10 * time.Second},
		Payment: config.PaymentConfig{Gateway: "mock", MockSuccessRate: 1.0, Currency: "krw"},
	}

	clock := clockwork.NewFakeClockAt(t0)
	container, err := di.NewContainer(context.Background(), &di.ContainerConfig{
		Config: cfg,
		Logger: logger.Nop(),
		Clock:  clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	return &apiClient{t: t, router: setupRouter(cfg, container, logger.Nop())}, container, clock
}

func TestBookingFlow(t *testing.T) {
	api, container, _ := newTestApp(t, 1)
	ctx := context.Background()

	var schedule dto.CreateScheduleResponse
	code := api.do(http.MethodPost, "/api/v1/admin/schedules", "operator", "", dto.CreateScheduleRequest{
		Title:             "Spring Live",
		Artist:            "Band",
		Venue:             "Hall",
		ConcertDate:       t0.Add(30 * 24 * time.Hour),
		ReservationOpenAt: t0.Add(-time.Hour),
		TotalSeats:        10,
		Price:             50000,
	}, &schedule)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, 10, schedule.TotalSeats)

	// two users queue for one slot
	var tok1, tok2 dto.TokenResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/queue/token", "user-1", "", nil, &tok1))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/queue/token", "user-2", "", nil, &tok2))
	assert.Equal(t, "WAITING", tok1.Status)
	assert.Equal(t, int64(2), tok2.Position)

	// waiting users cannot browse
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/schedules", "user-1", tok1.TokenID, nil, nil))

	result, err := container.QueueService.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Activated)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/queue/status/"+tok1.TokenID, "user-1", "", nil, &tok1))
	assert.Equal(t, "ACTIVE", tok1.Status)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/queue/status/"+tok2.TokenID, "user-2", "", nil, &tok2))
	assert.Equal(t, "WAITING", tok2.Status)
	assert.Equal(t, int64(1), tok2.Position)

	var stats dto.QueueStatisticsResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/queue/statistics", "user-1", "", nil, &stats))
	assert.Equal(t, int64(1), stats.ActiveCount)
	assert.Equal(t, int64(1), stats.WaitingCount)

	var schedules []map[string]interface{}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/schedules", "user-1", tok1.TokenID, nil, &schedules))
	require.Len(t, schedules, 1)
	assert.Equal(t, schedule.ScheduleID, schedules[0]["schedule_id"])

	var seats []dto.AvailableSeatResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/schedules/"+schedule.ScheduleID+"/seats", "user-1", tok1.TokenID, nil, &seats))
	require.Len(t, seats, 10)
	seat := seats[0]

	var reserved dto.ReserveSeatResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/reservations", "user-1", tok1.TokenID,
		dto.ReserveSeatRequest{SeatID: seat.SeatID}, &reserved))
	assert.Equal(t, int64(50000), reserved.Price)
	assert.True(t, reserved.ExpiresAt.Equal(t0.Add(5*time.Minute)))

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/schedules/"+schedule.ScheduleID+"/seats", "user-1", tok1.TokenID, nil, &seats))
	assert.Len(t, seats, 9, "held seat is no longer listed")

	// no funds yet
	pay := dto.PaymentRequest{TokenID: tok1.TokenID, ReservationID: reserved.ReservationID}
	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodPost, "/api/v1/payments", "user-1", "", pay, nil))

	var balance dto.BalanceResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/balance/charge", "user-1", "", dto.ChargeBalanceRequest{Amount: 60000}, &balance))
	assert.Equal(t, int64(60000), balance.Balance)

	var paid dto.PaymentResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/payments", "user-1", "", pay, &paid))
	assert.Equal(t, int64(50000), paid.Amount)

	var reservation dto.ReservationResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/reservations/"+reserved.ReservationID, "user-1", "", nil, &reservation))
	assert.Equal(t, "CONFIRMED", reservation.Status)
	assert.Equal(t, paid.PaymentID, reservation.PaymentID)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/balance", "user-1", "", nil, &balance))
	assert.Equal(t, int64(10000), balance.Balance)

	// payment completes the token, so a second attempt is not admitted
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/v1/payments", "user-1", "", pay, nil))

	// the freed slot goes to the next user, who cannot take the sold seat
	_, err = container.QueueService.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/queue/status/"+tok2.TokenID, "user-2", "", nil, &tok2))
	require.Equal(t, "ACTIVE", tok2.Status)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/reservations", "user-2", tok2.TokenID,
		dto.ReserveSeatRequest{SeatID: seat.SeatID}, nil))
}

func TestExpiredHoldIsReleased(t *testing.T) {
	api, container, clock := newTestApp(t, 10)
	ctx := context.Background()

	var schedule dto.CreateScheduleResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/admin/schedules", "operator", "", dto.CreateScheduleRequest{
		Title:             "Night Show",
		ConcertDate:       t0.Add(48 * time.Hour),
		ReservationOpenAt: t0.Add(-time.Minute),
		TotalSeats:        2,
		Price:             1000,
	}, &schedule))

	var tok dto.TokenResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/queue/token", "user-1", "", nil, &tok))
	_, err := container.QueueService.Sweep(ctx)
	require.NoError(t, err)

	var seats []dto.AvailableSeatResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/schedules/"+schedule.ScheduleID+"/seats", "user-1", tok.TokenID, nil, &seats))
	require.NotEmpty(t, seats)

	var reserved dto.ReserveSeatResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/reservations", "user-1", tok.TokenID,
		dto.ReserveSeatRequest{SeatID: seats[0].SeatID}, &reserved))

	clock.Advance(6 * time.Minute)

	var expired []dto.ReservationResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/admin/reservations/expired", "operator", "", nil, &expired))
	require.Len(t, expired, 1)
	assert.Equal(t, reserved.ReservationID, expired[0].ReservationID)

	var released dto.ReleaseHoldsResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/admin/holds/release", "operator", "", nil, &released))
	assert.Equal(t, 1, released.Released)

	pay := dto.PaymentRequest{TokenID: tok.TokenID, ReservationID: reserved.ReservationID}
	assert.Equal(t, http.StatusGone, api.do(http.MethodPost, "/api/v1/payments", "user-1", "", pay, nil))
}

func TestAuthAndHealth(t *testing.T) {
	api, _, _ := newTestApp(t, 1)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/queue/token", "", "", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", "", nil, nil))

	var ready dto.HealthResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/ready", "", "", nil, &ready))
	assert.Equal(t, "not configured", ready.Checks["redis"])
}
