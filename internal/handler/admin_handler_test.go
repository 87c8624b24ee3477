package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAdminRouter(catalog *MockCatalogService, reservations *MockReservationService) http.Handler {
	h := NewAdminHandler(catalog, reservations)
	router := setupTestRouter()
	router.POST("/admin/schedules", h.CreateSchedule)
	router.GET("/admin/reservations/expired", h.ListExpiredReservations)
	router.POST("/admin/holds/release", h.ReleaseExpiredHolds)
	return router
}

func TestAdminHandler_CreateSchedule(t *testing.T) {
	t.Run("creates", func(t *testing.T) {
		catalog := new(MockCatalogService)
		router := setupAdminRouter(catalog, new(MockReservationService))

		catalog.On("CreateSchedule", mock.Anything, mock.MatchedBy(func(r *dto.CreateScheduleRequest) bool {
			return r.Title == "Spring Live" && r.TotalSeats == 50
		})).Return(&dto.CreateScheduleResponse{ConcertID: "c1", ScheduleID: "sch-1", TotalSeats: 50}, nil)

		body := dto.CreateScheduleRequest{
			Title:             "Spring Live",
			ConcertDate:       issuedAt.Add(30 * 24 * time.Hour),
			ReservationOpenAt: issuedAt,
			TotalSeats:        50,
			Price:             50000,
		}
		req := httptest.NewRequest(http.MethodPost, "/admin/schedules", jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp dto.CreateScheduleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sch-1", resp.ScheduleID)
	})

	t.Run("validation error from service", func(t *testing.T) {
		catalog := new(MockCatalogService)
		router := setupAdminRouter(catalog, new(MockReservationService))

		catalog.On("CreateSchedule", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidConcert)

		body := dto.CreateScheduleRequest{ConcertDate: issuedAt, ReservationOpenAt: issuedAt}
		req := httptest.NewRequest(http.MethodPost, "/admin/schedules", jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	})

	t.Run("missing dates", func(t *testing.T) {
		catalog := new(MockCatalogService)
		router := setupAdminRouter(catalog, new(MockReservationService))

		req := httptest.NewRequest(http.MethodPost, "/admin/schedules", jsonBody(t, map[string]string{"title": "x"}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		catalog.AssertNotCalled(t, "CreateSchedule", mock.Anything, mock.Anything)
	})
}

func TestAdminHandler_ListExpiredReservations(t *testing.T) {
	reservations := new(MockReservationService)
	router := setupAdminRouter(new(MockCatalogService), reservations)

	expiresAt := issuedAt.Add(time.Minute)
	reservations.On("FindExpiredTemporaryReservations", mock.Anything, 100).Return([]*domain.Reservation{
		{ID: "res-1", UserID: "user-1", Status: domain.ReservationStatusTemporary, ExpiresAt: &expiresAt},
	}, nil)
	reservations.On("FindExpiredTemporaryReservations", mock.Anything, 5).Return([]*domain.Reservation{}, nil)

	t.Run("default limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/reservations/expired", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []dto.ReservationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "res-1", resp[0].ReservationID)
	})

	t.Run("explicit limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/reservations/expired?limit=5", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/reservations/expired?limit=abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminHandler_ReleaseExpiredHolds(t *testing.T) {
	reservations := new(MockReservationService)
	router := setupAdminRouter(new(MockCatalogService), reservations)

	reservations.On("ReleaseExpiredHolds", mock.Anything, 100).Return(3, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/holds/release", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"released":3}`, w.Body.String())
}
