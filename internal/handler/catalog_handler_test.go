package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupCatalogRouter(catalog *MockCatalogService, queue *MockQueueService) http.Handler {
	h := NewCatalogHandler(catalog, queue)
	router := setupTestRouter()
	schedules := router.Group("/schedules", h.RequireActiveToken())
	schedules.GET("", h.GetSchedules)
	schedules.GET("/:id/seats", h.GetAvailableSeats)
	schedules.GET("/:id/layout", h.GetSeatLayout)
	return router
}

func TestCatalogHandler_RequiresActiveToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		setupMock  func(*MockQueueService)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusForbidden,
			wantCode:   "INVALID_QUEUE_TOKEN",
		},
		{
			name:  "waiting token",
			token: "tok-1",
			setupMock: func(m *MockQueueService) {
				m.On("ValidateActiveToken", mock.Anything, "tok-1", "user-1").Return(nil, domain.ErrTokenNotActive)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "QUEUE_TOKEN_NOT_ACTIVE",
		},
		{
			name:  "someone else's token",
			token: "tok-2",
			setupMock: func(m *MockQueueService) {
				m.On("ValidateActiveToken", mock.Anything, "tok-2", "user-1").Return(nil, domain.ErrInvalidToken)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "INVALID_QUEUE_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalogService)
			queue := new(MockQueueService)
			if tt.setupMock != nil {
				tt.setupMock(queue)
			}
			router := setupCatalogRouter(catalog, queue)

			req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
			req.Header.Set("X-User-ID", "user-1")
			if tt.token != "" {
				req.Header.Set(QueueTokenHeader, tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			catalog.AssertNotCalled(t, "GetAvailableSchedules", mock.Anything)
		})
	}
}

func TestCatalogHandler_GetSchedules(t *testing.T) {
	catalog := new(MockCatalogService)
	queue := new(MockQueueService)
	router := setupCatalogRouter(catalog, queue)

	queue.On("ValidateActiveToken", mock.Anything, "tok-1", "user-1").Return(&domain.AdmissionToken{ID: "tok-1"}, nil)
	catalog.On("GetAvailableSchedules", mock.Anything).Return([]*domain.AvailableSchedule(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set(QueueTokenHeader, "tok-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCatalogHandler_GetAvailableSeats(t *testing.T) {
	t.Run("lists seats", func(t *testing.T) {
		catalog := new(MockCatalogService)
		queue := new(MockQueueService)
		router := setupCatalogRouter(catalog, queue)

		queue.On("ValidateActiveToken", mock.Anything, "tok-1", "user-1").Return(&domain.AdmissionToken{ID: "tok-1"}, nil)
		catalog.On("GetAvailableSeats", mock.Anything, "sch-1").Return([]dto.AvailableSeatResponse{
			{SeatID: "s1", SeatNumber: "1", SeatGrade: "STANDARD", Price: 50000},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/schedules/sch-1/seats", nil)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set(QueueTokenHeader, "tok-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []dto.AvailableSeatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "s1", resp[0].SeatID)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		catalog := new(MockCatalogService)
		queue := new(MockQueueService)
		router := setupCatalogRouter(catalog, queue)

		queue.On("ValidateActiveToken", mock.Anything, "tok-1", "user-1").Return(&domain.AdmissionToken{ID: "tok-1"}, nil)
		catalog.On("GetAvailableSeats", mock.Anything, "missing").Return(nil, domain.ErrScheduleNotFound)

		req := httptest.NewRequest(http.MethodGet, "/schedules/missing/seats", nil)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set(QueueTokenHeader, "tok-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
