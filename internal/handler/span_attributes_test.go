package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpanAttributes(t *testing.T) {
	tests := []struct {
		name   string
		route  string
		path   string
		user   string
		header string
		status int
		want   []attribute.KeyValue
	}{
		{
			name:  "schedule seats",
			route: "/api/v1/schedules/:id/seats",
			path:  "/api/v1/schedules/sch-1/seats",
			user:  "user-1",
			want: []attribute.KeyValue{
				attribute.String("enduser.id", "user-1"),
				attribute.String("schedule_id", "sch-1"),
			},
		},
		{
			name:   "reservation lookup with queue header",
			route:  "/api/v1/reservations/:id",
			path:   "/api/v1/reservations/res-9",
			header: "tok-1",
			want: []attribute.KeyValue{
				attribute.String("reservation_id", "res-9"),
				attribute.Bool("queue_token_header", true),
			},
		},
		{
			name:  "queue status",
			route: "/api/v1/queue/status/:token_id",
			path:  "/api/v1/queue/status/tok-2",
			want:  []attribute.KeyValue{attribute.String("queue_token_id", "tok-2")},
		},
		{
			name:   "lock timeout on payment",
			route:  "/api/v1/payments",
			path:   "/api/v1/payments",
			user:   "user-2",
			status: http.StatusLocked,
			want: []attribute.KeyValue{
				attribute.String("enduser.id", "user-2"),
				attribute.Bool("lock_timeout", true),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []attribute.KeyValue
			router := setupTestRouter()
			router.Handle(http.MethodGet, tt.route, func(c *gin.Context) {
				if tt.user != "" {
					c.Set("user_id", tt.user)
				}
				status := tt.status
				if status == 0 {
					status = http.StatusOK
				}
				c.Status(status)
				got = SpanAttributes(c)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(QueueTokenHeader, tt.header)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)

			assert.ElementsMatch(t, tt.want, got)
		})
	}
}
