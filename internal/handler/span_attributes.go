package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// routeParamAttributes names the path param of each parameterized route
var routeParamAttributes = map[string]struct{ param, key string }{
	"/api/v1/schedules/:id/seats":    {"id", "schedule_id"},
	"/api/v1/schedules/:id/layout":   {"id", "schedule_id"},
	"/api/v1/reservations/:id":       {"id", "reservation_id"},
	"/api/v1/queue/status/:token_id": {"token_id", "queue_token_id"},
}

// SpanAttributes tags the request span with the booking identifiers of the
// matched route. It runs after the handler, so the user set by auth is known.
func SpanAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if userID := c.GetString("user_id"); userID != "" {
		attrs = append(attrs, attribute.String("enduser.id", userID))
	}
	if p, ok := routeParamAttributes[c.FullPath()]; ok {
		if v := c.Param(p.param); v != "" {
			attrs = append(attrs, attribute.String(p.key, v))
		}
	}
	if c.GetHeader(QueueTokenHeader) != "" {
		attrs = append(attrs, attribute.Bool("queue_token_header", true))
	}
	if c.Writer.Status() == http.StatusLocked {
		attrs = append(attrs, attribute.Bool("lock_timeout", true))
	}
	return attrs
}
