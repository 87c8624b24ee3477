package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CatalogHandler serves schedule and seat reads to admitted users
type CatalogHandler struct {
	catalogService service.CatalogService
	queueService   service.QueueService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService service.CatalogService, queueService service.QueueService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		queueService:   queueService,
	}
}

// RequireActiveToken rejects requests whose Queue-Token header is not an
// active token of the caller
func (h *CatalogHandler) RequireActiveToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			unauthorized(c)
			c.Abort()
			return
		}

		tokenID := c.GetHeader(QueueTokenHeader)
		if tokenID == "" {
			handleError(c, domain.ErrInvalidToken)
			c.Abort()
			return
		}

		if _, err := h.queueService.ValidateActiveToken(c.Request.Context(), tokenID, userID); err != nil {
			handleError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSchedules handles GET /schedules
func (h *CatalogHandler) GetSchedules(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.catalog.schedules")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	schedules, err := h.catalogService.GetAvailableSchedules(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}
	if schedules == nil {
		schedules = []*domain.AvailableSchedule{}
	}

	span.SetAttributes(attribute.Int("count", len(schedules)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, schedules)
}

// GetAvailableSeats handles GET /schedules/:id/seats
func (h *CatalogHandler) GetAvailableSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.catalog.available_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	scheduleID := c.Param("id")
	span.SetAttributes(attribute.String("schedule_id", scheduleID))

	seats, err := h.catalogService.GetAvailableSeats(ctx, scheduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, seats)
}

// GetSeatLayout handles GET /schedules/:id/layout
func (h *CatalogHandler) GetSeatLayout(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.catalog.layout")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	scheduleID := c.Param("id")
	span.SetAttributes(attribute.String("schedule_id", scheduleID))

	layout, err := h.catalogService.GetSeatLayout(ctx, scheduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, layout)
}
