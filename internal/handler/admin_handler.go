package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultAdminListLimit = 100

// AdminHandler handles operator HTTP requests
type AdminHandler struct {
	catalogService     service.CatalogService
	reservationService service.ReservationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(catalogService service.CatalogService, reservationService service.ReservationService) *AdminHandler {
	return &AdminHandler{
		catalogService:     catalogService,
		reservationService: reservationService,
	}
}

// CreateSchedule handles POST /admin/schedules
// Provisions a schedule and its numbered seats
func (h *AdminHandler) CreateSchedule(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.create_schedule")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		invalidRequest(c, err)
		return
	}

	result, err := h.catalogService.CreateSchedule(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("schedule_id", result.ScheduleID),
		attribute.Int("total_seats", result.TotalSeats),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// ListExpiredReservations handles GET /admin/reservations/expired?limit=N
func (h *AdminHandler) ListExpiredReservations(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.expired_reservations")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	limit, ok := parseLimit(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid limit")
		return
	}

	list, err := h.reservationService.FindExpiredTemporaryReservations(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(list)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.NewReservationListResponse(list))
}

// ReleaseExpiredHolds handles POST /admin/holds/release?limit=N
// Runs one hold reclaim pass on demand
func (h *AdminHandler) ReleaseExpiredHolds(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.release_holds")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	limit, ok := parseLimit(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid limit")
		return
	}

	released, err := h.reservationService.ReleaseExpiredHolds(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("released", released))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.ReleaseHoldsResponse{Released: released})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultAdminListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: "limit must be a positive integer",
		})
		return 0, false
	}
	return limit, true
}
