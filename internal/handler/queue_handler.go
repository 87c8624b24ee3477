package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// QueueHandler handles admission queue HTTP requests
type QueueHandler struct {
	queueService service.QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService service.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
	}
}

// IssueToken handles POST /queue/token
// Returns the caller's live token or a new waiting one
func (h *QueueHandler) IssueToken(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.issue_token")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		unauthorized(c)
		return
	}

	span.SetAttributes(attribute.String("user_id", userID))

	token, err := h.queueService.IssueToken(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("token_id", token.ID),
		attribute.String("status", string(token.Status)),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, dto.NewTokenResponse(token, h.queueService.WaitPerSlot()))
}

// GetStatus handles GET /queue/status/:token_id
func (h *QueueHandler) GetStatus(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.status")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		unauthorized(c)
		return
	}

	tokenID := c.Param("token_id")
	span.SetAttributes(attribute.String("token_id", tokenID))

	token, err := h.queueService.GetStatus(ctx, tokenID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	// another user's token reads as missing
	if token.UserID != userID {
		span.SetStatus(codes.Error, "token not owned")
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: "admission token not found",
			Code:  "NOT_FOUND",
		})
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.NewTokenResponse(token, h.queueService.WaitPerSlot()))
}

// GetStatistics handles GET /queue/statistics
func (h *QueueHandler) GetStatistics(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.statistics")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	stats, err := h.queueService.GetStatistics(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.QueueStatisticsResponse{
		WaitingCount:   stats.WaitingCount,
		ActiveCount:    stats.ActiveCount,
		MaxActiveCount: stats.MaxActiveCount,
	})
}
