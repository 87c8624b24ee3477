package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BalanceHandler handles user balance HTTP requests
type BalanceHandler struct {
	balanceService service.BalanceService
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(balanceService service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
	}
}

// GetBalance handles GET /balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.balance.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		unauthorized(c)
		return
	}

	balance, err := h.balanceService.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, toBalanceResponse(balance))
}

// Charge handles POST /balance/charge
func (h *BalanceHandler) Charge(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.balance.charge")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		unauthorized(c)
		return
	}

	var req dto.ChargeBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		invalidRequest(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int64("amount", req.Amount),
	)

	balance, err := h.balanceService.Charge(ctx, userID, req.Amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, toBalanceResponse(balance))
}

func toBalanceResponse(b *domain.UserBalance) dto.BalanceResponse {
	return dto.BalanceResponse{
		UserID:    b.UserID,
		Balance:   b.Balance,
		UpdatedAt: b.UpdatedAt,
	}
}
