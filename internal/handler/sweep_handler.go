package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type sweepService interface {
	Run(ctx context.Context, now time.Time) (*dto.SweepOverdueResult, error)
}

// SweepHandler exposes the on-demand overdue sweep.
type SweepHandler struct {
	service sweepService
}

// NewSweepHandler constructs a sweep handler.
func NewSweepHandler(service sweepService) *SweepHandler {
	return &SweepHandler{service: service}
}

// Trigger godoc
// @Summary Run the overdue sweep now
// @Description Flips pending and partial terms due before today to overdue. Only SYSTEM tokens may override the sweep clock.
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.SweepOverdueRequest false "Optional clock override"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /billing/overdue-sweep [post]
func (h *SweepHandler) Trigger(c *gin.Context) {
	var req dto.SweepOverdueRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sweep payload"))
			return
		}
	}

	var now time.Time
	if req.Now != nil {
		claims := claimsFromContext(c)
		if claims == nil || claims.Role != models.RoleSystem {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only SYSTEM tokens may override the sweep clock"))
			return
		}
		now = *req.Now
	}

	result, err := h.service.Run(c.Request.Context(), now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
