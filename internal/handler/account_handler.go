package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type accountService interface {
	Summary(ctx context.Context, accountID string) (*models.AccountSummary, error)
}

// AccountHandler serves account read views.
type AccountHandler struct {
	service accountService
}

// NewAccountHandler constructs an account handler.
func NewAccountHandler(service accountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Summary godoc
// @Summary Account balance summary
// @Tags Accounts
// @Produce json
// @Param accountId path string true "Student account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{accountId}/summary [get]
func (h *AccountHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
