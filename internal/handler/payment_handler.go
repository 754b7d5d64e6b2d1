package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type paymentService interface {
	AllocatePayment(ctx context.Context, req dto.AllocatePaymentRequest) (*dto.AllocationResult, error)
}

// PaymentHandler exposes payment allocation.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Allocate godoc
// @Summary Allocate a payment to installment terms
// @Description Without term_id the payment settles terms in due-date order; with term_id it goes to that term only. Unabsorbed money is returned as remainder_amount.
// @Tags Payments
// @Accept json
// @Produce json
// @Param accountId path string true "Student account ID"
// @Param payload body dto.AllocatePaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /accounts/{accountId}/payments [post]
func (h *PaymentHandler) Allocate(c *gin.Context) {
	var req dto.AllocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	req.AccountID = c.Param("accountId")

	result, err := h.service.AllocatePayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
