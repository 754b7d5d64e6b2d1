package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type termService interface {
	GenerateTerms(ctx context.Context, req dto.GenerateTermsRequest) (*dto.GenerateTermsResult, error)
	ListTerms(ctx context.Context, accountID string) ([]models.InstallmentTermView, error)
}

// TermHandler exposes installment term endpoints.
type TermHandler struct {
	service termService
}

// NewTermHandler constructs a new term handler.
func NewTermHandler(service termService) *TermHandler {
	return &TermHandler{service: service}
}

// Generate godoc
// @Summary Generate or restructure installment terms
// @Description Splits the assessment total into five installment terms. Existing terms are replaced and money already paid is reapplied.
// @Tags Terms
// @Accept json
// @Produce json
// @Param accountId path string true "Student account ID"
// @Param payload body dto.GenerateTermsRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /accounts/{accountId}/terms [post]
func (h *TermHandler) Generate(c *gin.Context) {
	var req dto.GenerateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid term generation payload"))
		return
	}
	req.AccountID = c.Param("accountId")

	result, err := h.service.GenerateTerms(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List installment terms of an account
// @Tags Terms
// @Produce json
// @Param accountId path string true "Student account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{accountId}/terms [get]
func (h *TermHandler) List(c *gin.Context) {
	terms, err := h.service.ListTerms(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil, map[string]interface{}{"count": len(terms)})
}
