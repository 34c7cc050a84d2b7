package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/service"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/response"
)

// PaymentHandler records payments and lists a student's ledger.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Record godoc
// @Summary Record a payment stage for a student
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	entry, err := h.payments.Record(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Ledger godoc
// @Summary List a student's ledger entries
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Param stage query string false "Filter by stage"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/payments [get]
func (h *PaymentHandler) Ledger(c *gin.Context) {
	filter := models.LedgerFilter{Stage: c.Query("stage")}
	entries, err := h.payments.Ledger(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
