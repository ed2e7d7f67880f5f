package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/service"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/response"
)

// PaymentHandler wires the payment ledger endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	receipts *service.ReceiptService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(payments *service.PaymentService, receipts *service.ReceiptService) *PaymentHandler {
	return &PaymentHandler{payments: payments, receipts: receipts}
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	return models.PaymentFilter{
		StudentID: c.Query("student_id"),
		Date:      queryDate(c, "date"),
		From:      queryDate(c, "from"),
		To:        queryDate(c, "to"),
		Class:     c.Query("class"),
		Division:  c.Query("division"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 50),
	}
}

// List godoc
// @Summary List payments
// @Description List ledger entries with filtering and pagination
// @Tags Payments
// @Produce json
// @Param student_id query string false "Student filter"
// @Param date query string false "Single day (YYYY-MM-DD)"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param class query string false "Class filter"
// @Param division query string false "Division filter"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, pagination, err := h.payments.List(c.Request.Context(), actorFromContext(c), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Record payment
// @Description Validate, clamp and append a payment to the ledger
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, payment)
}

// Update godoc
// @Summary Correct payment
// @Description Admin correction of a recorded payment's fee amounts
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.UpdatePaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	var req service.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.payments.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export payments as CSV
// @Tags Payments
// @Produce text/csv
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	payload, err := h.payments.ExportCSV(c.Request.Context(), actorFromContext(c), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.File(c, "text/csv", "payments.csv", payload)
}

// Receipt godoc
// @Summary Print receipt
// @Description Render the receipt PDF for one payment
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Param format query string false "Receipt layout" Enums(2x3-thermal, 3x5, a6, a4-9up)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	format := c.DefaultQuery("format", "a6")

	pdf, err := h.receipts.Render(c.Request.Context(), actorFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.File(c, "application/pdf", "receipt-"+c.Param("id")+".pdf", pdf)
}
