package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/service"
	"github.com/sarvodaya-edu/fees-api/pkg/response"
)

// ReceiptHandler wires the bulk receipt printing endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler creates a new handler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// Layouts godoc
// @Summary List receipt layouts
// @Tags Receipts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /receipts/layouts [get]
func (h *ReceiptHandler) Layouts(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.receipts.Layouts(), nil)
}

// Bulk godoc
// @Summary Bulk print receipts
// @Description Render one PDF with a receipt for every matching payment
// @Tags Receipts
// @Produce application/pdf
// @Param date query string false "Single day (YYYY-MM-DD)"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param class query string false "Class filter"
// @Param division query string false "Division filter"
// @Param format query string false "Receipt layout" Enums(2x3-thermal, 3x5, a6, a4-9up)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /receipts/bulk [get]
func (h *ReceiptHandler) Bulk(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentID: c.Query("student_id"),
		Date:      queryDate(c, "date"),
		From:      queryDate(c, "from"),
		To:        queryDate(c, "to"),
		Class:     c.Query("class"),
		Division:  c.Query("division"),
	}
	format := c.DefaultQuery("format", "a4-9up")

	pdf, err := h.receipts.RenderBulk(c.Request.Context(), actorFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "receipts-" + time.Now().Format("2006-01-02") + ".pdf"
	response.File(c, "application/pdf", filename, pdf)
}
