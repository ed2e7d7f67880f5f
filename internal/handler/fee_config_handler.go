package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sarvodaya-edu/fees-api/internal/service"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/response"
)

// FeeConfigHandler wires the fee schedule administration endpoints.
type FeeConfigHandler struct {
	fees *service.FeeService
}

// NewFeeConfigHandler creates a new handler.
func NewFeeConfigHandler(fees *service.FeeService) *FeeConfigHandler {
	return &FeeConfigHandler{fees: fees}
}

// Get godoc
// @Summary Get fee schedule
// @Description Current development fee and bus stop schedule
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeConfigHandler) Get(c *gin.Context) {
	schedule, err := h.fees.Schedule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// UpdateDevelopmentFees godoc
// @Summary Update development fees
// @Description Upsert development fee amounts keyed by class or class-division
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body map[string]int64 true "Key to amount"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/development [put]
func (h *FeeConfigHandler) UpdateDevelopmentFees(c *gin.Context) {
	var payload map[string]int64
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee payload"))
		return
	}

	actor := actorFromContext(c)
	if err := h.fees.UpdateDevelopmentFees(c.Request.Context(), payload, actor.Username); err != nil {
		response.Error(c, err)
		return
	}

	schedule, err := h.fees.Schedule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// UpdateBusStops godoc
// @Summary Update bus stops
// @Description Upsert bus fee amounts keyed by stop name
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body map[string]int64 true "Stop to amount"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/bus-stops [put]
func (h *FeeConfigHandler) UpdateBusStops(c *gin.Context) {
	var payload map[string]int64
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee payload"))
		return
	}

	actor := actorFromContext(c)
	if err := h.fees.UpdateBusStops(c.Request.Context(), payload, actor.Username); err != nil {
		response.Error(c, err)
		return
	}

	schedule, err := h.fees.Schedule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// DeleteBusStop godoc
// @Summary Remove bus stop
// @Tags Fees
// @Param stop path string true "Stop name"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/bus-stops/{stop} [delete]
func (h *FeeConfigHandler) DeleteBusStop(c *gin.Context) {
	if err := h.fees.RemoveBusStop(c.Request.Context(), c.Param("stop")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ImportBusStops godoc
// @Summary Import bus stops from CSV
// @Tags Fees
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/bus-stops/import [post]
func (h *FeeConfigHandler) ImportBusStops(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "csv file required"))
		return
	}
	defer file.Close()

	actor := actorFromContext(c)
	count, err := h.fees.ImportBusStopsCSV(c.Request.Context(), file, actor.Username)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"imported": count}, nil)
}

// ExportBusStops godoc
// @Summary Export bus stops as CSV
// @Tags Fees
// @Produce text/csv
// @Success 200 {file} file
// @Router /fees/bus-stops/export [get]
func (h *FeeConfigHandler) ExportBusStops(c *gin.Context) {
	payload, err := h.fees.ExportBusStopsCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.File(c, "text/csv", "bus-stops.csv", payload)
}
