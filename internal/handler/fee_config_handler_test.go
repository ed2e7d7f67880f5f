package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/service"
)

type stubFeeScheduleRepo struct {
	entries map[string]int64
}

func (s *stubFeeScheduleRepo) Load(ctx context.Context) (*models.FeeSchedule, error) {
	schedule := &models.FeeSchedule{
		DevelopmentFees: map[string]int64{},
		BusStops:        map[string]int64{},
	}
	for key, amount := range s.entries {
		if strings.HasPrefix(key, "bus:") {
			schedule.BusStops[strings.TrimPrefix(key, "bus:")] = amount
		} else {
			schedule.DevelopmentFees[key] = amount
		}
	}
	return schedule, nil
}

func (s *stubFeeScheduleRepo) Upsert(ctx context.Context, entry models.FeeEntry) error {
	return s.UpsertMany(ctx, []models.FeeEntry{entry})
}

func (s *stubFeeScheduleRepo) UpsertMany(ctx context.Context, entries []models.FeeEntry) error {
	if s.entries == nil {
		s.entries = map[string]int64{}
	}
	for _, entry := range entries {
		key := entry.Key
		if entry.Category == models.FeeCategoryBus {
			key = "bus:" + key
		}
		s.entries[key] = entry.Amount
	}
	return nil
}

func (s *stubFeeScheduleRepo) Delete(ctx context.Context, category, key string) error {
	if category == models.FeeCategoryBus {
		key = "bus:" + key
	}
	delete(s.entries, key)
	return nil
}

func newTestFeeConfigHandler(repo *stubFeeScheduleRepo) *FeeConfigHandler {
	fees := service.NewFeeService(repo, nil, nil, nil, nil)
	return NewFeeConfigHandler(fees)
}

func TestFeeConfigHandlerGet(t *testing.T) {
	repo := &stubFeeScheduleRepo{entries: map[string]int64{"7": 1100, "bus:Main Gate": 800}}
	handler := newTestFeeConfigHandler(repo)

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/fees", nil)

	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"7":1100`)
	assert.Contains(t, rec.Body.String(), `"Main Gate":800`)
}

func TestFeeConfigHandlerUpdateDevelopmentFees(t *testing.T) {
	repo := &stubFeeScheduleRepo{entries: map[string]int64{"7": 1100}}
	handler := newTestFeeConfigHandler(repo)

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/fees/development", strings.NewReader(`{"7":1250}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateDevelopmentFees(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1250), repo.entries["7"])
	assert.Contains(t, rec.Body.String(), `"7":1250`)
}

func TestFeeConfigHandlerUpdateRejectsNegative(t *testing.T) {
	handler := newTestFeeConfigHandler(&stubFeeScheduleRepo{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/fees/bus-stops", strings.NewReader(`{"Main Gate":-5}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateBusStops(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeeConfigHandlerDeleteBusStop(t *testing.T) {
	repo := &stubFeeScheduleRepo{entries: map[string]int64{"bus:Main Gate": 800}}
	handler := newTestFeeConfigHandler(repo)

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/fees/bus-stops/Main%20Gate", nil)
	c.Params = gin.Params{{Key: "stop", Value: "Main Gate"}}

	handler.DeleteBusStop(c)

	// gin defers the status header until a body write; flush it so the
	// recorder sees the 204.
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, repo.entries, "bus:Main Gate")
}
