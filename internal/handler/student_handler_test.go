package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvodaya-edu/fees-api/internal/middleware"
	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/service"
)

type stubStudentRepo struct {
	students []models.Student
}

func (s *stubStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, student := range s.students {
		if filter.Class != "" && student.Class != filter.Class {
			continue
		}
		if filter.Division != "" && student.Division != filter.Division {
			continue
		}
		out = append(out, student)
	}
	return out, len(out), nil
}

func (s *stubStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range s.students {
		if s.students[i].ID == id {
			student := s.students[i]
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentRepo) ExistsByAdmissionNo(ctx context.Context, admissionNo string, excludeID string) (bool, error) {
	for _, student := range s.students {
		if student.AdmissionNo == admissionNo && student.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "new-student-id"
	s.students = append(s.students, *student)
	return nil
}

func (s *stubStudentRepo) Update(ctx context.Context, student *models.Student) error { return nil }
func (s *stubStudentRepo) Delete(ctx context.Context, id string) error               { return nil }

type stubLedger struct {
	payments []models.Payment
}

func (s *stubLedger) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	return s.payments, nil
}

func teacherContext(t *testing.T, rec *httptest.ResponseRecorder, class, division string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "t1", Username: "teacher7b", Role: models.RoleTeacher,
		Class: class, Division: division,
	})
	return c
}

func newTestStudentHandler(repo *stubStudentRepo, scheduleRepo *stubFeeScheduleRepo, ledger *stubLedger) *StudentHandler {
	students := service.NewStudentService(repo, nil, nil)
	fees := service.NewFeeService(scheduleRepo, repo, ledger, nil, nil)
	payments := service.NewPaymentService(&stubPaymentRepo{payments: ledger.payments}, repo, fees, nil, nil, nil, nil, nil)
	return NewStudentHandler(students, fees, payments)
}

func TestStudentHandlerCreate(t *testing.T) {
	repo := &stubStudentRepo{}
	handler := newTestStudentHandler(repo, &stubFeeScheduleRepo{}, &stubLedger{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	body := `{"name":"Asha","admission_no":"A-100","class":"7","division":"B","mobile":"9876500001"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"new-student-id"`)
}

func TestStudentHandlerCreateDuplicate(t *testing.T) {
	repo := &stubStudentRepo{students: []models.Student{{ID: "s1", AdmissionNo: "A-100"}}}
	handler := newTestStudentHandler(repo, &stubFeeScheduleRepo{}, &stubLedger{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	body := `{"name":"Asha","admission_no":"A-100","mobile":"9876500001","class":"7","division":"B"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStudentHandlerBalance(t *testing.T) {
	repo := &stubStudentRepo{students: []models.Student{{
		ID: "s1", Name: "Asha", Class: "7", Division: "B", BusStop: "Main Gate",
	}}}
	scheduleRepo := &stubFeeScheduleRepo{entries: map[string]int64{"7": 1100, "bus:Main Gate": 800}}
	ledger := &stubLedger{payments: []models.Payment{{StudentID: "s1", DevelopmentFee: 400, BusFee: 900}}}
	handler := newTestStudentHandler(repo, scheduleRepo, ledger)

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/s1/balance", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.Balance(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"development_balance":700`)
	assert.Contains(t, rec.Body.String(), `"bus_balance":0`)
	assert.Contains(t, rec.Body.String(), `"bus_overpaid":100`)
}

func TestStudentHandlerBalanceTeacherScope(t *testing.T) {
	repo := &stubStudentRepo{students: []models.Student{{ID: "s1", Class: "9", Division: "A"}}}
	handler := newTestStudentHandler(repo, &stubFeeScheduleRepo{}, &stubLedger{})

	rec := httptest.NewRecorder()
	c := teacherContext(t, rec, "7", "B")
	c.Request = httptest.NewRequest(http.MethodGet, "/students/s1/balance", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.Balance(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStudentHandlerListScopedForTeacher(t *testing.T) {
	repo := &stubStudentRepo{students: []models.Student{
		{ID: "s1", Name: "Asha", Class: "7", Division: "B"},
		{ID: "s2", Name: "Ravi", Class: "9", Division: "A"},
	}}
	handler := newTestStudentHandler(repo, &stubFeeScheduleRepo{}, &stubLedger{})

	rec := httptest.NewRecorder()
	c := teacherContext(t, rec, "7", "B")
	c.Request = httptest.NewRequest(http.MethodGet, "/students", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Asha")
	assert.NotContains(t, rec.Body.String(), "Ravi")
}
