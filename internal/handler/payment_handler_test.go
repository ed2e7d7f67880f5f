package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvodaya-edu/fees-api/internal/middleware"
	"github.com/sarvodaya-edu/fees-api/internal/models"
	"github.com/sarvodaya-edu/fees-api/internal/service"
)

type stubPaymentRepo struct {
	payments []models.Payment
}

func (s *stubPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	return s.payments, len(s.payments), nil
}

func (s *stubPaymentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	return s.payments, nil
}

func (s *stubPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	for i := range s.payments {
		if s.payments[i].ID == id {
			p := s.payments[i]
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "handler-test-id"
	payment.PaymentDate = time.Now().UTC()
	s.payments = append(s.payments, *payment)
	return nil
}

func (s *stubPaymentRepo) Update(ctx context.Context, payment *models.Payment) error { return nil }
func (s *stubPaymentRepo) Delete(ctx context.Context, id string) error               { return nil }

type stubStudentFinder struct {
	student *models.Student
}

func (s *stubStudentFinder) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s.student == nil {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

type stubBalances struct {
	balance models.FeeBalance
}

func (s *stubBalances) BalanceFor(ctx context.Context, studentID string) (*models.FeeBalance, error) {
	b := s.balance
	b.StudentID = studentID
	return &b, nil
}

func adminContext(t *testing.T, rec *httptest.ResponseRecorder) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "admin", Role: models.RoleAdmin})
	return c
}

func newTestPaymentHandler(repo *stubPaymentRepo, student *models.Student, balance models.FeeBalance) *PaymentHandler {
	students := &stubStudentFinder{student: student}
	balances := &stubBalances{balance: balance}
	paymentSvc := service.NewPaymentService(repo, students, balances, nil, nil, nil, nil, nil)
	receiptSvc := service.NewReceiptService(repo, balances, service.SchoolInfo{Name: "Sarvodaya School"}, nil)
	return NewPaymentHandler(paymentSvc, receiptSvc)
}

func TestPaymentHandlerCreate(t *testing.T) {
	repo := &stubPaymentRepo{}
	student := &models.Student{ID: "s1", Name: "Asha", AdmissionNo: "A-100", Class: "7", Division: "B"}
	handler := newTestPaymentHandler(repo, student, models.FeeBalance{DevelopmentBalance: 600})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	body := `{"student_id":"s1","development_fee":800}`
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(600), envelope.Data.DevelopmentFee)
	assert.Equal(t, "Asha", envelope.Data.StudentName)
}

func TestPaymentHandlerCreateInvalidJSON(t *testing.T) {
	handler := newTestPaymentHandler(&stubPaymentRepo{}, nil, models.FeeBalance{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandlerCreateZeroAmount(t *testing.T) {
	student := &models.Student{ID: "s1", Name: "Asha", Class: "7", Division: "B"}
	handler := newTestPaymentHandler(&stubPaymentRepo{}, student, models.FeeBalance{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	body := `{"student_id":"s1","development_fee":500}`
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ZERO_AMOUNT")
}

func TestPaymentHandlerGetNotFound(t *testing.T) {
	handler := newTestPaymentHandler(&stubPaymentRepo{}, nil, models.FeeBalance{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/payments/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentHandlerReceipt(t *testing.T) {
	repo := &stubPaymentRepo{payments: []models.Payment{{
		ID: "payment-abc123", StudentID: "s1", StudentName: "Asha", AdmissionNo: "A-100",
		Class: "7", Division: "B", DevelopmentFee: 400, TotalAmount: 400,
		PaymentDate: time.Now(),
	}}}
	student := &models.Student{ID: "s1", Name: "Asha", Class: "7", Division: "B"}
	handler := newTestPaymentHandler(repo, student, models.FeeBalance{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/payments/payment-abc123/receipt?format=a6", nil)
	c.Params = gin.Params{{Key: "id", Value: "payment-abc123"}}

	handler.Receipt(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String()[:4])
}

func TestPaymentHandlerList(t *testing.T) {
	repo := &stubPaymentRepo{payments: []models.Payment{{ID: "p1", TotalAmount: 900}}}
	handler := newTestPaymentHandler(repo, nil, models.FeeBalance{})

	rec := httptest.NewRecorder()
	c := adminContext(t, rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/payments?date=2026-06-15", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_count":1`)
}
