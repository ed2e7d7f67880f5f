package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
}

type balanceProvider interface {
	BalanceFor(ctx context.Context, studentID string) (*models.FeeBalance, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PaymentNotifier receives committed payments for asynchronous parent
// notification. Implementations must not block.
type PaymentNotifier interface {
	PaymentRecorded(student models.Student, payment models.Payment)
}

// CreatePaymentRequest holds payload for recording a payment. Entered
// development and bus amounts are clamped to the student's outstanding
// balance before the entry is written.
type CreatePaymentRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	DevelopmentFee int64  `json:"development_fee" validate:"gte=0"`
	BusFee         int64  `json:"bus_fee" validate:"gte=0"`
	SpecialFee     int64  `json:"special_fee" validate:"gte=0"`
	SpecialFeeType string `json:"special_fee_type"`
}

// UpdatePaymentRequest holds payload for correcting a recorded payment.
type UpdatePaymentRequest struct {
	DevelopmentFee int64  `json:"development_fee" validate:"gte=0"`
	BusFee         int64  `json:"bus_fee" validate:"gte=0"`
	SpecialFee     int64  `json:"special_fee" validate:"gte=0"`
	SpecialFeeType string `json:"special_fee_type"`
}

// PaymentService owns the append-only payment ledger.
type PaymentService struct {
	repo      paymentRepository
	students  balanceStudentRepository
	balances  balanceProvider
	audit     auditWriter
	notifier  PaymentNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students balanceStudentRepository, balances balanceProvider, audit auditWriter, notifier PaymentNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, students: students, balances: balances, audit: audit, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// scopeAllows reports whether the actor may touch records for the given
// class and division. Admins see everything; teachers only their own class.
func scopeAllows(actor models.UserInfo, class, division string) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Class == class && actor.Division == division
}

// applyScope narrows a payment filter to the actor's class for teachers.
func applyScope(actor models.UserInfo, filter models.PaymentFilter) models.PaymentFilter {
	if actor.Role == models.RoleAdmin {
		return filter
	}
	filter.Class = actor.Class
	filter.Division = actor.Division
	return filter
}

// Create validates, clamps and records a payment, then hands it to the
// notifier. The ledger write is the transaction boundary: notification
// failures never roll a payment back.
func (s *PaymentService) Create(ctx context.Context, actor models.UserInfo, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.SpecialFee > 0 && req.SpecialFeeType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "special fee requires a description")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scopeAllows(actor, student.Class, student.Division) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment outside assigned class")
	}

	balance, err := s.balances.BalanceFor(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	developmentFee := clamp(req.DevelopmentFee, balance.DevelopmentBalance)
	busFee := clamp(req.BusFee, balance.BusBalance)
	total := developmentFee + busFee + req.SpecialFee
	if total == 0 {
		return nil, appErrors.Clone(appErrors.ErrZeroAmount, "")
	}

	payment := &models.Payment{
		StudentID:      student.ID,
		StudentName:    student.Name,
		AdmissionNo:    student.AdmissionNo,
		Class:          student.Class,
		Division:       student.Division,
		DevelopmentFee: developmentFee,
		BusFee:         busFee,
		SpecialFee:     req.SpecialFee,
		SpecialFeeType: req.SpecialFeeType,
		TotalAmount:    total,
		AddedBy:        actor.Username,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.metrics.RecordPayment(payment.TotalAmount)
	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", student.ID),
		zap.Int64("total", payment.TotalAmount),
		zap.String("added_by", actor.Username))

	if s.notifier != nil {
		s.notifier.PaymentRecorded(*student, *payment)
	}

	return payment, nil
}

func clamp(entered, remaining int64) int64 {
	if entered > remaining {
		return remaining
	}
	return entered
}

// List returns ledger entries matching the filter, scoped to the actor.
func (s *PaymentService) List(ctx context.Context, actor models.UserInfo, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	filter = applyScope(actor, filter)

	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}

	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// HistoryFor returns the full ledger for one student, oldest first.
func (s *PaymentService) HistoryFor(ctx context.Context, actor models.UserInfo, studentID string) ([]models.Payment, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scopeAllows(actor, student.Class, student.Division) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student outside assigned class")
	}

	payments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	return payments, nil
}

// Get returns one ledger entry.
func (s *PaymentService) Get(ctx context.Context, actor models.UserInfo, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if !scopeAllows(actor, payment.Class, payment.Division) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment outside assigned class")
	}
	return payment, nil
}

// Update corrects the fee amounts of an existing entry. Admin only.
func (s *PaymentService) Update(ctx context.Context, actor models.UserInfo, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may correct payments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.SpecialFee > 0 && req.SpecialFeeType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "special fee requires a description")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	oldValues, _ := json.Marshal(payment)

	payment.DevelopmentFee = req.DevelopmentFee
	payment.BusFee = req.BusFee
	payment.SpecialFee = req.SpecialFee
	payment.SpecialFeeType = req.SpecialFeeType
	payment.TotalAmount = req.DevelopmentFee + req.BusFee + req.SpecialFee
	if payment.TotalAmount == 0 {
		return nil, appErrors.Clone(appErrors.ErrZeroAmount, "")
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	s.writeAudit(ctx, actor, models.AuditActionPaymentUpdate, id, oldValues, payment)
	return payment, nil
}

// Delete removes a ledger entry. Admin only; the deletion is audited with
// the full old record.
func (s *PaymentService) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete payments")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}

	oldValues, _ := json.Marshal(payment)
	s.writeAudit(ctx, actor, models.AuditActionPaymentDelete, id, oldValues, nil)
	return nil
}

func (s *PaymentService) writeAudit(ctx context.Context, actor models.UserInfo, action, resourceID string, oldValues []byte, newValue interface{}) {
	if s.audit == nil {
		return
	}

	var newValues []byte
	if newValue != nil {
		newValues, _ = json.Marshal(newValue)
	}

	userID := actor.ID
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "payment",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// ExportCSV renders matching ledger entries as CSV for download.
func (s *PaymentService) ExportCSV(ctx context.Context, actor models.UserInfo, filter models.PaymentFilter) ([]byte, error) {
	filter = applyScope(actor, filter)
	filter.Page = 1
	filter.PageSize = 10000

	payments, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	dataset := export.Dataset{Headers: []string{"receipt_no", "payment_date", "admission_no", "student_name", "class", "development_fee", "bus_fee", "special_fee", "special_fee_type", "total_amount", "added_by"}}
	for _, p := range payments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"receipt_no":       p.ReceiptNo(),
			"payment_date":     p.PaymentDate.Format(time.RFC3339),
			"admission_no":     p.AdmissionNo,
			"student_name":     p.StudentName,
			"class":            classLabel(p.Class, p.Division),
			"development_fee":  strconv.FormatInt(p.DevelopmentFee, 10),
			"bus_fee":          strconv.FormatInt(p.BusFee, 10),
			"special_fee":      strconv.FormatInt(p.SpecialFee, 10),
			"special_fee_type": p.SpecialFeeType,
			"total_amount":     strconv.FormatInt(p.TotalAmount, 10),
			"added_by":         p.AddedBy,
		})
	}

	exporter := export.CSVExporter{}
	return exporter.Render(dataset)
}

func classLabel(class, division string) string {
	if division == "" {
		return class
	}
	return class + "-" + division
}
