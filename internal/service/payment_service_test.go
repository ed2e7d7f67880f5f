package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvodaya-edu/fees-api/internal/models"
)

type fakePaymentRepo struct {
	payments   []models.Payment
	created    []models.Payment
	updated    []models.Payment
	deleted    []string
	lastFilter models.PaymentFilter
	findErr    error
}

func (f *fakePaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	f.lastFilter = filter
	return f.payments, len(f.payments), nil
}

func (f *fakePaymentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	return f.payments, nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.payments {
		if f.payments[i].ID == id {
			p := f.payments[i]
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "generated-payment-id"
	f.created = append(f.created, *payment)
	return nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	f.updated = append(f.updated, *payment)
	return nil
}

func (f *fakePaymentRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeBalanceProvider struct {
	balance models.FeeBalance
}

func (f *fakeBalanceProvider) BalanceFor(ctx context.Context, studentID string) (*models.FeeBalance, error) {
	b := f.balance
	b.StudentID = studentID
	return &b, nil
}

type fakeAuditWriter struct {
	logs []models.AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

type fakeNotifier struct {
	students []models.Student
	payments []models.Payment
}

func (f *fakeNotifier) PaymentRecorded(student models.Student, payment models.Payment) {
	f.students = append(f.students, student)
	f.payments = append(f.payments, payment)
}

var (
	adminActor   = models.UserInfo{ID: "u1", Username: "admin", Role: models.RoleAdmin}
	teacherActor = models.UserInfo{ID: "u2", Username: "t.kumar", Role: models.RoleTeacher, Class: "7", Division: "B"}
)

func classSevenStudent() *models.Student {
	return &models.Student{ID: "s1", AdmissionNo: "A-100", Name: "Asha", Mobile: "9876500001", Class: "7", Division: "B", BusStop: "Main Gate"}
}

func newPaymentService(repo *fakePaymentRepo, student *models.Student, balance models.FeeBalance, notifier PaymentNotifier, audit auditWriter) *PaymentService {
	return NewPaymentService(repo, &fakeStudentFinder{student: student}, &fakeBalanceProvider{balance: balance}, audit, notifier, nil, nil, nil)
}

func TestPaymentServiceCreateClampsToBalance(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{DevelopmentBalance: 600, BusBalance: 0}, nil, nil)

	payment, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{
		StudentID:      "s1",
		DevelopmentFee: 800,
		BusFee:         200,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), payment.DevelopmentFee)
	assert.Equal(t, int64(0), payment.BusFee)
	assert.Equal(t, int64(600), payment.TotalAmount)
	assert.Equal(t, "admin", payment.AddedBy)
}

func TestPaymentServiceCreateSnapshotsStudent(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{DevelopmentBalance: 1000, BusBalance: 500}, nil, nil)

	payment, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{
		StudentID:      "s1",
		DevelopmentFee: 400,
		BusFee:         500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", payment.StudentName)
	assert.Equal(t, "A-100", payment.AdmissionNo)
	assert.Equal(t, "7", payment.Class)
	assert.Equal(t, "B", payment.Division)
	assert.Equal(t, int64(900), payment.TotalAmount)
}

func TestPaymentServiceCreateRejectsZeroTotal(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{DevelopmentBalance: 0, BusBalance: 0}, nil, nil)

	_, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{
		StudentID:      "s1",
		DevelopmentFee: 500,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one fee")
	assert.Empty(t, repo.created)
}

func TestPaymentServiceCreateSpecialFeePassesThrough(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, nil)

	payment, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{
		StudentID:      "s1",
		SpecialFee:     300,
		SpecialFeeType: "Lab Fee",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), payment.SpecialFee)
	assert.Equal(t, "Lab Fee", payment.SpecialFeeType)
	assert.Equal(t, int64(300), payment.TotalAmount)
}

func TestPaymentServiceCreateSpecialFeeRequiresType(t *testing.T) {
	svc := newPaymentService(&fakePaymentRepo{}, classSevenStudent(), models.FeeBalance{}, nil, nil)

	_, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{
		StudentID:  "s1",
		SpecialFee: 300,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description")
}

func TestPaymentServiceCreateTeacherScope(t *testing.T) {
	svc := newPaymentService(&fakePaymentRepo{}, classSevenStudent(), models.FeeBalance{DevelopmentBalance: 1000}, nil, nil)

	// Same class, allowed.
	_, err := svc.Create(context.Background(), teacherActor, CreatePaymentRequest{StudentID: "s1", DevelopmentFee: 100})
	require.NoError(t, err)

	other := models.UserInfo{ID: "u3", Username: "t.rao", Role: models.RoleTeacher, Class: "9", Division: "A"}
	_, err = svc.Create(context.Background(), other, CreatePaymentRequest{StudentID: "s1", DevelopmentFee: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assigned class")
}

func TestPaymentServiceCreateDispatchesNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newPaymentService(&fakePaymentRepo{}, classSevenStudent(), models.FeeBalance{DevelopmentBalance: 1000}, notifier, nil)

	payment, err := svc.Create(context.Background(), adminActor, CreatePaymentRequest{StudentID: "s1", DevelopmentFee: 400})
	require.NoError(t, err)
	require.Len(t, notifier.payments, 1)
	assert.Equal(t, payment.ID, notifier.payments[0].ID)
	assert.Equal(t, "Asha", notifier.students[0].Name)
}

func TestPaymentServiceListScopesTeachers(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, nil)

	_, _, err := svc.List(context.Background(), teacherActor, models.PaymentFilter{Class: "12"})
	require.NoError(t, err)
	assert.Equal(t, "7", repo.lastFilter.Class)
	assert.Equal(t, "B", repo.lastFilter.Division)

	_, _, err = svc.List(context.Background(), adminActor, models.PaymentFilter{Class: "12"})
	require.NoError(t, err)
	assert.Equal(t, "12", repo.lastFilter.Class)
}

func TestPaymentServiceUpdateAdminOnly(t *testing.T) {
	repo := &fakePaymentRepo{payments: []models.Payment{{ID: "p1", Class: "7", Division: "B", DevelopmentFee: 400, TotalAmount: 400}}}
	audit := &fakeAuditWriter{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, audit)

	_, err := svc.Update(context.Background(), teacherActor, "p1", UpdatePaymentRequest{DevelopmentFee: 200})
	require.Error(t, err)

	updated, err := svc.Update(context.Background(), adminActor, "p1", UpdatePaymentRequest{DevelopmentFee: 200, BusFee: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.TotalAmount)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentUpdate, audit.logs[0].Action)
}

func TestPaymentServiceUpdateRejectsZeroTotal(t *testing.T) {
	repo := &fakePaymentRepo{payments: []models.Payment{{ID: "p1", DevelopmentFee: 400, TotalAmount: 400}}}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, nil)

	_, err := svc.Update(context.Background(), adminActor, "p1", UpdatePaymentRequest{})
	require.Error(t, err)
	assert.Empty(t, repo.updated)
}

func TestPaymentServiceDeleteAuditsOldRecord(t *testing.T) {
	repo := &fakePaymentRepo{payments: []models.Payment{{ID: "p1", StudentName: "Asha", TotalAmount: 400}}}
	audit := &fakeAuditWriter{}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, audit)

	require.Error(t, svc.Delete(context.Background(), teacherActor, "p1"))

	require.NoError(t, svc.Delete(context.Background(), adminActor, "p1"))
	assert.Equal(t, []string{"p1"}, repo.deleted)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentDelete, audit.logs[0].Action)
	assert.Contains(t, string(audit.logs[0].OldValues), "Asha")
}

func TestPaymentServiceExportCSV(t *testing.T) {
	repo := &fakePaymentRepo{payments: []models.Payment{
		{ID: "payment-abc123", StudentName: "Asha", AdmissionNo: "A-100", Class: "7", Division: "B", DevelopmentFee: 400, BusFee: 500, TotalAmount: 900, AddedBy: "admin"},
	}}
	svc := newPaymentService(repo, classSevenStudent(), models.FeeBalance{}, nil, nil)

	out, err := svc.ExportCSV(context.Background(), adminActor, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "receipt_no")
	assert.Contains(t, string(out), "abc123")
	assert.Contains(t, string(out), "7-B")
}
