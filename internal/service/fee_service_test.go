package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvodaya-edu/fees-api/internal/models"
)

type fakeFeeScheduleRepo struct {
	schedule *models.FeeSchedule
	loadErr  error
	upserted []models.FeeEntry
	deleted  []string
}

func (f *fakeFeeScheduleRepo) Load(ctx context.Context) (*models.FeeSchedule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.schedule == nil {
		return &models.FeeSchedule{DevelopmentFees: map[string]int64{}, BusStops: map[string]int64{}}, nil
	}
	return f.schedule, nil
}

func (f *fakeFeeScheduleRepo) Upsert(ctx context.Context, entry models.FeeEntry) error {
	f.upserted = append(f.upserted, entry)
	return nil
}

func (f *fakeFeeScheduleRepo) UpsertMany(ctx context.Context, entries []models.FeeEntry) error {
	f.upserted = append(f.upserted, entries...)
	return nil
}

func (f *fakeFeeScheduleRepo) Delete(ctx context.Context, category, key string) error {
	f.deleted = append(f.deleted, category+"/"+key)
	return nil
}

type fakeStudentFinder struct {
	student *models.Student
	err     error
}

func (f *fakeStudentFinder) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.student, nil
}

type fakeLedger struct {
	payments []models.Payment
	err      error
}

func (f *fakeLedger) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payments, nil
}

func TestResolveFeeKey(t *testing.T) {
	assert.Equal(t, "11-B", ResolveFeeKey("11", "B"))
	assert.Equal(t, "12-A", ResolveFeeKey("12", "A"))
	assert.Equal(t, "7", ResolveFeeKey("7", "B"))
	assert.Equal(t, "1", ResolveFeeKey("1", ""))
	assert.Equal(t, "10", ResolveFeeKey("10", "C"))
}

func testSchedule() models.FeeSchedule {
	return models.FeeSchedule{
		DevelopmentFees: map[string]int64{"7": 1000, "11-B": 1600},
		BusStops:        map[string]int64{"Main Gate": 500},
	}
}

func TestComputeBalanceNoPayments(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7", Division: "B", BusStop: "Main Gate"}

	balance := ComputeBalance(student, testSchedule(), nil)

	assert.Equal(t, int64(1000), balance.DevelopmentRequired)
	assert.Equal(t, int64(1000), balance.DevelopmentBalance)
	assert.Equal(t, int64(500), balance.BusRequired)
	assert.Equal(t, int64(500), balance.BusBalance)
	assert.Zero(t, balance.DevelopmentOverpaid)
	assert.Zero(t, balance.BusOverpaid)
}

func TestComputeBalanceAfterPayment(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7", Division: "B", BusStop: "Main Gate"}
	ledger := []models.Payment{
		{StudentID: "s1", DevelopmentFee: 400, BusFee: 500},
	}

	balance := ComputeBalance(student, testSchedule(), ledger)

	assert.Equal(t, int64(600), balance.DevelopmentBalance)
	assert.Equal(t, int64(0), balance.BusBalance)
	assert.Equal(t, int64(400), balance.DevelopmentPaid)
	assert.Equal(t, int64(500), balance.BusPaid)
}

func TestComputeBalanceMissingScheduleKey(t *testing.T) {
	student := models.Student{ID: "s1", Class: "9", Division: "A", BusStop: "Nowhere"}

	balance := ComputeBalance(student, testSchedule(), nil)

	assert.Zero(t, balance.DevelopmentRequired)
	assert.Zero(t, balance.DevelopmentBalance)
	assert.Zero(t, balance.BusRequired)
	assert.Zero(t, balance.BusBalance)
}

func TestComputeBalanceNoBusStop(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7"}

	balance := ComputeBalance(student, testSchedule(), nil)

	assert.Zero(t, balance.BusRequired)
	assert.Zero(t, balance.BusBalance)
}

func TestComputeBalanceFloorsAtZero(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7", BusStop: "Main Gate"}
	ledger := []models.Payment{
		{StudentID: "s1", DevelopmentFee: 1200, BusFee: 700},
	}

	balance := ComputeBalance(student, testSchedule(), ledger)

	assert.Equal(t, int64(0), balance.DevelopmentBalance)
	assert.Equal(t, int64(200), balance.DevelopmentOverpaid)
	assert.Equal(t, int64(0), balance.BusBalance)
	assert.Equal(t, int64(200), balance.BusOverpaid)
}

func TestComputeBalanceSpecialFeesAccumulateSeparately(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7", BusStop: "Main Gate"}
	ledger := []models.Payment{
		{StudentID: "s1", SpecialFee: 300, SpecialFeeType: "Lab Fee"},
		{StudentID: "s1", SpecialFee: 200, SpecialFeeType: "Sports Fee"},
	}

	balance := ComputeBalance(student, testSchedule(), ledger)

	assert.Equal(t, int64(500), balance.SpecialPaid)
	assert.Equal(t, int64(1000), balance.DevelopmentBalance)
	assert.Equal(t, int64(500), balance.BusBalance)
}

func TestComputeBalanceIgnoresOtherStudents(t *testing.T) {
	student := models.Student{ID: "s1", Class: "7"}
	ledger := []models.Payment{
		{StudentID: "s2", DevelopmentFee: 999},
		{StudentID: "s1", DevelopmentFee: 100},
	}

	balance := ComputeBalance(student, testSchedule(), ledger)

	assert.Equal(t, int64(100), balance.DevelopmentPaid)
	assert.Equal(t, int64(900), balance.DevelopmentBalance)
}

func TestFeeServiceBalanceFor(t *testing.T) {
	schedule := testSchedule()
	svc := NewFeeService(
		&fakeFeeScheduleRepo{schedule: &schedule},
		&fakeStudentFinder{student: &models.Student{ID: "s1", Class: "7", Division: "B", BusStop: "Main Gate"}},
		&fakeLedger{payments: []models.Payment{{StudentID: "s1", DevelopmentFee: 400, BusFee: 500}}},
		nil, nil)

	balance, err := svc.BalanceFor(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.DevelopmentBalance)
	assert.Equal(t, int64(0), balance.BusBalance)
}

func TestFeeServiceBalanceForUnknownStudent(t *testing.T) {
	svc := NewFeeService(&fakeFeeScheduleRepo{}, &fakeStudentFinder{err: sql.ErrNoRows}, &fakeLedger{}, nil, nil)

	_, err := svc.BalanceFor(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student not found")
}

func TestFeeServiceSeedOnlyWhenEmpty(t *testing.T) {
	repo := &fakeFeeScheduleRepo{}
	svc := NewFeeService(repo, nil, nil, nil, nil)

	require.NoError(t, svc.Seed(context.Background()))
	assert.Len(t, repo.upserted, 26)

	populated := testSchedule()
	repo = &fakeFeeScheduleRepo{schedule: &populated}
	svc = NewFeeService(repo, nil, nil, nil, nil)

	require.NoError(t, svc.Seed(context.Background()))
	assert.Empty(t, repo.upserted)
}

func TestFeeServiceUpdateRejectsNegativeAmount(t *testing.T) {
	repo := &fakeFeeScheduleRepo{}
	svc := NewFeeService(repo, nil, nil, nil, nil)

	err := svc.UpdateDevelopmentFees(context.Background(), map[string]int64{"7": -1}, "admin")
	require.Error(t, err)
	assert.Empty(t, repo.upserted)

	err = svc.UpdateBusStops(context.Background(), nil, "admin")
	require.Error(t, err)
}

func TestFeeServiceUpdateBusStops(t *testing.T) {
	repo := &fakeFeeScheduleRepo{}
	svc := NewFeeService(repo, nil, nil, nil, nil)

	require.NoError(t, svc.UpdateBusStops(context.Background(), map[string]int64{"New Stop": 650}, "admin"))
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, models.FeeCategoryBus, repo.upserted[0].Category)
	assert.Equal(t, "New Stop", repo.upserted[0].Key)
	assert.Equal(t, int64(650), repo.upserted[0].Amount)
	assert.Equal(t, "admin", repo.upserted[0].UpdatedBy)
}

func TestFeeServiceImportBusStopsCSV(t *testing.T) {
	repo := &fakeFeeScheduleRepo{}
	svc := NewFeeService(repo, nil, nil, nil, nil)

	csv := "Bus Stop Name,Fee Amount\nMain Gate,800\nPark Avenue,750\n"
	count, err := svc.ImportBusStopsCSV(context.Background(), strings.NewReader(csv), "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, repo.upserted, 2)
}

func TestFeeServiceImportBusStopsCSVRejectsBadAmount(t *testing.T) {
	svc := NewFeeService(&fakeFeeScheduleRepo{}, nil, nil, nil, nil)

	csv := "Bus Stop Name,Fee Amount\nMain Gate,not-a-number\n"
	_, err := svc.ImportBusStopsCSV(context.Background(), strings.NewReader(csv), "admin")
	require.Error(t, err)
}

func TestFeeServiceExportBusStopsCSV(t *testing.T) {
	schedule := testSchedule()
	svc := NewFeeService(&fakeFeeScheduleRepo{schedule: &schedule}, nil, nil, nil, nil)

	out, err := svc.ExportBusStopsCSV(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(out), "Bus Stop Name,Fee Amount")
	assert.Contains(t, string(out), "Main Gate,500")
}
