package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/export"
)

const feeScheduleCacheKey = "fees:schedule"

type feeScheduleRepository interface {
	Load(ctx context.Context) (*models.FeeSchedule, error)
	Upsert(ctx context.Context, entry models.FeeEntry) error
	UpsertMany(ctx context.Context, entries []models.FeeEntry) error
	Delete(ctx context.Context, category, key string) error
}

type balanceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type balanceLedgerRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

// ResolveFeeKey maps a student's class and division to the development fee
// schedule key. Classes 11 and 12 charge per division; everything else
// charges per class.
func ResolveFeeKey(class, division string) string {
	if class == "11" || class == "12" {
		return class + "-" + division
	}
	return class
}

// ComputeBalance derives per-category totals for one student from the fee
// schedule and the student's full payment history. Balances floor at zero;
// amounts paid beyond the requirement surface in the overpaid fields.
func ComputeBalance(student models.Student, schedule models.FeeSchedule, ledger []models.Payment) models.FeeBalance {
	balance := models.FeeBalance{StudentID: student.ID}

	balance.DevelopmentRequired = schedule.DevelopmentFees[ResolveFeeKey(student.Class, student.Division)]
	if student.BusStop != "" {
		balance.BusRequired = schedule.BusStops[student.BusStop]
	}

	for _, payment := range ledger {
		if payment.StudentID != student.ID {
			continue
		}
		balance.DevelopmentPaid += payment.DevelopmentFee
		balance.BusPaid += payment.BusFee
		balance.SpecialPaid += payment.SpecialFee
	}

	balance.DevelopmentBalance, balance.DevelopmentOverpaid = floorAtZero(balance.DevelopmentRequired, balance.DevelopmentPaid)
	balance.BusBalance, balance.BusOverpaid = floorAtZero(balance.BusRequired, balance.BusPaid)

	return balance
}

func floorAtZero(required, paid int64) (remaining, overpaid int64) {
	remaining = required - paid
	if remaining < 0 {
		return 0, -remaining
	}
	return remaining, 0
}

// DefaultFeeSchedule returns the schedule seeded on first boot: escalating
// development fees for classes 1 through 10, per-division fees for 11 and 12,
// and the standard bus stops.
func DefaultFeeSchedule() models.FeeSchedule {
	return models.FeeSchedule{
		DevelopmentFees: map[string]int64{
			"1": 500, "2": 600, "3": 700, "4": 800, "5": 900, "6": 1000,
			"7": 1100, "8": 1200, "9": 1300, "10": 1400,
			"11-A": 1500, "11-B": 1600, "11-C": 1700, "11-D": 1800, "11-E": 1900,
			"12-A": 1600, "12-B": 1700, "12-C": 1800, "12-D": 1900, "12-E": 2000,
		},
		BusStops: map[string]int64{
			"Main Gate": 800, "Market Square": 900, "Railway Station": 1000,
			"City Center": 850, "Park Avenue": 750, "School Road": 700,
		},
	}
}

// FeeService owns the fee schedule and the balance calculator.
type FeeService struct {
	repo     feeScheduleRepository
	students balanceStudentRepository
	ledger   balanceLedgerRepository
	cache    *CacheService
	logger   *zap.Logger
}

// NewFeeService constructs the fee service.
func NewFeeService(repo feeScheduleRepository, students balanceStudentRepository, ledger balanceLedgerRepository, cache *CacheService, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, students: students, ledger: ledger, cache: cache, logger: logger}
}

// Schedule returns the current fee schedule, consulting the cache first.
func (s *FeeService) Schedule(ctx context.Context) (*models.FeeSchedule, error) {
	var cached models.FeeSchedule
	if hit, _ := s.cache.Get(ctx, feeScheduleCacheKey, &cached); hit {
		return &cached, nil
	}

	schedule, err := s.repo.Load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}

	if err := s.cache.Set(ctx, feeScheduleCacheKey, schedule, 0); err != nil {
		s.logger.Warn("failed to cache fee schedule", zap.Error(err))
	}

	return schedule, nil
}

// BalanceFor computes the outstanding balance for one student.
func (s *FeeService) BalanceFor(ctx context.Context, studentID string) (*models.FeeBalance, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	schedule, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	ledger, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}

	balance := ComputeBalance(*student, *schedule, ledger)
	return &balance, nil
}

// Seed writes the default schedule when the fee_entries table is empty.
func (s *FeeService) Seed(ctx context.Context) error {
	schedule, err := s.repo.Load(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}
	if len(schedule.DevelopmentFees) > 0 || len(schedule.BusStops) > 0 {
		return nil
	}

	defaults := DefaultFeeSchedule()
	entries := make([]models.FeeEntry, 0, len(defaults.DevelopmentFees)+len(defaults.BusStops))
	for key, amount := range defaults.DevelopmentFees {
		entries = append(entries, models.FeeEntry{Category: models.FeeCategoryDevelopment, Key: key, Amount: amount, UpdatedBy: "system"})
	}
	for key, amount := range defaults.BusStops {
		entries = append(entries, models.FeeEntry{Category: models.FeeCategoryBus, Key: key, Amount: amount, UpdatedBy: "system"})
	}

	if err := s.repo.UpsertMany(ctx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed fee schedule")
	}

	s.logger.Info("seeded default fee schedule",
		zap.Int("development_keys", len(defaults.DevelopmentFees)),
		zap.Int("bus_stops", len(defaults.BusStops)))
	return nil
}

// UpdateDevelopmentFees upserts the provided class/division amounts.
func (s *FeeService) UpdateDevelopmentFees(ctx context.Context, fees map[string]int64, updatedBy string) error {
	return s.updateCategory(ctx, models.FeeCategoryDevelopment, fees, updatedBy)
}

// UpdateBusStops upserts the provided stop amounts.
func (s *FeeService) UpdateBusStops(ctx context.Context, stops map[string]int64, updatedBy string) error {
	return s.updateCategory(ctx, models.FeeCategoryBus, stops, updatedBy)
}

func (s *FeeService) updateCategory(ctx context.Context, category string, amounts map[string]int64, updatedBy string) error {
	if len(amounts) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no fee entries provided")
	}

	entries := make([]models.FeeEntry, 0, len(amounts))
	for key, amount := range amounts {
		key = strings.TrimSpace(key)
		if key == "" {
			return appErrors.Clone(appErrors.ErrValidation, "fee key must not be empty")
		}
		if amount < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fee amount for %q must not be negative", key))
		}
		entries = append(entries, models.FeeEntry{Category: category, Key: key, Amount: amount, UpdatedBy: updatedBy})
	}

	if err := s.repo.UpsertMany(ctx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee schedule")
	}

	s.invalidateScheduleCache(ctx)
	return nil
}

// RemoveBusStop deletes one stop from the bus fee schedule. Students still
// assigned to the stop fall back to a required amount of zero.
func (s *FeeService) RemoveBusStop(ctx context.Context, stop string) error {
	stop = strings.TrimSpace(stop)
	if stop == "" {
		return appErrors.Clone(appErrors.ErrValidation, "bus stop name must not be empty")
	}

	if err := s.repo.Delete(ctx, models.FeeCategoryBus, stop); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove bus stop")
	}

	s.invalidateScheduleCache(ctx)
	return nil
}

func (s *FeeService) invalidateScheduleCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, feeScheduleCacheKey); err != nil {
		s.logger.Warn("failed to invalidate fee schedule cache", zap.Error(err))
	}
}

// ExportBusStopsCSV renders the bus fee schedule as a two-column CSV.
func (s *FeeService) ExportBusStopsCSV(ctx context.Context) ([]byte, error) {
	schedule, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"Bus Stop Name", "Fee Amount"}}
	for _, stop := range sortedKeys(schedule.BusStops) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Bus Stop Name": stop,
			"Fee Amount":    strconv.FormatInt(schedule.BusStops[stop], 10),
		})
	}

	exporter := export.CSVExporter{}
	return exporter.Render(dataset)
}

// ImportBusStopsCSV merges stops from a "Bus Stop Name,Fee Amount" CSV into
// the bus fee schedule, upserting by stop name.
func (s *FeeService) ImportBusStopsCSV(ctx context.Context, r io.Reader, updatedBy string) (int, error) {
	dataset, err := export.ParseCSV(r)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid csv payload")
	}

	stops := make(map[string]int64)
	for i, row := range dataset.Rows {
		stop := strings.TrimSpace(row["Bus Stop Name"])
		if stop == "" {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: empty stop name", i+1))
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(row["Fee Amount"]), 10, 64)
		if err != nil {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: invalid amount %q", i+1, row["Fee Amount"]))
		}
		stops[stop] = amount
	}

	if err := s.UpdateBusStops(ctx, stops, updatedBy); err != nil {
		return 0, err
	}

	return len(stops), nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
