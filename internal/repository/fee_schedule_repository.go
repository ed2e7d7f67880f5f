package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sarvodaya-edu/fees-api/internal/models"
)

// FeeScheduleRepository persists the fee schedule as category/key/amount
// rows in the fee_entries table.
type FeeScheduleRepository struct {
	db *sqlx.DB
}

// NewFeeScheduleRepository constructs a FeeScheduleRepository.
func NewFeeScheduleRepository(db *sqlx.DB) *FeeScheduleRepository {
	return &FeeScheduleRepository{db: db}
}

// Load reads the full schedule into its in-memory map form.
func (r *FeeScheduleRepository) Load(ctx context.Context) (*models.FeeSchedule, error) {
	const query = `SELECT category, key, amount, updated_at, updated_by FROM fee_entries`
	var entries []models.FeeEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load fee schedule: %w", err)
	}

	schedule := &models.FeeSchedule{
		DevelopmentFees: make(map[string]int64),
		BusStops:        make(map[string]int64),
	}
	for _, entry := range entries {
		switch entry.Category {
		case models.FeeCategoryDevelopment:
			schedule.DevelopmentFees[entry.Key] = entry.Amount
		case models.FeeCategoryBus:
			schedule.BusStops[entry.Key] = entry.Amount
		}
	}
	return schedule, nil
}

// Upsert writes or overwrites one schedule entry keyed by (category, key).
func (r *FeeScheduleRepository) Upsert(ctx context.Context, entry models.FeeEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fee_entries (category, key, amount, updated_at, updated_by)
        VALUES (:category, :key, :amount, :updated_at, :updated_by)
        ON CONFLICT (category, key) DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert fee entry %s/%s: %w", entry.Category, entry.Key, err)
	}
	return nil
}

// UpsertMany applies a batch of schedule entries in one transaction.
func (r *FeeScheduleRepository) UpsertMany(ctx context.Context, entries []models.FeeEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee schedule tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO fee_entries (category, key, amount, updated_at, updated_by)
        VALUES (:category, :key, :amount, :updated_at, :updated_by)
        ON CONFLICT (category, key) DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("upsert fee entry %s/%s: %w", entry.Category, entry.Key, err)
		}
	}
	return tx.Commit()
}

// Delete removes one schedule entry.
func (r *FeeScheduleRepository) Delete(ctx context.Context, category, key string) error {
	const query = `DELETE FROM fee_entries WHERE category = $1 AND key = $2`
	if _, err := r.db.ExecContext(ctx, query, category, key); err != nil {
		return fmt.Errorf("delete fee entry %s/%s: %w", category, key, err)
	}
	return nil
}
