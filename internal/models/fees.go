package models

import "time"

// Fee schedule categories as stored in the fee_entries table.
const (
	FeeCategoryDevelopment = "DEVELOPMENT"
	FeeCategoryBus         = "BUS"
)

// FeeEntry is one row of the fee schedule: a category, a lookup key and the
// required annual amount. Development keys are the class ("1".."10") or
// "{class}-{division}" for classes 11 and 12; bus keys are stop names.
type FeeEntry struct {
	Category  string    `db:"category" json:"category"`
	Key       string    `db:"key" json:"key"`
	Amount    int64     `db:"amount" json:"amount"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

// FeeSchedule is the in-memory view of the schedule used by the balance
// calculator. A key absent from a map means a required amount of zero.
type FeeSchedule struct {
	DevelopmentFees map[string]int64 `json:"development_fees"`
	BusStops        map[string]int64 `json:"bus_stops"`
}

// FeeBalance reports per-category paid and outstanding amounts for one
// student. Balances never go negative; any excess is reported separately in
// the overpaid fields without changing the floored balance.
type FeeBalance struct {
	StudentID           string `json:"student_id"`
	DevelopmentRequired int64  `json:"development_required"`
	DevelopmentPaid     int64  `json:"development_paid"`
	DevelopmentBalance  int64  `json:"development_balance"`
	DevelopmentOverpaid int64  `json:"development_overpaid"`
	BusRequired         int64  `json:"bus_required"`
	BusPaid             int64  `json:"bus_paid"`
	BusBalance          int64  `json:"bus_balance"`
	BusOverpaid         int64  `json:"bus_overpaid"`
	SpecialPaid         int64  `json:"special_paid"`
}
