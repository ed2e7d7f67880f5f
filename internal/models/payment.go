package models

import "time"

// Payment is one append-only ledger entry. Student identity fields are
// denormalized at payment time so receipts stay meaningful even if the
// student record changes later. TotalAmount always equals the sum of the
// three fee components.
type Payment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	StudentName    string    `db:"student_name" json:"student_name"`
	AdmissionNo    string    `db:"admission_no" json:"admission_no"`
	Class          string    `db:"class" json:"class"`
	Division       string    `db:"division" json:"division"`
	DevelopmentFee int64     `db:"development_fee" json:"development_fee"`
	BusFee         int64     `db:"bus_fee" json:"bus_fee"`
	SpecialFee     int64     `db:"special_fee" json:"special_fee"`
	SpecialFeeType string    `db:"special_fee_type" json:"special_fee_type,omitempty"`
	TotalAmount    int64     `db:"total_amount" json:"total_amount"`
	PaymentDate    time.Time `db:"payment_date" json:"payment_date"`
	AddedBy        string    `db:"added_by" json:"added_by"`
}

// ReceiptNo derives the printed receipt number from the payment ID.
func (p Payment) ReceiptNo() string {
	if len(p.ID) <= 6 {
		return p.ID
	}
	return p.ID[len(p.ID)-6:]
}

// PaymentFilter selects ledger entries for listing, export and bulk printing.
// Date selects a single day; From/To a closed range. Class and Division
// filter on the denormalized snapshot columns.
type PaymentFilter struct {
	StudentID string
	Date      *time.Time
	From      *time.Time
	To        *time.Time
	Class     string
	Division  string
	Page      int
	PageSize  int
}
