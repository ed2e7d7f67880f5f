package models

import "time"

// Student represents a learner registered for fee collection. Class runs
// "1".."12"; division "A".."E". The bus stop links the student to the bus
// fee schedule.
type Student struct {
	ID          string    `db:"id" json:"id"`
	AdmissionNo string    `db:"admission_no" json:"admission_no"`
	Name        string    `db:"name" json:"name"`
	Mobile      string    `db:"mobile" json:"mobile"`
	Class       string    `db:"class" json:"class"`
	Division    string    `db:"division" json:"division"`
	BusStop     string    `db:"bus_stop" json:"bus_stop"`
	BusNumber   string    `db:"bus_number" json:"bus_number"`
	TripNumber  string    `db:"trip_number" json:"trip_number"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassLabel formats the class and division for receipts and lists.
func (s Student) ClassLabel() string {
	if s.Division == "" {
		return s.Class
	}
	return s.Class + "-" + s.Division
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Class     string
	Division  string
	BusStop   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
