package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByAdmissionNo(ctx context.Context, admissionNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	AdmissionNo string `json:"admission_no" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Mobile      string `json:"mobile" validate:"required"`
	Class       string `json:"class" validate:"required,oneof=1 2 3 4 5 6 7 8 9 10 11 12"`
	Division    string `json:"division" validate:"omitempty,oneof=A B C D E"`
	BusStop     string `json:"bus_stop"`
	BusNumber   string `json:"bus_number"`
	TripNumber  string `json:"trip_number"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	AdmissionNo string `json:"admission_no" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Mobile      string `json:"mobile" validate:"required"`
	Class       string `json:"class" validate:"required,oneof=1 2 3 4 5 6 7 8 9 10 11 12"`
	Division    string `json:"division" validate:"omitempty,oneof=A B C D E"`
	BusStop     string `json:"bus_stop"`
	BusNumber   string `json:"bus_number"`
	TripNumber  string `json:"trip_number"`
}

// ImportReport summarises a bulk CSV import.
type ImportReport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// StudentService handles student registry use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// divisionRequired reports whether the class charges per division and so
// cannot be stored without one.
func divisionRequired(class string) bool {
	return class == "11" || class == "12"
}

// List returns students and pagination metadata, scoped to the actor.
func (s *StudentService) List(ctx context.Context, actor models.UserInfo, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if actor.Role != models.RoleAdmin {
		filter.Class = actor.Class
		filter.Division = actor.Division
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, actor models.UserInfo, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !scopeAllows(actor, student.Class, student.Division) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student outside assigned class")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if divisionRequired(req.Class) && req.Division == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "division is required for classes 11 and 12")
	}

	exists, err := s.repo.ExistsByAdmissionNo(ctx, req.AdmissionNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}

	student := &models.Student{
		AdmissionNo: req.AdmissionNo,
		Name:        req.Name,
		Mobile:      req.Mobile,
		Class:       req.Class,
		Division:    req.Division,
		BusStop:     req.BusStop,
		BusNumber:   req.BusNumber,
		TripNumber:  req.TripNumber,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if divisionRequired(req.Class) && req.Division == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "division is required for classes 11 and 12")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	exists, err := s.repo.ExistsByAdmissionNo(ctx, req.AdmissionNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}

	student.AdmissionNo = req.AdmissionNo
	student.Name = req.Name
	student.Mobile = req.Mobile
	student.Class = req.Class
	student.Division = req.Division
	student.BusStop = req.BusStop
	student.BusNumber = req.BusNumber
	student.TripNumber = req.TripNumber

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes the student record. Ledger entries keep their denormalized
// snapshot, so past receipts still print.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// ImportCSV bulk-registers students from a CSV with admission_no, name,
// mobile, class, division, bus_stop, bus_number and trip_number columns.
// Rows with duplicate admission numbers are skipped, invalid rows are
// reported without aborting the rest of the file.
func (s *StudentService) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	dataset, err := export.ParseCSV(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid csv payload")
	}

	report := &ImportReport{}
	for i, row := range dataset.Rows {
		req := CreateStudentRequest{
			AdmissionNo: row["admission_no"],
			Name:        row["name"],
			Mobile:      row["mobile"],
			Class:       row["class"],
			Division:    row["division"],
			BusStop:     row["bus_stop"],
			BusNumber:   row["bus_number"],
			TripNumber:  row["trip_number"],
		}

		if _, err := s.Create(ctx, req); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrConflict.Code {
				report.Skipped++
				continue
			}
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %s", i+1, appErr.Message))
			continue
		}
		report.Created++
	}

	s.logger.Info("student csv import finished",
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// ExportCSV renders the student registry as CSV for download.
func (s *StudentService) ExportCSV(ctx context.Context, actor models.UserInfo, filter models.StudentFilter) ([]byte, error) {
	if actor.Role != models.RoleAdmin {
		filter.Class = actor.Class
		filter.Division = actor.Division
	}
	filter.Page = 1
	filter.PageSize = 10000

	students, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	dataset := export.Dataset{Headers: []string{"admission_no", "name", "mobile", "class", "division", "bus_stop", "bus_number", "trip_number"}}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"admission_no": st.AdmissionNo,
			"name":         st.Name,
			"mobile":       st.Mobile,
			"class":        st.Class,
			"division":     st.Division,
			"bus_stop":     st.BusStop,
			"bus_number":   st.BusNumber,
			"trip_number":  st.TripNumber,
		})
	}

	exporter := export.CSVExporter{}
	return exporter.Render(dataset)
}
