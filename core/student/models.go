package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var Statuses = []string{StatusActive, StatusInactive}

type Student struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ParentID    string    `json:"parent_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Grade       int       `json:"grade,omitempty"`
	School      string    `json:"school"`
	DateOfBirth core.Date `json:"date_of_birth"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	ClassIDs    []string  `json:"class_ids"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (s Student) IsActive() bool { return s.Status == StatusActive }

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	UserID      string    `json:"user_id" validate:"omitempty,uuid"`
	ParentID    string    `json:"parent_id" validate:"omitempty,uuid"`
	Name        string    `json:"name" validate:"required,max=255"`
	Email       string    `json:"email" validate:"omitempty,email"`
	Phone       string    `json:"phone" validate:"omitempty,max=32"`
	Grade       int       `json:"grade" validate:"omitempty,min=1,max=13"`
	School      string    `json:"school" validate:"omitempty,max=255"`
	DateOfBirth core.Date `json:"date_of_birth"`
	Status      string    `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes       string    `json:"notes"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.School = core.CleanString(ns.School)
	ns.Status = core.CleanString(ns.Status, true /* lower */)
	if ns.Status == "" {
		ns.Status = StatusActive
	}

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if err := validateDateOfBirth(ns.DateOfBirth); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, ns.Email)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left untouched.
type UpdateStudent struct {
	UserID      *string    `json:"user_id" validate:"omitempty,uuid"`
	ParentID    *string    `json:"parent_id" validate:"omitempty,uuid"`
	Name        *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Phone       *string    `json:"phone" validate:"omitempty,max=32"`
	Grade       *int       `json:"grade" validate:"omitempty,min=1,max=13"`
	School      *string    `json:"school" validate:"omitempty,max=255"`
	DateOfBirth *core.Date `json:"date_of_birth"`
	Status      *string    `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes       *string    `json:"notes"`
}

func (us *UpdateStudent) Validate(ctx context.Context, orig Student, validate *validator.Validate, svc Service) error {
	cleanPtr(&us.Name)
	cleanPtr(&us.Email, true /* lower */)
	cleanPtr(&us.Phone)
	cleanPtr(&us.School)
	cleanPtr(&us.Status, true /* lower */)
	if us.Name != nil && *us.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.DateOfBirth != nil {
		if err := validateDateOfBirth(*us.DateOfBirth); err != nil {
			return err
		}
	}
	if us.Email != nil && *us.Email != orig.Email {
		return svc.CheckEmailUniqueness(ctx, *us.Email, orig.ID)
	}
	return nil
}

func (us UpdateStudent) apply(st *Student) {
	if us.UserID != nil {
		st.UserID = *us.UserID
	}
	if us.ParentID != nil {
		st.ParentID = *us.ParentID
	}
	if us.Name != nil {
		st.Name = *us.Name
	}
	if us.Email != nil {
		st.Email = *us.Email
	}
	if us.Phone != nil {
		st.Phone = *us.Phone
	}
	if us.Grade != nil {
		st.Grade = *us.Grade
	}
	if us.School != nil {
		st.School = *us.School
	}
	if us.DateOfBirth != nil {
		st.DateOfBirth = *us.DateOfBirth
	}
	if us.Status != nil {
		st.Status = *us.Status
	}
	if us.Notes != nil {
		st.Notes = *us.Notes
	}
}

func cleanPtr(s **string, lower ...bool) {
	if *s != nil {
		v := core.CleanString(**s, lower...)
		*s = &v
	}
}

func validateDateOfBirth(dob core.Date) error {
	if !dob.IsZero() && dob.After(core.DateOf(time.Now())) {
		return core.NewValidationError(nil, core.FieldError{Field: "date_of_birth", Error: "date of birth cannot be in the future"})
	}
	return nil
}

// QueryFilter is applied with AND semantics; zero fields are ignored.
// A non-nil empty IDs matches no student.
type QueryFilter struct {
	Search   string
	Grade    int
	Status   string
	ClassID  string
	ParentID string
	UserID   string
	IDs      []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// OrderingFields lists the fields Students can be ordered by.
var OrderingFields = []string{"name", "grade", "created_at"}

// ImportResult reports the outcome of a spreadsheet import.
type ImportResult struct {
	Created []Student  `json:"created"`
	Skipped []RowError `json:"skipped"`
}

// RowError reports a spreadsheet row that could not be imported. Row is 1-based, header included.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}
