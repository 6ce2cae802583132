package attendance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

// ParseStatus accepts any letter case, e.g. "Present".
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Attended reports whether the status counts towards the attendance rate.
func (s Status) Attended() bool { return s == StatusPresent || s == StatusLate }

type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      core.Date `json:"date"`
	Status    Status    `json:"status"`
	Remarks   string    `json:"remarks"`
	MarkedBy  string    `json:"marked_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Entry is a Record decorated with the names the UI displays.
type Entry struct {
	Record
	StudentName  string `json:"student_name"`
	StudentGrade int    `json:"student_grade,omitempty"`
	ClassName    string `json:"class_name"`
}

// NewRecord marks one student for one class session.
type NewRecord struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	ClassID   string    `json:"class_id" validate:"required,uuid"`
	Date      core.Date `json:"date"`
	Status    string    `json:"status" validate:"required,attstatus"`
	Remarks   string    `json:"remarks" validate:"omitempty,max=1000"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Remarks = core.CleanString(nr.Remarks)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return requireDate(nr.Date)
}

// Mark is one line of a BulkMark.
type Mark struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,attstatus"`
	Remarks   string `json:"remarks" validate:"omitempty,max=1000"`
}

// BulkMark marks a whole class session at once.
type BulkMark struct {
	ClassID string    `json:"class_id" validate:"required,uuid"`
	Date    core.Date `json:"date"`
	Marks   []Mark    `json:"marks" validate:"required,min=1,dive"`
}

func (bm *BulkMark) Validate(validate *validator.Validate) error {
	for i := range bm.Marks {
		bm.Marks[i].Remarks = core.CleanString(bm.Marks[i].Remarks)
	}
	if err := validate.Struct(bm); err != nil {
		return err
	}
	return requireDate(bm.Date)
}

// UpdateRecord changes the status and/or remarks of a Record.
type UpdateRecord struct {
	Status  *string `json:"status" validate:"omitempty,attstatus"`
	Remarks *string `json:"remarks" validate:"omitempty,max=1000"`
}

func (ur *UpdateRecord) Validate(validate *validator.Validate) error {
	if ur.Remarks != nil {
		*ur.Remarks = core.CleanString(*ur.Remarks)
	}
	return validate.Struct(ur)
}

func requireDate(d core.Date) error {
	if d.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this field is required"})
	}
	return nil
}

// QueryFilter is applied with AND semantics; zero fields are ignored.
// A non-nil empty StudentIDs or ClassIDs matches no record.
type QueryFilter struct {
	StudentIDs []string
	ClassIDs   []string
	Status     Status
	From       core.Date
	To         core.Date
}

// IsNone reports whether the filter can match no record at all.
func (qf QueryFilter) IsNone() bool {
	return (qf.StudentIDs != nil && len(qf.StudentIDs) == 0) || (qf.ClassIDs != nil && len(qf.ClassIDs) == 0)
}

// Match reports whether rec satisfies the filter.
func (qf QueryFilter) Match(rec Record) bool {
	if qf.StudentIDs != nil && !core.StringInSlice(rec.StudentID, qf.StudentIDs) {
		return false
	}
	if qf.ClassIDs != nil && !core.StringInSlice(rec.ClassID, qf.ClassIDs) {
		return false
	}
	if qf.Status != "" && rec.Status != qf.Status {
		return false
	}
	if !qf.From.IsZero() && rec.Date.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && rec.Date.After(qf.To) {
		return false
	}
	return true
}

// OrderingFields lists the fields Records can be ordered by.
var OrderingFields = []string{"date", "status", "created_at"}
