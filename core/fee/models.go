package fee

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

// Fee periods
const (
	PeriodOnce    = "once"
	PeriodMonthly = "monthly"
	PeriodTermly  = "termly"
)

// Reminder statuses. StatusOverdue is never stored: it is derived from a pending reminder's due date.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

const DefaultCurrency = "USD"

var (
	Periods  = []string{PeriodOnce, PeriodMonthly, PeriodTermly}
	Statuses = []string{StatusPending, StatusPaid, StatusOverdue, StatusCancelled}
)

type Fee struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	TutorID   string    `json:"tutor_id"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Period    string    `json:"period"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewFee struct {
	ClassID  string  `json:"class_id" validate:"omitempty,uuid"`
	Name     string  `json:"name" validate:"required,max=255"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Period   string  `json:"period" validate:"omitempty,oneof=once monthly termly"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Currency = strings.ToUpper(core.CleanString(nf.Currency))
	nf.Period = core.CleanString(nf.Period, true /* lower */)
	if nf.Currency == "" {
		nf.Currency = DefaultCurrency
	}
	if nf.Period == "" {
		nf.Period = PeriodOnce
	}
	return validate.Struct(nf)
}

// UpdateFee defines what information may be provided to modify an existing Fee.
// Nil fields are left untouched.
type UpdateFee struct {
	ClassID  *string  `json:"class_id" validate:"omitempty,uuid"`
	Name     *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Amount   *float64 `json:"amount" validate:"omitempty,gt=0"`
	Currency *string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Period   *string  `json:"period" validate:"omitempty,oneof=once monthly termly"`
}

func (uf *UpdateFee) Validate(validate *validator.Validate) error {
	if uf.Name != nil {
		*uf.Name = core.CleanString(*uf.Name)
		if *uf.Name == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
		}
	}
	if uf.Currency != nil {
		*uf.Currency = strings.ToUpper(core.CleanString(*uf.Currency))
	}
	if uf.Period != nil {
		*uf.Period = core.CleanString(*uf.Period, true /* lower */)
	}
	return validate.Struct(uf)
}

func (uf UpdateFee) apply(f *Fee) {
	if uf.ClassID != nil {
		f.ClassID = *uf.ClassID
	}
	if uf.Name != nil {
		f.Name = *uf.Name
	}
	if uf.Amount != nil {
		f.Amount = core.Round2(*uf.Amount)
	}
	if uf.Currency != nil {
		f.Currency = *uf.Currency
	}
	if uf.Period != nil {
		f.Period = *uf.Period
	}
}

// FeeFilter is applied with AND semantics; zero fields are ignored.
type FeeFilter struct {
	TutorID string
	ClassID string
}

type Reminder struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	TutorID        string     `json:"tutor_id"`
	FeeID          string     `json:"fee_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	DueDate        core.Date  `json:"due_date"`
	Status         string     `json:"status"`
	PaidAt         *time.Time `json:"paid_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// EffectiveStatus reports a pending reminder due before today as overdue.
func (r Reminder) EffectiveStatus(today core.Date) string {
	if r.Status == StatusPending && r.DueDate.Before(today) {
		return StatusOverdue
	}
	return r.Status
}

func (r Reminder) IsOpen() bool { return r.Status == StatusPending }

type NewReminder struct {
	StudentID   string    `json:"student_id" validate:"required,uuid"`
	FeeID       string    `json:"fee_id" validate:"omitempty,uuid"`
	Title       string    `json:"title" validate:"omitempty,max=255"`
	Description string    `json:"description"`
	Amount      *float64  `json:"amount" validate:"omitempty,gt=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDate     core.Date `json:"due_date"`
}

func (nr *NewReminder) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Currency = strings.ToUpper(core.CleanString(nr.Currency))
	if err := validate.Struct(nr); err != nil {
		return err
	}
	var flds []core.FieldError
	if nr.DueDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "due_date", Error: "this field is required"})
	}
	// the referenced fee provides the defaults
	if nr.FeeID == "" {
		if nr.Title == "" {
			flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
		}
		if nr.Amount == nil {
			flds = append(flds, core.FieldError{Field: "amount", Error: "this field is required"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// UpdateReminder defines what information may be provided to modify an open Reminder.
// Nil fields are left untouched.
type UpdateReminder struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount" validate:"omitempty,gt=0"`
	Currency    *string    `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDate     *core.Date `json:"due_date"`
}

func (ur *UpdateReminder) Validate(validate *validator.Validate) error {
	if ur.Title != nil {
		*ur.Title = core.CleanString(*ur.Title)
		if *ur.Title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
		}
	}
	if ur.Description != nil {
		*ur.Description = core.CleanString(*ur.Description)
	}
	if ur.Currency != nil {
		*ur.Currency = strings.ToUpper(core.CleanString(*ur.Currency))
	}
	if ur.DueDate != nil && ur.DueDate.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: "this field is required"})
	}
	return validate.Struct(ur)
}

func (ur UpdateReminder) apply(r *Reminder) {
	if ur.Title != nil {
		r.Title = *ur.Title
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	if ur.Amount != nil {
		r.Amount = core.Round2(*ur.Amount)
	}
	if ur.Currency != nil {
		r.Currency = *ur.Currency
	}
	if ur.DueDate != nil {
		r.DueDate = *ur.DueDate
	}
}

// ReminderFilter is applied with AND semantics; zero fields are ignored.
// Status filters on the effective status relative to Today. A non-nil empty StudentIDs matches nothing.
type ReminderFilter struct {
	StudentIDs []string
	TutorID    string
	Status     string
	DueFrom    core.Date
	DueTo      core.Date
	Today      core.Date
}

func (rf ReminderFilter) IsNone() bool {
	return rf.StudentIDs != nil && len(rf.StudentIDs) == 0
}

// Match reports whether r satisfies the filter.
func (rf ReminderFilter) Match(r Reminder) bool {
	if rf.StudentIDs != nil && !core.StringInSlice(r.StudentID, rf.StudentIDs) {
		return false
	}
	if rf.TutorID != "" && r.TutorID != rf.TutorID {
		return false
	}
	if rf.Status != "" && r.EffectiveStatus(rf.Today) != rf.Status {
		return false
	}
	if !rf.DueFrom.IsZero() && r.DueDate.Before(rf.DueFrom) {
		return false
	}
	if !rf.DueTo.IsZero() && r.DueDate.After(rf.DueTo) {
		return false
	}
	return true
}

// Totals sums reminder amounts by effective status. Cancelled reminders are only counted.
type Totals struct {
	Pending float64 `json:"pending"`
	Overdue float64 `json:"overdue"`
	Paid    float64 `json:"paid"`
	Count   int     `json:"count"`
}

func ComputeTotals(reminders []Reminder, today core.Date) Totals {
	var t Totals
	for _, r := range reminders {
		t.Count++
		switch r.EffectiveStatus(today) {
		case StatusPending:
			t.Pending += r.Amount
		case StatusOverdue:
			t.Overdue += r.Amount
		case StatusPaid:
			t.Paid += r.Amount
		}
	}
	t.Pending = core.Round2(t.Pending)
	t.Overdue = core.Round2(t.Overdue)
	t.Paid = core.Round2(t.Paid)
	return t
}

// ReminderOrderingFields lists the fields Reminders can be ordered by.
var ReminderOrderingFields = []string{"due_date", "amount", "created_at"}
