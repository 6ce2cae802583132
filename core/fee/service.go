package fee

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("fee not found")
	ErrReminderNotFound = core.NewNotFoundError("fee reminder not found")
	ErrAlreadyPaid      = core.NewConflictError("fee reminder is already paid")
	ErrCancelled        = core.NewConflictError("fee reminder is cancelled")
)

type (
	Repository interface {
		CreateFee(ctx context.Context, f Fee) (Fee, error)
		QueryFees(ctx context.Context, filter *FeeFilter) ([]Fee, error)
		GetFee(ctx context.Context, id string) (Fee, error)
		UpdateFee(ctx context.Context, f Fee) (Fee, error)
		DeleteFee(ctx context.Context, id string) error

		CreateReminder(ctx context.Context, r Reminder) (Reminder, error)
		// QueryReminders applies AND operation on available ReminderFilter fields.
		QueryReminders(ctx context.Context, filter *ReminderFilter, ordering []core.DBOrdering) ([]Reminder, error)
		GetReminder(ctx context.Context, id string) (Reminder, error)
		UpdateReminder(ctx context.Context, r Reminder) (Reminder, error)
		// MarkNotified stamps LastNotifiedAt of a pending reminder and leaves every other column as is.
		// It returns ErrReminderNotFound when no pending reminder has that ID.
		MarkNotified(ctx context.Context, id string, at time.Time) error
		DeleteReminder(ctx context.Context, id string) error
	}

	ClassGetter interface {
		GetByID(ctx context.Context, id string) (class.Class, error)
	}

	StudentGetter interface {
		GetByID(ctx context.Context, id string) (student.Student, error)
	}

	Service interface {
		CreateFee(ctx context.Context, tutorID string, nf NewFee) (Fee, error)
		QueryFees(ctx context.Context, filter *FeeFilter) ([]Fee, error)
		GetFee(ctx context.Context, id string) (Fee, error)
		UpdateFee(ctx context.Context, id string, uf UpdateFee) (Fee, error)
		DeleteFee(ctx context.Context, id string) error

		CreateReminder(ctx context.Context, tutorID string, nr NewReminder) (Reminder, error)
		QueryReminders(ctx context.Context, filter *ReminderFilter, ordering []core.DBOrdering) ([]Reminder, error)
		GetReminder(ctx context.Context, id string) (Reminder, error)
		UpdateReminder(ctx context.Context, id string, ur UpdateReminder) (Reminder, error)
		MarkPaid(ctx context.Context, id string) (Reminder, error)
		Cancel(ctx context.Context, id string) (Reminder, error)
		DeleteReminder(ctx context.Context, id string) error
		Totals(ctx context.Context, filter *ReminderFilter) (Totals, error)
	}

	service struct {
		repo     Repository
		classes  ClassGetter
		students StudentGetter
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, classes ClassGetter, students StudentGetter, logger core.Logger) Service {
	return &service{
		repo:     repo,
		classes:  classes,
		students: students,
		logger:   logger,
	}
}

// Today returns the current calendar day.
func Today() core.Date { return core.DateOf(nowFunc().UTC()) }

func (svc *service) checkClass(ctx context.Context, classID string) error {
	if classID == "" {
		return nil
	}
	if _, err := svc.classes.GetByID(ctx, classID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding class")
	}
	return nil
}

func (svc *service) CreateFee(ctx context.Context, tutorID string, nf NewFee) (Fee, error) {
	if err := svc.checkClass(ctx, nf.ClassID); err != nil {
		return Fee{}, err
	}
	now := nowFunc().UTC()
	return svc.repo.CreateFee(ctx, Fee{
		ClassID:   nf.ClassID,
		TutorID:   tutorID,
		Name:      nf.Name,
		Amount:    core.Round2(nf.Amount),
		Currency:  nf.Currency,
		Period:    nf.Period,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) QueryFees(ctx context.Context, filter *FeeFilter) ([]Fee, error) {
	return svc.repo.QueryFees(ctx, filter)
}

func (svc *service) GetFee(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *service) UpdateFee(ctx context.Context, id string, uf UpdateFee) (Fee, error) {
	f, err := svc.repo.GetFee(ctx, id)
	if err != nil {
		return Fee{}, err
	}
	if uf.ClassID != nil {
		if err = svc.checkClass(ctx, *uf.ClassID); err != nil {
			return Fee{}, err
		}
	}
	uf.apply(&f)
	f.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateFee(ctx, f)
}

func (svc *service) DeleteFee(ctx context.Context, id string) error {
	return svc.repo.DeleteFee(ctx, id)
}

// CreateReminder defaults title, amount and currency from the referenced fee.
func (svc *service) CreateReminder(ctx context.Context, tutorID string, nr NewReminder) (Reminder, error) {
	if _, err := svc.students.GetByID(ctx, nr.StudentID); err != nil {
		if core.IsNotFound(err) {
			return Reminder{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Reminder{}, errors.Wrap(err, "finding student")
	}

	now := nowFunc().UTC()
	r := Reminder{
		StudentID:   nr.StudentID,
		TutorID:     tutorID,
		FeeID:       nr.FeeID,
		Title:       nr.Title,
		Description: nr.Description,
		Currency:    nr.Currency,
		DueDate:     nr.DueDate,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nr.Amount != nil {
		r.Amount = core.Round2(*nr.Amount)
	}

	if nr.FeeID != "" {
		f, err := svc.repo.GetFee(ctx, nr.FeeID)
		if err != nil {
			if core.IsNotFound(err) {
				return Reminder{}, core.NewValidationError(nil, core.FieldError{Field: "fee_id", Error: err.Error()})
			}
			return Reminder{}, errors.Wrap(err, "finding fee")
		}
		if r.Title == "" {
			r.Title = f.Name
		}
		if nr.Amount == nil {
			r.Amount = f.Amount
		}
		if r.Currency == "" {
			r.Currency = f.Currency
		}
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}

	r, err := svc.repo.CreateReminder(ctx, r)
	if err != nil {
		return Reminder{}, err
	}
	return withEffectiveStatus(r, Today()), nil
}

func withEffectiveStatus(r Reminder, today core.Date) Reminder {
	r.Status = r.EffectiveStatus(today)
	return r
}

func (svc *service) QueryReminders(ctx context.Context, filter *ReminderFilter, ordering []core.DBOrdering) ([]Reminder, error) {
	today := Today()
	if filter == nil {
		filter = &ReminderFilter{}
	}
	if filter.IsNone() {
		return []Reminder{}, nil
	}
	filter.Today = today

	reminders, err := svc.repo.QueryReminders(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying reminders")
	}
	for i := range reminders {
		reminders[i] = withEffectiveStatus(reminders[i], today)
	}
	return reminders, nil
}

func (svc *service) GetReminder(ctx context.Context, id string) (Reminder, error) {
	r, err := svc.repo.GetReminder(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	return withEffectiveStatus(r, Today()), nil
}

func (svc *service) UpdateReminder(ctx context.Context, id string, ur UpdateReminder) (Reminder, error) {
	r, err := svc.repo.GetReminder(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	if r.Status == StatusPaid {
		return Reminder{}, ErrAlreadyPaid
	}
	ur.apply(&r)
	r.UpdatedAt = nowFunc().UTC()

	r, err = svc.repo.UpdateReminder(ctx, r)
	if err != nil {
		return Reminder{}, err
	}
	return withEffectiveStatus(r, Today()), nil
}

func (svc *service) MarkPaid(ctx context.Context, id string) (Reminder, error) {
	r, err := svc.repo.GetReminder(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	switch r.Status {
	case StatusPaid:
		return Reminder{}, ErrAlreadyPaid
	case StatusCancelled:
		return Reminder{}, ErrCancelled
	}

	now := nowFunc().UTC()
	r.Status = StatusPaid
	r.PaidAt = &now
	r.UpdatedAt = now
	return svc.repo.UpdateReminder(ctx, r)
}

func (svc *service) Cancel(ctx context.Context, id string) (Reminder, error) {
	r, err := svc.repo.GetReminder(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	switch r.Status {
	case StatusPaid:
		return Reminder{}, ErrAlreadyPaid
	case StatusCancelled:
		return r, nil
	}

	r.Status = StatusCancelled
	r.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateReminder(ctx, r)
}

func (svc *service) DeleteReminder(ctx context.Context, id string) error {
	return svc.repo.DeleteReminder(ctx, id)
}

func (svc *service) Totals(ctx context.Context, filter *ReminderFilter) (Totals, error) {
	reminders, err := svc.QueryReminders(ctx, filter, nil)
	if err != nil {
		return Totals{}, err
	}
	// statuses are already effective
	return ComputeTotals(reminders, core.Date{}), nil
}
