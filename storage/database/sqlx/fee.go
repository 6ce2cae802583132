package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/fee"
)

const (
	feeColumns      = `f.id, f.class_id, f.tutor_id, f.name, f.amount, f.currency, f.period, f.created_at, f.updated_at`
	reminderColumns = `r.id, r.student_id, r.tutor_id, r.fee_id, r.title, r.description, r.amount, r.currency, r.due_date,
	r.status, r.paid_at, r.last_notified_at, r.created_at, r.updated_at`
)

type feeRow struct {
	ID        string      `db:"id"`
	ClassID   null.String `db:"class_id"`
	TutorID   null.String `db:"tutor_id"`
	Name      string      `db:"name"`
	Amount    float64     `db:"amount"`
	Currency  string      `db:"currency"`
	Period    string      `db:"period"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toFeeRow(f fee.Fee) feeRow {
	return feeRow{
		ID:        f.ID,
		ClassID:   nullString(f.ClassID),
		TutorID:   nullString(f.TutorID),
		Name:      f.Name,
		Amount:    f.Amount,
		Currency:  f.Currency,
		Period:    f.Period,
		CreatedAt: f.CreatedAt.UTC(),
		UpdatedAt: f.UpdatedAt.UTC(),
	}
}

func (row feeRow) fee() fee.Fee {
	return fee.Fee{
		ID:        row.ID,
		ClassID:   row.ClassID.String,
		TutorID:   row.TutorID.String,
		Name:      row.Name,
		Amount:    row.Amount,
		Currency:  row.Currency,
		Period:    row.Period,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

type reminderRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	TutorID        null.String `db:"tutor_id"`
	FeeID          null.String `db:"fee_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Amount         float64     `db:"amount"`
	Currency       string      `db:"currency"`
	DueDate        core.Date   `db:"due_date"`
	Status         string      `db:"status"`
	PaidAt         null.Time   `db:"paid_at"`
	LastNotifiedAt null.Time   `db:"last_notified_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toReminderRow(r fee.Reminder) reminderRow {
	return reminderRow{
		ID:             r.ID,
		StudentID:      r.StudentID,
		TutorID:        nullString(r.TutorID),
		FeeID:          nullString(r.FeeID),
		Title:          r.Title,
		Description:    r.Description,
		Amount:         r.Amount,
		Currency:       r.Currency,
		DueDate:        r.DueDate,
		Status:         r.Status,
		PaidAt:         null.TimeFromPtr(r.PaidAt),
		LastNotifiedAt: null.TimeFromPtr(r.LastNotifiedAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (row reminderRow) reminder() fee.Reminder {
	return fee.Reminder{
		ID:             row.ID,
		StudentID:      row.StudentID,
		TutorID:        row.TutorID.String,
		FeeID:          row.FeeID.String,
		Title:          row.Title,
		Description:    row.Description,
		Amount:         row.Amount,
		Currency:       row.Currency,
		DueDate:        row.DueDate,
		Status:         row.Status,
		PaidAt:         row.PaidAt.Ptr(),
		LastNotifiedAt: row.LastNotifiedAt.Ptr(),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	f.ID = uuid.New().String()
	q := `INSERT INTO fee (id, class_id, tutor_id, name, amount, currency, period, created_at, updated_at)
		VALUES (:id, :class_id, :tutor_id, :name, :amount, :currency, :period, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toFeeRow(f)); err != nil {
		return fee.Fee{}, errors.Wrap(err, "inserting fee")
	}
	return f, nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter *fee.FeeFilter) ([]fee.Fee, error) {
	var w where
	if filter != nil {
		if filter.TutorID != "" {
			w.eqID("f.tutor_id", filter.TutorID)
		}
		if filter.ClassID != "" {
			w.eqID("f.class_id", filter.ClassID)
		}
	}

	var rows []feeRow
	if err := selectQuery(ctx, repo.db, &rows, `SELECT `+feeColumns+` FROM fee f`, &w, "f.name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}
	fees := make([]fee.Fee, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.fee())
	}
	return fees, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string) (fee.Fee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.Fee{}, fee.ErrNotFound
	}
	var row feeRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+feeColumns+` FROM fee f WHERE f.id = $1`, id); err != nil {
		return fee.Fee{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee")
	}
	return row.fee(), nil
}

func (repo *feeRepository) UpdateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	q := `UPDATE fee SET class_id = :class_id, name = :name, amount = :amount, currency = :currency, period = :period,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toFeeRow(f))
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "updating fee")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Fee{}, fee.ErrNotFound
	}
	return f, nil
}

func (repo *feeRepository) DeleteFee(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fee.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM fee WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ErrNotFound
	}
	return nil
}

func (repo *feeRepository) CreateReminder(ctx context.Context, r fee.Reminder) (fee.Reminder, error) {
	r.ID = uuid.New().String()
	q := `INSERT INTO fee_reminder (id, student_id, tutor_id, fee_id, title, description, amount, currency, due_date,
			status, paid_at, last_notified_at, created_at, updated_at)
		VALUES (:id, :student_id, :tutor_id, :fee_id, :title, :description, :amount, :currency, :due_date,
			:status, :paid_at, :last_notified_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toReminderRow(r)); err != nil {
		return fee.Reminder{}, errors.Wrap(err, "inserting fee reminder")
	}
	return r, nil
}

func (repo *feeRepository) QueryReminders(ctx context.Context, filter *fee.ReminderFilter, ordering []core.DBOrdering) ([]fee.Reminder, error) {
	var w where
	if filter != nil {
		if filter.StudentIDs != nil {
			w.inIDs("r.student_id", filter.StudentIDs)
		}
		if filter.TutorID != "" {
			w.eqID("r.tutor_id", filter.TutorID)
		}
		// overdue is never stored: it is a pending reminder due before today
		switch filter.Status {
		case "":
		case fee.StatusPending:
			w.add("r.status = ? AND r.due_date >= ?", fee.StatusPending, filter.Today)
		case fee.StatusOverdue:
			w.add("r.status = ? AND r.due_date < ?", fee.StatusPending, filter.Today)
		default:
			w.add("r.status = ?", filter.Status)
		}
		if !filter.DueFrom.IsZero() {
			w.add("r.due_date >= ?", filter.DueFrom)
		}
		if !filter.DueTo.IsZero() {
			w.add("r.due_date <= ?", filter.DueTo)
		}
	}

	var rows []reminderRow
	q := `SELECT ` + reminderColumns + ` FROM fee_reminder r`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("r", ordering, "r.due_date ASC, r.created_at ASC")); err != nil {
		return nil, errors.Wrap(err, "querying fee reminders")
	}
	reminders := make([]fee.Reminder, 0, len(rows))
	for _, row := range rows {
		reminders = append(reminders, row.reminder())
	}
	return reminders, nil
}

func (repo *feeRepository) GetReminder(ctx context.Context, id string) (fee.Reminder, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.Reminder{}, fee.ErrReminderNotFound
	}
	var row reminderRow
	q := `SELECT ` + reminderColumns + ` FROM fee_reminder r WHERE r.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return fee.Reminder{}, trapNoRowsErr(err, fee.ErrReminderNotFound, "finding fee reminder")
	}
	return row.reminder(), nil
}

func (repo *feeRepository) UpdateReminder(ctx context.Context, r fee.Reminder) (fee.Reminder, error) {
	q := `UPDATE fee_reminder SET fee_id = :fee_id, title = :title, description = :description, amount = :amount,
		currency = :currency, due_date = :due_date, status = :status, paid_at = :paid_at,
		last_notified_at = :last_notified_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toReminderRow(r))
	if err != nil {
		return fee.Reminder{}, errors.Wrap(err, "updating fee reminder")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Reminder{}, fee.ErrReminderNotFound
	}
	return r, nil
}

func (repo *feeRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return fee.ErrReminderNotFound
	}
	q := `UPDATE fee_reminder SET last_notified_at = $2, updated_at = $2 WHERE id = $1 AND status = $3`
	res, err := repo.db.ExecContext(ctx, q, id, at.UTC(), fee.StatusPending)
	if err != nil {
		return errors.Wrap(err, "marking fee reminder notified")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ErrReminderNotFound
	}
	return nil
}

func (repo *feeRepository) DeleteReminder(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fee.ErrReminderNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM fee_reminder WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting fee reminder")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ErrReminderNotFound
	}
	return nil
}
