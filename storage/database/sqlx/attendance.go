package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
)

const attendanceColumns = `a.id, a.student_id, a.class_id, a.date, a.status, a.remarks, a.marked_by, a.created_at, a.updated_at`

type attendanceRow struct {
	ID        string      `db:"id"`
	StudentID string      `db:"student_id"`
	ClassID   string      `db:"class_id"`
	Date      core.Date   `db:"date"`
	Status    string      `db:"status"`
	Remarks   string      `db:"remarks"`
	MarkedBy  null.String `db:"marked_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toAttendanceRow(rec attendance.Record) attendanceRow {
	return attendanceRow{
		ID:        rec.ID,
		StudentID: rec.StudentID,
		ClassID:   rec.ClassID,
		Date:      rec.Date,
		Status:    string(rec.Status),
		Remarks:   rec.Remarks,
		MarkedBy:  nullString(rec.MarkedBy),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func (row attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		StudentID: row.StudentID,
		ClassID:   row.ClassID,
		Date:      row.Date,
		Status:    attendance.Status(row.Status),
		Remarks:   row.Remarks,
		MarkedBy:  row.MarkedBy.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// UpsertRecords saves all records in one transaction; a record for an already marked student, class & date
// replaces its status, remarks & marker.
func (repo *attendanceRepository) UpsertRecords(ctx context.Context, recs ...attendance.Record) ([]attendance.Record, error) {
	saved := make([]attendance.Record, 0, len(recs))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO attendance AS a (id, student_id, class_id, date, status, remarks, marked_by, created_at, updated_at)
			VALUES (:id, :student_id, :class_id, :date, :status, :remarks, :marked_by, :created_at, :updated_at)
			ON CONFLICT (student_id, class_id, date) DO UPDATE
			SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, marked_by = EXCLUDED.marked_by,
				updated_at = EXCLUDED.updated_at
			RETURNING ` + attendanceColumns
		stmt, err := tx.PrepareNamedContext(ctx, q)
		if err != nil {
			return errors.Wrap(err, "preparing attendance upsert")
		}
		defer stmt.Close()

		for _, rec := range recs {
			rec.ID = uuid.New().String()
			var row attendanceRow
			if err := stmt.GetContext(ctx, &row, toAttendanceRow(rec)); err != nil {
				return errors.Wrapf(err, "marking student %s", rec.StudentID)
			}
			saved = append(saved, row.record())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering) ([]attendance.Record, error) {
	var w where
	if filter != nil {
		if filter.StudentIDs != nil {
			w.inIDs("a.student_id", filter.StudentIDs)
		}
		if filter.ClassIDs != nil {
			w.inIDs("a.class_id", filter.ClassIDs)
		}
		if filter.Status != "" {
			w.add("a.status = ?", string(filter.Status))
		}
		if !filter.From.IsZero() {
			w.add("a.date >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			w.add("a.date <= ?", filter.To)
		}
	}

	var rows []attendanceRow
	q := `SELECT ` + attendanceColumns + ` FROM attendance a`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("a", ordering, "a.date DESC, a.created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, id string) (attendance.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var row attendanceRow
	q := `SELECT ` + attendanceColumns + ` FROM attendance a WHERE a.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding attendance record")
	}
	return row.record(), nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `UPDATE attendance SET status = :status, remarks = :remarks, marked_by = :marked_by, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toAttendanceRow(rec))
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}
