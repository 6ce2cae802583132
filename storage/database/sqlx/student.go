package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/student"
)

const studentColumns = `s.id, s.user_id, s.parent_id, s.name, s.email, s.phone, s.grade, s.school, s.date_of_birth,
	s.status, s.notes, s.created_at, s.updated_at,
	ARRAY(SELECT cs.class_id::text FROM class_student cs WHERE cs.student_id = s.id ORDER BY cs.class_id) AS class_ids`

type studentRow struct {
	ID          string         `db:"id"`
	UserID      null.String    `db:"user_id"`
	ParentID    null.String    `db:"parent_id"`
	Name        string         `db:"name"`
	Email       null.String    `db:"email"`
	Phone       string         `db:"phone"`
	Grade       null.Int       `db:"grade"`
	School      string         `db:"school"`
	DateOfBirth core.Date      `db:"date_of_birth"`
	Status      string         `db:"status"`
	Notes       string         `db:"notes"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	ClassIDs    pq.StringArray `db:"class_ids"`
}

func toStudentRow(st student.Student) studentRow {
	return studentRow{
		ID:          st.ID,
		UserID:      nullString(st.UserID),
		ParentID:    nullString(st.ParentID),
		Name:        st.Name,
		Email:       nullString(st.Email),
		Phone:       st.Phone,
		Grade:       null.NewInt(st.Grade, st.Grade > 0),
		School:      st.School,
		DateOfBirth: st.DateOfBirth,
		Status:      st.Status,
		Notes:       st.Notes,
		CreatedAt:   st.CreatedAt.UTC(),
		UpdatedAt:   st.UpdatedAt.UTC(),
	}
}

func (row studentRow) student() student.Student {
	classIDs := []string(row.ClassIDs)
	if classIDs == nil {
		classIDs = []string{}
	}
	return student.Student{
		ID:          row.ID,
		UserID:      row.UserID.String,
		ParentID:    row.ParentID.String,
		Name:        row.Name,
		Email:       row.Email.String,
		Phone:       row.Phone,
		Grade:       row.Grade.Int,
		School:      row.School,
		DateOfBirth: row.DateOfBirth,
		Status:      row.Status,
		Notes:       row.Notes,
		ClassIDs:    classIDs,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	var w where
	w.add("s.email = ?", email)
	if excluded := validUUIDs(excludedIDs); len(excluded) > 0 {
		w.add("NOT (s.id = ANY(?::uuid[]))", pq.Array(excluded))
	}
	var found []string
	if err := selectQuery(ctx, repo.db, &found, `SELECT s.id FROM student s`, &w, ""); err != nil {
		return errors.Wrap(err, "checking student email")
	}
	if len(found) > 0 {
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	st.ID = uuid.New().String()
	q := `INSERT INTO student (id, user_id, parent_id, name, email, phone, grade, school, date_of_birth, status, notes, created_at, updated_at)
		VALUES (:id, :user_id, :parent_id, :name, :email, :phone, :grade, :school, :date_of_birth, :status, :notes, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toStudentRow(st)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	st.ClassIDs = []string{}
	return st, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(s.name ILIKE ? OR s.email ILIKE ? OR s.school ILIKE ?)", val, val, val)
		}
		if filter.Grade != 0 {
			w.add("s.grade = ?", filter.Grade)
		}
		if filter.Status != "" {
			w.add("s.status = ?", filter.Status)
		}
		if filter.ClassID != "" {
			if _, err := uuid.Parse(filter.ClassID); err != nil {
				return []student.Student{}, nil
			}
			w.add("EXISTS (SELECT 1 FROM class_student cs WHERE cs.student_id = s.id AND cs.class_id = ?)", filter.ClassID)
		}
		if filter.ParentID != "" {
			w.eqID("s.parent_id", filter.ParentID)
		}
		if filter.UserID != "" {
			w.eqID("s.user_id", filter.UserID)
		}
		if filter.IDs != nil {
			w.inIDs("s.id", filter.IDs)
		}
	}

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM student s`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("s", ordering, "s.name ASC")); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM student s WHERE s.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE student SET user_id = :user_id, parent_id = :parent_id, name = :name, email = :email, phone = :phone,
		grade = :grade, school = :school, date_of_birth = :date_of_birth, status = :status, notes = :notes,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toStudentRow(st))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, st.ID)
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted students")
}
