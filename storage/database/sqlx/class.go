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
	"github.com/tutora/backend/core/class"
)

const classColumns = `c.id, c.name, c.subject, c.tutor_id, c.schedule, c.room, c.capacity, c.created_at, c.updated_at,
	ARRAY(SELECT cs.student_id::text FROM class_student cs WHERE cs.class_id = c.id ORDER BY cs.assigned_at, cs.student_id) AS student_ids`

type classRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Subject    string         `db:"subject"`
	TutorID    null.String    `db:"tutor_id"`
	Schedule   string         `db:"schedule"`
	Room       string         `db:"room"`
	Capacity   int            `db:"capacity"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
	StudentIDs pq.StringArray `db:"student_ids"`
}

func toClassRow(cls class.Class) classRow {
	return classRow{
		ID:        cls.ID,
		Name:      cls.Name,
		Subject:   cls.Subject,
		TutorID:   nullString(cls.TutorID),
		Schedule:  cls.Schedule,
		Room:      cls.Room,
		Capacity:  cls.Capacity,
		CreatedAt: cls.CreatedAt.UTC(),
		UpdatedAt: cls.UpdatedAt.UTC(),
	}
}

func (row classRow) class() class.Class {
	studentIDs := []string(row.StudentIDs)
	if studentIDs == nil {
		studentIDs = []string{}
	}
	return class.Class{
		ID:         row.ID,
		Name:       row.Name,
		Subject:    row.Subject,
		TutorID:    row.TutorID.String,
		Schedule:   row.Schedule,
		Room:       row.Room,
		Capacity:   row.Capacity,
		StudentIDs: studentIDs,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	q := `INSERT INTO class (id, name, subject, tutor_id, schedule, room, capacity, created_at, updated_at)
		VALUES (:id, :name, :subject, :tutor_id, :schedule, :room, :capacity, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toClassRow(cls)); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	cls.StudentIDs = []string{}
	return cls, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(c.name ILIKE ? OR c.subject ILIKE ? OR c.room ILIKE ?)", val, val, val)
		}
		if filter.Subject != "" {
			w.add("c.subject ILIKE ?", "%"+filter.Subject+"%")
		}
		if filter.TutorID != "" {
			w.eqID("c.tutor_id", filter.TutorID)
		}
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []class.Class{}, nil
			}
			w.add("EXISTS (SELECT 1 FROM class_student cs WHERE cs.class_id = c.id AND cs.student_id = ?)", filter.StudentID)
		}
		if filter.IDs != nil {
			w.inIDs("c.id", filter.IDs)
		}
	}

	var rows []classRow
	q := `SELECT ` + classColumns + ` FROM class c`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("c", ordering, "c.name ASC")); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	q := `SELECT ` + classColumns + ` FROM class c WHERE c.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.class(), nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `UPDATE class SET name = :name, subject = :subject, tutor_id = :tutor_id, schedule = :schedule, room = :room,
		capacity = :capacity, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toClassRow(cls))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return repo.GetClass(ctx, cls.ID)
}

func (repo *classRepository) DeleteClassesByID(ctx context.Context, ids ...string) (int, error) {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM class WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting classes")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted classes")
}

func (repo *classRepository) AssignStudents(ctx context.Context, classID string, studentIDs []string, at time.Time) error {
	if _, err := uuid.Parse(classID); err != nil {
		return class.ErrNotFound
	}
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the class row lock serializes concurrent enrolments
		var capacity int
		if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM class WHERE id = $1 FOR UPDATE`, classID); err != nil {
			return trapNoRowsErr(err, class.ErrNotFound, "locking class")
		}

		q := `INSERT INTO class_student (class_id, student_id, assigned_at) VALUES ($1, $2, $3)
			ON CONFLICT (class_id, student_id) DO NOTHING`
		for _, id := range studentIDs {
			if _, err := tx.ExecContext(ctx, q, classID, id, at.UTC()); err != nil {
				return errors.Wrapf(err, "assigning student %s", id)
			}
		}

		if capacity > 0 {
			var enrolled int
			if err := tx.GetContext(ctx, &enrolled, `SELECT COUNT(*) FROM class_student WHERE class_id = $1`, classID); err != nil {
				return errors.Wrap(err, "counting enrolments")
			}
			if enrolled > capacity {
				return class.ErrCapacityExceeded
			}
		}
		return nil
	})
}

func (repo *classRepository) UnassignStudents(ctx context.Context, classID string, studentIDs []string) (int, error) {
	if studentIDs = validUUIDs(studentIDs); len(studentIDs) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM class_student WHERE class_id = $1 AND student_id = ANY($2::uuid[])`, classID, pq.Array(studentIDs))
	if err != nil {
		return 0, errors.Wrap(err, "unassigning students")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting unassigned students")
}
