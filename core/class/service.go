package class

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/student"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("class not found")
	ErrCapacityExceeded = core.NewConflictError("class capacity exceeded")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// QueryClasses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Class.Name, Class.Subject or Class.Room.
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClassesByID(ctx context.Context, ids ...string) (int, error)
		// AssignStudents enrols the students in the class; already enrolled students are left as is.
		// The capacity check and the enrolment are atomic: when the class would exceed its capacity,
		// nobody is enrolled and ErrCapacityExceeded is returned.
		AssignStudents(ctx context.Context, classID string, studentIDs []string, at time.Time) error
		UnassignStudents(ctx context.Context, classID string, studentIDs []string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		GetMany(ctx context.Context, ids []string) (map[string]Class, error)
		Update(ctx context.Context, id string, uc UpdateClass) (Class, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		AssignStudents(ctx context.Context, classID string, studentIDs []string) (Class, error)
		UnassignStudents(ctx context.Context, classID string, studentIDs []string) (Class, error)
		ListStudents(ctx context.Context, classID string, ordering []core.DBOrdering) ([]student.Student, error)
	}

	service struct {
		repo     Repository
		students student.Service
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, students student.Service, logger core.Logger) Service {
	return &service{
		repo:     repo,
		students: students,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:       nc.Name,
		Subject:    nc.Subject,
		TutorID:    nc.TutorID,
		Schedule:   nc.Schedule,
		Room:       nc.Room,
		Capacity:   nc.Capacity,
		StudentIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) GetMany(ctx context.Context, ids []string) (map[string]Class, error) {
	ids = core.UniqueStrings(ids)
	found := make(map[string]Class, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	classes, err := svc.repo.QueryClasses(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	for _, cls := range classes {
		found[cls.ID] = cls
	}
	return found, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	uc.apply(&cls)
	if cls.Capacity > 0 && len(cls.StudentIDs) > cls.Capacity {
		return Class{}, core.NewValidationError(nil, core.FieldError{
			Field: "capacity",
			Error: fmt.Sprintf("capacity cannot be lower than the %d enrolled students", len(cls.StudentIDs)),
		})
	}
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteClassesByID(ctx, ids...)
}

// AssignStudents is idempotent: students already in the class are not counted twice.
func (svc *service) AssignStudents(ctx context.Context, classID string, studentIDs []string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return Class{}, err
	}

	studentIDs = core.UniqueStrings(studentIDs)
	found, err := svc.students.GetMany(ctx, studentIDs)
	if err != nil {
		return Class{}, errors.Wrap(err, "finding students")
	}
	var unknown []string
	newIDs := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		if !cls.HasStudent(id) {
			newIDs = append(newIDs, id)
		}
	}
	if len(unknown) > 0 {
		return Class{}, core.NewValidationError(nil, core.FieldError{
			Field: "student_ids",
			Error: fmt.Sprintf("unknown students: %v", unknown),
		})
	}
	if len(newIDs) == 0 {
		return cls, nil
	}
	if cls.Capacity > 0 && len(cls.StudentIDs)+len(newIDs) > cls.Capacity {
		return Class{}, ErrCapacityExceeded
	}

	if err = svc.repo.AssignStudents(ctx, classID, newIDs, time.Now().UTC()); err != nil {
		if errors.Cause(err) == ErrCapacityExceeded {
			return Class{}, ErrCapacityExceeded
		}
		return Class{}, errors.Wrap(err, "assigning students")
	}
	svc.students.Forget(ctx, newIDs...)
	return svc.repo.GetClass(ctx, classID)
}

func (svc *service) UnassignStudents(ctx context.Context, classID string, studentIDs []string) (Class, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return Class{}, err
	}
	studentIDs = core.UniqueStrings(studentIDs)
	if _, err := svc.repo.UnassignStudents(ctx, classID, studentIDs); err != nil {
		return Class{}, errors.Wrap(err, "unassigning students")
	}
	svc.students.Forget(ctx, studentIDs...)
	return svc.repo.GetClass(ctx, classID)
}

func (svc *service) ListStudents(ctx context.Context, classID string, ordering []core.DBOrdering) ([]student.Student, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return svc.students.Query(ctx, &student.QueryFilter{ClassID: classID}, ordering)
}
