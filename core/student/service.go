package student

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("student not found")
	ErrEmailExists = errors.New("a student with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name, Student.Email or Student.School.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) (int, error)
	}

	// Cache stores Students for enrichment lookups.
	Cache interface {
		// GetMany returns the cached Students among ids; missing ones are simply absent from the map.
		GetMany(ctx context.Context, ids []string) (map[string]Student, error)
		SetMany(ctx context.Context, students ...Student) error
		Delete(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByUserID(ctx context.Context, userID string) (Student, error)
		// GetMany loads the given Students in one query, bypassing the cache.
		GetMany(ctx context.Context, ids []string) (map[string]Student, error)
		// Lookup resolves Students through the cache, loading the misses with GetMany.
		Lookup(ctx context.Context, ids []string) (map[string]Student, error)
		// Forget drops the cached copies of the given Students, e.g. after their classes changed.
		Forget(ctx context.Context, ids ...string)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		Import(ctx context.Context, rows [][]string, validate *validator.Validate) (ImportResult, error)
	}

	service struct {
		repo   Repository
		cache  Cache
		logger core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, cache Cache, logger core.Logger) Service {
	return &service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	if email == "" {
		return nil
	}
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	st := Student{
		UserID:      ns.UserID,
		ParentID:    ns.ParentID,
		Name:        ns.Name,
		Email:       ns.Email,
		Phone:       ns.Phone,
		Grade:       ns.Grade,
		School:      ns.School,
		DateOfBirth: ns.DateOfBirth,
		Status:      ns.Status,
		Notes:       ns.Notes,
		ClassIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if st.Status == "" {
		st.Status = StatusActive
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) GetByUserID(ctx context.Context, userID string) (Student, error) {
	if userID == "" {
		return Student{}, ErrNotFound
	}
	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{UserID: userID}, nil)
	if err != nil {
		return Student{}, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return Student{}, ErrNotFound
	}
	return students[0], nil
}

func (svc *service) GetMany(ctx context.Context, ids []string) (map[string]Student, error) {
	ids = core.UniqueStrings(ids)
	found := make(map[string]Student, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for _, st := range students {
		found[st.ID] = st
	}
	return found, nil
}

func (svc *service) Lookup(ctx context.Context, ids []string) (map[string]Student, error) {
	ids = core.UniqueStrings(ids)
	if svc.cache == nil {
		return svc.GetMany(ctx, ids)
	}

	found, err := svc.cache.GetMany(ctx, ids)
	if err != nil {
		// a broken cache must not break reads
		svc.logger.Warn("reading student cache", err)
		found = nil
	}
	if found == nil {
		found = make(map[string]Student, len(ids))
	}

	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return found, nil
	}

	loaded, err := svc.GetMany(ctx, misses)
	if err != nil {
		return nil, err
	}
	fresh := make([]Student, 0, len(loaded))
	for id, st := range loaded {
		found[id] = st
		fresh = append(fresh, st)
	}
	if len(fresh) > 0 {
		if err = svc.cache.SetMany(ctx, fresh...); err != nil {
			svc.logger.Warn("writing student cache", err)
		}
	}
	return found, nil
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	st, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	us.apply(&st)
	st.UpdatedAt = time.Now().UTC()

	st, err = svc.repo.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	svc.invalidate(ctx, st.ID)
	return st, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	cnt, err := svc.repo.DeleteStudentsByID(ctx, ids...)
	if err != nil {
		return 0, err
	}
	svc.invalidate(ctx, ids...)
	return cnt, nil
}

func (svc *service) Forget(ctx context.Context, ids ...string) { svc.invalidate(ctx, ids...) }

func (svc *service) invalidate(ctx context.Context, ids ...string) {
	if svc.cache == nil || len(ids) == 0 {
		return
	}
	if err := svc.cache.Delete(ctx, ids...); err != nil {
		svc.logger.Warn("invalidating student cache", err)
	}
}

// importColumns maps the recognised header cells to NewStudent fields.
var importColumns = map[string]func(ns *NewStudent, val string) error{
	"name":  func(ns *NewStudent, val string) error { ns.Name = val; return nil },
	"email": func(ns *NewStudent, val string) error { ns.Email = val; return nil },
	"phone": func(ns *NewStudent, val string) error { ns.Phone = val; return nil },
	"grade": func(ns *NewStudent, val string) error {
		if val == "" {
			return nil
		}
		grade, err := strconv.Atoi(val)
		if err != nil {
			return errors.Errorf("invalid grade %q", val)
		}
		ns.Grade = grade
		return nil
	},
	"school": func(ns *NewStudent, val string) error { ns.School = val; return nil },
}

// Import creates a Student per spreadsheet row. The first row is the header; unknown columns are ignored.
// Rows without a name, or failing validation, are skipped and reported.
func (svc *service) Import(ctx context.Context, rows [][]string, validate *validator.Validate) (ImportResult, error) {
	result := ImportResult{Created: []Student{}, Skipped: []RowError{}}
	if len(rows) == 0 {
		return result, core.NewValidationError(errors.New("the spreadsheet is empty"))
	}

	header := make([]string, len(rows[0]))
	var hasName bool
	for i, cell := range rows[0] {
		header[i] = core.CleanString(cell, true /* lower */)
		if header[i] == "name" {
			hasName = true
		}
	}
	if !hasName {
		return result, core.NewValidationError(errors.New(`the spreadsheet has no "name" column`))
	}

	for idx, row := range rows[1:] {
		rowNum := idx + 2
		if isBlankRow(row) {
			continue
		}

		var ns NewStudent
		var rowErr error
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			if set, ok := importColumns[header[i]]; ok {
				if err := set(&ns, strings.TrimSpace(cell)); err != nil && rowErr == nil {
					rowErr = err
				}
			}
		}
		if rowErr == nil && strings.TrimSpace(ns.Name) == "" {
			rowErr = errors.New("name is required")
		}
		if rowErr == nil {
			rowErr = ns.Validate(ctx, validate, svc)
		}
		if rowErr != nil {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Error: rowErrorText(rowErr)})
			continue
		}

		st, err := svc.Create(ctx, ns)
		if err != nil {
			return result, errors.Wrapf(err, "creating student from row %d", rowNum)
		}
		result.Created = append(result.Created, st)
	}
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowErrorText(err error) string {
	if verrs, ok := errors.Cause(err).(validator.ValidationErrors); ok {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Field()+": "+fe.Tag())
		}
		return strings.Join(msgs, ", ")
	}
	return err.Error()
}
