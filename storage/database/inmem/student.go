package inmemdb

import (
	"context"
	"sort"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// withClasses sets st.ClassIDs from the enrollments. The caller holds the lock.
func (db *DB) withClasses(st student.Student) student.Student {
	ids := make([]string, 0)
	for classID, enrolled := range db.enrollments {
		if _, ok := enrolled[st.ID]; ok {
			ids = append(ids, classID)
		}
	}
	sort.Strings(ids)
	st.ClassIDs = ids
	return st
}

func (repo *studentRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, st := range repo.db.students {
		if st.Email != "" && st.Email == email && !core.StringInSlice(st.ID, excludedIDs) {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st.ID = newID()
	st.ClassIDs = nil
	repo.db.students[st.ID] = st
	return repo.db.withClasses(st), nil
}

func (db *DB) matchStudent(st student.Student, filter *student.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" &&
		!containsFold(st.Name, filter.Search) &&
		!containsFold(st.Email, filter.Search) &&
		!containsFold(st.School, filter.Search) {
		return false
	}
	if filter.Grade != 0 && st.Grade != filter.Grade {
		return false
	}
	if filter.Status != "" && st.Status != filter.Status {
		return false
	}
	if filter.ClassID != "" {
		if _, ok := db.enrollments[filter.ClassID][st.ID]; !ok {
			return false
		}
	}
	if filter.ParentID != "" && st.ParentID != filter.ParentID {
		return false
	}
	if filter.UserID != "" && st.UserID != filter.UserID {
		return false
	}
	if filter.IDs != nil && !core.StringInSlice(st.ID, filter.IDs) {
		return false
	}
	return true
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0)
	for _, st := range repo.db.students {
		if repo.db.matchStudent(st, filter) {
			students = append(students, repo.db.withClasses(st))
		}
	}

	sortRows(len(students), func(i, j int) { students[i], students[j] = students[j], students[i] },
		func(i int) string { return students[i].ID },
		func(i int, field string) interface{} {
			st := students[i]
			switch field {
			case "name":
				return st.Name
			case "grade":
				return st.Grade
			}
			return st.CreatedAt
		}, ordering, core.DBOrdering{Field: "name", Ascending: true})
	return students, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	st, ok := repo.db.students[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	return repo.db.withClasses(st), nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.ClassIDs = nil
	repo.db.students[st.ID] = st
	return repo.db.withClasses(st), nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.students[id]; !ok {
			continue
		}
		delete(repo.db.students, id)
		cnt++

		// mirror the ON DELETE CASCADE foreign keys
		for _, enrolled := range repo.db.enrollments {
			delete(enrolled, id)
		}
		for recID, rec := range repo.db.attendance {
			if rec.StudentID == id {
				delete(repo.db.attendance, recID)
			}
		}
		for remID, r := range repo.db.reminders {
			if r.StudentID == id {
				delete(repo.db.reminders, remID)
			}
		}
	}
	return cnt, nil
}
