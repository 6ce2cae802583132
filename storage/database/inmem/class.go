package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

// withStudents sets cls.StudentIDs from the enrollments, by assignment order. The caller holds the lock.
func (db *DB) withStudents(cls class.Class) class.Class {
	enrolled := db.enrollments[cls.ID]
	ids := make([]string, 0, len(enrolled))
	for id := range enrolled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := enrolled[ids[i]], enrolled[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	cls.StudentIDs = ids
	return cls
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls.ID = newID()
	cls.StudentIDs = nil
	repo.db.classes[cls.ID] = cls
	return repo.db.withStudents(cls), nil
}

func (db *DB) matchClass(cls class.Class, filter *class.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" &&
		!containsFold(cls.Name, filter.Search) &&
		!containsFold(cls.Subject, filter.Search) &&
		!containsFold(cls.Room, filter.Search) {
		return false
	}
	if filter.Subject != "" && !containsFold(cls.Subject, filter.Subject) {
		return false
	}
	if filter.TutorID != "" && cls.TutorID != filter.TutorID {
		return false
	}
	if filter.StudentID != "" {
		if _, ok := db.enrollments[cls.ID][filter.StudentID]; !ok {
			return false
		}
	}
	if filter.IDs != nil && !core.StringInSlice(cls.ID, filter.IDs) {
		return false
	}
	return true
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if repo.db.matchClass(cls, filter) {
			classes = append(classes, repo.db.withStudents(cls))
		}
	}

	sortRows(len(classes), func(i, j int) { classes[i], classes[j] = classes[j], classes[i] },
		func(i int) string { return classes[i].ID },
		func(i int, field string) interface{} {
			cls := classes[i]
			switch field {
			case "name":
				return cls.Name
			case "subject":
				return cls.Subject
			}
			return cls.CreatedAt
		}, ordering, core.DBOrdering{Field: "name", Ascending: true})
	return classes, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cls, ok := repo.db.classes[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	return repo.db.withStudents(cls), nil
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	cls.StudentIDs = nil
	repo.db.classes[cls.ID] = cls
	return repo.db.withStudents(cls), nil
}

func (repo *classRepository) DeleteClassesByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.classes[id]; !ok {
			continue
		}
		delete(repo.db.classes, id)
		delete(repo.db.enrollments, id)
		cnt++

		for recID, rec := range repo.db.attendance {
			if rec.ClassID == id {
				delete(repo.db.attendance, recID)
			}
		}
		for feeID, f := range repo.db.fees {
			if f.ClassID == id {
				f.ClassID = ""
				repo.db.fees[feeID] = f
			}
		}
		for lessonID, l := range repo.db.lessons {
			if l.ClassID == id {
				l.ClassID = ""
				repo.db.lessons[lessonID] = l
			}
		}
		for bundleID, b := range repo.db.bundles {
			if b.ClassID == id {
				b.ClassID = ""
				repo.db.bundles[bundleID] = b
			}
		}
	}
	return cnt, nil
}

func (repo *classRepository) AssignStudents(_ context.Context, classID string, studentIDs []string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls, ok := repo.db.classes[classID]
	if !ok {
		return class.ErrNotFound
	}
	enrolled, ok := repo.db.enrollments[classID]
	if !ok {
		enrolled = make(map[string]time.Time)
		repo.db.enrollments[classID] = enrolled
	}

	var newIDs []string
	for _, id := range core.UniqueStrings(studentIDs) {
		if _, ok := enrolled[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	if cls.Capacity > 0 && len(enrolled)+len(newIDs) > cls.Capacity {
		return class.ErrCapacityExceeded
	}
	for _, id := range newIDs {
		enrolled[id] = at
	}
	return nil
}

func (repo *classRepository) UnassignStudents(_ context.Context, classID string, studentIDs []string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	enrolled := repo.db.enrollments[classID]
	var cnt int
	for _, id := range studentIDs {
		if _, ok := enrolled[id]; ok {
			delete(enrolled, id)
			cnt++
		}
	}
	return cnt, nil
}
