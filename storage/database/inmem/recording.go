package inmemdb

import (
	"context"
	"time"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/recording"
)

type recordingRepository struct {
	db *DB
}

var _ recording.Repository = (*recordingRepository)(nil) // interface compliance check

func NewRecordingRepository(db *DB) recording.Repository {
	return &recordingRepository{db: db}
}

func (repo *recordingRepository) CreateLesson(_ context.Context, l recording.Lesson) (recording.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = newID()
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *recordingRepository) QueryLessons(_ context.Context, filter *recording.LessonFilter, ordering []core.DBOrdering) ([]recording.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]recording.Lesson, 0)
	for _, l := range repo.db.lessons {
		if filter == nil || filter.Match(l) {
			lessons = append(lessons, l)
		}
	}

	sortRows(len(lessons), func(i, j int) { lessons[i], lessons[j] = lessons[j], lessons[i] },
		func(i int) string { return lessons[i].ID },
		func(i int, field string) interface{} {
			l := lessons[i]
			switch field {
			case "title":
				return l.Title
			case "subject":
				return l.Subject
			case "recorded_at":
				if l.RecordedAt == nil {
					return time.Time{}
				}
				return *l.RecordedAt
			}
			return l.CreatedAt
		}, ordering, core.DBOrdering{Field: "created_at"})
	return lessons, nil
}

func (repo *recordingRepository) GetLesson(_ context.Context, id string) (recording.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	l, ok := repo.db.lessons[id]
	if !ok {
		return recording.Lesson{}, recording.ErrNotFound
	}
	return l, nil
}

func (repo *recordingRepository) UpdateLesson(_ context.Context, l recording.Lesson) (recording.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[l.ID]; !ok {
		return recording.Lesson{}, recording.ErrNotFound
	}
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *recordingRepository) DeleteLesson(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return recording.ErrNotFound
	}
	delete(repo.db.lessons, id)
	for bundleID, b := range repo.db.bundles {
		ids := make([]string, 0, len(b.LessonIDs))
		for _, lessonID := range b.LessonIDs {
			if lessonID != id {
				ids = append(ids, lessonID)
			}
		}
		b.LessonIDs = ids
		repo.db.bundles[bundleID] = b
	}
	return nil
}

func copyBundle(b recording.Bundle) recording.Bundle {
	b.LessonIDs = append([]string{}, b.LessonIDs...)
	b.Lessons = nil
	return b
}

func (repo *recordingRepository) CreateBundle(_ context.Context, b recording.Bundle) (recording.Bundle, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b.ID = newID()
	b = copyBundle(b)
	repo.db.bundles[b.ID] = b
	return copyBundle(b), nil
}

func (repo *recordingRepository) QueryBundles(_ context.Context, filter *recording.BundleFilter, ordering []core.DBOrdering) ([]recording.Bundle, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bundles := make([]recording.Bundle, 0)
	for _, b := range repo.db.bundles {
		if filter != nil {
			if filter.Search != "" && !containsFold(b.Title, filter.Search) && !containsFold(b.Description, filter.Search) {
				continue
			}
			if filter.TutorID != "" && b.TutorID != filter.TutorID {
				continue
			}
			if filter.ClassIDs != nil && !core.StringInSlice(b.ClassID, filter.ClassIDs) {
				continue
			}
		}
		bundles = append(bundles, copyBundle(b))
	}

	sortRows(len(bundles), func(i, j int) { bundles[i], bundles[j] = bundles[j], bundles[i] },
		func(i int) string { return bundles[i].ID },
		func(i int, field string) interface{} {
			if field == "title" {
				return bundles[i].Title
			}
			return bundles[i].CreatedAt
		}, ordering, core.DBOrdering{Field: "created_at"})
	return bundles, nil
}

func (repo *recordingRepository) GetBundle(_ context.Context, id string) (recording.Bundle, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	b, ok := repo.db.bundles[id]
	if !ok {
		return recording.Bundle{}, recording.ErrBundleNotFound
	}
	return copyBundle(b), nil
}

func (repo *recordingRepository) UpdateBundle(_ context.Context, b recording.Bundle) (recording.Bundle, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bundles[b.ID]; !ok {
		return recording.Bundle{}, recording.ErrBundleNotFound
	}
	b = copyBundle(b)
	repo.db.bundles[b.ID] = b
	return copyBundle(b), nil
}

func (repo *recordingRepository) DeleteBundle(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bundles[id]; !ok {
		return recording.ErrBundleNotFound
	}
	delete(repo.db.bundles, id)
	return nil
}
