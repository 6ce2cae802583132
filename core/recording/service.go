package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("recorded lesson not found")
	ErrBundleNotFound = core.NewNotFoundError("recording bundle not found")
)

type (
	Repository interface {
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// QueryLessons applies AND operation on available LessonFilter fields.
		// LessonFilter.Search does a case-insensitive match on one of Lesson.Title or Lesson.Description.
		QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		// CreateBundle and UpdateBundle persist Bundle.LessonIDs in order; Bundle.Lessons is ignored.
		CreateBundle(ctx context.Context, b Bundle) (Bundle, error)
		QueryBundles(ctx context.Context, filter *BundleFilter, ordering []core.DBOrdering) ([]Bundle, error)
		GetBundle(ctx context.Context, id string) (Bundle, error)
		UpdateBundle(ctx context.Context, b Bundle) (Bundle, error)
		DeleteBundle(ctx context.Context, id string) error
	}

	Service interface {
		CreateLesson(ctx context.Context, tutorID string, nl NewLesson) (Lesson, error)
		QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		CreateBundle(ctx context.Context, tutorID string, nb NewBundle) (Bundle, error)
		QueryBundles(ctx context.Context, filter *BundleFilter, ordering []core.DBOrdering) ([]Bundle, error)
		GetBundle(ctx context.Context, id string, publishedOnly bool) (Bundle, error)
		UpdateBundle(ctx context.Context, id string, ub UpdateBundle) (Bundle, error)
		DeleteBundle(ctx context.Context, id string) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, logger core.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

func (svc *service) CreateLesson(ctx context.Context, tutorID string, nl NewLesson) (Lesson, error) {
	now := time.Now().UTC()
	l := Lesson{
		TutorID:         tutorID,
		ClassID:         nl.ClassID,
		Title:           nl.Title,
		Description:     nl.Description,
		Subject:         nl.Subject,
		VideoURL:        nl.VideoURL,
		ThumbnailURL:    nl.ThumbnailURL,
		DurationSeconds: nl.DurationSeconds,
		RecordedAt:      nl.RecordedAt,
		Published:       nl.Published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if l.RecordedAt != nil {
		t := l.RecordedAt.UTC()
		l.RecordedAt = &t
	}
	return svc.repo.CreateLesson(ctx, l)
}

func (svc *service) QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering) ([]Lesson, error) {
	if filter != nil && filter.IsNone() {
		return []Lesson{}, nil
	}
	return svc.repo.QueryLessons(ctx, filter, ordering)
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

func (svc *service) UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	ul.apply(&l)
	l.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) DeleteLesson(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}

// checkLessons ensures all the lessons exist and belong to the tutor.
func (svc *service) checkLessons(ctx context.Context, tutorID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	lessons, err := svc.repo.QueryLessons(ctx, &LessonFilter{IDs: ids}, nil)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	owned := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		owned[l.ID] = l.TutorID == tutorID
	}
	var invalid []string
	for _, id := range ids {
		if !owned[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "lesson_ids",
			Error: fmt.Sprintf("unknown lessons: %v", invalid),
		})
	}
	return nil
}

func (svc *service) CreateBundle(ctx context.Context, tutorID string, nb NewBundle) (Bundle, error) {
	if err := svc.checkLessons(ctx, tutorID, nb.LessonIDs); err != nil {
		return Bundle{}, err
	}
	now := time.Now().UTC()
	b := Bundle{
		TutorID:     tutorID,
		ClassID:     nb.ClassID,
		Title:       nb.Title,
		Description: nb.Description,
		LessonIDs:   nb.LessonIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if b.LessonIDs == nil {
		b.LessonIDs = []string{}
	}
	b, err := svc.repo.CreateBundle(ctx, b)
	if err != nil {
		return Bundle{}, err
	}
	return svc.withLessons(ctx, b, false)
}

// withLessons loads the bundle's lessons in bundle order.
func (svc *service) withLessons(ctx context.Context, b Bundle, publishedOnly bool) (Bundle, error) {
	b.Lessons = []Lesson{}
	if len(b.LessonIDs) == 0 {
		return b, nil
	}
	lessons, err := svc.repo.QueryLessons(ctx, &LessonFilter{IDs: b.LessonIDs, PublishedOnly: publishedOnly}, nil)
	if err != nil {
		return Bundle{}, errors.Wrap(err, "querying bundle lessons")
	}
	byID := make(map[string]Lesson, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l
	}
	for _, id := range b.LessonIDs {
		if l, ok := byID[id]; ok {
			b.Lessons = append(b.Lessons, l)
		}
	}
	return b, nil
}

func (svc *service) QueryBundles(ctx context.Context, filter *BundleFilter, ordering []core.DBOrdering) ([]Bundle, error) {
	if filter != nil && filter.IsNone() {
		return []Bundle{}, nil
	}
	bundles, err := svc.repo.QueryBundles(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying bundles")
	}
	publishedOnly := filter != nil && filter.PublishedOnly
	for i := range bundles {
		if bundles[i], err = svc.withLessons(ctx, bundles[i], publishedOnly); err != nil {
			return nil, err
		}
	}
	return bundles, nil
}

func (svc *service) GetBundle(ctx context.Context, id string, publishedOnly bool) (Bundle, error) {
	b, err := svc.repo.GetBundle(ctx, id)
	if err != nil {
		return Bundle{}, err
	}
	return svc.withLessons(ctx, b, publishedOnly)
}

func (svc *service) UpdateBundle(ctx context.Context, id string, ub UpdateBundle) (Bundle, error) {
	b, err := svc.repo.GetBundle(ctx, id)
	if err != nil {
		return Bundle{}, err
	}
	if ub.LessonIDs != nil {
		if err = svc.checkLessons(ctx, b.TutorID, ub.LessonIDs); err != nil {
			return Bundle{}, err
		}
		b.LessonIDs = ub.LessonIDs
	}
	if ub.ClassID != nil {
		b.ClassID = *ub.ClassID
	}
	if ub.Title != nil {
		b.Title = *ub.Title
	}
	if ub.Description != nil {
		b.Description = *ub.Description
	}
	b.UpdatedAt = time.Now().UTC()

	if b, err = svc.repo.UpdateBundle(ctx, b); err != nil {
		return Bundle{}, err
	}
	return svc.withLessons(ctx, b, false)
}

func (svc *service) DeleteBundle(ctx context.Context, id string) error {
	return svc.repo.DeleteBundle(ctx, id)
}
