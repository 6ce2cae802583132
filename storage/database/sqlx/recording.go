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
	"github.com/tutora/backend/core/recording"
)

const (
	lessonColumns = `l.id, l.tutor_id, l.class_id, l.title, l.description, l.subject, l.video_url, l.thumbnail_url,
	l.duration_seconds, l.recorded_at, l.published, l.created_at, l.updated_at`
	bundleColumns = `b.id, b.tutor_id, b.class_id, b.title, b.description, b.created_at, b.updated_at,
	ARRAY(SELECT bl.lesson_id::text FROM recording_bundle_lesson bl WHERE bl.bundle_id = b.id ORDER BY bl.position) AS lesson_ids`
)

type lessonRow struct {
	ID              string      `db:"id"`
	TutorID         null.String `db:"tutor_id"`
	ClassID         null.String `db:"class_id"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	Subject         string      `db:"subject"`
	VideoURL        string      `db:"video_url"`
	ThumbnailURL    string      `db:"thumbnail_url"`
	DurationSeconds int         `db:"duration_seconds"`
	RecordedAt      null.Time   `db:"recorded_at"`
	Published       bool        `db:"published"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func toLessonRow(l recording.Lesson) lessonRow {
	return lessonRow{
		ID:              l.ID,
		TutorID:         nullString(l.TutorID),
		ClassID:         nullString(l.ClassID),
		Title:           l.Title,
		Description:     l.Description,
		Subject:         l.Subject,
		VideoURL:        l.VideoURL,
		ThumbnailURL:    l.ThumbnailURL,
		DurationSeconds: l.DurationSeconds,
		RecordedAt:      null.TimeFromPtr(l.RecordedAt),
		Published:       l.Published,
		CreatedAt:       l.CreatedAt.UTC(),
		UpdatedAt:       l.UpdatedAt.UTC(),
	}
}

func (row lessonRow) lesson() recording.Lesson {
	return recording.Lesson{
		ID:              row.ID,
		TutorID:         row.TutorID.String,
		ClassID:         row.ClassID.String,
		Title:           row.Title,
		Description:     row.Description,
		Subject:         row.Subject,
		VideoURL:        row.VideoURL,
		ThumbnailURL:    row.ThumbnailURL,
		DurationSeconds: row.DurationSeconds,
		RecordedAt:      row.RecordedAt.Ptr(),
		Published:       row.Published,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

type bundleRow struct {
	ID          string         `db:"id"`
	TutorID     null.String    `db:"tutor_id"`
	ClassID     null.String    `db:"class_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	LessonIDs   pq.StringArray `db:"lesson_ids"`
}

func toBundleRow(b recording.Bundle) bundleRow {
	return bundleRow{
		ID:          b.ID,
		TutorID:     nullString(b.TutorID),
		ClassID:     nullString(b.ClassID),
		Title:       b.Title,
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

func (row bundleRow) bundle() recording.Bundle {
	lessonIDs := []string(row.LessonIDs)
	if lessonIDs == nil {
		lessonIDs = []string{}
	}
	return recording.Bundle{
		ID:          row.ID,
		TutorID:     row.TutorID.String,
		ClassID:     row.ClassID.String,
		Title:       row.Title,
		Description: row.Description,
		LessonIDs:   lessonIDs,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type recordingRepository struct {
	db *sqlx.DB
}

var _ recording.Repository = (*recordingRepository)(nil) // interface compliance check

func NewRecordingRepository(db *sqlx.DB) recording.Repository {
	return &recordingRepository{db: db}
}

func (repo *recordingRepository) CreateLesson(ctx context.Context, l recording.Lesson) (recording.Lesson, error) {
	l.ID = uuid.New().String()
	q := `INSERT INTO recorded_lesson (id, tutor_id, class_id, title, description, subject, video_url, thumbnail_url,
			duration_seconds, recorded_at, published, created_at, updated_at)
		VALUES (:id, :tutor_id, :class_id, :title, :description, :subject, :video_url, :thumbnail_url,
			:duration_seconds, :recorded_at, :published, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toLessonRow(l)); err != nil {
		return recording.Lesson{}, errors.Wrap(err, "inserting recorded lesson")
	}
	return l, nil
}

func (repo *recordingRepository) QueryLessons(ctx context.Context, filter *recording.LessonFilter, ordering []core.DBOrdering) ([]recording.Lesson, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(l.title ILIKE ? OR l.description ILIKE ?)", val, val)
		}
		if filter.Subject != "" {
			w.add("LOWER(l.subject) = LOWER(?)", filter.Subject)
		}
		if filter.ClassIDs != nil {
			w.inIDs("l.class_id", filter.ClassIDs)
		}
		if filter.TutorID != "" {
			w.eqID("l.tutor_id", filter.TutorID)
		}
		if filter.PublishedOnly {
			w.add("l.published")
		}
		if filter.IDs != nil {
			w.inIDs("l.id", filter.IDs)
		}
	}

	var rows []lessonRow
	q := `SELECT ` + lessonColumns + ` FROM recorded_lesson l`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("l", ordering, "l.created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying recorded lessons")
	}
	lessons := make([]recording.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.lesson())
	}
	return lessons, nil
}

func (repo *recordingRepository) GetLesson(ctx context.Context, id string) (recording.Lesson, error) {
	if _, err := uuid.Parse(id); err != nil {
		return recording.Lesson{}, recording.ErrNotFound
	}
	var row lessonRow
	q := `SELECT ` + lessonColumns + ` FROM recorded_lesson l WHERE l.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return recording.Lesson{}, trapNoRowsErr(err, recording.ErrNotFound, "finding recorded lesson")
	}
	return row.lesson(), nil
}

func (repo *recordingRepository) UpdateLesson(ctx context.Context, l recording.Lesson) (recording.Lesson, error) {
	q := `UPDATE recorded_lesson SET class_id = :class_id, title = :title, description = :description, subject = :subject,
		video_url = :video_url, thumbnail_url = :thumbnail_url, duration_seconds = :duration_seconds,
		recorded_at = :recorded_at, published = :published, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toLessonRow(l))
	if err != nil {
		return recording.Lesson{}, errors.Wrap(err, "updating recorded lesson")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recording.Lesson{}, recording.ErrNotFound
	}
	return l, nil
}

func (repo *recordingRepository) DeleteLesson(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return recording.ErrNotFound
	}
	// bundle links go with the lesson (ON DELETE CASCADE)
	res, err := repo.db.ExecContext(ctx, `DELETE FROM recorded_lesson WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting recorded lesson")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recording.ErrNotFound
	}
	return nil
}

// setBundleLessons replaces the bundle's lessons, keeping their order.
func setBundleLessons(ctx context.Context, tx *sqlx.Tx, bundleID string, lessonIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recording_bundle_lesson WHERE bundle_id = $1`, bundleID); err != nil {
		return errors.Wrap(err, "clearing bundle lessons")
	}
	for pos, id := range lessonIDs {
		q := `INSERT INTO recording_bundle_lesson (bundle_id, lesson_id, position) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, q, bundleID, id, pos); err != nil {
			return errors.Wrapf(err, "adding lesson %s to bundle", id)
		}
	}
	return nil
}

func (repo *recordingRepository) CreateBundle(ctx context.Context, b recording.Bundle) (recording.Bundle, error) {
	b.ID = uuid.New().String()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO recording_bundle (id, tutor_id, class_id, title, description, created_at, updated_at)
			VALUES (:id, :tutor_id, :class_id, :title, :description, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, toBundleRow(b)); err != nil {
			return errors.Wrap(err, "inserting bundle")
		}
		return setBundleLessons(ctx, tx, b.ID, b.LessonIDs)
	})
	if err != nil {
		return recording.Bundle{}, err
	}
	b.LessonIDs = append([]string{}, b.LessonIDs...)
	b.Lessons = nil
	return b, nil
}

func (repo *recordingRepository) QueryBundles(ctx context.Context, filter *recording.BundleFilter, ordering []core.DBOrdering) ([]recording.Bundle, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(b.title ILIKE ? OR b.description ILIKE ?)", val, val)
		}
		if filter.TutorID != "" {
			w.eqID("b.tutor_id", filter.TutorID)
		}
		if filter.ClassIDs != nil {
			w.inIDs("b.class_id", filter.ClassIDs)
		}
	}

	var rows []bundleRow
	q := `SELECT ` + bundleColumns + ` FROM recording_bundle b`
	if err := selectQuery(ctx, repo.db, &rows, q, &w, orderBy("b", ordering, "b.created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying bundles")
	}
	bundles := make([]recording.Bundle, 0, len(rows))
	for _, row := range rows {
		bundles = append(bundles, row.bundle())
	}
	return bundles, nil
}

func (repo *recordingRepository) GetBundle(ctx context.Context, id string) (recording.Bundle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return recording.Bundle{}, recording.ErrBundleNotFound
	}
	var row bundleRow
	q := `SELECT ` + bundleColumns + ` FROM recording_bundle b WHERE b.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return recording.Bundle{}, trapNoRowsErr(err, recording.ErrBundleNotFound, "finding bundle")
	}
	return row.bundle(), nil
}

func (repo *recordingRepository) UpdateBundle(ctx context.Context, b recording.Bundle) (recording.Bundle, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE recording_bundle SET class_id = :class_id, title = :title, description = :description,
			updated_at = :updated_at
			WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, q, toBundleRow(b))
		if err != nil {
			return errors.Wrap(err, "updating bundle")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return recording.ErrBundleNotFound
		}
		return setBundleLessons(ctx, tx, b.ID, b.LessonIDs)
	})
	if err != nil {
		return recording.Bundle{}, err
	}
	return repo.GetBundle(ctx, b.ID)
}

func (repo *recordingRepository) DeleteBundle(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return recording.ErrBundleNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM recording_bundle WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting bundle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recording.ErrBundleNotFound
	}
	return nil
}
