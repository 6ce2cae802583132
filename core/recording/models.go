package recording

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

type Lesson struct {
	ID              string     `json:"id"`
	TutorID         string     `json:"tutor_id"`
	ClassID         string     `json:"class_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Subject         string     `json:"subject"`
	VideoURL        string     `json:"video_url"`
	ThumbnailURL    string     `json:"thumbnail_url"`
	DurationSeconds int        `json:"duration_seconds"`
	RecordedAt      *time.Time `json:"recorded_at"`
	Published       bool       `json:"published"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

type NewLesson struct {
	ClassID         string     `json:"class_id" validate:"omitempty,uuid"`
	Title           string     `json:"title" validate:"required,max=255"`
	Description     string     `json:"description"`
	Subject         string     `json:"subject" validate:"omitempty,max=255"`
	VideoURL        string     `json:"video_url" validate:"required,httpurl"`
	ThumbnailURL    string     `json:"thumbnail_url" validate:"omitempty,httpurl"`
	DurationSeconds int        `json:"duration_seconds" validate:"min=0"`
	RecordedAt      *time.Time `json:"recorded_at"`
	Published       bool       `json:"published"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.Subject = core.CleanString(nl.Subject)
	nl.VideoURL = core.CleanString(nl.VideoURL)
	nl.ThumbnailURL = core.CleanString(nl.ThumbnailURL)
	return validate.Struct(nl)
}

// UpdateLesson defines what information may be provided to modify an existing Lesson.
// Nil fields are left untouched; Published toggles visibility to students.
type UpdateLesson struct {
	ClassID         *string    `json:"class_id" validate:"omitempty,uuid"`
	Title           *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string    `json:"description"`
	Subject         *string    `json:"subject" validate:"omitempty,max=255"`
	VideoURL        *string    `json:"video_url" validate:"omitempty,httpurl"`
	ThumbnailURL    *string    `json:"thumbnail_url" validate:"omitempty,httpurl"`
	DurationSeconds *int       `json:"duration_seconds" validate:"omitempty,min=0"`
	RecordedAt      *time.Time `json:"recorded_at"`
	Published       *bool      `json:"published"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ul.Title, ul.Description, ul.Subject, ul.VideoURL, ul.ThumbnailURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if ul.Title != nil && *ul.Title == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if ul.VideoURL != nil && *ul.VideoURL == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "video_url", Error: "this field is required"})
	}
	return validate.Struct(ul)
}

func (ul UpdateLesson) apply(l *Lesson) {
	if ul.ClassID != nil {
		l.ClassID = *ul.ClassID
	}
	if ul.Title != nil {
		l.Title = *ul.Title
	}
	if ul.Description != nil {
		l.Description = *ul.Description
	}
	if ul.Subject != nil {
		l.Subject = *ul.Subject
	}
	if ul.VideoURL != nil {
		l.VideoURL = *ul.VideoURL
	}
	if ul.ThumbnailURL != nil {
		l.ThumbnailURL = *ul.ThumbnailURL
	}
	if ul.DurationSeconds != nil {
		l.DurationSeconds = *ul.DurationSeconds
	}
	if ul.RecordedAt != nil {
		l.RecordedAt = ul.RecordedAt
	}
	if ul.Published != nil {
		l.Published = *ul.Published
	}
}

// LessonFilter is applied with AND semantics; zero fields are ignored.
// A non-nil empty ClassIDs or IDs matches no lesson.
type LessonFilter struct {
	Search        string
	Subject       string
	ClassIDs      []string
	TutorID       string
	PublishedOnly bool
	IDs           []string
}

func (lf *LessonFilter) Clean() {
	lf.Search = core.CleanString(lf.Search)
	lf.Subject = core.CleanString(lf.Subject)
}

func (lf LessonFilter) IsNone() bool {
	return (lf.ClassIDs != nil && len(lf.ClassIDs) == 0) || (lf.IDs != nil && len(lf.IDs) == 0)
}

// Match reports whether l satisfies the filter.
func (lf LessonFilter) Match(l Lesson) bool {
	if lf.Search != "" {
		s := strings.ToLower(lf.Search)
		if !strings.Contains(strings.ToLower(l.Title), s) && !strings.Contains(strings.ToLower(l.Description), s) {
			return false
		}
	}
	if lf.Subject != "" && !strings.EqualFold(l.Subject, lf.Subject) {
		return false
	}
	if lf.ClassIDs != nil && !core.StringInSlice(l.ClassID, lf.ClassIDs) {
		return false
	}
	if lf.TutorID != "" && l.TutorID != lf.TutorID {
		return false
	}
	if lf.PublishedOnly && !l.Published {
		return false
	}
	if lf.IDs != nil && !core.StringInSlice(l.ID, lf.IDs) {
		return false
	}
	return true
}

// LessonOrderingFields lists the fields Lessons can be ordered by.
var LessonOrderingFields = []string{"title", "subject", "recorded_at", "created_at"}

type Bundle struct {
	ID          string    `json:"id"`
	TutorID     string    `json:"tutor_id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	LessonIDs   []string  `json:"lesson_ids"` // ordered
	Lessons     []Lesson  `json:"lessons"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewBundle struct {
	ClassID     string   `json:"class_id" validate:"omitempty,uuid"`
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	LessonIDs   []string `json:"lesson_ids" validate:"omitempty,dive,uuid"`
}

func (nb *NewBundle) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Description = core.CleanString(nb.Description)
	nb.LessonIDs = core.UniqueStrings(nb.LessonIDs)
	return validate.Struct(nb)
}

// UpdateBundle defines what information may be provided to modify an existing Bundle.
// A non-nil LessonIDs replaces the bundle's lessons.
type UpdateBundle struct {
	ClassID     *string  `json:"class_id" validate:"omitempty,uuid"`
	Title       *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description"`
	LessonIDs   []string `json:"lesson_ids" validate:"omitempty,dive,uuid"`
}

func (ub *UpdateBundle) Validate(validate *validator.Validate) error {
	if ub.Title != nil {
		*ub.Title = core.CleanString(*ub.Title)
		if *ub.Title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
		}
	}
	if ub.Description != nil {
		*ub.Description = core.CleanString(*ub.Description)
	}
	if ub.LessonIDs != nil {
		ub.LessonIDs = core.UniqueStrings(ub.LessonIDs)
	}
	return validate.Struct(ub)
}

// BundleFilter is applied with AND semantics; zero fields are ignored.
// A non-nil empty ClassIDs matches no bundle. PublishedOnly drops unpublished lessons from the bundles.
type BundleFilter struct {
	Search        string
	TutorID       string
	ClassIDs      []string
	PublishedOnly bool
}

func (bf BundleFilter) IsNone() bool {
	return bf.ClassIDs != nil && len(bf.ClassIDs) == 0
}

// BundleOrderingFields lists the fields Bundles can be ordered by.
var BundleOrderingFields = []string{"title", "created_at"}
