package recording_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/storage/database/inmem"
	"github.com/tutora/backend/tests"
)

const (
	tutorID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	otherID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
)

func setup() recording.Service {
	logger := testutil.NewLogger(core.NewTestConfig())
	return recording.NewService(inmemdb.NewRecordingRepository(inmemdb.NewDB()), logger)
}

func TestNewLesson_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		lesson  recording.NewLesson
		wantErr string
	}{
		{
			name:   "valid",
			lesson: recording.NewLesson{Title: " Fractions ", VideoURL: "https://videos.test/fractions.mp4"},
		},
		{
			name:    "title required",
			lesson:  recording.NewLesson{Title: "  ", VideoURL: "https://videos.test/fractions.mp4"},
			wantErr: "title",
		},
		{
			name:    "not a web url",
			lesson:  recording.NewLesson{Title: "Fractions", VideoURL: "ftp://videos.test/fractions.mp4"},
			wantErr: "video_url",
		},
		{
			name:    "negative duration",
			lesson:  recording.NewLesson{Title: "Fractions", VideoURL: "http://videos.test/1", DurationSeconds: -1},
			wantErr: "duration_seconds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lesson.Validate(validate)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Fractions", tt.lesson.Title)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("update cannot blank the title", func(t *testing.T) {
		blank := " "
		ul := recording.UpdateLesson{Title: &blank}
		assert.EqualError(t, ul.Validate(validate), "title: this field is required")
	})
}

func TestService_Lessons(t *testing.T) {
	svc := setup()
	ctx := context.Background()
	recorded := time.Date(2024, time.March, 4, 14, 0, 0, 0, time.FixedZone("WAT", 3600))

	fractions, err := svc.CreateLesson(ctx, tutorID, recording.NewLesson{
		Title: "Fractions", Subject: "Maths", VideoURL: "https://videos.test/1", RecordedAt: &recorded, Published: true,
	})
	require.NoError(t, err)
	assert.Equal(t, tutorID, fractions.TutorID)
	assert.Equal(t, time.UTC, fractions.RecordedAt.Location())
	assert.True(t, recorded.Equal(*fractions.RecordedAt))

	draft, err := svc.CreateLesson(ctx, tutorID, recording.NewLesson{
		Title: "Acids", Description: "bases too", Subject: "Chemistry", VideoURL: "https://videos.test/2",
	})
	require.NoError(t, err)
	_, err = svc.CreateLesson(ctx, otherID, recording.NewLesson{Title: "Poems", Subject: "English", VideoURL: "https://videos.test/3"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter *recording.LessonFilter
		want   []string
	}{
		{name: "all, by title", want: []string{"Acids", "Fractions", "Poems"}},
		{name: "search in description", filter: &recording.LessonFilter{Search: "BASES"}, want: []string{"Acids"}},
		{name: "subject", filter: &recording.LessonFilter{Subject: "maths"}, want: []string{"Fractions"}},
		{name: "tutor", filter: &recording.LessonFilter{TutorID: otherID}, want: []string{"Poems"}},
		{name: "published", filter: &recording.LessonFilter{PublishedOnly: true}, want: []string{"Fractions"}},
		{name: "no classes", filter: &recording.LessonFilter{ClassIDs: []string{}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons, err := svc.QueryLessons(ctx, tt.filter, []core.DBOrdering{{Field: "title", Ascending: true}})
			require.NoError(t, err)
			titles := make([]string, 0, len(lessons))
			for _, l := range lessons {
				titles = append(titles, l.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}

	t.Run("publish", func(t *testing.T) {
		published := true
		l, err := svc.UpdateLesson(ctx, draft.ID, recording.UpdateLesson{Published: &published})
		require.NoError(t, err)
		assert.True(t, l.Published)
		assert.Equal(t, "Acids", l.Title)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteLesson(ctx, draft.ID))
		_, err := svc.GetLesson(ctx, draft.ID)
		assert.Equal(t, recording.ErrNotFound, err)
		_, err = svc.UpdateLesson(ctx, draft.ID, recording.UpdateLesson{})
		assert.Equal(t, recording.ErrNotFound, err)
	})
}

func TestService_Bundles(t *testing.T) {
	svc := setup()
	ctx := context.Background()
	lesson := func(tutor, title string, published bool) recording.Lesson {
		l, err := svc.CreateLesson(ctx, tutor, recording.NewLesson{Title: title, VideoURL: "https://videos.test/" + title, Published: published})
		require.NoError(t, err)
		return l
	}
	one := lesson(tutorID, "one", true)
	two := lesson(tutorID, "two", false)
	three := lesson(tutorID, "three", true)
	foreign := lesson(otherID, "foreign", true)

	b, err := svc.CreateBundle(ctx, tutorID, recording.NewBundle{Title: "Term 1", LessonIDs: []string{three.ID, one.ID, two.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{three.ID, one.ID, two.ID}, b.LessonIDs)
	require.Len(t, b.Lessons, 3)
	assert.Equal(t, "three", b.Lessons[0].Title)

	t.Run("students only see published lessons", func(t *testing.T) {
		got, err := svc.GetBundle(ctx, b.ID, true)
		require.NoError(t, err)
		require.Len(t, got.Lessons, 2)
		assert.Equal(t, []string{"three", "one"}, []string{got.Lessons[0].Title, got.Lessons[1].Title})

		bundles, err := svc.QueryBundles(ctx, &recording.BundleFilter{PublishedOnly: true}, nil)
		require.NoError(t, err)
		require.Len(t, bundles, 1)
		assert.Len(t, bundles[0].Lessons, 2)
	})

	t.Run("lessons of another tutor", func(t *testing.T) {
		_, err := svc.CreateBundle(ctx, tutorID, recording.NewBundle{Title: "Stolen", LessonIDs: []string{one.ID, foreign.ID}})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "%v", err)
		assert.Equal(t, []core.FieldError{{Field: "lesson_ids", Error: "unknown lessons: [" + foreign.ID + "]"}}, verr.Fields)
	})

	t.Run("reorder", func(t *testing.T) {
		title := "Term one"
		got, err := svc.UpdateBundle(ctx, b.ID, recording.UpdateBundle{Title: &title, LessonIDs: []string{one.ID, three.ID}})
		require.NoError(t, err)
		assert.Equal(t, "Term one", got.Title)
		assert.Equal(t, []string{one.ID, three.ID}, got.LessonIDs)
	})

	t.Run("deleted lessons leave the bundle", func(t *testing.T) {
		require.NoError(t, svc.DeleteLesson(ctx, one.ID))
		got, err := svc.GetBundle(ctx, b.ID, false)
		require.NoError(t, err)
		assert.Equal(t, []string{three.ID}, got.LessonIDs)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteBundle(ctx, b.ID))
		assert.Equal(t, recording.ErrBundleNotFound, svc.DeleteBundle(ctx, b.ID))
	})
}
