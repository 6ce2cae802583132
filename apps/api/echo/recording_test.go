package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/recording"
)

// recordingFixtures: l1 & l2 by tutor1 (l2 unpublished), l3 by tutor2.
type recordingFixtures struct {
	fixtures
	l1, l2, l3 recording.Lesson
}

func createRecordingFixtures(t *testing.T) recordingFixtures {
	fx := recordingFixtures{fixtures: createFixtures(t)}
	start := time.Now().UTC()
	lesson := func(i int, tutor, cls, title string, published bool) recording.Lesson {
		created := start.Add(time.Duration(i) * time.Second)
		l, err := recRepo.CreateLesson(context.Background(), recording.Lesson{
			TutorID:   tutor,
			ClassID:   cls,
			Title:     title,
			Subject:   "Maths",
			VideoURL:  "https://videos.test.cd/" + title,
			Published: published,
			CreatedAt: created,
			UpdatedAt: created,
		})
		require.NoError(t, err)
		return l
	}
	fx.l1 = lesson(1, fx.tutor1.ID, fx.maths.ID, "Fractions", true)
	fx.l2 = lesson(2, fx.tutor1.ID, fx.maths.ID, "Decimals", false)
	fx.l3 = lesson(3, fx.tutor2.ID, fx.physics.ID, "Forces", true)
	return fx
}

func Test_recordingApi_lessons(t *testing.T) {
	app := setup(t)
	fx := createRecordingFixtures(t)
	tutorToken := getToken(t, fx.tutor1)
	adminToken := getToken(t, fx.admin)

	path := "/v1/tutor/recorded-lessons"
	published := true
	tests := []httpTest{
		{name: "Staff only", path: path, token: getToken(t, fx.parent), wantCode: http.StatusForbidden},
		{name: "Tutor sees own, latest first", path: path, token: tutorToken, wantIDs: []string{fx.l2.ID, fx.l1.ID}},
		{name: "published=true", path: path + "?published=true", token: tutorToken, wantIDs: []string{fx.l1.ID}},
		{
			name: "published=lol", path: path + "?published=lol", token: tutorToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"published": "must be a boolean"}),
		},
		{name: "search", path: path + "?search=FRACT", token: tutorToken, wantIDs: []string{fx.l1.ID}},
		{name: "order by title", path: path + "?ordering=title", token: tutorToken, wantIDs: []string{fx.l2.ID, fx.l1.ID}},
		{name: "Admin sees all", path: path, token: adminToken, wantIDs: []string{fx.l3.ID, fx.l2.ID, fx.l1.ID}},
		{name: "Admin filters by tutor", path: path + "?tutor_id=" + fx.tutor2.ID, token: adminToken, wantIDs: []string{fx.l3.ID}},
		{name: "Other tutor's lesson", path: path + "/" + fx.l1.ID, token: getToken(t, fx.tutor2), wantCode: http.StatusNotFound},
		{name: "Own lesson", path: path + "/" + fx.l1.ID, token: tutorToken, wantData: marshallObj(t, fx.l1)},
		{
			name: "Video required", method: http.MethodPost, path: path, token: tutorToken, wantCode: http.StatusBadRequest,
			body:     marshallObj(t, recording.NewLesson{Title: "Percentages"}),
			wantData: marshallObj(t, map[string]string{"video_url": "this field is required"}),
		},
		{
			name: "Video must be a web link", method: http.MethodPost, path: path, token: tutorToken, wantCode: http.StatusBadRequest,
			body: marshallObj(t, recording.NewLesson{Title: "Percentages", VideoURL: "ftp://videos.test.cd/pct"}),
		},
		{
			name: "Class of another tutor", method: http.MethodPost, path: path, token: tutorToken, wantCode: http.StatusForbidden,
			body: marshallObj(t, recording.NewLesson{Title: "Percentages", VideoURL: "https://videos.test.cd/pct", ClassID: fx.physics.ID}),
		},
		{
			name: "Created", method: http.MethodPost, path: path, token: tutorToken, wantCode: http.StatusCreated,
			body: marshallObj(t, recording.NewLesson{Title: " Percentages ", VideoURL: "https://videos.test.cd/pct", ClassID: fx.maths.ID, DurationSeconds: 600}),
		},
		{name: "Published", method: http.MethodPut, path: path + "/" + fx.l2.ID, token: tutorToken, body: marshallObj(t, recording.UpdateLesson{Published: &published})},
		{name: "Other tutor cannot delete", method: http.MethodDelete, path: path + "/" + fx.l1.ID, token: getToken(t, fx.tutor2), wantCode: http.StatusNotFound},
		{name: "Deleted", method: http.MethodDelete, path: path + "/" + fx.l1.ID, token: tutorToken, wantCode: http.StatusNoContent},
	}
	runTests(t, app, tests)

	lessons, err := recRepo.QueryLessons(context.Background(), &recording.LessonFilter{TutorID: fx.tutor1.ID},
		[]core.DBOrdering{{Field: "title", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, fx.l2.ID, lessons[0].ID)
	assert.True(t, lessons[0].Published)
	assert.Equal(t, "Percentages", lessons[1].Title)
	assert.Equal(t, 600, lessons[1].DurationSeconds)
	assert.False(t, lessons[1].Published)
}

func Test_recordingApi_bundles(t *testing.T) {
	app := setup(t)
	fx := createRecordingFixtures(t)
	tutorToken := getToken(t, fx.tutor1)
	path := "/v1/recordings/bundles"

	t.Run("Foreign lessons", func(t *testing.T) {
		body := marshallObj(t, recording.NewBundle{Title: "Mix", LessonIDs: []string{fx.l1.ID, fx.l3.ID}})
		req, rec := newAuthRequest(http.MethodPost, path, tutorToken, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, string(marshallObj(t, map[string]string{"lesson_ids": "unknown lessons: [" + fx.l3.ID + "]"})), rec.Body.String())
	})

	var bundle recording.Bundle
	t.Run("Created", func(t *testing.T) {
		body := marshallObj(t, recording.NewBundle{Title: "Numbers", ClassID: fx.maths.ID, LessonIDs: []string{fx.l2.ID, fx.l1.ID, fx.l2.ID}})
		req, rec := newAuthRequest(http.MethodPost, path, tutorToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decode(t, rec, &bundle)
		assert.Equal(t, fx.tutor1.ID, bundle.TutorID)
		assert.Equal(t, []string{fx.l2.ID, fx.l1.ID}, bundle.LessonIDs)
		require.Len(t, bundle.Lessons, 2)
		assert.Equal(t, "Decimals", bundle.Lessons[0].Title)
		assert.Equal(t, "Fractions", bundle.Lessons[1].Title)
	})
	require.NotEmpty(t, bundle.ID)

	tests := []httpTest{
		{name: "Staff only", path: path, token: getToken(t, fx.studentUsr), wantCode: http.StatusForbidden},
		{name: "Tutor sees own", path: path, token: tutorToken, wantIDs: []string{bundle.ID}},
		{name: "Other tutor", path: path, token: getToken(t, fx.tutor2), wantIDs: []string{}},
		{name: "Other tutor's bundle", path: path + "/" + bundle.ID, token: getToken(t, fx.tutor2), wantCode: http.StatusNotFound},
		{name: "Reordered", method: http.MethodPut, path: path + "/" + bundle.ID, token: tutorToken, body: marshallObj(t, recording.UpdateBundle{LessonIDs: []string{fx.l1.ID}})},
	}
	runTests(t, app, tests)

	t.Run("Retrieved", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path+"/"+bundle.ID, tutorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var b recording.Bundle
		decode(t, rec, &b)
		assert.Equal(t, []string{fx.l1.ID}, b.LessonIDs)
		require.Len(t, b.Lessons, 1)
		assert.Equal(t, fx.l1.ID, b.Lessons[0].ID)
	})

	t.Run("Deleted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path+"/"+bundle.ID, tutorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := recRepo.GetBundle(context.Background(), bundle.ID)
		assert.Equal(t, recording.ErrBundleNotFound, err)
	})
}
