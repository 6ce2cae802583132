package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/tests"
)

func Test_portalApi_parent(t *testing.T) {
	app := setup(t)
	fx := createAttendanceFixtures(t)
	parentToken := getToken(t, fx.parent)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/parent/children", wantCode: http.StatusUnauthorized},
		{name: "Parents only", path: "/v1/parent/children", token: getToken(t, fx.tutor1), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "Children", path: "/v1/parent/children", token: parentToken, wantIDs: []string{fx.alice.ID}},
		{name: "Attendance", path: "/v1/parent/attendance", token: parentToken, wantIDs: []string{fx.r3.ID, fx.r1.ID}},
		{name: "Attendance of another child", path: "/v1/parent/attendance?student_id=" + fx.bob.ID, token: parentToken, wantIDs: []string{}},
		{name: "Attendance by status", path: "/v1/parent/attendance?status=late", token: parentToken, wantIDs: []string{fx.r3.ID}},
	}
	runTests(t, app, tests)

	t.Run("Parent without children", func(t *testing.T) {
		other := testutil.CreateUser(t, usrRepo, "Oscar Parent", "oscar", "oscar@test.cd", "", []string{user.RoleParent}, true)
		runTests(t, app, []httpTest{
			{name: "Children", path: "/v1/parent/children", token: getToken(t, other), wantIDs: []string{}},
			{name: "Attendance", path: "/v1/parent/attendance", token: getToken(t, other), wantIDs: []string{}},
		})
	})
}

func Test_portalApi_reminders(t *testing.T) {
	app := setup(t)
	fx := createFeeFixtures(t)

	tests := []httpTest{
		{name: "Parent", path: "/v1/parent/fee-reminders", token: getToken(t, fx.parent), wantIDs: []string{fx.rm3.ID, fx.rm1.ID}},
		{name: "Parent, overdue", path: "/v1/parent/fee-reminders?status=overdue", token: getToken(t, fx.parent), wantIDs: []string{fx.rm1.ID}},
		{name: "Student", path: "/v1/student/fee-reminders", token: getToken(t, fx.studentUsr), wantIDs: []string{fx.rm4.ID}},
		{name: "Student asks for another", path: "/v1/student/fee-reminders?student_id=" + fx.alice.ID, token: getToken(t, fx.studentUsr), wantIDs: []string{}},
		{name: "Students only", path: "/v1/student/fee-reminders", token: getToken(t, fx.parent), wantCode: http.StatusForbidden},
	}
	runTests(t, app, tests)
}

func Test_portalApi_student(t *testing.T) {
	app := setup(t)
	fx := createRecordingFixtures(t)
	studentToken := getToken(t, fx.studentUsr)
	ctx := context.Background()

	// an unpublished physics lesson, and a bundle mixing both
	now := time.Now().UTC()
	draft, err := recRepo.CreateLesson(ctx, recording.Lesson{
		TutorID: fx.tutor2.ID, ClassID: fx.physics.ID, Title: "Energy", VideoURL: "https://videos.test.cd/energy",
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	bundle, err := recRepo.CreateBundle(ctx, recording.Bundle{
		TutorID: fx.tutor2.ID, ClassID: fx.physics.ID, Title: "Mechanics", LessonIDs: []string{draft.ID, fx.l3.ID},
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	bundle.Lessons = []recording.Lesson{fx.l3}

	noProfile := testutil.CreateUser(t, usrRepo, "Nora Student", "nora", "nora@test.cd", "", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{name: "Students only", path: "/v1/student/profile", token: getToken(t, fx.tutor2), wantCode: http.StatusForbidden},
		{name: "Profile", path: "/v1/student/profile", token: studentToken, wantData: marshallObj(t, fx.carl)},
		{name: "No profile", path: "/v1/student/profile", token: getToken(t, noProfile), wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound)},
		{name: "Published lessons of own classes", path: "/v1/student/recorded-lessons", token: studentToken, wantIDs: []string{fx.l3.ID}},
		{name: "Lessons of another class", path: "/v1/student/recorded-lessons?class_id=" + fx.maths.ID, token: studentToken, wantIDs: []string{}},
		{name: "No profile, no lessons", path: "/v1/student/recorded-lessons", token: getToken(t, noProfile), wantCode: http.StatusNotFound},
		{name: "Bundles hide drafts", path: "/v1/student/bundles", token: studentToken, wantData: marshallObj(t, []recording.Bundle{bundle})},
		{name: "Attendance", path: "/v1/student/attendance", token: studentToken, wantIDs: []string{}},
	}
	runTests(t, app, tests)
}
