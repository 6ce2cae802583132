package echoapi_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/tests"
)

// attendanceFixtures marks maths on March 4 & 5 and physics on March 5, 2024:
//   - r1: alice present (4th)
//   - r2: bob absent (4th)
//   - r3: alice late (5th)
//   - r4: carl excused (5th)
type attendanceFixtures struct {
	fixtures
	r1, r2, r3, r4 attendance.Record
}

func createAttendanceFixtures(t *testing.T) attendanceFixtures {
	fx := attendanceFixtures{fixtures: createFixtures(t)}
	start := time.Now().UTC()
	rec := func(i int, st, cls string, day int, status attendance.Status) attendance.Record {
		created := start.Add(time.Duration(i) * time.Second)
		return attendance.Record{
			StudentID: st,
			ClassID:   cls,
			Date:      testutil.Date(2024, time.March, day),
			Status:    status,
			MarkedBy:  fx.admin.ID,
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
	recs, err := attRepo.UpsertRecords(context.Background(),
		rec(1, fx.alice.ID, fx.maths.ID, 4, attendance.StatusPresent),
		rec(2, fx.bob.ID, fx.maths.ID, 4, attendance.StatusAbsent),
		rec(3, fx.alice.ID, fx.maths.ID, 5, attendance.StatusLate),
		rec(4, fx.carl.ID, fx.physics.ID, 5, attendance.StatusExcused),
	)
	require.NoError(t, err)
	fx.r1, fx.r2, fx.r3, fx.r4 = recs[0], recs[1], recs[2], recs[3]
	return fx
}

func Test_attendanceApi_query(t *testing.T) {
	app := setup(t)
	fx := createAttendanceFixtures(t)
	adminToken := getToken(t, fx.admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/attendance", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "Admin sees all, latest first", path: "/v1/attendance", token: adminToken, wantIDs: []string{fx.r4.ID, fx.r3.ID, fx.r2.ID, fx.r1.ID}},
		{name: "Tutor sees own classes", path: "/v1/attendance", token: getToken(t, fx.tutor1), wantIDs: []string{fx.r3.ID, fx.r2.ID, fx.r1.ID}},
		{name: "Other tutor", path: "/v1/attendance", token: getToken(t, fx.tutor2), wantIDs: []string{fx.r4.ID}},
		{name: "Parent sees children", path: "/v1/attendance", token: getToken(t, fx.parent), wantIDs: []string{fx.r3.ID, fx.r1.ID}},
		{name: "Student sees self", path: "/v1/attendance", token: getToken(t, fx.studentUsr), wantIDs: []string{fx.r4.ID}},
		{name: "Tutor asks for another class", path: "/v1/attendance?class_id=" + fx.physics.ID, token: getToken(t, fx.tutor1), wantIDs: []string{}},
		{name: "student_id", path: "/v1/attendance?student_id=" + fx.alice.ID, token: adminToken, wantIDs: []string{fx.r3.ID, fx.r1.ID}},
		{name: "status=absent", path: "/v1/attendance?status=absent", token: adminToken, wantIDs: []string{fx.r2.ID}},
		{name: "status=LATE", path: "/v1/attendance?status=LATE", token: adminToken, wantIDs: []string{fx.r3.ID}},
		{
			name: "status=lol", path: "/v1/attendance?status=lol", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"status": "must be one of present, absent, late, excused"}),
		},
		{name: "from", path: "/v1/attendance?from=2024-03-05", token: adminToken, wantIDs: []string{fx.r4.ID, fx.r3.ID}},
		{name: "to", path: "/v1/attendance?to=2024-03-04", token: adminToken, wantIDs: []string{fx.r2.ID, fx.r1.ID}},
		{
			name: "to before from", path: "/v1/attendance?from=2024-03-05&to=2024-03-04", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"to": "must not be before from"}),
		},
		{
			name: "Bad date", path: "/v1/attendance?from=05/03/2024", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"from": "must be a date formatted as YYYY-MM-DD"}),
		},
		{name: "order by status", path: "/v1/attendance?ordering=status", token: adminToken, wantIDs: []string{fx.r2.ID, fx.r4.ID, fx.r3.ID, fx.r1.ID}},
	}
	runTests(t, app, tests)

	t.Run("Entries are decorated", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance?student_id="+fx.alice.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []attendance.Entry
		decode(t, rec, &entries)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, "Alice", e.StudentName)
			assert.Equal(t, 5, e.StudentGrade)
			assert.Equal(t, "Maths", e.ClassName)
		}
	})
}

func Test_attendanceApi_mark(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t)
	tutorToken := getToken(t, fx.tutor1)

	day := testutil.Date(2024, time.March, 6)
	mark := func(st, cls, status string) []byte {
		return marshallObj(t, attendance.NewRecord{StudentID: st, ClassID: cls, Date: day, Status: status})
	}

	tests := []httpTest{
		{name: "Staff only", token: getToken(t, fx.parent), body: mark(fx.alice.ID, fx.maths.ID, "present"), wantCode: http.StatusForbidden},
		{
			name: "Date required", token: tutorToken, wantCode: http.StatusBadRequest,
			body:     marshallObj(t, attendance.NewRecord{StudentID: fx.alice.ID, ClassID: fx.maths.ID, Status: "present"}),
			wantData: marshallObj(t, map[string]string{"date": "this field is required"}),
		},
		{
			name: "Unknown status", token: tutorToken, body: mark(fx.alice.ID, fx.maths.ID, "sick"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"status": "status must be one of present, absent, late or excused"}),
		},
		{name: "Other tutor's class", token: getToken(t, fx.tutor2), body: mark(fx.alice.ID, fx.maths.ID, "present"), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{
			name: "Student not in class", token: tutorToken, body: mark(fx.carl.ID, fx.maths.ID, "present"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"student_id": "students not assigned to the class: [" + fx.carl.ID + "]"}),
		},
		{
			name: "Unknown class", token: getToken(t, fx.admin), body: mark(fx.alice.ID, fx.bob.ID, "present"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"class_id": "class not found"}),
		},
		{name: "Marked", token: tutorToken, body: mark(fx.alice.ID, fx.maths.ID, "Present"), wantCode: http.StatusCreated},
		{name: "Marked again", token: tutorToken, body: mark(fx.alice.ID, fx.maths.ID, "absent"), wantCode: http.StatusCreated},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/attendance"
	}
	runTests(t, app, tests)

	// the second mark replaced the first
	recs, err := attRepo.QueryRecords(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fx.alice.ID, recs[0].StudentID)
	assert.Equal(t, attendance.StatusAbsent, recs[0].Status)
	assert.Equal(t, fx.tutor1.ID, recs[0].MarkedBy)
	assert.True(t, recs[0].Date.Equal(day))
}

func Test_attendanceApi_markBulk(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t)
	tutorToken := getToken(t, fx.tutor1)

	day := testutil.Date(2024, time.March, 7)
	bulk := func(marks ...attendance.Mark) []byte {
		return marshallObj(t, attendance.BulkMark{ClassID: fx.maths.ID, Date: day, Marks: marks})
	}

	tests := []httpTest{
		{name: "No marks", token: tutorToken, body: bulk(), wantCode: http.StatusBadRequest},
		{
			name: "Student not in class", token: tutorToken, wantCode: http.StatusBadRequest,
			body:     bulk(attendance.Mark{StudentID: fx.alice.ID, Status: "present"}, attendance.Mark{StudentID: fx.carl.ID, Status: "present"}),
			wantData: marshallObj(t, map[string]string{"student_id": "students not assigned to the class: [" + fx.carl.ID + "]"}),
		},
		{name: "Other tutor's class", token: getToken(t, fx.tutor2), body: bulk(attendance.Mark{StudentID: fx.alice.ID, Status: "present"}), wantCode: http.StatusForbidden},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/attendance/bulk"
	}
	runTests(t, app, tests)

	t.Run("Marked", func(t *testing.T) {
		body := bulk(
			attendance.Mark{StudentID: fx.alice.ID, Status: "present"},
			attendance.Mark{StudentID: fx.bob.ID, Status: "late", Remarks: " bus was late "},
			attendance.Mark{StudentID: fx.alice.ID, Status: "absent"},
		)
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/bulk", tutorToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var recs []attendance.Record
		decode(t, rec, &recs)
		require.Len(t, recs, 2)
		assert.Equal(t, fx.alice.ID, recs[0].StudentID)
		assert.Equal(t, attendance.StatusAbsent, recs[0].Status)
		assert.Equal(t, fx.bob.ID, recs[1].StudentID)
		assert.Equal(t, attendance.StatusLate, recs[1].Status)
		assert.Equal(t, "bus was late", recs[1].Remarks)
	})
}

func Test_attendanceApi_stats(t *testing.T) {
	app := setup(t)
	fx := createAttendanceFixtures(t)

	t.Run("Admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/stats", getToken(t, fx.admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats attendance.Stats
		decode(t, rec, &stats)
		assert.Equal(t, attendance.Summary{Total: 4, Present: 1, Absent: 1, Late: 1, Excused: 1, AttendanceRate: 50}, stats.Overall)

		require.Len(t, stats.ByStudent, 3)
		assert.Equal(t, "Alice", stats.ByStudent[0].StudentName)
		assert.Equal(t, 100.0, stats.ByStudent[0].AttendanceRate)
		assert.Equal(t, "Bob", stats.ByStudent[1].StudentName)
		assert.Equal(t, 0.0, stats.ByStudent[1].AttendanceRate)
		assert.Equal(t, "Carl", stats.ByStudent[2].StudentName)
		assert.Equal(t, 1, stats.ByStudent[2].Excused)

		require.Len(t, stats.ByClass, 2)
		assert.Equal(t, fx.maths.ID, stats.ByClass[0].ClassID)
		assert.Equal(t, 66.67, stats.ByClass[0].AttendanceRate)
		assert.Equal(t, fx.physics.ID, stats.ByClass[1].ClassID)

		require.Len(t, stats.ByDay, 2)
		assert.Equal(t, "2024-03-04", stats.ByDay[0].Date.String())
		assert.Equal(t, 2, stats.ByDay[0].Total)
		assert.Equal(t, "2024-03-05", stats.ByDay[1].Date.String())
	})

	t.Run("Parent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/stats", getToken(t, fx.parent))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats attendance.Stats
		decode(t, rec, &stats)
		assert.Equal(t, attendance.Summary{Total: 2, Present: 1, Late: 1, AttendanceRate: 100}, stats.Overall)
		require.Len(t, stats.ByStudent, 1)
		assert.Equal(t, fx.alice.ID, stats.ByStudent[0].StudentID)
	})

	t.Run("Nothing to see", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/stats?status=present&student_id="+fx.bob.ID, getToken(t, fx.admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{
			"overall": {"total": 0, "present": 0, "absent": 0, "late": 0, "excused": 0, "attendance_rate": 0},
			"by_student": [], "by_class": [], "by_day": []
		}`, rec.Body.String())
	})
}

func Test_attendanceApi_export(t *testing.T) {
	app := setup(t)
	fx := createAttendanceFixtures(t)
	tutorToken := getToken(t, fx.tutor1)

	wantRows := [][]string{
		{"Date", "Student", "Grade", "Class", "Status", "Remarks"},
		{"2024-03-04", "Alice", "5", "Maths", "present", ""},
		{"2024-03-04", "Bob", "6", "Maths", "absent", ""},
		{"2024-03-05", "Alice", "5", "Maths", "late", ""},
	}

	t.Run("CSV", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/export", tutorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, attendance.ContentTypeCSV, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="attendance.csv"`, rec.Header().Get("Content-Disposition"))

		rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, wantRows, rows)
	})

	t.Run("XLSX", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/export?format=xlsx", tutorToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, attendance.ContentTypeXLSX, rec.Header().Get("Content-Type"))

		book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		rows, err := book.GetRows("Attendance")
		require.NoError(t, err)
		require.Len(t, rows, len(wantRows))
		for i, row := range rows {
			// trailing empty cells are not returned
			assert.Equal(t, wantRows[i][:len(row)], row)
		}
	})

	t.Run("Unknown format", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/export?format=pdf", tutorToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"format": "format must be csv or xlsx"}`, rec.Body.String())
	})
}

func Test_attendanceApi_detail(t *testing.T) {
	app := setup(t)
	fx := createAttendanceFixtures(t)
	tutorToken := getToken(t, fx.tutor1)

	path := func(rec attendance.Record) string { return "/v1/attendance/" + rec.ID }
	excused := "excused"
	remarks := "doctor's note"
	tests := []httpTest{
		{name: "Unknown", path: "/v1/attendance/lol", token: getToken(t, fx.admin), wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound)},
		{name: "Parent sees child", path: path(fx.r1), token: getToken(t, fx.parent), wantData: marshallObj(t, fx.r1)},
		{name: "Parent of another child", path: path(fx.r2), token: getToken(t, fx.parent), wantCode: http.StatusNotFound},
		{name: "Other tutor", path: path(fx.r1), token: getToken(t, fx.tutor2), wantCode: http.StatusNotFound},
		{name: "Parent cannot update", method: http.MethodPut, path: path(fx.r1), token: getToken(t, fx.parent), body: marshallObj(t, attendance.UpdateRecord{Status: &excused}), wantCode: http.StatusForbidden},
		{name: "Updated", method: http.MethodPut, path: path(fx.r2), token: tutorToken, body: marshallObj(t, attendance.UpdateRecord{Status: &excused, Remarks: &remarks})},
		{name: "Deleted", method: http.MethodDelete, path: path(fx.r1), token: tutorToken, wantCode: http.StatusNoContent},
		{name: "Gone", path: path(fx.r1), token: tutorToken, wantCode: http.StatusNotFound},
	}
	runTests(t, app, tests)

	rec, err := attRepo.GetRecord(context.Background(), fx.r2.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusExcused, rec.Status)
	assert.Equal(t, remarks, rec.Remarks)
	assert.Equal(t, fx.tutor1.ID, rec.MarkedBy)
}
