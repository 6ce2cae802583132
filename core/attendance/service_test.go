package attendance_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/storage/cache"
	"github.com/tutora/backend/storage/database/inmem"
	"github.com/tutora/backend/tests"
)

type fixture struct {
	svc        attendance.Service
	maths      class.Class
	alice, bob student.Student
	outsider   student.Student
	markedBy   string
}

func setup(t *testing.T) fixture {
	logger := testutil.NewLogger(core.NewTestConfig())
	db := inmemdb.NewDB()
	stRepo := inmemdb.NewStudentRepository(db)
	clsRepo := inmemdb.NewClassRepository(db)
	stSvc := student.NewService(stRepo, cache.NewMemoryStudentCache(time.Minute, 0), logger)
	clsSvc := class.NewService(clsRepo, stSvc, logger)

	alice := testutil.CreateStudent(t, stRepo, student.Student{Name: "Alice", Grade: 5})
	bob := testutil.CreateStudent(t, stRepo, student.Student{Name: "Bob"})
	outsider := testutil.CreateStudent(t, stRepo, student.Student{Name: "Zed"})
	maths := testutil.CreateClass(t, clsRepo, class.Class{Name: "Maths"}, alice.ID, bob.ID)

	svc := attendance.NewService(inmemdb.NewAttendanceRepository(db), clsSvc, attendance.NewEnricher(stSvc, clsSvc), logger)
	return fixture{
		svc:      svc,
		maths:    maths,
		alice:    alice,
		bob:      bob,
		outsider: outsider,
		markedBy: "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	}
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "%v", err)
	return verr.Fields
}

func TestService_Mark(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	day := testutil.Date(2024, time.March, 4)

	rec, err := f.svc.Mark(ctx, attendance.NewRecord{
		StudentID: f.alice.ID, ClassID: f.maths.ID, Date: day, Status: "Late", Remarks: "bus",
	}, f.markedBy)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, attendance.StatusLate, rec.Status)
	assert.Equal(t, f.markedBy, rec.MarkedBy)

	t.Run("marking again updates the record", func(t *testing.T) {
		again, err := f.svc.Mark(ctx, attendance.NewRecord{
			StudentID: f.alice.ID, ClassID: f.maths.ID, Date: day, Status: "present",
		}, f.markedBy)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, again.ID)
		assert.Equal(t, attendance.StatusPresent, again.Status)
		assert.Equal(t, "", again.Remarks)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, attendance.NewRecord{
			StudentID: f.alice.ID, ClassID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Date: day, Status: "present",
		}, f.markedBy)
		assert.Equal(t, []core.FieldError{{Field: "class_id", Error: class.ErrNotFound.Error()}}, fieldErrors(t, err))
	})

	t.Run("student not in the class", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, attendance.NewRecord{
			StudentID: f.outsider.ID, ClassID: f.maths.ID, Date: day, Status: "present",
		}, f.markedBy)
		assert.Equal(t, []core.FieldError{{
			Field: "student_id",
			Error: "students not assigned to the class: [" + f.outsider.ID + "]",
		}}, fieldErrors(t, err))
	})
}

func TestService_MarkBulk(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	day := testutil.Date(2024, time.March, 4)

	recs, err := f.svc.MarkBulk(ctx, attendance.BulkMark{
		ClassID: f.maths.ID,
		Date:    day,
		Marks: []attendance.Mark{
			{StudentID: f.alice.ID, Status: "absent"},
			{StudentID: f.bob.ID, Status: "present"},
			{StudentID: f.alice.ID, Status: "excused", Remarks: "doctor"},
		},
	}, f.markedBy)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, f.alice.ID, recs[0].StudentID)
	assert.Equal(t, attendance.StatusExcused, recs[0].Status)
	assert.Equal(t, "doctor", recs[0].Remarks)
	assert.Equal(t, attendance.StatusPresent, recs[1].Status)

	t.Run("all or nothing", func(t *testing.T) {
		_, err := f.svc.MarkBulk(ctx, attendance.BulkMark{
			ClassID: f.maths.ID,
			Date:    day.AddDays(1),
			Marks: []attendance.Mark{
				{StudentID: f.alice.ID, Status: "present"},
				{StudentID: f.outsider.ID, Status: "present"},
			},
		}, f.markedBy)
		require.Error(t, err)
		assert.Equal(t, "student_id", fieldErrors(t, err)[0].Field)

		summary, err := f.svc.Summary(ctx, &attendance.QueryFilter{From: day.AddDays(1)})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Total)
	})
}

func TestService_QueryStatsExport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mon := testutil.Date(2024, time.March, 4)
	tue := mon.AddDays(1)

	mark := func(st student.Student, day core.Date, status string) attendance.Record {
		time.Sleep(time.Millisecond) // distinct created_at
		rec, err := f.svc.Mark(ctx, attendance.NewRecord{StudentID: st.ID, ClassID: f.maths.ID, Date: day, Status: status}, f.markedBy)
		require.NoError(t, err)
		return rec
	}
	mark(f.bob, tue, "absent")
	mark(f.alice, tue, "late")
	mark(f.alice, mon, "present")
	bobMon := mark(f.bob, mon, "present")

	t.Run("query", func(t *testing.T) {
		entries, err := f.svc.Query(ctx, &attendance.QueryFilter{StudentIDs: []string{f.alice.ID}}, nil)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		// newest first by default
		assert.Equal(t, tue, entries[0].Date)
		assert.Equal(t, "Alice", entries[0].StudentName)
		assert.Equal(t, 5, entries[0].StudentGrade)
		assert.Equal(t, "Maths", entries[0].ClassName)

		entries, err = f.svc.Query(ctx, &attendance.QueryFilter{ClassIDs: []string{}}, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := f.svc.Stats(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, attendance.Summary{Total: 4, Present: 2, Absent: 1, Late: 1, AttendanceRate: 75}, stats.Overall)
		require.Len(t, stats.ByStudent, 2)
		assert.Equal(t, "Alice", stats.ByStudent[0].StudentName)
		assert.Equal(t, 100.0, stats.ByStudent[0].AttendanceRate)
		assert.Equal(t, 50.0, stats.ByStudent[1].AttendanceRate)
		require.Len(t, stats.ByDay, 2)
		assert.Equal(t, mon, stats.ByDay[0].Date)

		summary, err := f.svc.Summary(ctx, &attendance.QueryFilter{Status: attendance.StatusPresent})
		require.NoError(t, err)
		assert.Equal(t, attendance.Summary{Total: 2, Present: 2, AttendanceRate: 100}, summary)
	})

	t.Run("export", func(t *testing.T) {
		exp, err := f.svc.Export(ctx, nil, attendance.FormatCSV)
		require.NoError(t, err)
		rows, err := csv.NewReader(bytes.NewReader(exp.Content)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 5)
		// by date, then in marking order
		assert.Equal(t, []string{"2024-03-04", "Alice", "5", "Maths", "present", ""}, rows[1])
		assert.Equal(t, []string{"2024-03-04", "Bob", "", "Maths", "present", ""}, rows[2])
		assert.Equal(t, []string{"2024-03-05", "Bob", "", "Maths", "absent", ""}, rows[3])
		assert.Equal(t, []string{"2024-03-05", "Alice", "5", "Maths", "late", ""}, rows[4])

		_, err = f.svc.Export(ctx, nil, "pdf")
		assert.Equal(t, []core.FieldError{{Field: "format", Error: attendance.ErrUnknownFormat.Error()}}, fieldErrors(t, err))
	})

	t.Run("update and delete", func(t *testing.T) {
		status, remarks := "late", " traffic "
		ur := attendance.UpdateRecord{Status: &status, Remarks: &remarks}
		validate, _ := testutil.NewValidator()
		require.NoError(t, ur.Validate(validate))

		rec, err := f.svc.Update(ctx, bobMon.ID, ur, "someone")
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusLate, rec.Status)
		assert.Equal(t, "traffic", rec.Remarks)
		assert.Equal(t, "someone", rec.MarkedBy)

		require.NoError(t, f.svc.Delete(ctx, bobMon.ID))
		_, err = f.svc.GetByID(ctx, bobMon.ID)
		assert.Equal(t, attendance.ErrNotFound, err)
		assert.Equal(t, attendance.ErrNotFound, f.svc.Delete(ctx, bobMon.ID))
	})
}
