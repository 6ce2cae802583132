package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/dashboard"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/email"
	"github.com/tutora/backend/storage/database/inmem"
	"github.com/tutora/backend/tests"
)

func TestService(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	restore := dashboard.SetNowFunc(func() time.Time { return now })
	defer restore()

	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	ctx := context.Background()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)
	clsRepo := inmemdb.NewClassRepository(db)
	feeRepo := inmemdb.NewFeeRepository(db)
	recRepo := inmemdb.NewRecordingRepository(db)

	usrSvc := user.NewService(usrRepo, emailsvc.NewServiceMock(conf, logger), conf, logger)
	stSvc := student.NewService(stRepo, nil, logger)
	clsSvc := class.NewService(clsRepo, stSvc, logger)
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), clsSvc, attendance.NewEnricher(stSvc, clsSvc), logger)
	feeSvc := fee.NewService(feeRepo, clsSvc, stSvc, logger)
	recSvc := recording.NewService(recRepo, logger)
	svc := dashboard.NewService(usrSvc, stSvc, clsSvc, attSvc, feeSvc, recSvc)

	testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	tutor := testutil.CreateUser(t, usrRepo, "Tina Tutor", "tina", "tina@test.cd", "", user.TutorRoles, true)
	testutil.CreateUser(t, usrRepo, "Tom Tutor", "tom", "tom@test.cd", "", user.TutorRoles, true)
	testutil.CreateUser(t, usrRepo, "Pat Parent", "pat", "pat@test.cd", "", user.ParentRoles, true)

	alice := testutil.CreateStudent(t, stRepo, student.Student{Name: "Alice"})
	bob := testutil.CreateStudent(t, stRepo, student.Student{Name: "Bob"})
	carl := testutil.CreateStudent(t, stRepo, student.Student{Name: "Carl"})
	maths := testutil.CreateClass(t, clsRepo, class.Class{Name: "Maths", TutorID: tutor.ID}, alice.ID, bob.ID)
	testutil.CreateClass(t, clsRepo, class.Class{Name: "Physics", TutorID: tutor.ID}, bob.ID)
	english := testutil.CreateClass(t, clsRepo, class.Class{Name: "English"}, carl.ID)

	today := core.DateOf(now)
	mark := func(cls class.Class, st student.Student, day core.Date, status string) {
		_, err := attSvc.Mark(ctx, attendance.NewRecord{StudentID: st.ID, ClassID: cls.ID, Date: day, Status: status}, tutor.ID)
		require.NoError(t, err)
	}
	mark(maths, alice, today, "present")
	mark(maths, bob, today, "absent")
	mark(english, carl, today, "late")
	mark(maths, alice, today.AddDays(-1), "absent")

	// far from the real clock, which the fee package reads
	realToday := core.DateOf(time.Now().UTC())
	reminder := func(st student.Student, tutorID string, amount float64, due core.Date, status string) {
		stamp := time.Now().UTC()
		_, err := feeRepo.CreateReminder(ctx, fee.Reminder{
			StudentID: st.ID, TutorID: tutorID, Title: "Tuition", Amount: amount, Currency: "USD",
			DueDate: due, Status: status, CreatedAt: stamp, UpdatedAt: stamp,
		})
		require.NoError(t, err)
	}
	reminder(alice, tutor.ID, 30, realToday.AddDays(30), fee.StatusPending)
	reminder(bob, tutor.ID, 20, realToday.AddDays(-30), fee.StatusPending)
	reminder(carl, "", 15, realToday.AddDays(-30), fee.StatusPaid)

	_, err := recSvc.CreateLesson(ctx, tutor.ID, recording.NewLesson{Title: "Fractions", VideoURL: "https://videos.test/1"})
	require.NoError(t, err)

	t.Run("admin", func(t *testing.T) {
		dash, err := svc.Admin(ctx)
		require.NoError(t, err)
		assert.Equal(t, dashboard.Admin{
			Students:        3,
			Tutors:          2,
			Parents:         1,
			Classes:         3,
			TodayAttendance: attendance.Summary{Total: 3, Present: 1, Absent: 1, Late: 1, AttendanceRate: 66.67},
			Fees:            fee.Totals{Pending: 30, Overdue: 20, Paid: 15, Count: 3},
		}, dash)
	})

	t.Run("tutor", func(t *testing.T) {
		dash, err := svc.Tutor(ctx, tutor.ID)
		require.NoError(t, err)
		assert.Equal(t, dashboard.Tutor{
			Classes:         2,
			Students:        2,
			TodayAttendance: attendance.Summary{Total: 2, Present: 1, Absent: 1, AttendanceRate: 50},
			Fees:            fee.Totals{Pending: 30, Overdue: 20, Count: 2},
			Lessons:         1,
		}, dash)
	})

	t.Run("tutor without classes", func(t *testing.T) {
		dash, err := svc.Tutor(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
		require.NoError(t, err)
		assert.Equal(t, dashboard.Tutor{}, dash)
	})
}
