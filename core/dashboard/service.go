// Package dashboard aggregates the figures shown on the admin and tutor home pages.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
)

var nowFunc = time.Now // mockable

type (
	Admin struct {
		Students        int                `json:"students"`
		Tutors          int                `json:"tutors"`
		Parents         int                `json:"parents"`
		Classes         int                `json:"classes"`
		TodayAttendance attendance.Summary `json:"today_attendance"`
		Fees            fee.Totals         `json:"fees"`
	}

	Tutor struct {
		Classes         int                `json:"classes"`
		Students        int                `json:"students"`
		TodayAttendance attendance.Summary `json:"today_attendance"`
		Fees            fee.Totals         `json:"fees"`
		Lessons         int                `json:"lessons"`
	}

	Service struct {
		users      user.Service
		students   student.Service
		classes    class.Service
		attendance attendance.Service
		fees       fee.Service
		recordings recording.Service
	}
)

func NewService(
	users user.Service,
	students student.Service,
	classes class.Service,
	att attendance.Service,
	fees fee.Service,
	recordings recording.Service,
) *Service {
	return &Service{
		users:      users,
		students:   students,
		classes:    classes,
		attendance: att,
		fees:       fees,
		recordings: recordings,
	}
}

func today() core.Date { return core.DateOf(nowFunc().UTC()) }

func (svc *Service) Admin(ctx context.Context) (Admin, error) {
	var dash Admin

	students, err := svc.students.Query(ctx, nil, nil)
	if err != nil {
		return Admin{}, errors.Wrap(err, "counting students")
	}
	dash.Students = len(students)

	if dash.Tutors, err = svc.users.Count(ctx, user.RoleTutor); err != nil {
		return Admin{}, errors.Wrap(err, "counting tutors")
	}
	if dash.Parents, err = svc.users.Count(ctx, user.RoleParent); err != nil {
		return Admin{}, errors.Wrap(err, "counting parents")
	}

	classes, err := svc.classes.Query(ctx, nil, nil)
	if err != nil {
		return Admin{}, errors.Wrap(err, "counting classes")
	}
	dash.Classes = len(classes)

	day := today()
	if dash.TodayAttendance, err = svc.attendance.Summary(ctx, &attendance.QueryFilter{From: day, To: day}); err != nil {
		return Admin{}, errors.Wrap(err, "summarizing attendance")
	}
	if dash.Fees, err = svc.fees.Totals(ctx, nil); err != nil {
		return Admin{}, errors.Wrap(err, "computing fee totals")
	}
	return dash, nil
}

func (svc *Service) Tutor(ctx context.Context, tutorID string) (Tutor, error) {
	var dash Tutor

	classes, err := svc.classes.Query(ctx, &class.QueryFilter{TutorID: tutorID}, nil)
	if err != nil {
		return Tutor{}, errors.Wrap(err, "querying classes")
	}
	dash.Classes = len(classes)

	classIDs := make([]string, 0, len(classes))
	var studentIDs []string
	for _, cls := range classes {
		classIDs = append(classIDs, cls.ID)
		studentIDs = append(studentIDs, cls.StudentIDs...)
	}
	dash.Students = len(core.UniqueStrings(studentIDs))

	day := today()
	if dash.TodayAttendance, err = svc.attendance.Summary(ctx, &attendance.QueryFilter{ClassIDs: classIDs, From: day, To: day}); err != nil {
		return Tutor{}, errors.Wrap(err, "summarizing attendance")
	}
	if dash.Fees, err = svc.fees.Totals(ctx, &fee.ReminderFilter{TutorID: tutorID}); err != nil {
		return Tutor{}, errors.Wrap(err, "computing fee totals")
	}

	lessons, err := svc.recordings.QueryLessons(ctx, &recording.LessonFilter{TutorID: tutorID}, nil)
	if err != nil {
		return Tutor{}, errors.Wrap(err, "counting lessons")
	}
	dash.Lessons = len(lessons)
	return dash, nil
}
