package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
)

// portalApi serves the read-only parent & student portals.
type portalApi struct {
	access     *access
	attendance attendance.Service
	fees       fee.Service
	recordings recording.Service
}

func registerPortalAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	att attendance.Service,
	fees fee.Service,
	recordings recording.Service,
) {
	api := portalApi{
		access:     acc,
		attendance: att,
		fees:       fees,
		recordings: recordings,
	}

	pg := g.Group("/parent", jwt, parentOnly)
	pg.GET("/children", api.children)
	pg.GET("/attendance", api.queryAttendance)
	pg.GET("/fee-reminders", api.queryReminders)

	sg := g.Group("/student", jwt, studentOnly)
	sg.GET("/profile", api.profile)
	sg.GET("/attendance", api.queryAttendance)
	sg.GET("/fee-reminders", api.queryReminders)
	sg.GET("/recorded-lessons", api.queryLessons)
	sg.GET("/bundles", api.queryBundles)
}

func (api *portalApi) children(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &student.QueryFilter{ParentID: sc.UserID}
	children, err := api.access.students.Query(ctx.Request().Context(), filter, parseOrdering(ctx, student.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	if children == nil {
		children = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, children)
}

// queryAttendance lists the attendance of the parent's children, or of the student.
func (api *portalApi) queryAttendance(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	filter, err := attendanceFilter(ctx)
	if err != nil {
		return err
	}
	filter.StudentIDs = restrict(filter.StudentIDs, sc.StudentIDs)

	entries, err := api.attendance.Query(ctx.Request().Context(), filter, parseOrdering(ctx, attendance.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *portalApi) queryReminders(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	filter, err := reminderFilter(ctx)
	if err != nil {
		return err
	}
	filter.StudentIDs = restrict(filter.StudentIDs, sc.StudentIDs)

	reminders, err := api.fees.QueryReminders(ctx.Request().Context(), filter, parseOrdering(ctx, fee.ReminderOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying fee reminders")
	}
	return ctx.JSON(http.StatusOK, reminders)
}

// studentProfile returns the profile linked to the context user.
func (api *portalApi) studentProfile(ctx echo.Context) (student.Student, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting context claims")
	}
	st, err := api.access.students.GetByUserID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return student.Student{}, errHttpNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student profile")
	}
	return st, nil
}

func (api *portalApi) profile(ctx echo.Context) error {
	st, err := api.studentProfile(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// classIDs narrows the requested classes to the student's own.
func classIDs(ctx echo.Context, st student.Student) []string {
	own := st.ClassIDs
	if own == nil {
		own = []string{}
	}
	return restrict(queryList(ctx, "class_id"), own)
}

func (api *portalApi) queryLessons(ctx echo.Context) error {
	st, err := api.studentProfile(ctx)
	if err != nil {
		return err
	}

	filter := &recording.LessonFilter{
		Search:        ctx.QueryParam("search"),
		Subject:       ctx.QueryParam("subject"),
		ClassIDs:      classIDs(ctx, st),
		PublishedOnly: true,
	}
	filter.Clean()

	lessons, err := api.recordings.QueryLessons(ctx.Request().Context(), filter, parseOrdering(ctx, recording.LessonOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying recorded lessons")
	}
	if lessons == nil {
		lessons = []recording.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *portalApi) queryBundles(ctx echo.Context) error {
	st, err := api.studentProfile(ctx)
	if err != nil {
		return err
	}

	filter := &recording.BundleFilter{
		Search:        core.CleanString(ctx.QueryParam("search")),
		ClassIDs:      classIDs(ctx, st),
		PublishedOnly: true,
	}

	bundles, err := api.recordings.QueryBundles(ctx.Request().Context(), filter, parseOrdering(ctx, recording.BundleOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying bundles")
	}
	if bundles == nil {
		bundles = []recording.Bundle{}
	}
	return ctx.JSON(http.StatusOK, bundles)
}
