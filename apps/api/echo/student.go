package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/student"
)

var errStudentNotFoundInCtx = errors.New("student object not found in echo.Context")

const importFileField = "file"

type studentApi struct {
	access     *access
	svc        student.Service
	attendance attendance.Service
	fees       fee.Service
	validate   *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	svc student.Service,
	att attendance.Service,
	fees fee.Service,
	validate *validator.Validate,
) {
	api := studentApi{
		access:     acc,
		svc:        svc,
		attendance: att,
		fees:       fees,
		validate:   validate,
	}

	sg := g.Group("/students", jwt, anyKnownRole)
	sg.GET("", api.query)
	sg.POST("", api.create, adminOnly)
	sg.DELETE("", api.destroyMultiple, adminOnly)
	sg.POST("/import", api.importSheet, adminOnly)

	// detail endpoints
	dg := sg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminOnly)
	dg.DELETE("", api.destroy, adminOnly)
	dg.GET("/attendance", api.queryAttendance)
	dg.GET("/fee-reminders", api.queryReminders)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) query(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &student.QueryFilter{
		Search:   ctx.QueryParam("search"),
		Status:   ctx.QueryParam("status"),
		ClassID:  ctx.QueryParam("class_id"),
		ParentID: ctx.QueryParam("parent_id"),
		IDs:      restrict(queryList(ctx, "id"), sc.StudentIDs),
	}
	if filter.Grade, err = queryInt(ctx, "grade"); err != nil {
		return err
	}
	filter.Clean()

	students, err := api.svc.Query(ctx.Request().Context(), filter, parseOrdering(ctx, student.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) importSheet(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return invalidParam(importFileField, "an .xlsx file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	rows, err := student.ReadSheet(f)
	if err != nil {
		return invalidParam(importFileField, err.Error())
	}
	res, err := api.svc.Import(ctx.Request().Context(), rows, api.validate)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) update(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, st, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.Update(rctx, st.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	ids := queryList(ctx, "id")
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) queryAttendance(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter, err := attendanceFilter(ctx)
	if err != nil {
		return err
	}
	filter.StudentIDs = []string{st.ID}
	filter.ClassIDs = restrict(filter.ClassIDs, sc.ClassIDs)

	entries, err := api.attendance.Query(ctx.Request().Context(), filter, parseOrdering(ctx, attendance.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *studentApi) queryReminders(ctx echo.Context) error {
	st, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter, err := reminderFilter(ctx)
	if err != nil {
		return err
	}
	filter.StudentIDs = []string{st.ID}
	if sc.IsTutor() {
		filter.TutorID = sc.UserID
	}

	reminders, err := api.fees.QueryReminders(ctx.Request().Context(), filter, parseOrdering(ctx, fee.ReminderOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying fee reminders")
	}
	return ctx.JSON(http.StatusOK, reminders)
}

// objectMiddleware loads the student and hides the ones outside the context user's scope.
func (api *studentApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}
		id := ctx.Param("id")
		if !sc.CanSeeStudent(id) {
			return errHttpNotFound
		}

		st, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding student by ID")
		}
		ctx.Set("object", st)
		return next(ctx)
	}
}
