package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
)

var errRecordNotFoundInCtx = errors.New("attendance record not found in echo.Context")

type attendanceApi struct {
	access   *access
	svc      attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	svc attendance.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{
		access:   acc,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt, anyKnownRole)
	ag.GET("", api.query)
	ag.POST("", api.mark, staffOnly)
	ag.POST("/bulk", api.markBulk, staffOnly)
	ag.GET("/stats", api.stats)
	ag.GET("/export", api.export)

	// detail endpoints
	dg := ag.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffOnly)
	dg.DELETE("", api.destroy, staffOnly)
}

// attendanceFilter reads `student_id`, `class_id`, `status`, `from` & `to`.
func attendanceFilter(ctx echo.Context) (*attendance.QueryFilter, error) {
	filter := &attendance.QueryFilter{
		StudentIDs: queryList(ctx, "student_id"),
		ClassIDs:   queryList(ctx, "class_id"),
	}
	if s := ctx.QueryParam("status"); s != "" {
		status, ok := attendance.ParseStatus(s)
		if !ok {
			return nil, invalidParam("status", "must be one of present, absent, late, excused")
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = queryDate(ctx, "from"); err != nil {
		return nil, err
	}
	if filter.To, err = queryDate(ctx, "to"); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, invalidParam("to", "must not be before from")
	}
	return filter, nil
}

// scopedFilter narrows the requested filter to what the context user may see:
// tutors by the classes they teach, parents & students by student.
func (api *attendanceApi) scopedFilter(ctx echo.Context) (*attendance.QueryFilter, error) {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := attendanceFilter(ctx)
	if err != nil {
		return nil, err
	}
	filter.ClassIDs = restrict(filter.ClassIDs, sc.ClassIDs)
	if !sc.IsTutor() {
		filter.StudentIDs = restrict(filter.StudentIDs, sc.StudentIDs)
	}
	return filter, nil
}

func canAccessRecord(sc scope, rec attendance.Record) bool {
	if sc.IsTutor() {
		return sc.CanSeeClass(rec.ClassID)
	}
	return sc.CanSeeStudent(rec.StudentID)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	if !sc.CanSeeClass(data.ClassID) {
		return errHttpForbidden
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), data, sc.UserID)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) markBulk(ctx echo.Context) error {
	var data attendance.BulkMark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkMark")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	if !sc.CanSeeClass(data.ClassID) {
		return errHttpForbidden
	}

	recs, err := api.svc.MarkBulk(ctx.Request().Context(), data, sc.UserID)
	if err != nil {
		return errors.Wrap(err, "marking class attendance")
	}
	return ctx.JSON(http.StatusCreated, recs)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter, err := api.scopedFilter(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter, parseOrdering(ctx, attendance.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) stats(ctx echo.Context) error {
	filter, err := api.scopedFilter(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing attendance stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	filter, err := api.scopedFilter(ctx)
	if err != nil {
		return err
	}

	exp, err := api.svc.Export(ctx.Request().Context(), filter, ctx.QueryParam("format"))
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename))
	return ctx.Blob(http.StatusOK, exp.ContentType, exp.Content)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Record)
	if !ok {
		return errors.Wrap(errRecordNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Record)
	if !ok {
		return errors.Wrap(errRecordNotFoundInCtx, "retrieving object from context")
	}

	var data attendance.UpdateRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if rec, err = api.svc.Update(ctx.Request().Context(), rec.ID, data, claims.Subject); err != nil {
		return errors.Wrap(err, "updating attendance record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Record)
	if !ok {
		return errors.Wrap(errRecordNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), rec.ID); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}

		rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding attendance record by ID")
		}
		if !canAccessRecord(sc, rec) {
			return errHttpNotFound
		}
		ctx.Set("object", rec)
		return next(ctx)
	}
}
