package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/fee"
)

var (
	errFeeNotFoundInCtx      = errors.New("fee object not found in echo.Context")
	errReminderNotFoundInCtx = errors.New("fee reminder object not found in echo.Context")
)

type feeApi struct {
	access   *access
	svc      fee.Service
	validate *validator.Validate
}

func registerFeeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	svc fee.Service,
	validate *validator.Validate,
) {
	api := feeApi{
		access:   acc,
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/tutor", jwt, staffOnly)

	fg := tg.Group("/fees")
	fg.GET("", api.queryFees)
	fg.POST("", api.createFee)
	fdg := fg.Group("/:id", api.feeMiddleware)
	fdg.GET("", api.retrieveFee)
	fdg.PUT("", api.updateFee)
	fdg.DELETE("", api.destroyFee)

	rg := tg.Group("/fee-reminders")
	rg.GET("", api.queryReminders)
	rg.POST("", api.createReminder)
	rg.GET("/totals", api.totals)
	rdg := rg.Group("/:id", api.reminderMiddleware)
	rdg.GET("", api.retrieveReminder)
	rdg.PUT("", api.updateReminder)
	rdg.DELETE("", api.destroyReminder)
	rdg.POST("/paid", api.markPaid)
	rdg.POST("/cancel", api.cancel)
}

// reminderFilter reads `student_id`, `status`, `due_from` & `due_to`.
func reminderFilter(ctx echo.Context) (*fee.ReminderFilter, error) {
	filter := &fee.ReminderFilter{StudentIDs: queryList(ctx, "student_id")}
	if s := core.CleanString(ctx.QueryParam("status"), true /* lower */); s != "" {
		if !core.StringInSlice(s, fee.Statuses) {
			return nil, invalidParam("status", "must be one of pending, paid, overdue, cancelled")
		}
		filter.Status = s
	}

	var err error
	if filter.DueFrom, err = queryDate(ctx, "due_from"); err != nil {
		return nil, err
	}
	if filter.DueTo, err = queryDate(ctx, "due_to"); err != nil {
		return nil, err
	}
	return filter, nil
}

// Fee handlers

func (api *feeApi) createFee(ctx echo.Context) error {
	var data fee.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	if data.ClassID != "" && !sc.CanSeeClass(data.ClassID) {
		return errHttpForbidden
	}

	f, err := api.svc.CreateFee(ctx.Request().Context(), sc.UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *feeApi) queryFees(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &fee.FeeFilter{
		TutorID: ctx.QueryParam("tutor_id"),
		ClassID: ctx.QueryParam("class_id"),
	}
	if !sc.IsAdmin() {
		filter.TutorID = sc.UserID
	}

	fees, err := api.svc.QueryFees(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []fee.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *feeApi) retrieveFee(ctx echo.Context) error {
	f, ok := ctx.Get("object").(fee.Fee)
	if !ok {
		return errors.Wrap(errFeeNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) updateFee(ctx echo.Context) error {
	f, ok := ctx.Get("object").(fee.Fee)
	if !ok {
		return errors.Wrap(errFeeNotFoundInCtx, "retrieving object from context")
	}

	var data fee.UpdateFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	if data.ClassID != nil && *data.ClassID != "" && !sc.CanSeeClass(*data.ClassID) {
		return errHttpForbidden
	}

	if f, err = api.svc.UpdateFee(ctx.Request().Context(), f.ID, data); err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) destroyFee(ctx echo.Context) error {
	f, ok := ctx.Get("object").(fee.Fee)
	if !ok {
		return errors.Wrap(errFeeNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteFee(ctx.Request().Context(), f.ID); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Reminder handlers

func (api *feeApi) createReminder(ctx echo.Context) error {
	var data fee.NewReminder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReminder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}
	if !sc.CanSeeStudent(data.StudentID) {
		return invalidParam("student_id", "the student does not attend any of your classes")
	}
	if data.FeeID != "" {
		// another tutor's fee is reported as unknown
		f, err := api.svc.GetFee(ctx.Request().Context(), data.FeeID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding fee")
		}
		if err != nil || !sc.Owns(f.TutorID) {
			return invalidParam("fee_id", fee.ErrNotFound.Error())
		}
	}

	r, err := api.svc.CreateReminder(ctx.Request().Context(), sc.UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating fee reminder")
	}
	return ctx.JSON(http.StatusCreated, r)
}

// scopedReminderFilter limits tutors to their own reminders.
func (api *feeApi) scopedReminderFilter(ctx echo.Context) (*fee.ReminderFilter, error) {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := reminderFilter(ctx)
	if err != nil {
		return nil, err
	}
	if sc.IsAdmin() {
		filter.TutorID = ctx.QueryParam("tutor_id")
	} else {
		filter.TutorID = sc.UserID
	}
	return filter, nil
}

func (api *feeApi) queryReminders(ctx echo.Context) error {
	filter, err := api.scopedReminderFilter(ctx)
	if err != nil {
		return err
	}

	reminders, err := api.svc.QueryReminders(ctx.Request().Context(), filter, parseOrdering(ctx, fee.ReminderOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying fee reminders")
	}
	return ctx.JSON(http.StatusOK, reminders)
}

func (api *feeApi) totals(ctx echo.Context) error {
	filter, err := api.scopedReminderFilter(ctx)
	if err != nil {
		return err
	}

	totals, err := api.svc.Totals(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing fee totals")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *feeApi) retrieveReminder(ctx echo.Context) error {
	r, ok := ctx.Get("object").(fee.Reminder)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) updateReminder(ctx echo.Context) error {
	r, ok := ctx.Get("object").(fee.Reminder)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}

	var data fee.UpdateReminder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReminder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpdateReminder(ctx.Request().Context(), r.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating fee reminder")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) markPaid(ctx echo.Context) error {
	r, ok := ctx.Get("object").(fee.Reminder)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}

	r, err := api.svc.MarkPaid(ctx.Request().Context(), r.ID)
	if err != nil {
		return errors.Wrap(err, "marking fee reminder as paid")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) cancel(ctx echo.Context) error {
	r, ok := ctx.Get("object").(fee.Reminder)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}

	r, err := api.svc.Cancel(ctx.Request().Context(), r.ID)
	if err != nil {
		return errors.Wrap(err, "cancelling fee reminder")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) destroyReminder(ctx echo.Context) error {
	r, ok := ctx.Get("object").(fee.Reminder)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteReminder(ctx.Request().Context(), r.ID); err != nil {
		return errors.Wrap(err, "deleting fee reminder")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Object middlewares: tutors only reach their own fees & reminders.

func (api *feeApi) feeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}

		f, err := api.svc.GetFee(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding fee by ID")
		}
		if !sc.Owns(f.TutorID) {
			return errHttpNotFound
		}
		ctx.Set("object", f)
		return next(ctx)
	}
}

func (api *feeApi) reminderMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}

		r, err := api.svc.GetReminder(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding fee reminder by ID")
		}
		if !sc.Owns(r.TutorID) {
			return errHttpNotFound
		}
		ctx.Set("object", r)
		return next(ctx)
	}
}
