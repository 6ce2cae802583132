package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
)

var errClassNotFoundInCtx = errors.New("class object not found in echo.Context")

type classApi struct {
	access   *access
	svc      class.Service
	validate *validator.Validate
}

func registerClassAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	svc class.Service,
	validate *validator.Validate,
) {
	api := classApi{
		access:   acc,
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/classes", jwt, staffOnly)
	cg.GET("", api.query)
	cg.POST("", api.create, adminOnly)
	cg.DELETE("", api.destroyMultiple, adminOnly)

	// detail endpoints
	dg := cg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminOnly)
	dg.DELETE("", api.destroy, adminOnly)
	dg.GET("/students", api.listStudents)
	dg.POST("/students", api.assignStudents, adminOnly)
	dg.DELETE("/students", api.unassignStudents, adminOnly)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) query(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &class.QueryFilter{
		Search:    ctx.QueryParam("search"),
		Subject:   ctx.QueryParam("subject"),
		TutorID:   ctx.QueryParam("tutor_id"),
		StudentID: ctx.QueryParam("student_id"),
	}
	if sc.IsTutor() {
		filter.TutorID = sc.UserID
	}
	filter.Clean()

	classes, err := api.svc.Query(ctx.Request().Context(), filter, parseOrdering(ctx, class.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Update(ctx.Request().Context(), cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), cls.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) destroyMultiple(ctx echo.Context) error {
	ids := queryList(ctx, "id")
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) listStudents(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}

	students, err := api.svc.ListStudents(ctx.Request().Context(), cls.ID, parseOrdering(ctx, student.OrderingFields...))
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// bindStudentIDs reads the IDs from the body, or from `?student_id=` on body-less requests.
func (api *classApi) bindStudentIDs(ctx echo.Context) (class.StudentIDs, error) {
	var data class.StudentIDs
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to StudentIDs")
	}
	if data.StudentIDs == nil {
		data.StudentIDs = queryList(ctx, "student_id")
	}
	data.StudentIDs = core.UniqueStrings(data.StudentIDs)
	return data, api.validate.Struct(data)
}

func (api *classApi) assignStudents(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	data, err := api.bindStudentIDs(ctx)
	if err != nil {
		return err
	}

	if cls, err = api.svc.AssignStudents(ctx.Request().Context(), cls.ID, data.StudentIDs); err != nil {
		return errors.Wrap(err, "assigning students")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) unassignStudents(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	data, err := api.bindStudentIDs(ctx)
	if err != nil {
		return err
	}

	if cls, err = api.svc.UnassignStudents(ctx.Request().Context(), cls.ID, data.StudentIDs); err != nil {
		return errors.Wrap(err, "unassigning students")
	}
	return ctx.JSON(http.StatusOK, cls)
}

// objectMiddleware loads the class; tutors only see the classes they teach.
func (api *classApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}
		id := ctx.Param("id")
		if !sc.CanSeeClass(id) {
			return errHttpNotFound
		}

		cls, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding class by ID")
		}
		ctx.Set("object", cls)
		return next(ctx)
	}
}
