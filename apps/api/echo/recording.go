package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/recording"
)

var (
	errLessonNotFoundInCtx = errors.New("recorded lesson not found in echo.Context")
	errBundleNotFoundInCtx = errors.New("recording bundle not found in echo.Context")
)

type recordingApi struct {
	access   *access
	svc      recording.Service
	validate *validator.Validate
}

func registerRecordingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	acc *access,
	svc recording.Service,
	validate *validator.Validate,
) {
	api := recordingApi{
		access:   acc,
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/tutor/recorded-lessons", jwt, staffOnly)
	lg.GET("", api.queryLessons)
	lg.POST("", api.createLesson)
	ldg := lg.Group("/:id", api.lessonMiddleware)
	ldg.GET("", api.retrieveLesson)
	ldg.PUT("", api.updateLesson)
	ldg.DELETE("", api.destroyLesson)

	bg := g.Group("/recordings/bundles", jwt, staffOnly)
	bg.GET("", api.queryBundles)
	bg.POST("", api.createBundle)
	bdg := bg.Group("/:id", api.bundleMiddleware)
	bdg.GET("", api.retrieveBundle)
	bdg.PUT("", api.updateBundle)
	bdg.DELETE("", api.destroyBundle)
}

// ownerID is the tutor whose recordings are listed: the context tutor, or any (`?tutor_id=`) for admins.
func ownerID(ctx echo.Context, sc scope) string {
	if sc.IsAdmin() {
		return ctx.QueryParam("tutor_id")
	}
	return sc.UserID
}

// Lesson handlers

func (api *recordingApi) createLesson(ctx echo.Context) error {
	var data recording.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
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

	l, err := api.svc.CreateLesson(ctx.Request().Context(), sc.UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating recorded lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *recordingApi) queryLessons(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &recording.LessonFilter{
		Search:   ctx.QueryParam("search"),
		Subject:  ctx.QueryParam("subject"),
		ClassIDs: queryList(ctx, "class_id"),
		TutorID:  ownerID(ctx, sc),
	}
	published, err := queryBool(ctx, "published")
	if err != nil {
		return err
	}
	filter.PublishedOnly = published != nil && *published
	filter.Clean()

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), filter, parseOrdering(ctx, recording.LessonOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying recorded lessons")
	}
	if lessons == nil {
		lessons = []recording.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *recordingApi) retrieveLesson(ctx echo.Context) error {
	l, ok := ctx.Get("object").(recording.Lesson)
	if !ok {
		return errors.Wrap(errLessonNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *recordingApi) updateLesson(ctx echo.Context) error {
	l, ok := ctx.Get("object").(recording.Lesson)
	if !ok {
		return errors.Wrap(errLessonNotFoundInCtx, "retrieving object from context")
	}

	var data recording.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
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

	if l, err = api.svc.UpdateLesson(ctx.Request().Context(), l.ID, data); err != nil {
		return errors.Wrap(err, "updating recorded lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *recordingApi) destroyLesson(ctx echo.Context) error {
	l, ok := ctx.Get("object").(recording.Lesson)
	if !ok {
		return errors.Wrap(errLessonNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteLesson(ctx.Request().Context(), l.ID); err != nil {
		return errors.Wrap(err, "deleting recorded lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Bundle handlers

func (api *recordingApi) createBundle(ctx echo.Context) error {
	var data recording.NewBundle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBundle")
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

	b, err := api.svc.CreateBundle(ctx.Request().Context(), sc.UserID, data)
	if err != nil {
		return errors.Wrap(err, "creating bundle")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *recordingApi) queryBundles(ctx echo.Context) error {
	sc, err := api.access.scope(ctx)
	if err != nil {
		return err
	}

	filter := &recording.BundleFilter{
		Search:   core.CleanString(ctx.QueryParam("search")),
		TutorID:  ownerID(ctx, sc),
		ClassIDs: queryList(ctx, "class_id"),
	}

	bundles, err := api.svc.QueryBundles(ctx.Request().Context(), filter, parseOrdering(ctx, recording.BundleOrderingFields...))
	if err != nil {
		return errors.Wrap(err, "querying bundles")
	}
	if bundles == nil {
		bundles = []recording.Bundle{}
	}
	return ctx.JSON(http.StatusOK, bundles)
}

func (api *recordingApi) retrieveBundle(ctx echo.Context) error {
	b, ok := ctx.Get("object").(recording.Bundle)
	if !ok {
		return errors.Wrap(errBundleNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *recordingApi) updateBundle(ctx echo.Context) error {
	b, ok := ctx.Get("object").(recording.Bundle)
	if !ok {
		return errors.Wrap(errBundleNotFoundInCtx, "retrieving object from context")
	}

	var data recording.UpdateBundle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBundle")
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

	if b, err = api.svc.UpdateBundle(ctx.Request().Context(), b.ID, data); err != nil {
		return errors.Wrap(err, "updating bundle")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *recordingApi) destroyBundle(ctx echo.Context) error {
	b, ok := ctx.Get("object").(recording.Bundle)
	if !ok {
		return errors.Wrap(errBundleNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteBundle(ctx.Request().Context(), b.ID); err != nil {
		return errors.Wrap(err, "deleting bundle")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Object middlewares: tutors only reach their own recordings.

func (api *recordingApi) lessonMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}

		l, err := api.svc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding recorded lesson by ID")
		}
		if !sc.Owns(l.TutorID) {
			return errHttpNotFound
		}
		ctx.Set("object", l)
		return next(ctx)
	}
}

func (api *recordingApi) bundleMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc, err := api.access.scope(ctx)
		if err != nil {
			return err
		}

		b, err := api.svc.GetBundle(ctx.Request().Context(), ctx.Param("id"), false /* publishedOnly */)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding bundle by ID")
		}
		if !sc.Owns(b.TutorID) {
			return errHttpNotFound
		}
		ctx.Set("object", b)
		return next(ctx)
	}
}
