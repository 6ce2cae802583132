package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// fieldMessages maps each invalid field to its message, e.g. {"grade": "grade must be 13 or less"}.
type fieldMessages map[string]string

// classify maps err to a status code and a response body. Bodies are either a string or fieldMessages.
// Any error it does not know is a 500.
func classify(err error, translator ut.Translator) (int, interface{}) {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message
		}
		if inner, ok := cause.Internal.(*echo.HTTPError); ok {
			return inner.Code, inner.Message
		}
		return cause.Code, cause.Message

	case validator.ValidationErrors:
		msgs := make(fieldMessages, len(cause))
		for _, fe := range cause {
			msgs[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, msgs

	case *core.ValidationError:
		if len(cause.Fields) == 0 {
			return http.StatusBadRequest, cause.Error()
		}
		msgs := make(fieldMessages, len(cause.Fields))
		for _, fe := range cause.Fields {
			msgs[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, msgs

	case *core.ConflictError:
		return http.StatusConflict, cause.Error()

	case core.NotFoundError:
		if cause.NotFound() {
			return http.StatusNotFound, cause.Error()
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// newAppHTTPErrorHandler renders errors as {"error": "..."} or a field map.
// Server errors are reported with the caller's identity; a core shutdown error also stops the server.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body := classify(err, translator)

		if code == http.StatusInternalServerError {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Username: claims.Username, Email: claims.Email}
			}
			logger.Error("request failed", errors.Wrapf(err, "%s %s", ctx.Request().Method, ctx.Path()), usr)
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			body = err.Error()
		}
		if msg, ok := body.(string); ok {
			body = echo.Map{"error": msg}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
