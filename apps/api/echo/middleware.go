package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core/user"
)

// roleMiddleware lets through the users whose primary role is one of families.
func roleMiddleware(families ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, f := range families {
				if claims.Role == f {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

var (
	adminOnly    = roleMiddleware(user.FamilyAdmin)
	tutorOnly    = roleMiddleware(user.FamilyTutor)
	staffOnly    = roleMiddleware(user.FamilyAdmin, user.FamilyTutor)
	parentOnly   = roleMiddleware(user.FamilyParent)
	studentOnly  = roleMiddleware(user.FamilyStudent)
	anyKnownRole = roleMiddleware(user.FamilyAdmin, user.FamilyTutor, user.FamilyParent, user.FamilyStudent)
)
