package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core/dashboard"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service) {
	api := dashboardApi{svc: svc}

	g.GET("/admin/dashboard", api.admin, jwt, adminOnly)
	g.GET("/tutor/dashboard", api.tutor, jwt, tutorOnly)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	dash, err := api.svc.Admin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) tutor(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	dash, err := api.svc.Tutor(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building tutor dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
