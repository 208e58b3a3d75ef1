package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/handler"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/middleware"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// RegisterShifts registers the shift lifecycle endpoints under /v1.
// The role middleware is the coarse gate; the engine's permission
// oracle decides per action, so validate stays admin-only and publish
// manager-only even though both roles pass the shared group gate.
// listCache may be a pass-through when Redis is unavailable.
func RegisterShifts(e *echo.Echo, s *handler.ShiftHandler, jwtSecret string, listCache echo.MiddlewareFunc) {
	staff := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager, model.RoleAdmin),
	)
	staff.POST("/shifts", s.Create)
	staff.POST("/shifts/:id/validate", s.Validate)
	staff.POST("/shifts/:id/publish", s.Publish)
	staff.DELETE("/shifts/:id", s.Cancel)

	// Listing is open to every authenticated role; the handler narrows
	// volunteers to published shifts.
	all := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleVolunteer, model.RoleManager, model.RoleAdmin),
	)
	all.GET("/shifts", s.List, listCache)
}
