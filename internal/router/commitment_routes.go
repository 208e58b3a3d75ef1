package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/handler"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/middleware"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// RegisterCommitments registers the volunteer commitment endpoints
// under /v1.  Sign-ups carry the rate limiter because a freshly
// published shift draws a burst of them; signupLimit may be a
// pass-through when Redis is unavailable.
func RegisterCommitments(e *echo.Echo, h *handler.CommitmentHandler, jwtSecret string, signupLimit echo.MiddlewareFunc) {
	vol := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleVolunteer),
	)
	vol.POST("/shifts/:id/volunteer", h.Signup, signupLimit)
	vol.POST("/commitments/:id/cancel", h.Cancel)
	vol.GET("/my-commitments", h.ListMine)

	staff := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager, model.RoleAdmin),
	)
	staff.POST("/commitments/:id/review", h.Review)
	staff.GET("/shifts/:id/commitments", h.ListForShift)
}
