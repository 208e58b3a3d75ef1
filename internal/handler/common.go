package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
)

// validate is the shared request validator.  Bind structs carry
// `validate` tags; handlers call validate.Struct after c.Bind.
var validate = validator.New()

// identity builds the engine caller from the JWT claims stored in the
// context by the JWTAuth middleware.  It fails when either claim is
// missing, which means the middleware did not run.
func identity(c echo.Context) (scheduler.Identity, error) {
	username, _ := c.Get("username").(string)
	role, _ := c.Get("role").(string)
	if username == "" || role == "" {
		return scheduler.Identity{}, errors.New("no authenticated identity in context")
	}
	return scheduler.Identity{Username: username, Role: role}, nil
}

// errorJSON writes the engine error as JSON with the boundary-contract
// status: ErrForbidden -> 403, ErrNotFound -> 404, the remaining
// taxonomy -> 400, anything unclassified -> 500.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, scheduler.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, scheduler.ErrValidation),
		errors.Is(err, scheduler.ErrInvalidTransition),
		errors.Is(err, scheduler.ErrDuplicate),
		errors.Is(err, scheduler.ErrCapacity),
		errors.Is(err, scheduler.ErrWindowExpired):
		status = http.StatusBadRequest
	}
	msg := "internal error"
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	return c.JSON(status, echo.Map{"error": msg})
}
