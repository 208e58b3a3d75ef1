package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/repository"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
)

// ShiftHandler wraps the scheduling engine's shift lifecycle
// operations.  Role checks live in the engine; handlers only parse
// input, build the caller identity and translate errors.
type ShiftHandler struct {
	Engine *scheduler.Engine
	Shifts *repository.ShiftRepo
}

func NewShiftHandler(engine *scheduler.Engine, shifts *repository.ShiftRepo) *ShiftHandler {
	return &ShiftHandler{Engine: engine, Shifts: shifts}
}

type createShiftReq struct {
	Title     string `json:"title" validate:"required,max=200"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Spots     int    `json:"spots" validate:"required,min=1"`
	Location  string `json:"location"`
}

// Create handles POST /v1/shifts.  Managers and admins create shifts
// in draft status, awaiting admin validation.
func (h *ShiftHandler) Create(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createShiftReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	s, err := h.Engine.CreateShift(c.Request().Context(), caller, scheduler.CreateShiftInput{
		Title:     req.Title,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Spots:     req.Spots,
		Location:  req.Location,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"shift":   s,
		"message": "shift created, awaiting admin validation",
	})
}

// Validate handles POST /v1/shifts/:id/validate.  An admin moves a
// draft shift to validated.
func (h *ShiftHandler) Validate(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
	}
	s, err := h.Engine.ValidateShift(c.Request().Context(), caller, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"shift": s})
}

// Publish handles POST /v1/shifts/:id/publish.  A manager opens a
// validated shift for signups; staff are notified out of band.
func (h *ShiftHandler) Publish(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
	}
	s, err := h.Engine.PublishShift(c.Request().Context(), caller, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"shift": s})
}

// Cancel handles DELETE /v1/shifts/:id.  Cancellation is terminal: the
// shift disappears from all future reads and its active commitments
// are cancelled in the same step.
func (h *ShiftHandler) Cancel(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
	}
	if err := h.Engine.CancelShift(c.Request().Context(), caller, id); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "shift cancelled"})
}

// List handles GET /v1/shifts.  Volunteers only ever see published
// shifts; managers and admins get every status (optionally filtered
// via ?status=) plus the pending signups per shift.
func (h *ShiftHandler) List(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	if caller.Role == model.RoleVolunteer {
		shifts, err := h.Engine.ListShifts(ctx, caller, "")
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"items": shifts})
	}
	status := model.ShiftStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status filter"})
	}
	overview, err := h.Shifts.ListOverview(ctx, status)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": overview})
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}
