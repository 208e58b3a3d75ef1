package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/repository"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
)

// CommitmentHandler wraps the engine's volunteer-commitment
// operations: signup, review, cancellation and listings.
type CommitmentHandler struct {
	Engine      *scheduler.Engine
	Commitments *repository.CommitmentRepo
}

func NewCommitmentHandler(engine *scheduler.Engine, commitments *repository.CommitmentRepo) *CommitmentHandler {
	return &CommitmentHandler{Engine: engine, Commitments: commitments}
}

// Signup handles POST /v1/shifts/:id/volunteer.  A schedule overlap is
// a 200-class outcome, not an error: the response carries
// "status":"overlap" plus the conflicting shift and up to five
// alternatives, and no commitment is created.
func (h *CommitmentHandler) Signup(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	shiftID, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
	}
	res, err := h.Engine.Signup(c.Request().Context(), caller, shiftID)
	if err != nil {
		return errorJSON(c, err)
	}
	if res.Overlap {
		return c.JSON(http.StatusOK, echo.Map{
			"status":             "overlap",
			"message":            "you have an overlapping shift",
			"conflicting_shift":  res.Conflicting,
			"alternative_shifts": res.Alternatives,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":        "pending",
		"message":       "volunteer request submitted, awaiting approval",
		"commitment_id": res.Commitment.ID,
	})
}

type reviewReq struct {
	Approved *bool `json:"approved" validate:"required"`
}

// Review handles POST /v1/commitments/:id/review.  A manager approves
// or rejects a pending commitment; approval consumes a spot and awards
// a credit, rejection is terminal with no side effects.
func (h *CommitmentHandler) Review(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid commitment id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "approved is required"})
	}
	cm, err := h.Engine.Review(c.Request().Context(), caller, id, *req.Approved)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"commitment": cm})
}

// Cancel handles POST /v1/commitments/:id/cancel.  Only the owning
// volunteer may cancel, only while approved, and only inside the
// 12-hour window stamped at approval.
func (h *CommitmentHandler) Cancel(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid commitment id"})
	}
	cm, err := h.Engine.CancelCommitment(c.Request().Context(), caller, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"commitment": cm,
		"message":    "volunteer commitment cancelled",
	})
}

// ListMine handles GET /v1/my-commitments.  It returns all of the
// caller's commitments joined with the shift's title, date and times;
// commitments whose shift was since cancelled keep their row with null
// shift fields.
func (h *CommitmentHandler) ListMine(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Commitments.ListDetailsByUser(c.Request().Context(), caller.Username)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load commitments"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// ListForShift handles GET /v1/shifts/:id/commitments for reviewers,
// optionally filtered with ?status=.
func (h *CommitmentHandler) ListForShift(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	shiftID, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
	}
	status := model.CommitmentStatus(c.QueryParam("status"))
	items, err := h.Engine.ListCommitmentsForShift(c.Request().Context(), caller, shiftID, status)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
