package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// Actions checked against the PermissionOracle before any state
// mutation.  The engine never inspects roles directly; it only asks
// the oracle whether the caller's role may perform the action.
const (
	ActionCreateShift      = "shift:create"
	ActionValidateShift    = "shift:validate"
	ActionPublishShift     = "shift:publish"
	ActionCancelShift      = "shift:cancel"
	ActionSignup           = "commitment:signup"
	ActionReviewCommitment = "commitment:review"
)

// PermissionOracle answers "may role R perform action A".  The default
// implementation is a static table; deployments with an external
// permission service can plug in their own.
type PermissionOracle interface {
	HasPermission(role, action string) bool
}

// rolePermissions is a static PermissionOracle backed by a
// role -> action set table.
type rolePermissions map[string]map[string]bool

func (p rolePermissions) HasPermission(role, action string) bool {
	return p[role][action]
}

// DefaultPermissions returns the built-in role/action table: managers
// create, publish and cancel shifts and review commitments; admins
// validate drafts and may create or cancel shifts; volunteers sign up.
func DefaultPermissions() PermissionOracle {
	return rolePermissions{
		model.RoleManager: {
			ActionCreateShift:      true,
			ActionPublishShift:     true,
			ActionCancelShift:      true,
			ActionReviewCommitment: true,
		},
		model.RoleAdmin: {
			ActionCreateShift:   true,
			ActionValidateShift: true,
			ActionCancelShift:   true,
		},
		model.RoleVolunteer: {
			ActionSignup: true,
		},
	}
}

// ShiftStore owns durable shift records.  Implementations must make
// UpdateStatus, DecrementSpots and IncrementSpots atomic relative to
// concurrent callers (single guarded UPDATE statements in SQL, a mutex
// in memory); the engine additionally serialises per shift, but the
// store guards are what keep the spot counter from going negative.
type ShiftStore interface {
	// Create persists a new shift and assigns its ID.
	Create(ctx context.Context, s *model.Shift) error
	// GetByID returns the shift or ErrNotFound.
	GetByID(ctx context.Context, id uint64) (*model.Shift, error)
	// UpdateStatus moves a shift from one status to another as a
	// compare-and-swap.  It returns ErrNotFound when the shift is
	// absent and ErrInvalidTransition when its current status is not
	// the expected one.
	UpdateStatus(ctx context.Context, id uint64, from, to model.ShiftStatus) error
	// Delete removes the shift from all future reads.
	Delete(ctx context.Context, id uint64) error
	// DecrementSpots atomically takes one spot; ErrCapacity when the
	// counter is already zero, ErrNotFound when the shift is absent.
	DecrementSpots(ctx context.Context, id uint64) error
	// IncrementSpots atomically restores one spot.
	IncrementSpots(ctx context.Context, id uint64) error
	// List returns shifts, optionally filtered by status (empty string
	// means all), ordered by id for deterministic output.
	List(ctx context.Context, status model.ShiftStatus) ([]model.Shift, error)
}

// CommitmentStore owns durable volunteer commitment records.  The
// status mutators are compare-and-swap operations on the current
// status, mirroring ShiftStore.UpdateStatus.
type CommitmentStore interface {
	// Create persists a new pending commitment and assigns its ID.
	Create(ctx context.Context, c *model.Commitment) error
	// GetByID returns the commitment or ErrNotFound.
	GetByID(ctx context.Context, id uint64) (*model.Commitment, error)
	// ListByUserAndShift returns every commitment the user has ever
	// held for the shift, regardless of status.
	ListByUserAndShift(ctx context.Context, username string, shiftID uint64) ([]model.Commitment, error)
	// ListActiveByUser returns the user's pending and approved
	// commitments; input to the overlap detector.
	ListActiveByUser(ctx context.Context, username string) ([]model.Commitment, error)
	// ListByShift returns all commitments referencing the shift,
	// optionally filtered by status (empty string means all).
	ListByShift(ctx context.Context, shiftID uint64, status model.CommitmentStatus) ([]model.Commitment, error)
	// Approve moves pending -> approved and stamps approver, approval
	// time and the cancellation deadline in one atomic step.
	Approve(ctx context.Context, id uint64, approver string, approvedAt, canCancelUntil time.Time) error
	// Reject moves pending -> rejected.
	Reject(ctx context.Context, id uint64) error
	// Cancel moves approved -> cancelled.
	Cancel(ctx context.Context, id uint64) error
	// CancelAllForShift marks every non-terminal commitment of the
	// shift cancelled; used when a shift itself is cancelled.
	CancelAllForShift(ctx context.Context, shiftID uint64) error
}

// UserStore is the slice of the user table the engine needs: credit
// accrual on approval and the staff recipient list for publish
// notifications.
type UserStore interface {
	// IncrementCredits adds one credit to the volunteer's counter.
	IncrementCredits(ctx context.Context, username string) error
	// StaffUsernames returns the usernames of all managers and admins.
	StaffUsernames(ctx context.Context) ([]string, error)
}

// Notifier records or sends an email-like message.  Calls are strictly
// fire-and-forget: the engine logs failures and never lets them roll
// back or block a state transition.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}
