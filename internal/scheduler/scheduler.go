package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// CancelWindow is the fixed period after approval during which a
// volunteer may unilaterally cancel an approved commitment.  It is
// stamped onto the commitment once, at approval time, and never
// recomputed.
const CancelWindow = 12 * time.Hour

// shiftLocks is the size of the striped lock table used to serialise
// operations touching the same shift.
const shiftLocks = 64

// Identity carries the authenticated caller into engine operations.
// The HTTP layer fills it from JWT claims.
type Identity struct {
	Username string
	Role     string
}

// CreateShiftInput is the validated payload for CreateShift.
type CreateShiftInput struct {
	Title     string
	Date      string
	StartTime string
	EndTime   string
	Spots     int
	Location  string
}

// SignupResult is the outcome of a signup attempt.  An overlap is a
// first-class, non-error outcome: no commitment is created and
// Alternatives carries replacement suggestions.
type SignupResult struct {
	Commitment   *model.Commitment
	Overlap      bool
	Conflicting  *model.Shift
	Alternatives []model.Shift
}

// Engine orchestrates the shift lifecycle and the commitment state
// machine.  Every mutating operation checks permission first, then
// current-state preconditions, then performs the transition.  A
// striped per-shift mutex serialises racing spot updates on top of the
// stores' own compare-and-swap guards.
type Engine struct {
	shifts      ShiftStore
	commitments CommitmentStore
	users       UserStore
	perms       PermissionOracle
	notifier    Notifier
	detector    *Detector
	clock       Clock
	log         *zap.Logger
	locks       [shiftLocks]sync.Mutex
}

// New constructs an Engine.  A nil notifier disables notifications, a
// nil clock falls back to the system clock and a nil logger to a
// no-op one.
func New(shifts ShiftStore, commitments CommitmentStore, users UserStore, perms PermissionOracle, notifier Notifier, clock Clock, log *zap.Logger) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		shifts:      shifts,
		commitments: commitments,
		users:       users,
		perms:       perms,
		notifier:    notifier,
		detector:    NewDetector(shifts, commitments),
		clock:       clock,
		log:         log,
	}
}

func (e *Engine) shiftLock(id uint64) *sync.Mutex {
	return &e.locks[id%shiftLocks]
}

func (e *Engine) allowed(caller Identity, action string) error {
	if !e.perms.HasPermission(caller.Role, action) {
		return fmt.Errorf("role %q may not perform %s: %w", caller.Role, action, ErrForbidden)
	}
	return nil
}

// notify delivers a message without ever affecting the operation that
// triggered it: it runs on its own goroutine with a detached context
// and only logs failures.
func (e *Engine) notify(recipients []string, subject, body string) {
	if e.notifier == nil || len(recipients) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, recipients, subject, body); err != nil {
			e.log.Warn("notification failed",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()
}

// CreateShift creates a new draft shift on behalf of a manager or
// admin.  Input is rejected with ErrValidation when the title is
// empty, spots is below one, the date or times are malformed, or the
// end does not come after the start.
func (e *Engine) CreateShift(ctx context.Context, caller Identity, in CreateShiftInput) (*model.Shift, error) {
	if err := e.allowed(caller, ActionCreateShift); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrValidation)
	}
	if in.Spots < 1 {
		return nil, fmt.Errorf("spots must be at least 1: %w", ErrValidation)
	}
	s := &model.Shift{
		Title:     in.Title,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Spots:     in.Spots,
		Location:  in.Location,
		Status:    model.ShiftDraft,
		CreatedBy: caller.Username,
	}
	start, end, err := s.Interval()
	if err != nil {
		return nil, fmt.Errorf("bad date or time: %w", ErrValidation)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end_time must be after start_time: %w", ErrValidation)
	}
	if err := e.shifts.Create(ctx, s); err != nil {
		return nil, err
	}
	e.log.Info("shift created",
		zap.Uint64("shift_id", s.ID),
		zap.String("created_by", caller.Username))
	return s, nil
}

// ValidateShift moves a draft shift to validated.  Only the
// draft -> validated transition is legal.
func (e *Engine) ValidateShift(ctx context.Context, caller Identity, shiftID uint64) (*model.Shift, error) {
	if err := e.allowed(caller, ActionValidateShift); err != nil {
		return nil, err
	}
	if err := e.shifts.UpdateStatus(ctx, shiftID, model.ShiftDraft, model.ShiftValidated); err != nil {
		return nil, err
	}
	return e.shifts.GetByID(ctx, shiftID)
}

// PublishShift moves a validated shift to published and notifies all
// manager and admin staff.  The notification is an observed side
// effect only; its failure never surfaces to the caller.
func (e *Engine) PublishShift(ctx context.Context, caller Identity, shiftID uint64) (*model.Shift, error) {
	if err := e.allowed(caller, ActionPublishShift); err != nil {
		return nil, err
	}
	if err := e.shifts.UpdateStatus(ctx, shiftID, model.ShiftValidated, model.ShiftPublished); err != nil {
		return nil, err
	}
	s, err := e.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	e.log.Info("shift published",
		zap.Uint64("shift_id", s.ID),
		zap.String("published_by", caller.Username))
	staff, err := e.users.StaffUsernames(ctx)
	if err != nil {
		e.log.Warn("loading notification recipients failed", zap.Error(err))
	} else {
		e.notify(staff,
			fmt.Sprintf("New shift published: %s", s.Title),
			fmt.Sprintf("%s on %s from %s to %s at %s (%d spots)",
				s.Title, s.Date, s.StartTime, s.EndTime, s.Location, s.Spots))
	}
	return s, nil
}

// CancelShift removes a shift from any non-terminal status.  All
// pending and approved commitments referencing it are cancelled first,
// so no commitment is left pointing at a missing shift in an active
// state.  Spots are not restored; the counter disappears with the row.
func (e *Engine) CancelShift(ctx context.Context, caller Identity, shiftID uint64) error {
	if err := e.allowed(caller, ActionCancelShift); err != nil {
		return err
	}
	mu := e.shiftLock(shiftID)
	mu.Lock()
	defer mu.Unlock()
	if _, err := e.shifts.GetByID(ctx, shiftID); err != nil {
		return err
	}
	if err := e.commitments.CancelAllForShift(ctx, shiftID); err != nil {
		return err
	}
	if err := e.shifts.Delete(ctx, shiftID); err != nil {
		return err
	}
	e.log.Info("shift cancelled",
		zap.Uint64("shift_id", shiftID),
		zap.String("cancelled_by", caller.Username))
	return nil
}

// Signup registers a volunteer's interest in a published shift.
// Preconditions are checked in order, short-circuiting on the first
// failure: caller must be a volunteer; the shift must exist and be
// published; the volunteer must not hold any prior commitment for it
// (a past rejection blocks forever); the shift must have open spots;
// and the shift must not overlap the volunteer's active schedule.  An
// overlap yields a successful SignupResult carrying alternatives
// instead of an error.  On success a pending commitment is created;
// spots are not consumed until approval.
func (e *Engine) Signup(ctx context.Context, caller Identity, shiftID uint64) (*SignupResult, error) {
	if err := e.allowed(caller, ActionSignup); err != nil {
		return nil, err
	}
	mu := e.shiftLock(shiftID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.ShiftPublished {
		return nil, fmt.Errorf("shift %d is %s, not published: %w", shiftID, s.Status, ErrInvalidTransition)
	}

	prior, err := e.commitments.ListByUserAndShift(ctx, caller.Username, shiftID)
	if err != nil {
		return nil, err
	}
	for _, c := range prior {
		switch {
		case c.Status == model.CommitmentRejected:
			return nil, fmt.Errorf("previously rejected for this shift: %w", ErrDuplicate)
		case c.Status.Active():
			return nil, fmt.Errorf("already signed up for this shift: %w", ErrDuplicate)
		}
	}

	if s.Spots <= 0 {
		return nil, fmt.Errorf("shift %d: %w", shiftID, ErrCapacity)
	}

	conflict, err := e.detector.Conflict(ctx, caller.Username, s)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		alts, err := e.detector.Alternatives(ctx, caller.Username, s.ID)
		if err != nil {
			return nil, err
		}
		return &SignupResult{Overlap: true, Conflicting: conflict, Alternatives: alts}, nil
	}

	c := &model.Commitment{
		Username:      caller.Username,
		ShiftID:       shiftID,
		VolunteeredAt: e.clock.Now(),
		Status:        model.CommitmentPending,
	}
	if err := e.commitments.Create(ctx, c); err != nil {
		return nil, err
	}
	e.log.Info("volunteer signed up",
		zap.Uint64("shift_id", shiftID),
		zap.Uint64("commitment_id", c.ID),
		zap.String("username", caller.Username))
	return &SignupResult{Commitment: c}, nil
}

// Review resolves a pending commitment.  On approval the owning
// shift's spot counter is decremented (losing the race for the last
// spot fails with ErrCapacity), the cancellation deadline is stamped
// and the volunteer earns one credit.  On rejection the commitment is
// terminal with no other side effect.  Re-reviewing a resolved
// commitment fails with ErrInvalidTransition.
func (e *Engine) Review(ctx context.Context, caller Identity, commitmentID uint64, approve bool) (*model.Commitment, error) {
	if err := e.allowed(caller, ActionReviewCommitment); err != nil {
		return nil, err
	}
	c, err := e.commitments.GetByID(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	target := model.CommitmentRejected
	if approve {
		target = model.CommitmentApproved
	}
	if !c.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("commitment %d is %s: %w", commitmentID, c.Status, ErrInvalidTransition)
	}

	if !approve {
		if err := e.commitments.Reject(ctx, commitmentID); err != nil {
			return nil, err
		}
		e.log.Info("commitment rejected",
			zap.Uint64("commitment_id", commitmentID),
			zap.String("reviewed_by", caller.Username))
		e.notify([]string{c.Username},
			"Volunteer request rejected",
			fmt.Sprintf("Your request for shift %d was rejected.", c.ShiftID))
		return e.commitments.GetByID(ctx, commitmentID)
	}

	mu := e.shiftLock(c.ShiftID)
	mu.Lock()
	defer mu.Unlock()

	// Taking the spot first serialises capacity: whichever approval
	// wins the compare-and-swap gets the last spot, the loser sees
	// ErrCapacity with nothing to undo.
	if err := e.shifts.DecrementSpots(ctx, c.ShiftID); err != nil {
		return nil, err
	}
	now := e.clock.Now()
	deadline := now.Add(CancelWindow)
	if err := e.commitments.Approve(ctx, commitmentID, caller.Username, now, deadline); err != nil {
		if restoreErr := e.shifts.IncrementSpots(ctx, c.ShiftID); restoreErr != nil {
			e.log.Error("spot restore after failed approval",
				zap.Uint64("shift_id", c.ShiftID),
				zap.Error(restoreErr))
		}
		return nil, err
	}
	// Credits are a reward counter, not part of the state machine: a
	// failed increment is logged and the approval stands.
	if err := e.users.IncrementCredits(ctx, c.Username); err != nil {
		e.log.Warn("credit increment failed",
			zap.String("username", c.Username),
			zap.Error(err))
	}
	e.log.Info("commitment approved",
		zap.Uint64("commitment_id", commitmentID),
		zap.Uint64("shift_id", c.ShiftID),
		zap.String("approved_by", caller.Username),
		zap.Time("can_cancel_until", deadline))
	e.notify([]string{c.Username},
		"Volunteer request approved",
		fmt.Sprintf("Your request for shift %d was approved. You may cancel until %s.",
			c.ShiftID, deadline.Format(time.RFC3339)))
	return e.commitments.GetByID(ctx, commitmentID)
}

// CancelCommitment lets a volunteer withdraw an approved commitment
// while still inside the cancellation window.  The deadline is
// inclusive: cancelling exactly at can_cancel_until succeeds.  On
// success the shift gets its spot back; the credit earned at approval
// is kept.
func (e *Engine) CancelCommitment(ctx context.Context, caller Identity, commitmentID uint64) (*model.Commitment, error) {
	c, err := e.commitments.GetByID(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if c.Username != caller.Username {
		return nil, fmt.Errorf("commitment %d belongs to another volunteer: %w", commitmentID, ErrForbidden)
	}
	if c.Status != model.CommitmentApproved {
		return nil, fmt.Errorf("commitment %d is %s, not approved: %w", commitmentID, c.Status, ErrInvalidTransition)
	}
	if c.CanCancelUntil == nil || e.clock.Now().After(*c.CanCancelUntil) {
		return nil, fmt.Errorf("commitment %d: %w", commitmentID, ErrWindowExpired)
	}

	mu := e.shiftLock(c.ShiftID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.commitments.Cancel(ctx, commitmentID); err != nil {
		return nil, err
	}
	if err := e.shifts.IncrementSpots(ctx, c.ShiftID); err != nil {
		e.log.Error("spot restore after cancellation",
			zap.Uint64("shift_id", c.ShiftID),
			zap.Error(err))
	}
	e.log.Info("commitment cancelled",
		zap.Uint64("commitment_id", commitmentID),
		zap.String("username", caller.Username))
	return e.commitments.GetByID(ctx, commitmentID)
}

// ListShifts returns shifts visible to the caller.  Volunteers only
// ever see published shifts; managers and admins can filter by any
// status or see everything.
func (e *Engine) ListShifts(ctx context.Context, caller Identity, status model.ShiftStatus) ([]model.Shift, error) {
	if caller.Role == model.RoleVolunteer {
		status = model.ShiftPublished
	}
	return e.shifts.List(ctx, status)
}

// ListCommitmentsForShift returns all commitments on a shift for its
// reviewers, optionally filtered by status.
func (e *Engine) ListCommitmentsForShift(ctx context.Context, caller Identity, shiftID uint64, status model.CommitmentStatus) ([]model.Commitment, error) {
	if err := e.allowed(caller, ActionReviewCommitment); err != nil {
		return nil, err
	}
	if _, err := e.shifts.GetByID(ctx, shiftID); err != nil {
		return nil, err
	}
	return e.commitments.ListByShift(ctx, shiftID, status)
}
