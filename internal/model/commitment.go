package model

import "time"

// CommitmentStatus enumerates the states of a volunteer commitment.
// pending and approved are the active states; rejected and cancelled
// are terminal and a commitment never leaves them.
type CommitmentStatus string

const (
	CommitmentPending   CommitmentStatus = "pending"
	CommitmentApproved  CommitmentStatus = "approved"
	CommitmentRejected  CommitmentStatus = "rejected"
	CommitmentCancelled CommitmentStatus = "cancelled"
)

// commitmentTransitions lists the allowed moves: pending resolves to
// approved or rejected, and an approved commitment may still be
// cancelled by its owner within the cancellation window.
var commitmentTransitions = map[CommitmentStatus][]CommitmentStatus{
	CommitmentPending:  {CommitmentApproved, CommitmentRejected, CommitmentCancelled},
	CommitmentApproved: {CommitmentCancelled},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CommitmentStatus) CanTransitionTo(next CommitmentStatus) bool {
	for _, t := range commitmentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Active reports whether the commitment still occupies the volunteer's
// schedule: it is counted by the overlap detector and blocks duplicate
// signups for the same shift.
func (s CommitmentStatus) Active() bool {
	return s == CommitmentPending || s == CommitmentApproved
}

// Terminal reports whether the status can never change again.
func (s CommitmentStatus) Terminal() bool {
	return s == CommitmentRejected || s == CommitmentCancelled
}

// Commitment is a volunteer's claim on a shift.  It starts pending and
// is resolved by a manager.  CanCancelUntil is set exactly once, at
// approval time, to ApprovedAt plus the fixed cancellation window; it
// is never recomputed afterwards.
type Commitment struct {
	ID             uint64           `json:"id"`
	Username       string           `json:"username"`
	ShiftID        uint64           `json:"shift_id"`
	VolunteeredAt  time.Time        `json:"volunteered_at"`
	Status         CommitmentStatus `json:"status"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`
	ApprovedBy     *string          `json:"approved_by,omitempty"`
	CanCancelUntil *time.Time       `json:"can_cancel_until,omitempty"`
}
