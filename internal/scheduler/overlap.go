package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
)

// maxAlternatives caps how many replacement shifts are proposed when a
// signup is rejected for overlapping an existing commitment.
const maxAlternatives = 5

// Detector decides whether a candidate shift collides with a
// volunteer's existing schedule and, when it does, proposes
// alternative published shifts the volunteer could take instead.
type Detector struct {
	shifts      ShiftStore
	commitments CommitmentStore
}

// NewDetector returns a Detector reading from the given stores.
func NewDetector(shifts ShiftStore, commitments CommitmentStore) *Detector {
	return &Detector{shifts: shifts, commitments: commitments}
}

// activeShifts resolves the volunteer's pending and approved
// commitments to their shifts.  Commitments whose shift has since been
// cancelled (row deleted) are skipped.
func (d *Detector) activeShifts(ctx context.Context, username string) ([]model.Shift, error) {
	active, err := d.commitments.ListActiveByUser(ctx, username)
	if err != nil {
		return nil, err
	}
	shifts := make([]model.Shift, 0, len(active))
	for _, c := range active {
		s, err := d.shifts.GetByID(ctx, c.ShiftID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve shift %d: %w", c.ShiftID, err)
		}
		shifts = append(shifts, *s)
	}
	return shifts, nil
}

// Conflict returns the first of the volunteer's active shifts that
// overlaps the candidate, or nil when the schedule is clear.  Overlap
// means same date and intersecting half-open [start, end) intervals.
func (d *Detector) Conflict(ctx context.Context, username string, candidate *model.Shift) (*model.Shift, error) {
	held, err := d.activeShifts(ctx, username)
	if err != nil {
		return nil, err
	}
	for i := range held {
		if candidate.Overlaps(&held[i]) {
			return &held[i], nil
		}
	}
	return nil, nil
}

// Alternatives proposes published shifts with open spots that the
// volunteer could take instead of the conflicting one.  Excluded are
// the conflicting shift itself, any shift the volunteer already has an
// active commitment for, and anything overlapping the volunteer's
// existing schedule.  Results are ranked by nearest date, then
// earliest start time, and capped at maxAlternatives.
func (d *Detector) Alternatives(ctx context.Context, username string, conflictingID uint64) ([]model.Shift, error) {
	held, err := d.activeShifts(ctx, username)
	if err != nil {
		return nil, err
	}
	heldIDs := make(map[uint64]struct{}, len(held))
	for _, s := range held {
		heldIDs[s.ID] = struct{}{}
	}

	published, err := d.shifts.List(ctx, model.ShiftPublished)
	if err != nil {
		return nil, err
	}
	alts := make([]model.Shift, 0, maxAlternatives)
	for _, s := range published {
		if s.ID == conflictingID || s.Spots <= 0 {
			continue
		}
		if _, taken := heldIDs[s.ID]; taken {
			continue
		}
		clear := true
		for i := range held {
			if s.Overlaps(&held[i]) {
				clear = false
				break
			}
		}
		if clear {
			alts = append(alts, s)
		}
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].Date != alts[j].Date {
			return alts[i].Date < alts[j].Date
		}
		if alts[i].StartTime != alts[j].StartTime {
			return alts[i].StartTime < alts[j].StartTime
		}
		return alts[i].ID < alts[j].ID
	})
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return alts, nil
}
