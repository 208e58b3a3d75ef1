package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
)

// ShiftRepo manages persistence for shifts.  It implements
// scheduler.ShiftStore.  Date and time columns are plain strings
// ("2006-01-02", "15:04"); timestamps are DATETIME in UTC.
type ShiftRepo struct {
	db *sql.DB
}

// NewShiftRepo constructs a ShiftRepo with the given DB handle.
func NewShiftRepo(db *sql.DB) *ShiftRepo { return &ShiftRepo{db: db} }

// Create inserts a new shift and assigns the generated ID back to the
// struct.  Status must be set by the caller (the engine always creates
// drafts); created_at/updated_at are populated from the inserted row.
func (r *ShiftRepo) Create(ctx context.Context, s *model.Shift) error {
	const q = `INSERT INTO shifts (title, date, start_time, end_time, spots, location, status, created_by)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Date, s.StartTime, s.EndTime, s.Spots, s.Location, string(s.Status), s.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM shifts WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a shift by its ID.  Cancelled shifts are deleted,
// so a missing row means scheduler.ErrNotFound.
func (r *ShiftRepo) GetByID(ctx context.Context, id uint64) (*model.Shift, error) {
	const q = `SELECT id, title, date, start_time, end_time, spots, location, status, created_by, created_at, updated_at
	           FROM shifts WHERE id = ?`
	var s model.Shift
	var status string
	var location sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Title, &s.Date, &s.StartTime, &s.EndTime, &s.Spots,
		&location, &status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shift %d: %w", id, scheduler.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.Location = location.String
	s.Status = model.ShiftStatus(status)
	return &s, nil
}

// UpdateStatus moves a shift between statuses as a single guarded
// UPDATE.  The WHERE clause on the current status makes the move a
// compare-and-swap: when no row matches, either the shift is gone
// (scheduler.ErrNotFound) or it sits in a different status
// (scheduler.ErrInvalidTransition).
func (r *ShiftRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.ShiftStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("shift status %s -> %s: %w", from, to, scheduler.ErrInvalidTransition)
	}
	const q = `UPDATE shifts SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	cur, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("shift %d is %s, expected %s: %w", id, cur, from, scheduler.ErrInvalidTransition)
}

// Delete removes a shift row.  Commitment rows referencing it are kept
// as history; the engine cancels the active ones before calling this.
func (r *ShiftRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM shifts WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("shift %d: %w", id, scheduler.ErrNotFound)
	}
	return nil
}

// DecrementSpots takes one spot atomically.  The spots > 0 guard keeps
// the counter from ever going negative under concurrent approvals;
// losing the race yields scheduler.ErrCapacity.
func (r *ShiftRepo) DecrementSpots(ctx context.Context, id uint64) error {
	const q = `UPDATE shifts SET spots = spots - 1 WHERE id = ? AND spots > 0`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.currentStatus(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("shift %d: %w", id, scheduler.ErrCapacity)
}

// IncrementSpots restores one spot, used when an approved commitment
// is cancelled inside its window.
func (r *ShiftRepo) IncrementSpots(ctx context.Context, id uint64) error {
	const q = `UPDATE shifts SET spots = spots + 1 WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("shift %d: %w", id, scheduler.ErrNotFound)
	}
	return nil
}

// List returns shifts ordered by id, optionally filtered by status.
func (r *ShiftRepo) List(ctx context.Context, status model.ShiftStatus) ([]model.Shift, error) {
	q := `SELECT id, title, date, start_time, end_time, spots, location, status, created_by, created_at, updated_at
	      FROM shifts`
	args := make([]interface{}, 0, 1)
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	shifts := make([]model.Shift, 0)
	for rows.Next() {
		var s model.Shift
		var st string
		var location sql.NullString
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Date, &s.StartTime, &s.EndTime, &s.Spots,
			&location, &st, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Location = location.String
		s.Status = model.ShiftStatus(st)
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

// ShiftOverview extends a shift with its pending commitment count and
// the pending volunteers, for the manager/admin listing view.
type ShiftOverview struct {
	model.Shift
	PendingCount      int                `json:"pending_count"`
	PendingVolunteers []PendingVolunteer `json:"pending_volunteers"`
}

// PendingVolunteer identifies one unresolved signup on a shift.
type PendingVolunteer struct {
	Username     string `json:"username"`
	CommitmentID uint64 `json:"commitment_id"`
}

// ListOverview returns shifts joined with their pending signups.  It
// feeds the staff listing endpoint; volunteers get the plain List.
func (r *ShiftRepo) ListOverview(ctx context.Context, status model.ShiftStatus) ([]ShiftOverview, error) {
	shifts, err := r.List(ctx, status)
	if err != nil {
		return nil, err
	}
	overviews := make([]ShiftOverview, 0, len(shifts))
	index := make(map[uint64]int, len(shifts))
	for _, s := range shifts {
		index[s.ID] = len(overviews)
		overviews = append(overviews, ShiftOverview{Shift: s, PendingVolunteers: []PendingVolunteer{}})
	}
	if len(overviews) == 0 {
		return overviews, nil
	}
	const q = `SELECT vc.shift_id, vc.id, vc.username
	           FROM volunteer_commitments vc
	           WHERE vc.status = 'pending'
	           ORDER BY vc.shift_id, vc.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var shiftID, commitmentID uint64
		var username string
		if err := rows.Scan(&shiftID, &commitmentID, &username); err != nil {
			return nil, err
		}
		idx, ok := index[shiftID]
		if !ok {
			continue
		}
		overviews[idx].PendingCount++
		overviews[idx].PendingVolunteers = append(overviews[idx].PendingVolunteers, PendingVolunteer{
			Username:     username,
			CommitmentID: commitmentID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overviews, nil
}

// currentStatus fetches the status of a shift, mapping a missing row
// to scheduler.ErrNotFound.  Shared by the guarded-update error paths.
func (r *ShiftRepo) currentStatus(ctx context.Context, id uint64) (model.ShiftStatus, error) {
	const q = `SELECT status FROM shifts WHERE id = ?`
	var st string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("shift %d: %w", id, scheduler.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return model.ShiftStatus(st), nil
}
