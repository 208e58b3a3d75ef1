package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
)

// CommitmentRepo manages persistence for volunteer commitments.  It
// implements scheduler.CommitmentStore.  Status transitions are single
// guarded UPDATE statements so that two racing callers can never both
// resolve the same commitment.
type CommitmentRepo struct {
	db *sql.DB
}

// NewCommitmentRepo constructs a CommitmentRepo with the given DB handle.
func NewCommitmentRepo(db *sql.DB) *CommitmentRepo { return &CommitmentRepo{db: db} }

const commitmentColumns = `id, username, shift_id, volunteered_at, status, approved_at, approved_by, can_cancel_until`

// scanCommitment reads one commitment row from any row scanner.
func scanCommitment(scan func(dest ...interface{}) error) (*model.Commitment, error) {
	var c model.Commitment
	var status string
	var approvedAt, canCancelUntil sql.NullTime
	var approvedBy sql.NullString
	if err := scan(
		&c.ID, &c.Username, &c.ShiftID, &c.VolunteeredAt, &status,
		&approvedAt, &approvedBy, &canCancelUntil,
	); err != nil {
		return nil, err
	}
	c.Status = model.CommitmentStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	if approvedBy.Valid {
		b := approvedBy.String
		c.ApprovedBy = &b
	}
	if canCancelUntil.Valid {
		t := canCancelUntil.Time
		c.CanCancelUntil = &t
	}
	return &c, nil
}

// Create inserts a new commitment and assigns the generated ID back to
// the struct.  The engine always creates them pending.
func (r *CommitmentRepo) Create(ctx context.Context, c *model.Commitment) error {
	const q = `INSERT INTO volunteer_commitments (username, shift_id, volunteered_at, status)
	           VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Username, c.ShiftID, c.VolunteeredAt, string(c.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID retrieves a commitment by its ID or scheduler.ErrNotFound.
func (r *CommitmentRepo) GetByID(ctx context.Context, id uint64) (*model.Commitment, error) {
	const q = `SELECT ` + commitmentColumns + ` FROM volunteer_commitments WHERE id = ?`
	c, err := scanCommitment(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commitment %d: %w", id, scheduler.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByUserAndShift returns every commitment the user has ever held
// for the shift, any status, oldest first.
func (r *CommitmentRepo) ListByUserAndShift(ctx context.Context, username string, shiftID uint64) ([]model.Commitment, error) {
	const q = `SELECT ` + commitmentColumns + ` FROM volunteer_commitments
	           WHERE username = ? AND shift_id = ? ORDER BY id`
	return r.queryList(ctx, q, username, shiftID)
}

// ListActiveByUser returns the user's pending and approved commitments.
func (r *CommitmentRepo) ListActiveByUser(ctx context.Context, username string) ([]model.Commitment, error) {
	const q = `SELECT ` + commitmentColumns + ` FROM volunteer_commitments
	           WHERE username = ? AND status IN ('pending', 'approved') ORDER BY id`
	return r.queryList(ctx, q, username)
}

// ListByShift returns all commitments on a shift, optionally filtered
// by status.
func (r *CommitmentRepo) ListByShift(ctx context.Context, shiftID uint64, status model.CommitmentStatus) ([]model.Commitment, error) {
	q := `SELECT ` + commitmentColumns + ` FROM volunteer_commitments WHERE shift_id = ?`
	args := []interface{}{shiftID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id`
	return r.queryList(ctx, q, args...)
}

// Approve moves pending -> approved, stamping approver and deadline in
// the same guarded UPDATE.  When no row matches, the commitment is
// either gone or already resolved.
func (r *CommitmentRepo) Approve(ctx context.Context, id uint64, approver string, approvedAt, canCancelUntil time.Time) error {
	const q = `UPDATE volunteer_commitments
	           SET status = 'approved', approved_at = ?, approved_by = ?, can_cancel_until = ?
	           WHERE id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, approvedAt, approver, canCancelUntil, id)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, id, model.CommitmentPending)
}

// Reject moves pending -> rejected; terminal, no other columns change.
func (r *CommitmentRepo) Reject(ctx context.Context, id uint64) error {
	const q = `UPDATE volunteer_commitments SET status = 'rejected' WHERE id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, id, model.CommitmentPending)
}

// Cancel moves approved -> cancelled.  The window check belongs to the
// engine; the store only guards the status.
func (r *CommitmentRepo) Cancel(ctx context.Context, id uint64) error {
	const q = `UPDATE volunteer_commitments SET status = 'cancelled' WHERE id = ? AND status = 'approved'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, res, id, model.CommitmentApproved)
}

// CancelAllForShift marks every non-terminal commitment of a shift
// cancelled.  Called under the engine's shift lock right before the
// shift row itself is deleted.
func (r *CommitmentRepo) CancelAllForShift(ctx context.Context, shiftID uint64) error {
	const q = `UPDATE volunteer_commitments SET status = 'cancelled'
	           WHERE shift_id = ? AND status IN ('pending', 'approved')`
	_, err := r.db.ExecContext(ctx, q, shiftID)
	return err
}

// CommitmentDetail joins a commitment with its shift's display fields
// for the volunteer's own listing.  ShiftTitle and the time fields are
// null when the shift has since been cancelled and deleted.
type CommitmentDetail struct {
	model.Commitment
	ShiftTitle *string `json:"shift_title"`
	Date       *string `json:"date"`
	StartTime  *string `json:"start_time"`
	EndTime    *string `json:"end_time"`
}

// ListDetailsByUser returns all of a volunteer's commitments joined
// with shift title, date and times, ordered by shift date then start
// time, commitments on deleted shifts last.
func (r *CommitmentRepo) ListDetailsByUser(ctx context.Context, username string) ([]CommitmentDetail, error) {
	const q = `SELECT vc.id, vc.username, vc.shift_id, vc.volunteered_at, vc.status,
	                  vc.approved_at, vc.approved_by, vc.can_cancel_until,
	                  s.title, s.date, s.start_time, s.end_time
	           FROM volunteer_commitments vc
	           LEFT JOIN shifts s ON s.id = vc.shift_id
	           WHERE vc.username = ?
	           ORDER BY s.date IS NULL, s.date, s.start_time, vc.id`
	rows, err := r.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]CommitmentDetail, 0)
	for rows.Next() {
		var d CommitmentDetail
		var status string
		var approvedAt, canCancelUntil sql.NullTime
		var approvedBy, title, date, start, end sql.NullString
		if err := rows.Scan(
			&d.ID, &d.Username, &d.ShiftID, &d.VolunteeredAt, &status,
			&approvedAt, &approvedBy, &canCancelUntil,
			&title, &date, &start, &end,
		); err != nil {
			return nil, err
		}
		d.Status = model.CommitmentStatus(status)
		if approvedAt.Valid {
			t := approvedAt.Time
			d.ApprovedAt = &t
		}
		if approvedBy.Valid {
			b := approvedBy.String
			d.ApprovedBy = &b
		}
		if canCancelUntil.Valid {
			t := canCancelUntil.Time
			d.CanCancelUntil = &t
		}
		if title.Valid {
			v := title.String
			d.ShiftTitle = &v
		}
		if date.Valid {
			v := date.String
			d.Date = &v
		}
		if start.Valid {
			v := start.String
			d.StartTime = &v
		}
		if end.Valid {
			v := end.String
			d.EndTime = &v
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *CommitmentRepo) queryList(ctx context.Context, q string, args ...interface{}) ([]model.Commitment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.Commitment, 0)
	for rows.Next() {
		c, err := scanCommitment(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// checkTransition classifies a guarded status UPDATE that affected no
// rows: missing row -> scheduler.ErrNotFound, otherwise the commitment
// is not in the expected status -> scheduler.ErrInvalidTransition.
func (r *CommitmentRepo) checkTransition(ctx context.Context, res sql.Result, id uint64, expected model.CommitmentStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	const q = `SELECT status FROM volunteer_commitments WHERE id = ?`
	var cur string
	err = r.db.QueryRowContext(ctx, q, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("commitment %d: %w", id, scheduler.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("commitment %d is %s, expected %s: %w", id, cur, expected, scheduler.ErrInvalidTransition)
}
