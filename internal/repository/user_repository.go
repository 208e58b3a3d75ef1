package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/model"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/utils"
)

// UserRepo manages the users table.  Besides registration and login
// lookups it implements scheduler.UserStore: credit accrual and the
// staff recipient list for publish notifications.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo constructs a UserRepo with the given DB handle.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.  Usernames are normalized
// to lower case before insertion.
func (r *UserRepo) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?,?,?)",
		username, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.  A missing row
// maps to scheduler.ErrNotFound.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,role,credits,is_active,created_at,updated_at FROM users WHERE username=? LIMIT 1",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Credits, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("user %s: %w", username, scheduler.ErrNotFound)
	}
	return u, err
}

// IncrementCredits adds one credit to the volunteer's reward counter.
// Credits only ever go up; cancellations do not refund them.
func (r *UserRepo) IncrementCredits(ctx context.Context, username string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET credits = credits + 1 WHERE username = ?",
		username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", username, scheduler.ErrNotFound)
	}
	return nil
}

// StaffUsernames returns the usernames of all managers and admins,
// the recipient list for shift-published notifications.
func (r *UserRepo) StaffUsernames(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT username FROM users WHERE role IN (?,?) AND is_active = 1 ORDER BY username",
		model.RoleManager, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
