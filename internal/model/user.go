package model

import "time"

// Role names stored on users and carried in the JWT "role" claim.
// Volunteers sign up for shifts, managers create/publish shifts and
// review commitments, admins validate drafts and may cancel shifts.
const (
	RoleVolunteer = "volunteer"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Credits is a cumulative reward counter: it is incremented by
// one each time a commitment of this volunteer is approved and is
// deliberately never decremented, even when the volunteer later
// cancels the approved commitment.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name; also the foreign key used by
//	               commitments.
//	PasswordHash – bcrypt hashed password.
//	Role         – one of RoleVolunteer, RoleManager, RoleAdmin.
//	Credits      – cumulative approval reward counter.
//	IsActive     – whether the account is active.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Credits      int       // users.credits
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
