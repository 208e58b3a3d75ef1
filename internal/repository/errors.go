// Package repository contains the MySQL-backed implementations of the
// scheduler's store interfaces.  Repositories translate database
// conditions (missing rows, guarded updates that matched nothing) into
// the scheduler package's sentinel errors so that the engine and the
// handlers classify failures the same way regardless of the store.
package repository

import "errors"

// ErrUsernameExists is returned when registering a user whose username
// is already taken.  Handlers translate it into an HTTP 409 response.
var ErrUsernameExists = errors.New("username already exists")
