package models

import "errors"

// Sentinel errors shared across layers. Handlers map them to HTTP statuses.
var (
	// ErrDuplicateUser indicates the username is already taken.
	ErrDuplicateUser = errors.New("username already exists")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession indicates the session token does not resolve to a user.
	ErrInvalidSession = errors.New("invalid session")
)
