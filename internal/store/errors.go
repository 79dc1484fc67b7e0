// ABOUTME: Common backing-store errors
// ABOUTME: Enables consistent error handling across store implementations

package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned when email/password sign-in fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionExpired is returned when resuming an unknown or revoked session.
var ErrSessionExpired = errors.New("session expired")

// ErrEmailTaken is returned when signing up with an email already in use.
var ErrEmailTaken = errors.New("email already registered")

// ErrUsernameTaken is returned when a different user already holds a username.
var ErrUsernameTaken = errors.New("username already taken")

// ErrSelfReference is returned when a user targets themselves with a friend request.
var ErrSelfReference = errors.New("cannot befriend yourself")

// ErrAlreadyFriends is returned when the target is already a confirmed friend.
var ErrAlreadyFriends = errors.New("already friends")

// ErrDuplicatePending is returned when a pending request already exists
// between the pair, in either direction.
var ErrDuplicatePending = errors.New("friend request already pending")
