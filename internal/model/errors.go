package model

import "errors"

var (
	// ErrNotFound covers absent records and soft-deleted accounts.
	ErrNotFound = errors.New("not found")
	// ErrExpired marks a record past its TTL: it blocks the operation like
	// ErrNotFound but is reported distinctly to the caller.
	ErrExpired = errors.New("expired")
	// ErrForbidden marks an ownership mismatch. Callers must not reveal
	// whether the resource exists for another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalid marks input that fails validation.
	ErrInvalid = errors.New("invalid input")
	// ErrDuplicateName marks a case-sensitive name collision among a user's
	// non-deleted accounts.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrMutationFailed wraps atomicity failures inside the store; no partial
	// state was left behind and the caller may retry.
	ErrMutationFailed = errors.New("mutation failed")
)
