package domain

import "errors"

var (
	// ErrEmptyPool is returned when the question pool has no items at all.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrInsufficientPool indicates there are not enough distinct items to build an option set.
	ErrInsufficientPool = errors.New("not enough questions to build options")
	// ErrPoolUnavailable wraps failures of the question pool backing store.
	ErrPoolUnavailable = errors.New("question pool unavailable")
	// ErrStoreUnavailable wraps failures of the progress or name store.
	ErrStoreUnavailable = errors.New("progress store unavailable")
	// ErrSessionNotFound is returned when a user has no live quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrOptionNotFound indicates a selected option position is out of range.
	ErrOptionNotFound = errors.New("option not found")
)
