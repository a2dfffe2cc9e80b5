package queue

import "errors"

var (
	// ErrJobNotFound is returned when a job does not exist, or exists but is
	// not in the state the operation requires (a retry of a job that is not
	// dead-lettered reports not-found rather than leaking state details).
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyOwnerKey is returned by Enqueue when no owner key is given.
	ErrEmptyOwnerKey = errors.New("owner key must not be empty")
)
