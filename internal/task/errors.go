package task

import "errors"

// Common errors delivered through an Outcome
var (
	// ErrQueueCleared means the item was still pending when Clear ran,
	// so its operation never started.
	ErrQueueCleared = errors.New("task queue was cleared")

	// ErrNilOperation is returned for a Submit call without an operation.
	ErrNilOperation = errors.New("task operation is nil")

	// ErrOperationPanicked wraps a panic recovered from a running operation.
	ErrOperationPanicked = errors.New("task operation panicked")

	// ErrUnknownOperationType is returned when a request names an
	// operation type nothing is registered for.
	ErrUnknownOperationType = errors.New("unknown operation type")

	// ErrInvalidRequest is returned when a request's payload cannot be
	// turned into an operation.
	ErrInvalidRequest = errors.New("invalid task request")
)
