package queuez

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidState indicates an operation attempted outside its legal lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrShutdown indicates the queue has been permanently shut down.
	ErrShutdown = fmt.Errorf("queue shut down: %w", ErrInvalidState)

	// ErrTimeout indicates a blocked submission gave up before capacity was available.
	ErrTimeout = errors.New("submission timed out")

	// ErrDuplicateID indicates a different processor is already registered under the ID.
	ErrDuplicateID = errors.New("duplicate processor id")

	// ErrInvalidArgument indicates a nil processor or an empty ID.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig indicates a configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrPoolClosed indicates a task was submitted to a closed worker pool.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// StateError reports a lifecycle violation on a specific processor.
type StateError struct {
	Op    string
	ID    string
	State State
}

func newStateError(op, id string, state State) *StateError {
	return &StateError{Op: op, ID: id, State: state}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s: %v (state: %s)", e.ID, e.Op, ErrInvalidState, e.State)
}

// Unwrap lets errors.Is match ErrInvalidState.
func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// ProcessError represents a failure of one member while processing one item.
// It captures both the item that caused the error and the error itself, so
// failures surfaced at Stop can be traced back to their source.
//
//nolint:govet // fieldalignment: struct layout optimized for readability over memory
type ProcessError[T any] struct {
	// Item is the original item that caused the processing error.
	Item T

	// Err is the underlying error returned by the member.
	Err error

	// ProcessorID identifies which member failed.
	ProcessorID string

	// Timestamp records when the error occurred.
	Timestamp time.Time
}

// NewProcessError creates a new ProcessError stamped with the given time.
func NewProcessError[T any](item T, err error, processorID string, at time.Time) *ProcessError[T] {
	return &ProcessError[T]{
		Item:        item,
		Err:         err,
		ProcessorID: processorID,
		Timestamp:   at,
	}
}

// String returns a human-readable representation of the error.
func (pe *ProcessError[T]) String() string {
	return fmt.Sprintf("ProcessError[%s]: %v (item: %v, time: %s)",
		pe.ProcessorID, pe.Err, pe.Item, pe.Timestamp.Format(time.RFC3339))
}

// Unwrap returns the underlying error, enabling error wrapping chains.
func (pe *ProcessError[T]) Unwrap() error {
	return pe.Err
}

// Error implements the error interface.
func (pe *ProcessError[T]) Error() string {
	return pe.String()
}
