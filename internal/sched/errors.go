package sched

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob rejects a submission whose ID already has an active
	// (non-terminal) record.
	ErrDuplicateJob = errors.New("job ID already active")

	// ErrNotFound signals an unknown job ID, or one already evicted.
	ErrNotFound = errors.New("job not found")

	// ErrClosed rejects submissions after Shutdown.
	ErrClosed = errors.New("scheduler closed")

	ErrNilJob  = errors.New("job is nil")
	ErrEmptyID = errors.New("job ID is empty")
)

// PanicError captures a panic raised by a job body. The run is recorded as a
// completed-with-failure run, and the worker survives.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}
