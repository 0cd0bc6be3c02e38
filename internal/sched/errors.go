package sched

import "errors"

// Task creation errors. None of them leaves a slot, a stack region or a list
// entry behind.
var (
	ErrInvalidEntry = errors.New("invalid entry point")
	ErrInvalidStack = errors.New("invalid stack size")
	ErrNoCapacity   = errors.New("no capacity")
)

var (
	ErrUnknownTask    = errors.New("no such task")
	ErrDeleteRunning  = errors.New("cannot delete the running task")
	ErrIdleTask       = errors.New("cannot delete the idle task")
	ErrNotRunning     = errors.New("not called from a running task")
	ErrNotInitialized = errors.New("scheduler not initialized")

	// ErrNoReadyTask means a selection pass found nothing to run. The idle
	// task is missing, which is a configuration error.
	ErrNoReadyTask = errors.New("no ready task")
)
