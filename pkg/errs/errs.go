// Package errs defines the sentinel error kinds raised by the pool, queue,
// worker, and orchestrator, so callers can classify failures with
// errors.Is instead of parsing strings.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolNotInitialized is returned by Acquire/Release before Initialize.
	ErrPoolNotInitialized = errors.New("workspace pool not initialized")

	// ErrAcquisitionTimeout is returned when no workspace frees up within
	// the caller's budget.
	ErrAcquisitionTimeout = errors.New("timed out waiting for a free workspace")

	// ErrQueueClosed is returned by Enqueue/EnqueueBatch after shutdown.
	ErrQueueClosed = errors.New("request queue is closed")

	// ErrWorkspaceCreationFailure wraps a failed workspace creation.
	ErrWorkspaceCreationFailure = errors.New("workspace creation failed")

	// ErrWorkspaceCleanupFailure wraps a failed workspace clean/release.
	ErrWorkspaceCleanupFailure = errors.New("workspace cleanup failed")

	// ErrExecutionFailure wraps a task executor failure (retryable).
	ErrExecutionFailure = errors.New("task execution failed")

	// ErrTaskTimeout is a specialization of ErrExecutionFailure for a task
	// that exceeded its configured timeout.
	ErrTaskTimeout = fmt.Errorf("task execution timed out: %w", ErrExecutionFailure)

	// ErrPoolAlreadyInitialized is returned by a second Initialize call
	// without an intervening Cleanup.
	ErrPoolAlreadyInitialized = errors.New("workspace pool already initialized")

	// ErrAlreadyInitialized names a repeated Orchestrator.Initialize.
	// Orchestrator.Initialize itself treats a repeat call as a no-op and
	// returns nil, not this error.
	ErrAlreadyInitialized = errors.New("orchestrator already initialized")

	// ErrNotInitialized is returned when an orchestrator operation runs
	// before Initialize.
	ErrNotInitialized = errors.New("orchestrator not initialized")
)
