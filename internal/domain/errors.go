package domain

import "errors"

// Domain errors represent error conditions in the courier domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNotFound is returned by storage adapters when a record does not exist.
	ErrNotFound = errors.New("courier: not found")

	// ErrUnknownKind is returned when an operation kind has no registered executor.
	ErrUnknownKind = errors.New("courier: unknown operation kind")

	// ErrOffline is returned when a sync pass is requested while offline.
	ErrOffline = errors.New("courier: offline")

	// ErrSyncInProgress is returned when a sync pass is already running.
	ErrSyncInProgress = errors.New("courier: sync already in progress")

	// ErrSyncFailed wraps a pass-level failure of a sync pass.
	ErrSyncFailed = errors.New("courier: sync failed")

	// ErrOfflineModeDisabled is returned when a direct dispatch fails and
	// offline mode is disabled, so the operation was not queued.
	ErrOfflineModeDisabled = errors.New("courier: offline mode disabled")

	// ErrInFlight is returned when cancelling an operation that is being dispatched.
	ErrInFlight = errors.New("courier: operation in flight")

	// ErrOperationNotFound is returned when an operation id is not queued.
	ErrOperationNotFound = errors.New("courier: operation not found")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("courier: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("courier: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("courier: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("courier: invalid configuration")
)
