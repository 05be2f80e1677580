package ports

import (
	"context"

	"github.com/bft-labs/courier/internal/domain"
)

// Executor performs a queued operation against the remote system.
// One executor is registered per operation kind by the hosting application.
type Executor interface {
	// Execute returns nil only when the remote system accepted the operation.
	// Any error, including a timeout of ctx, counts as a failed attempt.
	Execute(ctx context.Context, op domain.QueuedOperation) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, op domain.QueuedOperation) error

// Execute calls f(ctx, op).
func (f ExecutorFunc) Execute(ctx context.Context, op domain.QueuedOperation) error {
	return f(ctx, op)
}
