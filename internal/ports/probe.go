package ports

import "context"

// ReachabilityProbe checks whether the remote system can be reached.
type ReachabilityProbe interface {
	// Check returns true when the remote system is reachable.
	// Callers treat an error as "reachable".
	Check(ctx context.Context) (bool, error)
}

// ProbeFunc adapts a function to the ReachabilityProbe interface.
type ProbeFunc func(ctx context.Context) (bool, error)

// Check calls f(ctx).
func (f ProbeFunc) Check(ctx context.Context) (bool, error) {
	return f(ctx)
}

// NetworkSignals delivers platform connectivity changes as they happen.
// The channel is closed when ctx is done.
type NetworkSignals interface {
	Signals(ctx context.Context) <-chan bool
}
