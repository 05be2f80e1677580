package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

// DefaultDispatchTimeout bounds a single executor call.
const DefaultDispatchTimeout = 15 * time.Second

// Dispatcher routes queued operations to the executor registered for
// their kind.
type Dispatcher struct {
	mu        sync.RWMutex
	executors map[domain.Kind]ports.Executor
	timeout   time.Duration
	logger    log.Logger
}

// NewDispatcher creates a dispatcher with no executors.
func NewDispatcher(logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Dispatcher{
		executors: make(map[domain.Kind]ports.Executor),
		timeout:   DefaultDispatchTimeout,
		logger:    log.With(logger, log.String("component", "dispatcher")),
	}
}

// Register binds e to kind, replacing any previous executor.
func (d *Dispatcher) Register(kind domain.Kind, e ports.Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executors[kind] = e
}

// Has reports whether kind has an executor.
func (d *Dispatcher) Has(kind domain.Kind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.executors[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (d *Dispatcher) Kinds() []domain.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]domain.Kind, 0, len(d.executors))
	for k := range d.executors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// SetTimeout changes the per-dispatch timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	d.mu.Lock()
	d.timeout = timeout
	d.mu.Unlock()
}

type dispatchResult struct {
	err error
}

// Dispatch executes op and returns its error. The call is abandoned when
// the timeout or ctx expires, even if the executor ignores ctx. Executor
// panics are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, op domain.QueuedOperation) error {
	d.mu.RLock()
	exec, ok := d.executors[op.Kind()]
	timeout := d.timeout
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, op.Kind())
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan dispatchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("executor panicked",
					log.String("id", op.ID),
					log.String("kind", op.Kind().String()),
					log.String("panic", fmt.Sprint(r)),
				)
				done <- dispatchResult{err: fmt.Errorf("executor %s panicked: %v", op.Kind(), r)}
			}
		}()
		done <- dispatchResult{err: exec.Execute(ctx, op)}
	}()

	select {
	case res := <-done:
		return res.err
	case <-ctx.Done():
		return fmt.Errorf("dispatch %s: %w", op.ID, ctx.Err())
	}
}
