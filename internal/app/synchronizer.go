package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/pkg/log"
)

// Synchronizer drains the queue through the dispatcher.
//
// Passes never overlap: a pass triggered while another is running returns
// ErrSyncInProgress. Items are acquired one at a time, so the enqueue-time
// immediate dispatch and a running pass never execute the same item twice.
type Synchronizer struct {
	queue      *Queue
	dispatcher *Dispatcher
	events     *Events
	logger     log.Logger
	now        func() time.Time
	online     func() bool

	syncing atomic.Bool

	mu       sync.RWMutex
	lastSync time.Time
}

// NewSynchronizer wires a synchronizer. online reports the current
// connectivity state.
func NewSynchronizer(queue *Queue, dispatcher *Dispatcher, events *Events, online func() bool, logger log.Logger, now func() time.Time) *Synchronizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Synchronizer{
		queue:      queue,
		dispatcher: dispatcher,
		events:     events,
		logger:     log.With(logger, log.String("component", "sync")),
		now:        now,
		online:     online,
	}
}

// Syncing reports whether a pass is in progress.
func (s *Synchronizer) Syncing() bool {
	return s.syncing.Load()
}

// LastSyncTime returns the completion time of the last successful pass.
func (s *Synchronizer) LastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// RunSyncPass dispatches every queued item once, in insertion order.
//
// Dispatch failures are counted and left to the retry policy; they do not
// fail the pass. The pass itself fails, emitting sync-failed and leaving
// LastSyncTime untouched, only if ctx is cancelled mid-pass or the pass
// panics. The interrupted item is released without counting an attempt.
func (s *Synchronizer) RunSyncPass(ctx context.Context) (domain.SyncResult, error) {
	if !s.online() {
		return domain.SyncResult{}, domain.ErrOffline
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return domain.SyncResult{}, domain.ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	return s.pass(ctx)
}

func (s *Synchronizer) pass(ctx context.Context) (result domain.SyncResult, err error) {
	start := s.now()
	var current string

	defer func() {
		if r := recover(); r != nil {
			if current != "" {
				s.queue.Release(current)
			}
			err = fmt.Errorf("%w: panic: %v", domain.ErrSyncFailed, r)
			s.fail(err)
		}
	}()

	items := s.queue.Snapshot()
	s.logger.Debug("sync pass started", log.Int("operations", len(items)))

	for _, snap := range items {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", domain.ErrSyncFailed, ctx.Err())
			s.fail(err)
			return result, err
		}

		item, ok := s.queue.Acquire(snap.ID)
		if !ok {
			continue
		}
		current = item.ID

		dispatchErr := s.dispatcher.Dispatch(ctx, item)
		if dispatchErr != nil && ctx.Err() != nil {
			s.queue.Release(item.ID)
			err = fmt.Errorf("%w: %v", domain.ErrSyncFailed, ctx.Err())
			s.fail(err)
			return result, err
		}

		current = ""
		if s.complete(ctx, item, dispatchErr) {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	end := s.now()
	result.Duration = end.Sub(start)

	s.mu.Lock()
	s.lastSync = end
	s.mu.Unlock()

	s.logger.Info("sync pass completed",
		log.Int("succeeded", result.SuccessCount),
		log.Int("failed", result.FailureCount),
		log.Int("remaining", s.queue.Len()),
		log.Duration("duration", result.Duration),
	)
	s.emit(domain.ChannelSyncCompleted, domain.SyncCompleted{
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		Duration:     result.Duration,
	})
	return result, nil
}

// DispatchNow attempts a single item outside of a pass. It returns false
// without dispatching if the item is already in flight or gone.
func (s *Synchronizer) DispatchNow(ctx context.Context, id string) (bool, error) {
	item, ok := s.queue.Acquire(id)
	if !ok {
		return false, nil
	}

	err := s.dispatcher.Dispatch(ctx, item)
	if err != nil && ctx.Err() != nil {
		s.queue.Release(id)
		return true, err
	}
	s.complete(ctx, item, err)
	return true, err
}

// complete records the result and reports whether the dispatch succeeded.
func (s *Synchronizer) complete(ctx context.Context, item domain.QueuedOperation, dispatchErr error) bool {
	updated, outcome := s.queue.Complete(ctx, item.ID, dispatchErr)

	switch outcome {
	case OutcomeRetry:
		s.logger.Warn("operation failed, will retry",
			log.String("id", item.ID),
			log.String("kind", item.Kind().String()),
			log.Int("attempts", updated.Attempts),
			log.Int("max_attempts", updated.MaxAttempts),
			log.Err(dispatchErr),
		)
	case OutcomeExhausted:
		s.logger.Error("operation dropped after exhausting retries",
			log.String("id", item.ID),
			log.String("kind", item.Kind().String()),
			log.Int("attempts", updated.Attempts),
			log.Err(dispatchErr),
		)
		s.emit(domain.ChannelOperationFailed, domain.OperationFailed{
			ID:       item.ID,
			Kind:     item.Kind(),
			Attempts: updated.Attempts,
			Err:      dispatchErr,
		})
	case OutcomeSucceeded:
		s.logger.Debug("operation dispatched", log.String("id", item.ID), log.String("kind", item.Kind().String()))
	}
	return dispatchErr == nil
}

func (s *Synchronizer) fail(err error) {
	s.logger.Error("sync pass failed", log.Err(err))
	s.emit(domain.ChannelSyncFailed, domain.SyncFailed{Err: err})
}

func (s *Synchronizer) emit(ch domain.Channel, payload any) {
	if s.events != nil {
		s.events.Emit(ch, payload)
	}
}
