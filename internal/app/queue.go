package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/courier/internal/codec"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

// DefaultQueueCapacity bounds the number of pending operations.
const DefaultQueueCapacity = 100

// Outcome is the result of completing an acquired operation.
type Outcome int

const (
	// OutcomeGone means the item was no longer queued (evicted or cancelled).
	OutcomeGone Outcome = iota
	// OutcomeSucceeded means the item was removed after a successful dispatch.
	OutcomeSucceeded
	// OutcomeRetry means the item failed and stays queued for the next pass.
	OutcomeRetry
	// OutcomeExhausted means the item failed its last attempt and was dropped.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRetry:
		return "retry"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "gone"
	}
}

// Queue is a bounded FIFO of pending operations. The full list is persisted
// under a single record after every mutation.
//
// An item being dispatched is marked in flight by Acquire and cannot be
// acquired again until Complete or Release.
type Queue struct {
	mu          sync.Mutex
	items       []domain.QueuedOperation
	inFlight    map[string]struct{}
	capacity    int
	maxAttempts int

	// loaded is set once the persisted record has been merged in. Nothing
	// is written before that, so an early mutation cannot clobber it.
	loaded bool
	loadMu sync.Mutex

	persistMu sync.Mutex

	storage ports.Storage
	logger  log.Logger
	now     func() time.Time
}

// NewQueue creates an empty queue. The persisted record is merged in by
// Load, or by the first mutation if that comes earlier.
func NewQueue(storage ports.Storage, logger log.Logger, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Queue{
		inFlight:    make(map[string]struct{}),
		capacity:    DefaultQueueCapacity,
		maxAttempts: domain.DefaultMaxAttempts,
		storage:     storage,
		logger:      log.With(logger, log.String("component", "queue")),
		now:         now,
	}
}

// Enqueue appends op as a new pending item. When the queue is full the
// oldest item is evicted first.
func (q *Queue) Enqueue(ctx context.Context, op domain.Operation) (domain.QueuedOperation, error) {
	if op.Kind == "" {
		return domain.QueuedOperation{}, fmt.Errorf("%w: empty kind", domain.ErrUnknownKind)
	}
	q.ensureLoaded(ctx)

	q.mu.Lock()
	item := domain.NewQueuedOperation(op, q.maxAttempts, q.now())
	var evicted []domain.QueuedOperation
	for len(q.items) >= q.capacity {
		evicted = append(evicted, q.items[0])
		q.items = q.items[1:]
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	for _, e := range evicted {
		q.logger.Warn("queue full, evicted oldest operation",
			log.String("id", e.ID),
			log.String("kind", e.Kind().String()),
		)
	}

	q.persist(ctx)
	return item, nil
}

// Acquire marks the item in flight and returns a copy of it.
// Returns false if the item is absent or already in flight.
func (q *Queue) Acquire(id string) (domain.QueuedOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, busy := q.inFlight[id]; busy {
		return domain.QueuedOperation{}, false
	}
	i := q.indexOf(id)
	if i < 0 {
		return domain.QueuedOperation{}, false
	}
	q.inFlight[id] = struct{}{}
	return q.items[i], true
}

// Release returns an acquired item to pending without counting an attempt.
func (q *Queue) Release(id string) {
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

// Complete records the dispatch result of an acquired item. A nil err
// removes it. Otherwise Attempts is incremented and the item is removed
// once Attempts reaches MaxAttempts. The returned item reflects the
// updated attempt count.
func (q *Queue) Complete(ctx context.Context, id string, err error) (domain.QueuedOperation, Outcome) {
	q.mu.Lock()
	delete(q.inFlight, id)

	i := q.indexOf(id)
	if i < 0 {
		q.mu.Unlock()
		return domain.QueuedOperation{}, OutcomeGone
	}

	var outcome Outcome
	item := q.items[i]
	switch {
	case err == nil:
		q.removeAt(i)
		outcome = OutcomeSucceeded
	default:
		item.Attempts++
		item.LastError = err.Error()
		if item.Exhausted() {
			q.removeAt(i)
			outcome = OutcomeExhausted
		} else {
			q.items[i] = item
			outcome = OutcomeRetry
		}
	}
	q.mu.Unlock()

	q.persist(ctx)
	return item, outcome
}

// Cancel removes a pending item. Returns ErrInFlight if the item is being
// dispatched and ErrOperationNotFound if it is not queued.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	q.ensureLoaded(ctx)

	q.mu.Lock()
	if _, busy := q.inFlight[id]; busy {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrInFlight, id)
	}
	i := q.indexOf(id)
	if i < 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrOperationNotFound, id)
	}
	q.removeAt(i)
	q.mu.Unlock()

	q.persist(ctx)
	return nil
}

// EvictOlderThan drops pending items enqueued at or before cutoff and
// returns how many were removed. In-flight items are left to their
// dispatch.
func (q *Queue) EvictOlderThan(ctx context.Context, cutoff time.Time) int {
	q.ensureLoaded(ctx)

	q.mu.Lock()
	kept := q.items[:0:0]
	removed := 0
	for _, item := range q.items {
		_, busy := q.inFlight[item.ID]
		if !busy && !item.EnqueuedAt.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	q.mu.Unlock()

	if removed > 0 {
		q.logger.Info("evicted stale operations", log.Int("count", removed))
		q.persist(ctx)
	}
	return removed
}

// Snapshot returns a copy of the queue in insertion order.
func (q *Queue) Snapshot() []domain.QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueuedOperation, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items, including in-flight ones.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// SetCapacity changes the capacity. Shrinking below the current length
// evicts the oldest items.
func (q *Queue) SetCapacity(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	q.capacity = n
	trimmed := 0
	if over := len(q.items) - n; over > 0 {
		q.items = append([]domain.QueuedOperation(nil), q.items[over:]...)
		trimmed = over
	}
	q.mu.Unlock()

	if trimmed > 0 {
		q.logger.Warn("capacity reduced, evicted oldest operations", log.Int("count", trimmed))
		q.persist(ctx)
	}
}

// SetMaxAttempts changes the retry budget given to newly enqueued items.
func (q *Queue) SetMaxAttempts(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	q.maxAttempts = n
	q.mu.Unlock()
}

// Load merges the persisted queue into memory: persisted items first, then
// items enqueued earlier in this process, trimmed to capacity from the
// oldest. Only the first successful call reads storage. A missing record
// yields an empty queue; a corrupt record is logged and ignored.
func (q *Queue) Load(ctx context.Context) error {
	q.loadMu.Lock()
	defer q.loadMu.Unlock()

	q.mu.Lock()
	done := q.loaded
	q.mu.Unlock()
	if done {
		return nil
	}

	var persisted []domain.QueuedOperation
	b, err := q.storage.Get(ctx, codec.QueueRecord)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load queue: %w", err)
	default:
		persisted, err = codec.DecodeQueue(b)
		if err != nil {
			q.logger.Warn("ignoring corrupt queue record", log.Err(err))
			persisted = nil
		}
	}

	q.mu.Lock()
	early := len(q.items)
	seen := make(map[string]struct{}, len(persisted))
	merged := make([]domain.QueuedOperation, 0, len(persisted)+early)
	for _, item := range persisted {
		if item.MaxAttempts <= 0 {
			item.MaxAttempts = q.maxAttempts
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range q.items {
		if _, dup := seen[item.ID]; !dup {
			merged = append(merged, item)
		}
	}
	if over := len(merged) - q.capacity; over > 0 {
		merged = merged[over:]
	}
	q.items = merged
	q.loaded = true
	total := len(merged)
	q.mu.Unlock()

	q.logger.Info("queue loaded",
		log.Int("persisted", len(persisted)),
		log.Int("operations", total),
	)
	if early > 0 {
		q.persist(ctx)
	}
	return nil
}

// ensureLoaded runs Load on first use. A storage failure is logged and
// leaves the queue unpersisted until a later Load succeeds.
func (q *Queue) ensureLoaded(ctx context.Context) {
	q.mu.Lock()
	done := q.loaded
	q.mu.Unlock()
	if done {
		return
	}
	if err := q.Load(ctx); err != nil {
		q.logger.Warn("queue not loaded, holding writes", log.Err(err))
	}
}

// persist writes the current queue. Snapshots are taken under persistMu so
// concurrent writers cannot reorder an older snapshot after a newer one.
func (q *Queue) persist(ctx context.Context) {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	q.mu.Lock()
	loaded := q.loaded
	q.mu.Unlock()
	if !loaded {
		return
	}

	items := q.Snapshot()
	b, err := codec.EncodeQueue(items, q.now())
	if err != nil {
		q.logger.Warn("encode queue failed", log.Err(err))
		return
	}
	if err := q.storage.Set(ctx, codec.QueueRecord, b); err != nil {
		q.logger.Warn("persist queue failed", log.Err(err), log.Int("operations", len(items)))
	}
}

func (q *Queue) indexOf(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAt(i int) {
	q.items = append(q.items[:i:i], q.items[i+1:]...)
}
