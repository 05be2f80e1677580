package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/courier/internal/codec"
	"github.com/bft-labs/courier/internal/domain"
)

func newTestQueue(storage *mockStorage, clock *fakeClock) *Queue {
	return NewQueue(storage, &mockLogger{}, clock.Now)
}

func locationUpdate(i int) domain.Operation {
	return domain.Operation{
		Kind: domain.KindLocationUpdate,
		Data: []byte(fmt.Sprintf(`{"seq":%d}`, i)),
	}
}

func TestQueue_BoundedOldestEvicted(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	q := newTestQueue(newMockStorage(), clock)

	var first domain.QueuedOperation
	for i := 0; i < 101; i++ {
		item, err := q.Enqueue(ctx, locationUpdate(i))
		if err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
		if i == 0 {
			first = item
		}
		clock.Advance(time.Millisecond)
	}

	if q.Len() != 100 {
		t.Fatalf("Len = %d, want 100", q.Len())
	}
	snap := q.Snapshot()
	for _, item := range snap {
		if item.ID == first.ID {
			t.Fatal("first operation still queued after overflow")
		}
	}
	if string(snap[0].Operation.Data) != `{"seq":1}` {
		t.Errorf("head = %s, want seq 1", snap[0].Operation.Data)
	}
	if string(snap[99].Operation.Data) != `{"seq":100}` {
		t.Errorf("tail = %s, want seq 100", snap[99].Operation.Data)
	}
}

func TestQueue_RejectsEmptyKind(t *testing.T) {
	q := newTestQueue(newMockStorage(), newFakeClock())
	_, err := q.Enqueue(context.Background(), domain.Operation{})
	if !errors.Is(err, domain.ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestQueue_CompleteRetryBudget(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(newMockStorage(), newFakeClock())
	item, _ := q.Enqueue(ctx, locationUpdate(0))

	wantOutcomes := []Outcome{OutcomeRetry, OutcomeRetry, OutcomeExhausted}
	for i, want := range wantOutcomes {
		if _, ok := q.Acquire(item.ID); !ok {
			t.Fatalf("attempt %d: Acquire failed", i+1)
		}
		updated, outcome := q.Complete(ctx, item.ID, errRemote)
		if outcome != want {
			t.Fatalf("attempt %d: outcome = %v, want %v", i+1, outcome, want)
		}
		if updated.Attempts != i+1 {
			t.Errorf("attempt %d: Attempts = %d", i+1, updated.Attempts)
		}
		if updated.LastError != errRemote.Error() {
			t.Errorf("LastError = %q", updated.LastError)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after exhaustion, want 0", q.Len())
	}
	if _, outcome := q.Complete(ctx, item.ID, nil); outcome != OutcomeGone {
		t.Errorf("Complete on removed item = %v, want gone", outcome)
	}
}

func TestQueue_CompleteSuccessRemoves(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(newMockStorage(), newFakeClock())
	item, _ := q.Enqueue(ctx, locationUpdate(0))

	q.Acquire(item.ID)
	if _, outcome := q.Complete(ctx, item.ID, nil); outcome != OutcomeSucceeded {
		t.Errorf("outcome = %v, want succeeded", outcome)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_AcquireExclusive(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(newMockStorage(), newFakeClock())
	item, _ := q.Enqueue(ctx, locationUpdate(0))

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Acquire(item.ID); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 1 {
		t.Fatalf("acquired %d times, want 1", acquired)
	}

	q.Release(item.ID)
	if _, ok := q.Acquire(item.ID); !ok {
		t.Error("Acquire after Release failed")
	}
	if got := q.Snapshot()[0].Attempts; got != 0 {
		t.Errorf("Release counted an attempt: %d", got)
	}
}

func TestQueue_Cancel(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(newMockStorage(), newFakeClock())
	a, _ := q.Enqueue(ctx, locationUpdate(0))
	b, _ := q.Enqueue(ctx, locationUpdate(1))

	q.Acquire(b.ID)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"pending", a.ID, nil},
		{"already cancelled", a.ID, domain.ErrOperationNotFound},
		{"in flight", b.ID, domain.ErrInFlight},
		{"unknown", "0-missing", domain.ErrOperationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Cancel(ctx, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Cancel = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestQueue_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	storage := newMockStorage()

	q := newTestQueue(storage, clock)
	var ids []string
	for i := 0; i < 3; i++ {
		item, _ := q.Enqueue(ctx, locationUpdate(i))
		ids = append(ids, item.ID)
		clock.Advance(time.Second)
	}
	q.Acquire(ids[1])
	q.Complete(ctx, ids[1], errRemote)

	restored := newTestQueue(storage, clock)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := restored.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("restored %d items, want 3", len(snap))
	}
	for i, item := range snap {
		if item.ID != ids[i] {
			t.Errorf("item %d ID = %s, want %s", i, item.ID, ids[i])
		}
	}
	if snap[1].Attempts != 1 {
		t.Errorf("restored Attempts = %d, want 1", snap[1].Attempts)
	}
	// Nothing is in flight after a restart.
	if _, ok := restored.Acquire(ids[1]); !ok {
		t.Error("restored item not acquirable")
	}
}

func TestQueue_LoadMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	q := newTestQueue(storage, newFakeClock())

	if err := q.Load(ctx); err != nil {
		t.Fatalf("Load with no record: %v", err)
	}

	_ = storage.Set(ctx, codec.QueueRecord, []byte("garbage"))
	if err := q.Load(ctx); err != nil {
		t.Fatalf("Load with corrupt record: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_EvictOlderThan(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	q := newTestQueue(newMockStorage(), clock)

	old, _ := q.Enqueue(ctx, locationUpdate(0))
	busy, _ := q.Enqueue(ctx, locationUpdate(1))
	clock.Advance(2 * time.Hour)
	fresh, _ := q.Enqueue(ctx, locationUpdate(2))

	q.Acquire(busy.ID)
	n := q.EvictOlderThan(ctx, clock.Now().Add(-time.Hour))
	if n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0].ID != busy.ID || snap[1].ID != fresh.ID {
		t.Errorf("remaining = %+v", snap)
	}
	for _, item := range snap {
		if item.ID == old.ID {
			t.Error("old item still queued")
		}
	}
}

func TestQueue_SetCapacityShrinks(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(newMockStorage(), newFakeClock())
	for i := 0; i < 5; i++ {
		q.Enqueue(ctx, locationUpdate(i))
	}

	q.SetCapacity(ctx, 2)
	if q.Len() != 2 || q.Cap() != 2 {
		t.Fatalf("Len/Cap = %d/%d, want 2/2", q.Len(), q.Cap())
	}
	if string(q.Snapshot()[0].Operation.Data) != `{"seq":3}` {
		t.Errorf("head = %s, want seq 3", q.Snapshot()[0].Operation.Data)
	}
}

func TestQueue_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	q := newTestQueue(storage, newFakeClock())

	a, _ := q.Enqueue(ctx, locationUpdate(0))
	q.Enqueue(ctx, locationUpdate(1))
	q.Acquire(a.ID)
	q.Complete(ctx, a.ID, nil)

	if storage.sets != 3 {
		t.Errorf("storage writes = %d, want 3", storage.sets)
	}

	b, _ := storage.Get(ctx, codec.QueueRecord)
	items, err := codec.DecodeQueue(b)
	if err != nil {
		t.Fatalf("DecodeQueue: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("persisted %d items, want 1", len(items))
	}
}

func TestQueue_EnqueueBeforeLoadKeepsPersisted(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	storage := newMockStorage()

	previous := newTestQueue(storage, clock)
	a, _ := previous.Enqueue(ctx, locationUpdate(0))
	b, _ := previous.Enqueue(ctx, locationUpdate(1))
	clock.Advance(time.Second)

	q := newTestQueue(storage, clock)
	c, err := q.Enqueue(ctx, locationUpdate(2))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{a.ID, b.ID, c.ID}
	snap := q.Snapshot()
	if len(snap) != len(want) {
		t.Fatalf("queue holds %d items, want %d", len(snap), len(want))
	}
	for i, item := range snap {
		if item.ID != want[i] {
			t.Errorf("item %d ID = %s, want %s", i, item.ID, want[i])
		}
	}

	raw, _ := storage.Get(ctx, codec.QueueRecord)
	items, err := codec.DecodeQueue(raw)
	if err != nil {
		t.Fatalf("DecodeQueue: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("persisted %d items, want 3", len(items))
	}
}

func TestQueue_LoadMergesItemsHeldDuringStorageFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	storage := newMockStorage()

	previous := newTestQueue(storage, clock)
	old, _ := previous.Enqueue(ctx, locationUpdate(0))
	writes := storage.sets

	storage.getErr = errors.New("disk busy")
	q := newTestQueue(storage, clock)
	q.SetCapacity(ctx, 2)
	early1, _ := q.Enqueue(ctx, locationUpdate(1))
	early2, _ := q.Enqueue(ctx, locationUpdate(2))
	if storage.sets != writes {
		t.Fatalf("queue wrote %d times before loading", storage.sets-writes)
	}

	storage.getErr = nil
	if err := q.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Persisted first, then early items, trimmed from the oldest.
	snap := q.Snapshot()
	if len(snap) != 2 || snap[0].ID != early1.ID || snap[1].ID != early2.ID {
		t.Errorf("queue = %+v, want [%s %s]", snap, early1.ID, early2.ID)
	}
	for _, item := range snap {
		if item.ID == old.ID {
			t.Error("oldest item survived the trim")
		}
	}
	if storage.sets != writes+1 {
		t.Errorf("writes after Load = %d, want 1", storage.sets-writes)
	}
}

func TestQueue_CancelBeforeLoadFindsPersisted(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()

	previous := newTestQueue(storage, newFakeClock())
	item, _ := previous.Enqueue(ctx, locationUpdate(0))

	q := newTestQueue(storage, newFakeClock())
	if err := q.Cancel(ctx, item.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}
