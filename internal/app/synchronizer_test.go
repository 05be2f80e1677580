package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
)

type syncFixture struct {
	queue      *Queue
	dispatcher *Dispatcher
	events     *Events
	sync       *Synchronizer
	online     atomic.Bool
	clock      *fakeClock
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{clock: newFakeClock()}
	f.online.Store(true)
	f.events = NewEvents(&mockLogger{})
	f.queue = NewQueue(newMockStorage(), &mockLogger{}, f.clock.Now)
	f.dispatcher = NewDispatcher(&mockLogger{})
	f.sync = NewSynchronizer(f.queue, f.dispatcher, f.events, f.online.Load, &mockLogger{}, f.clock.Now)
	return f
}

func TestSynchronizer_Offline(t *testing.T) {
	f := newSyncFixture()
	f.online.Store(false)

	_, err := f.sync.RunSyncPass(context.Background())
	if !errors.Is(err, domain.ErrOffline) {
		t.Errorf("err = %v, want ErrOffline", err)
	}
}

func TestSynchronizer_FailFailSucceed(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()
	exec := &scriptedExecutor{script: []error{errRemote, errRemote}}
	f.dispatcher.Register(domain.KindStatusUpdate, exec)
	rec := recordEvents(f.events)

	f.queue.Enqueue(ctx, domain.Operation{Kind: domain.KindStatusUpdate})

	wants := []domain.SyncResult{
		{SuccessCount: 0, FailureCount: 1},
		{SuccessCount: 0, FailureCount: 1},
		{SuccessCount: 1, FailureCount: 0},
	}
	for i, want := range wants {
		got, err := f.sync.RunSyncPass(ctx)
		if err != nil {
			t.Fatalf("pass %d: %v", i+1, err)
		}
		if got.SuccessCount != want.SuccessCount || got.FailureCount != want.FailureCount {
			t.Errorf("pass %d: result = %+v, want %+v", i+1, got, want)
		}
	}

	if f.queue.Len() != 0 {
		t.Errorf("queue Len = %d, want 0", f.queue.Len())
	}
	if n := len(rec.Get(domain.ChannelSyncCompleted)); n != 3 {
		t.Errorf("sync-completed events = %d, want 3", n)
	}
	if n := len(rec.Get(domain.ChannelOperationFailed)); n != 0 {
		t.Errorf("operation-failed events = %d, want 0", n)
	}
	if f.sync.LastSyncTime().IsZero() {
		t.Error("LastSyncTime not set")
	}
}

func TestSynchronizer_ExhaustionAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()
	exec := &scriptedExecutor{script: []error{errRemote, errRemote, errRemote, errRemote}}
	f.dispatcher.Register(domain.KindOrderCompletion, exec)
	rec := recordEvents(f.events)

	item, _ := f.queue.Enqueue(ctx, domain.Operation{Kind: domain.KindOrderCompletion})

	for i := 0; i < 2; i++ {
		f.sync.RunSyncPass(ctx)
		if f.queue.Len() != 1 {
			t.Fatalf("removed after %d failures", i+1)
		}
	}
	f.sync.RunSyncPass(ctx)
	if f.queue.Len() != 0 {
		t.Fatal("not removed after MaxAttempts failures")
	}

	failed := rec.Get(domain.ChannelOperationFailed)
	if len(failed) != 1 {
		t.Fatalf("operation-failed events = %d, want 1", len(failed))
	}
	ev := failed[0].(domain.OperationFailed)
	if ev.ID != item.ID || ev.Attempts != 3 || !errors.Is(ev.Err, errRemote) {
		t.Errorf("event = %+v", ev)
	}

	// A fourth pass has nothing to dispatch.
	f.sync.RunSyncPass(ctx)
	if n := len(exec.Calls()); n != 3 {
		t.Errorf("executor calls = %d, want 3", n)
	}
}

func TestSynchronizer_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()
	exec := &scriptedExecutor{}
	f.dispatcher.Register(domain.KindLocationUpdate, exec)

	var ids []string
	for i := 0; i < 5; i++ {
		item, _ := f.queue.Enqueue(ctx, locationUpdate(i))
		ids = append(ids, item.ID)
	}

	res, err := f.sync.RunSyncPass(ctx)
	if err != nil || res.SuccessCount != 5 {
		t.Fatalf("RunSyncPass = (%+v, %v)", res, err)
	}
	calls := exec.Calls()
	for i := range ids {
		if calls[i] != ids[i] {
			t.Fatalf("dispatch order = %v, want %v", calls, ids)
		}
	}
}

func TestSynchronizer_ConcurrentPassRejected(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.dispatcher.Register(domain.KindMessageSend, ports.ExecutorFunc(func(context.Context, domain.QueuedOperation) error {
		close(entered)
		<-release
		return nil
	}))
	f.queue.Enqueue(ctx, domain.Operation{Kind: domain.KindMessageSend})

	done := make(chan error, 1)
	go func() {
		_, err := f.sync.RunSyncPass(ctx)
		done <- err
	}()
	<-entered

	if !f.sync.Syncing() {
		t.Error("Syncing = false during pass")
	}
	if _, err := f.sync.RunSyncPass(ctx); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Errorf("second pass err = %v, want ErrSyncInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if f.sync.Syncing() {
		t.Error("Syncing = true after pass")
	}
}

func TestSynchronizer_NoDoubleDispatch(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()

	var mu sync.Mutex
	counts := make(map[string]int)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.dispatcher.Register(domain.KindLocationUpdate, ports.ExecutorFunc(func(_ context.Context, op domain.QueuedOperation) error {
		mu.Lock()
		counts[op.ID]++
		mu.Unlock()
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))

	item, _ := f.queue.Enqueue(ctx, locationUpdate(0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sync.RunSyncPass(ctx)
	}()
	<-entered

	dispatched, err := f.sync.DispatchNow(ctx, item.ID)
	if dispatched || err != nil {
		t.Errorf("DispatchNow = (%v, %v), want skipped", dispatched, err)
	}

	close(release)
	<-done

	if counts[item.ID] != 1 {
		t.Errorf("executed %d times, want 1", counts[item.ID])
	}
}

func TestSynchronizer_CancelledMidPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newSyncFixture()
	rec := recordEvents(f.events)

	f.dispatcher.Register(domain.KindLocationUpdate, ports.ExecutorFunc(func(ctx context.Context, _ domain.QueuedOperation) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}))
	f.queue.Enqueue(context.Background(), locationUpdate(0))
	f.queue.Enqueue(context.Background(), locationUpdate(1))

	_, err := f.sync.RunSyncPass(ctx)
	if !errors.Is(err, domain.ErrSyncFailed) {
		t.Fatalf("err = %v, want ErrSyncFailed", err)
	}

	if f.queue.Len() != 2 {
		t.Errorf("queue Len = %d, want 2", f.queue.Len())
	}
	for _, item := range f.queue.Snapshot() {
		if item.Attempts != 0 {
			t.Errorf("item %s Attempts = %d, want 0", item.ID, item.Attempts)
		}
	}
	if !f.sync.LastSyncTime().IsZero() {
		t.Error("LastSyncTime updated by a failed pass")
	}
	if n := len(rec.Get(domain.ChannelSyncFailed)); n != 1 {
		t.Errorf("sync-failed events = %d, want 1", n)
	}
	if n := len(rec.Get(domain.ChannelSyncCompleted)); n != 0 {
		t.Errorf("sync-completed events = %d, want 0", n)
	}
}

func TestSynchronizer_ExecutorPanicCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()
	f.dispatcher.Register(domain.KindStatusUpdate, ports.ExecutorFunc(func(context.Context, domain.QueuedOperation) error {
		panic("nil map")
	}))
	f.queue.Enqueue(ctx, domain.Operation{Kind: domain.KindStatusUpdate})

	res, err := f.sync.RunSyncPass(ctx)
	if err != nil {
		t.Fatalf("RunSyncPass: %v", err)
	}
	if res.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", res.FailureCount)
	}
	if got := f.queue.Snapshot()[0].Attempts; got != 1 {
		t.Errorf("Attempts = %d, want 1", got)
	}
}

func TestSynchronizer_DispatchTimeoutCountsAttempt(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture()
	f.dispatcher.SetTimeout(10 * time.Millisecond)
	f.dispatcher.Register(domain.KindMessageSend, ports.ExecutorFunc(func(ctx context.Context, _ domain.QueuedOperation) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	f.queue.Enqueue(ctx, domain.Operation{Kind: domain.KindMessageSend})

	res, err := f.sync.RunSyncPass(ctx)
	if err != nil {
		t.Fatalf("RunSyncPass: %v", err)
	}
	if res.FailureCount != 1 || f.queue.Snapshot()[0].Attempts != 1 {
		t.Errorf("timeout not counted: %+v, attempts %d", res, f.queue.Snapshot()[0].Attempts)
	}
}
