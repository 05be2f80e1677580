// Package courier provides an embeddable offline durability layer: an
// expiring key/value cache of domain snapshots and a bounded, persisted
// queue of pending operations that is drained through host-supplied
// executors whenever connectivity allows.
//
// # Basic Usage
//
//	c, err := courier.New(courier.DefaultConfig(),
//	    courier.WithStorage(fs.NewStorage(dir)),
//	    courier.WithExecutor(courier.KindStatusUpdate, statusExecutor),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
//	op, err := c.Enqueue(ctx, courier.KindStatusUpdate, map[string]string{"status": "delivered"})
//
// # Configuration
//
// Start from [DefaultConfig]. Zero sizes and durations are replaced by
// their defaults in [New] and [Courier.UpdateSettings]; the two Enable
// flags are taken as given.
//
// # Sync Semantics
//
// Operations are dispatched in insertion order. A failed dispatch counts
// one attempt; an operation is dropped after MaxAttempts failures and an
// [OperationFailed] notification is emitted. When the queue is full the
// oldest operation is evicted to make room. A transition from offline to
// online triggers one sync pass after SettleDelay.
//
// # Notifications
//
// Subscribe to a [Channel] with [Courier.Subscribe]. Handlers run
// synchronously on the emitting goroutine and should return quickly; a
// panicking handler is logged and does not affect other handlers.
//
// # Lifecycle States
//
// A Courier can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Courier.State]
// to query the current state.
//
// # Plugins
//
// Plugins share the lifecycle of the instance:
//
//	import "github.com/bft-labs/courier/plugins/configwatcher"
//
//	c, err := courier.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: "/etc/courier.toml"}),
//	)
package courier
